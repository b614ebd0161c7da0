// Package container wires the expense approval application together and
// manages its lifecycle.
package container

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/application/service"
	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/workflow"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/exchangerate"
	infraLark "github.com/garyjia/expense-approval/internal/infrastructure/external/lark"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/openai"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/restcountries"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/repository"
	"github.com/garyjia/expense-approval/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/expense-approval/internal/infrastructure/worker"
	"github.com/garyjia/expense-approval/internal/reporting"
	"github.com/garyjia/expense-approval/pkg/database"
	"github.com/garyjia/expense-approval/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Conn           *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	User    port.UserRepository
	Expense port.ExpenseRepository
	Company port.CompanyRepository
}

// CurrencyBundle holds the rate cache, provider, normalizer and the
// supported currency catalog. Catalog is nil when no list is configured.
type CurrencyBundle struct {
	Cache      *currency.RateCache
	Provider   *currency.RateProvider
	Normalizer *currency.Normalizer
	Catalog    *currency.Catalog
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Expense  service.ExpenseService
	User     service.UserService
	Company  service.CompanyService
	Report   service.ReportService
	Receipt  service.ReceiptService
	Workflow *workflow.Engine
}

// ProvideDatabase opens the database and applies pending migrations.
func ProvideDatabase(cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}

	if !strings.HasPrefix(cfg.Path, "file:") {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	conn, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := conn.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Conn:           conn,
		TransactionMgr: sqlite.NewDB(conn.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories over the transaction manager.
func ProvideRepositories(db *sqlite.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	return &RepositoryBundle{
		User:    repository.NewUserRepository(db, logger),
		Expense: repository.NewExpenseRepository(db, logger),
		Company: repository.NewCompanyRepository(db, logger),
	}, nil
}

// ProvideCurrency creates the rate pipeline and currency catalog. source
// and currencies may replace the HTTP clients, mainly in tests.
func ProvideCurrency(cfg *config.CurrencyConfig, source currency.RateSource, currencies currency.CurrencySource, logger *zap.Logger) *CurrencyBundle {
	if source == nil {
		source = exchangerate.NewClient(cfg.RateAPIURL, logger)
	}
	cache := currency.NewRateCache(cfg.Freshness)
	provider := currency.NewRateProvider(source, cache, cfg.FetchTimeout, logger)

	bundle := &CurrencyBundle{
		Cache:      cache,
		Provider:   provider,
		Normalizer: currency.NewNormalizer(provider),
	}

	if currencies == nil && cfg.CurrenciesAPIURL != "" {
		currencies = restcountries.NewClient(cfg.CurrenciesAPIURL, logger)
	}
	if currencies != nil {
		bundle.Catalog = currency.NewCatalog(currencies, cfg.CatalogTTL, cfg.FetchTimeout, logger)
	} else {
		logger.Info("Currency list not configured, accepting any three-letter code")
	}
	return bundle
}

// ProvideReceiptExtractor creates the OpenAI receipt extractor, or nil when
// no API key is configured.
func ProvideReceiptExtractor(cfg *config.OpenAIConfig, logger *zap.Logger) (port.ReceiptExtractor, error) {
	if !cfg.Enabled() {
		logger.Info("OpenAI API key not set, receipt extraction disabled")
		return nil, nil
	}

	prompts, err := openai.LoadPrompts(cfg.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}
	return openai.NewReceiptExtractor(cfg.APIKey, cfg.Model, cfg.Timeout, prompts, logger), nil
}

// ProvideNotifier creates the Lark approver notifier, or nil when Lark
// credentials are not configured.
func ProvideNotifier(cfg *config.LarkConfig, logger *zap.Logger) port.Notifier {
	if !cfg.Enabled() {
		logger.Info("Lark credentials not set, approver notifications disabled")
		return nil
	}

	client := infraLark.NewSDKClient(infraLark.Config{
		AppID:     cfg.AppID,
		AppSecret: cfg.AppSecret,
		BaseURL:   cfg.BaseURL,
	}, logger)
	return infraLark.NewApproverNotifier(infraLark.NewMessenger(client, logger), cfg.LinkURL, logger)
}

// ServiceDeps holds the dependencies for ProvideServices.
type ServiceDeps struct {
	Config    *config.Config
	Repos     *RepositoryBundle
	TxManager port.TransactionManager
	Currency  *CurrencyBundle
	Extractor port.ReceiptExtractor
	Notifier  port.Notifier
	Logger    *zap.Logger
}

// ProvideServices creates all application services.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	wf, err := deps.Config.BuildWorkflow()
	if err != nil {
		return nil, fmt.Errorf("invalid workflow: %w", err)
	}
	maxAmount, err := deps.Config.Expense.MaxAmountDecimal()
	if err != nil {
		return nil, fmt.Errorf("invalid expense.max_amount: %w", err)
	}

	logger := utils.NewKVLogger(deps.Logger)
	engine := workflow.NewEngine(wf)

	aggregator := reporting.NewAggregator(deps.Currency.Normalizer, deps.Logger)
	exporter := reporting.NewExcelExporter(deps.Logger)

	var currencies service.CurrencyChecker
	if deps.Currency.Catalog != nil {
		currencies = deps.Currency.Catalog
	}

	return &ServiceBundle{
		Expense: service.NewExpenseService(
			deps.Repos.Expense,
			deps.Repos.User,
			deps.Repos.Company,
			deps.TxManager,
			engine,
			deps.Notifier,
			deps.Currency.Normalizer,
			currencies,
			service.ExpenseServiceConfig{MaxAmount: maxAmount},
			logger,
		),
		User:     service.NewUserService(deps.Repos.User, deps.TxManager, logger),
		Company:  service.NewCompanyService(deps.Repos.Company, logger),
		Report:   service.NewReportService(deps.Repos.Expense, deps.Repos.User, deps.Repos.Company, aggregator, exporter, logger),
		Receipt:  service.NewReceiptService(deps.Extractor, logger),
		Workflow: engine,
	}, nil
}

// ProvideWorkers registers the background workers. They are started by the caller.
func ProvideWorkers(cfg *config.CurrencyConfig, rates *CurrencyBundle, logger *zap.Logger) *worker.Manager {
	workers := worker.NewManager(logger)
	workers.Register(worker.NewRateCacheWorker(rates.Cache, cfg.CleanupInterval, logger))
	return workers
}
