package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/config"
	"github.com/garyjia/expense-approval/internal/currency"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"github.com/garyjia/expense-approval/internal/infrastructure/worker"
	"go.uber.org/zap"
)

// Options replaces external dependencies, mainly in tests.
type Options struct {
	RateSource     currency.RateSource
	CurrencySource currency.CurrencySource
	Extractor      port.ReceiptExtractor
	Notifier       port.Notifier
}

// Container manages all application dependencies and lifecycle.
// Components are initialized in order and torn down in reverse.
type Container struct {
	config *config.Config
	opts   Options
	logger *zap.Logger

	db           *DatabaseBundle
	repositories *RepositoryBundle
	currency     *CurrencyBundle
	extractor    port.ReceiptExtractor
	notifier     port.Notifier
	services     *ServiceBundle
	workers      *worker.Manager

	mu     sync.Mutex
	ready  atomic.Bool
	closed atomic.Bool
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger, opts Options) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{config: cfg, opts: opts, logger: logger}, nil
}

// Start initializes all components and bootstraps the stored data:
// 1. Database, migrations and repositories
// 2. Rate pipeline and external clients
// 3. Application services
// 4. Company row and optional demo users
// 5. Background workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized", zap.String("path", c.config.Database.Path))

	if err := c.initExternalClients(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize external clients: %w", err)
	}

	if err := c.initServices(); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.logger.Info("Application services initialized",
		zap.Strings("workflow", c.config.Workflow.Stages))

	if err := c.bootstrap(ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to bootstrap data: %w", err)
	}

	c.workers = ProvideWorkers(&c.config.Currency, c.currency, c.logger)
	if err := c.workers.StartAll(ctx); err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to start workers: %w", err)
	}

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close releases all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}
	c.logger.Info("Closing container")

	var errs []error
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	}
	if err := c.closeDatabase(); err != nil {
		c.logger.Error("Failed to close database", zap.Error(err))
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}
	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	if c.db == nil {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: "not initialized"}
		status.Overall = false
	} else if err := c.db.Conn.PingContext(ctx); err != nil {
		status.Components["database"] = ComponentHealth{Healthy: false, Message: fmt.Sprintf("ping failed: %v", err)}
		status.Overall = false
	} else {
		status.Components["database"] = ComponentHealth{Healthy: true}
	}

	if c.currency != nil {
		status.Components["rate_cache"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("cached sources: %d", c.currency.Cache.Size()),
		}
	}
	if c.workers != nil {
		status.Components["workers"] = ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("worker count: %d", c.workers.Count()),
		}
		if !c.workers.IsRunning() {
			status.Overall = false
		}
	}
	status.Components["receipt_extraction"] = ComponentHealth{Healthy: true, Message: enabledMessage(c.extractor != nil)}
	status.Components["notifications"] = ComponentHealth{Healthy: true, Message: enabledMessage(c.notifier != nil)}

	return status
}

func enabledMessage(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func (c *Container) initDatabase() error {
	db, err := ProvideDatabase(&c.config.Database, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	repos, err := ProvideRepositories(db.TransactionMgr, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}
	c.repositories = repos
	return nil
}

func (c *Container) initExternalClients() error {
	c.currency = ProvideCurrency(&c.config.Currency, c.opts.RateSource, c.opts.CurrencySource, c.logger)

	c.extractor = c.opts.Extractor
	if c.extractor == nil {
		extractor, err := ProvideReceiptExtractor(&c.config.OpenAI, c.logger)
		if err != nil {
			return err
		}
		c.extractor = extractor
	}

	c.notifier = c.opts.Notifier
	if c.notifier == nil {
		c.notifier = ProvideNotifier(&c.config.Lark, c.logger)
	}
	return nil
}

func (c *Container) initServices() error {
	services, err := ProvideServices(&ServiceDeps{
		Config:    c.config,
		Repos:     c.repositories,
		TxManager: c.db.TransactionMgr,
		Currency:  c.currency,
		Extractor: c.extractor,
		Notifier:  c.notifier,
		Logger:    c.logger,
	})
	if err != nil {
		return err
	}
	c.services = services
	return nil
}

// bootstrap stores the configured company and seeds demo users when enabled
func (c *Container) bootstrap(ctx context.Context) error {
	company, err := c.services.Company.Configure(ctx, entity.Company{
		Name:         c.config.Company.Name,
		BaseCurrency: c.config.Company.BaseCurrency,
	})
	if err != nil {
		return fmt.Errorf("configure company: %w", err)
	}
	c.logger.Info("Company configured",
		zap.String("name", company.Name),
		zap.String("base_currency", company.BaseCurrency))

	if !c.config.Database.SeedDemo {
		return nil
	}
	n, err := c.services.User.SeedDemoUsers(ctx)
	if err != nil {
		return fmt.Errorf("seed demo users: %w", err)
	}
	c.logger.Info("Demo users seeded", zap.Int("created", n))
	return nil
}

func (c *Container) closeDatabase() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Conn.Close()
	c.db = nil
	return err
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Currency returns the rate cache, provider and normalizer.
func (c *Container) Currency() *CurrencyBundle {
	return c.currency
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
