package lark

import (
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"go.uber.org/zap"
)

// Config holds Lark client configuration
type Config struct {
	AppID     string
	AppSecret string
	BaseURL   string // optional, e.g. the Feishu open platform domain
}

// Enabled reports whether credentials are configured
func (c Config) Enabled() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// NewSDKClient creates a Lark SDK client with tenant token caching
func NewSDKClient(cfg Config, logger *zap.Logger) *lark.Client {
	opts := []lark.ClientOptionFunc{
		lark.WithLogLevel(larkcore.LogLevelInfo),
		lark.WithEnableTokenCache(true),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lark.WithOpenBaseUrl(cfg.BaseURL))
	}

	logger.Info("Lark client configured", zap.String("app_id", cfg.AppID))
	return lark.NewClient(cfg.AppID, cfg.AppSecret, opts...)
}
