package productconfig

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SscSPs/disbursement_backoffice/internal/adapters/apiclient"
	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
	"github.com/SscSPs/disbursement_backoffice/internal/core/domain"
	portssvc "github.com/SscSPs/disbursement_backoffice/internal/core/ports/services"
	"github.com/SscSPs/disbursement_backoffice/internal/middleware"
)

const cacheKeyPrefix = "productconfig:"

type configuration struct {
	ProductMain       domain.ProductMain       `json:"productMain"`
	ProductAccounting domain.ProductAccounting `json:"productAccounting"`
}

type productList struct {
	ProductKeys []string `json:"productKeys"`
}

// Lookup reads product configuration from the product service, caching
// configurations in Redis when a cache is given.
type Lookup struct {
	client *apiclient.Client
	cache  redis.Cmdable
	ttl    time.Duration
}

// NewLookup creates a new product configuration Lookup. cache may be nil.
func NewLookup(client *apiclient.Client, cache redis.Cmdable, ttl time.Duration) *Lookup {
	return &Lookup{client: client, cache: cache, ttl: ttl}
}

var _ portssvc.ProductConfigLookup = (*Lookup)(nil)

func (l *Lookup) GetConfiguration(ctx context.Context, productKey string) (*domain.ProductMain, *domain.ProductAccounting, error) {
	if cfg, ok := l.cached(ctx, productKey); ok {
		return &cfg.ProductMain, &cfg.ProductAccounting, nil
	}

	var cfg configuration
	if err := l.client.GetJSON(ctx, "/products/"+url.PathEscape(productKey)+"/configuration", &cfg); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, apperrors.NewConfigurationError("product %s is not configured", productKey)
		}
		return nil, nil, err
	}
	if cfg.ProductMain.ProductKey == "" {
		cfg.ProductMain.ProductKey = productKey
	}
	l.store(ctx, productKey, cfg)
	return &cfg.ProductMain, &cfg.ProductAccounting, nil
}

func (l *Lookup) GetProductList(ctx context.Context) ([]string, error) {
	var out productList
	if err := l.client.GetJSON(ctx, "/products", &out); err != nil {
		return nil, err
	}
	return out.ProductKeys, nil
}

func (l *Lookup) cached(ctx context.Context, productKey string) (configuration, bool) {
	var cfg configuration
	if l.cache == nil {
		return cfg, false
	}
	val, err := l.cache.Get(ctx, cacheKeyPrefix+productKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			middleware.GetLoggerFromCtx(ctx).Warn("Product cache read failed", slog.String("error", err.Error()))
		}
		return cfg, false
	}
	if err := json.Unmarshal(val, &cfg); err != nil {
		return cfg, false
	}
	return cfg, true
}

func (l *Lookup) store(ctx context.Context, productKey string, cfg configuration) {
	if l.cache == nil || l.ttl <= 0 {
		return
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := l.cache.Set(ctx, cacheKeyPrefix+productKey, data, l.ttl).Err(); err != nil {
		middleware.GetLoggerFromCtx(ctx).Warn("Product cache write failed", slog.String("error", err.Error()))
	}
}
