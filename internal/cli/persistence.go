package cli

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aretw0/colloquy/pkg/adapters/bolt"
	"github.com/aretw0/colloquy/pkg/adapters/file"
	"github.com/aretw0/colloquy/pkg/adapters/memory"
	"github.com/aretw0/colloquy/pkg/adapters/redis"
	"github.com/aretw0/colloquy/pkg/config"
	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/persistence/middleware"
	"github.com/aretw0/colloquy/pkg/ports"
)

// persistence bundles the session backends chosen by SESSION_STORE.
type persistence struct {
	store  ports.StateStore
	locker ports.DistributedLocker
	closer io.Closer
}

func (p *persistence) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer.Close()
}

// setupPersistence opens the session store named by SESSION_STORE: memory
// (default), file, redis or bolt. A distributed lock is only available with
// redis. Persisted stores are wrapped with PII masking and encryption when
// configured.
func setupPersistence(ctx context.Context, s config.EngineSettings, logger *slog.Logger) (*persistence, error) {
	p, err := openStore(ctx, s, logger)
	if err != nil {
		return nil, err
	}
	mws, err := storeMiddleware(s)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	if len(mws) > 0 {
		logger.Info("Session store middleware enabled",
			"pii_keys", s.PIIKeyPatterns,
			"encrypted", s.EncryptionKey != "",
		)
		p.store = middleware.Chain(p.store, mws...)
	}
	return p, nil
}

func openStore(ctx context.Context, s config.EngineSettings, logger *slog.Logger) (*persistence, error) {
	switch strings.ToLower(s.SessionStore) {
	case "", "memory":
		if s.DistributedLock {
			return nil, &domain.ConfigurationError{Key: config.KeySessionLock, Reason: "requires SESSION_STORE=redis"}
		}
		return &persistence{store: memory.NewStore()}, nil

	case "redis":
		store := redis.New(s.RedisAddr, s.RedisPassword, s.RedisDB,
			redis.WithPrefix(s.RedisPrefix),
			redis.WithTTL(s.SessionTTL),
		)
		if err := store.Client().Ping(ctx).Err(); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", s.RedisAddr, err)
		}
		p := &persistence{store: store, closer: store}
		if s.DistributedLock {
			p.locker = redis.NewLocker(store.Client(), s.RedisPrefix)
		}
		logger.Info("Using redis session store", "addr", s.RedisAddr, "lock", s.DistributedLock)
		return p, nil

	case "file":
		if s.DistributedLock {
			return nil, &domain.ConfigurationError{Key: config.KeySessionLock, Reason: "requires SESSION_STORE=redis"}
		}
		store := file.New(s.SessionDir)
		logger.Info("Using file session store", "dir", store.BasePath)
		return &persistence{store: store}, nil

	case "bolt":
		if s.DistributedLock {
			return nil, &domain.ConfigurationError{Key: config.KeySessionLock, Reason: "requires SESSION_STORE=redis"}
		}
		store, err := bolt.Open(s.BoltPath)
		if err != nil {
			return nil, err
		}
		logger.Info("Using bolt session store", "path", s.BoltPath)
		return &persistence{store: store, closer: store}, nil

	default:
		return nil, &domain.ConfigurationError{Key: config.KeySessionStore, Reason: "unknown store " + s.SessionStore}
	}
}

// storeMiddleware builds the middleware selected by SESSION_PII_KEYS and
// SESSION_ENCRYPTION_KEY. Masking runs before encryption.
func storeMiddleware(s config.EngineSettings) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(s.PIIKeyPatterns) > 0 {
		pii, err := middleware.NewPIIMiddleware(s.PIIKeyPatterns)
		if err != nil {
			return nil, &domain.ConfigurationError{Key: config.KeyPIIKeys, Reason: "invalid pattern", Err: err}
		}
		mws = append(mws, pii)
	}
	if s.EncryptionKey == "" {
		if len(s.FallbackKeys) > 0 {
			return nil, &domain.ConfigurationError{Key: config.KeyFallbackKeys, Reason: "requires " + config.KeyEncryptionKey}
		}
		return mws, nil
	}

	active, err := base64.StdEncoding.DecodeString(s.EncryptionKey)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: config.KeyEncryptionKey, Reason: "not base64", Err: err}
	}
	cfg := middleware.EncryptionConfig{ActiveKey: active}
	for _, k := range s.FallbackKeys {
		key, err := base64.StdEncoding.DecodeString(k)
		if err != nil {
			return nil, &domain.ConfigurationError{Key: config.KeyFallbackKeys, Reason: "not base64", Err: err}
		}
		cfg.FallbackKeys = append(cfg.FallbackKeys, key)
	}
	enc, err := middleware.NewEncryptionMiddleware(cfg)
	if err != nil {
		return nil, &domain.ConfigurationError{Key: config.KeyEncryptionKey, Reason: "invalid key", Err: err}
	}
	return append(mws, enc), nil
}
