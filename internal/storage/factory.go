package storage

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/ragassistant/internal/config"
)

// Deps are the shared clients a backend may need.
type Deps struct {
	NATS   *nats.Conn // required for the nats provider
	SiYuan FileClient // required for the siyuan provider
	Logger *zap.Logger
}

// New creates the Store selected by cfg.Storage.Provider.
//
//	store, err := storage.New(ctx, cfg, storage.Deps{SiYuan: client})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
func New(ctx context.Context, cfg *config.Config, deps Deps) (Store, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		store Store
		err   error
	)
	switch cfg.Storage.Provider {
	case config.StorageMemory:
		store = NewMemoryStore()

	case config.StorageSQLite, "":
		store, err = NewSQLiteStore(ctx, cfg.Storage.SQLitePath)

	case config.StorageNATS:
		if deps.NATS == nil {
			return nil, fmt.Errorf("nats connection required for nats storage provider")
		}
		store, err = NewNATSStore(ctx, deps.NATS, cfg.Storage.NATSBucket)

	case config.StorageSiYuan:
		if deps.SiYuan == nil {
			return nil, fmt.Errorf("siyuan client required for siyuan storage provider")
		}
		store = NewSiYuanStore(deps.SiYuan, cfg.SiYuan.PluginName)

	default:
		return nil, fmt.Errorf("unsupported storage provider: %s (supported: memory, sqlite, nats, siyuan)", cfg.Storage.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("storage initialized", zap.String("provider", cfg.Storage.Provider))
	return store, nil
}
