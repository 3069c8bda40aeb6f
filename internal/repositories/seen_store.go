package repositories

import (
	"context"
	"fmt"
	"github.com/maxaizer/funding-digest/internal/config"
	"github.com/maxaizer/funding-digest/internal/entities"
	"github.com/sirupsen/logrus"
)

type SeenStore interface {
	Load(ctx context.Context) entities.SeenIDs
	Save(ctx context.Context, seen entities.SeenIDs) error
	Close() error
}

func NewSeenStore(cfg config.StoreConfig, log logrus.FieldLogger) (SeenStore, error) {
	switch cfg.Backend {
	case config.BackendJSON:
		return NewJSONSeenStore(cfg.Path, cfg.MaxAgeDays, log), nil
	case config.BackendSQLite:
		store, err := NewSQLiteSeenStore(cfg.Path, cfg.MaxAgeDays, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}
