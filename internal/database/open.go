package database

import (
	"context"
	"fmt"

	"github.com/vladimiradmaev/wellnest/internal/config"
	"github.com/vladimiradmaev/wellnest/internal/domain"
	"github.com/vladimiradmaev/wellnest/internal/repository"
	"github.com/vladimiradmaev/wellnest/internal/store"
)

// Collections lists every collection the application writes to.
func Collections() []string {
	out := make([]string, 0, len(domain.Kinds)+2)
	for _, k := range domain.Kinds {
		out = append(out, k.Collection())
	}
	return append(out, repository.UsersCollection, repository.TrackingCollection)
}

// Open connects the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "postgres":
		db, err := NewPostgresDB(cfg.Postgres)
		if err != nil {
			return nil, err
		}
		return NewGormStore(db), nil
	case "mongo":
		s, err := NewMongoStore(ctx, cfg.Mongo)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx, Collections()...); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	case "sqlite":
		return OpenSQLite(ctx, cfg.SQLite.Path)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
