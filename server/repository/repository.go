package repository

import (
	"context"
	"fmt"

	"github.com/ponyo877/lounge/server/domain"
	"github.com/ponyo877/lounge/server/usecase"
)

var ErrNotFound = domain.ErrNotFound

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
	DriverNone   = "none"
)

type Config struct {
	Driver    string
	SQLiteDSN string
	MongoURI  string
	MongoDB   string
}

// Closer releases the store's underlying connections.
type Closer func(ctx context.Context) error

// Open returns the conversation repository selected by cfg.Driver. The
// "none" driver yields a nil repository.
func Open(ctx context.Context, cfg Config) (usecase.ConversationRepository, Closer, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		db, err := OpenSQLite(cfg.SQLiteDSN)
		if err != nil {
			return nil, nil, err
		}
		repo := NewRepository(db)
		if err := repo.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func(context.Context) error { return db.Close() }, nil
	case DriverMongo:
		repo, err := OpenMongo(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	case DriverNone:
		return nil, func(context.Context) error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
