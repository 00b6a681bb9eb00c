package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jjudge-oj/accounts/config"
	"github.com/jjudge-oj/accounts/internal/db"
	"github.com/jjudge-oj/accounts/internal/mq"
	"github.com/jjudge-oj/accounts/internal/passwords"
	"github.com/jjudge-oj/accounts/internal/services"
	"github.com/jjudge-oj/accounts/internal/sessions"
	"github.com/jjudge-oj/accounts/internal/store"
)

// Accounts bundles the user service with the resources it keeps open.
type Accounts struct {
	Users  *services.UserService
	db     *sqlx.DB
	events *mq.MQ
}

// OpenAccounts builds the user service for the configured database driver and
// event backend.
func OpenAccounts(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Accounts, error) {
	var (
		repo   services.UserRepository
		dbConn *sqlx.DB
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres, "":
		conn, err := db.Open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		dbConn = conn
		repo = store.NewUserRepository(conn)
	case config.DriverMemory:
		logger.Warn("using in-memory user store; accounts are lost on restart")
		repo = store.NewMemoryUserRepository()
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	events, err := mq.Open(ctx, cfg.MQ)
	if err != nil {
		if dbConn != nil {
			_ = dbConn.Close()
		}
		return nil, fmt.Errorf("open event backend: %w", err)
	}

	users := services.NewUserService(repo, passwords.NewHasher(cfg.BcryptCost), events, logger)
	return &Accounts{Users: users, db: dbConn, events: events}, nil
}

func (a *Accounts) Close() error {
	var errs []error
	if a.events != nil {
		errs = append(errs, a.events.Close())
	}
	if a.db != nil {
		errs = append(errs, a.db.Close())
	}
	return errors.Join(errs...)
}

func openSessionStore(ctx context.Context, cfg config.Config) (sessions.Store, error) {
	switch cfg.Session.Backend {
	case config.SessionBackendMemory, "":
		return sessions.NewMemoryStore(), nil
	case config.SessionBackendRedis:
		client, err := sessions.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return sessions.NewRedisStore(client), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Session.Backend)
	}
}
