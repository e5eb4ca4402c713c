package db

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"timesheet/internal/config"
	"timesheet/internal/logging"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrations embed.FS

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store gives access to the repositories, optionally inside a transaction.
type Store interface {
	Projects() ProjectRepository
	Members() MemberRepository
	Tasks() TaskRepository
	Timesheets() TimesheetRepository
	Conversations() ConversationRepository

	// WithTx runs fn inside a transaction. The transaction commits when fn
	// returns nil and rolls back otherwise. Nested calls join the outer
	// transaction.
	WithTx(ctx context.Context, fn func(Store) error) error
}

type DB struct {
	*pgxpool.Pool
}

func New(cfg config.Database) (*DB, error) {
	// Create a configuration object
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Configure connection pool and statement cache
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("error creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	return &DB{pool}, nil
}

func (db *DB) Projects() ProjectRepository           { return &projectRepository{q: db.Pool} }
func (db *DB) Members() MemberRepository             { return &memberRepository{q: db.Pool} }
func (db *DB) Tasks() TaskRepository                 { return &taskRepository{q: db.Pool} }
func (db *DB) Timesheets() TimesheetRepository       { return &timesheetRepository{q: db.Pool} }
func (db *DB) Conversations() ConversationRepository { return &conversationRepository{q: db.Pool} }

func (db *DB) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if err := fn(&txStore{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			logging.Logger.WithError(rbErr).Errorf("Event ID: TX_ROLLBACK_FAILED, Description: Rollback failed after: %v", err)
		} else {
			logging.Logger.Warnf("Event ID: TX_ROLLED_BACK, Description: Transaction rolled back: %v", err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}
	return nil
}

// Migrate applies the embedded migration files in name order.
func (db *DB) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("error listing migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		migration, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("error reading migration file %s: %w", name, err)
		}
		if _, err := db.Exec(ctx, string(migration)); err != nil {
			return fmt.Errorf("error executing migration %s: %w", name, err)
		}
		logging.Logger.Infof("Event ID: MIGRATION_APPLIED, Description: Applied %s", name)
	}
	return nil
}

type txStore struct {
	tx pgx.Tx
}

func (s *txStore) Projects() ProjectRepository           { return &projectRepository{q: s.tx} }
func (s *txStore) Members() MemberRepository             { return &memberRepository{q: s.tx} }
func (s *txStore) Tasks() TaskRepository                 { return &taskRepository{q: s.tx} }
func (s *txStore) Timesheets() TimesheetRepository       { return &timesheetRepository{q: s.tx} }
func (s *txStore) Conversations() ConversationRepository { return &conversationRepository{q: s.tx} }

func (s *txStore) WithTx(ctx context.Context, fn func(Store) error) error {
	return fn(s)
}
