// Package postgres implements repository.Repository backed by PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"

	"brain2-canvas/internal/domain"
	"brain2-canvas/internal/repository"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store keeps dots, wheels and chakras in three tables.
type Store struct {
	db *sql.DB
}

var _ repository.Repository = (*Store)(nil)

// New opens the database, configures the pool and applies pending migrations.
func New(databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// NewWithDB wraps an existing handle without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	dbDriver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) GetDot(ctx context.Context, ownerID, id string) (*domain.Dot, error) {
	return queryGetDot(ctx, s.db, ownerID, id)
}

func (s *Store) GetWheel(ctx context.Context, ownerID, id string) (*domain.Wheel, error) {
	return queryGetWheel(ctx, s.db, ownerID, id)
}

func (s *Store) GetChakra(ctx context.Context, ownerID, id string) (*domain.Chakra, error) {
	return queryGetChakra(ctx, s.db, ownerID, id)
}

func (s *Store) ListDots(ctx context.Context, ownerID string) ([]*domain.Dot, error) {
	return queryListDots(ctx, s.db, ownerID)
}

func (s *Store) ListWheels(ctx context.Context, ownerID string) ([]*domain.Wheel, error) {
	return queryListWheels(ctx, s.db, ownerID)
}

func (s *Store) ListChakras(ctx context.Context, ownerID string) ([]*domain.Chakra, error) {
	return queryListChakras(ctx, s.db, ownerID)
}

func (s *Store) SaveDotParent(ctx context.Context, dot *domain.Dot) error {
	return querySaveDotParent(ctx, s.db, dot)
}

func (s *Store) SaveWheelParent(ctx context.Context, wheel *domain.Wheel) error {
	return querySaveWheelParent(ctx, s.db, wheel)
}

func (s *Store) SavePosition(ctx context.Context, ownerID string, kind domain.Kind, id string, pos domain.Position, at time.Time) error {
	return querySavePosition(ctx, s.db, ownerID, kind, id, pos, at)
}

func (s *Store) CreateDot(ctx context.Context, dot *domain.Dot) error {
	if err := repository.PrepareNew(domain.KindDot, &dot.Element); err != nil {
		return err
	}
	return queryCreateDot(ctx, s.db, dot)
}

func (s *Store) CreateWheel(ctx context.Context, wheel *domain.Wheel) error {
	if err := repository.PrepareNew(domain.KindWheel, &wheel.Element); err != nil {
		return err
	}
	return queryCreateWheel(ctx, s.db, wheel)
}

func (s *Store) CreateChakra(ctx context.Context, chakra *domain.Chakra) error {
	if err := repository.PrepareNew(domain.KindChakra, &chakra.Element); err != nil {
		return err
	}
	return queryCreateChakra(ctx, s.db, chakra)
}

// Delete removes one element and detaches its children in one transaction.
func (s *Store) Delete(ctx context.Context, ownerID string, kind domain.Kind, id string) error {
	if !kind.Valid() {
		return domain.ErrInvalidKind
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := queryDelete(ctx, tx, ownerID, kind, id, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}
