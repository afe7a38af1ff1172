package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"fastchat/internal/config"
	"fastchat/internal/logger"
	"fastchat/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const migrationDir = "migrations"

// Now is the clock used for server-assigned timestamps. Postgres keeps
// microseconds, so the value returned from an insert matches a later read.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// GormConfig is shared by the Postgres connection and the SQLite test stores.
func GormConfig(log *zap.Logger, slowQuery time.Duration) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.NewGorm(log, slowQuery),
		NowFunc:        Now,
		TranslateError: true,
	}
}

// InitDB opens the pool, waits for the database, applies migrations and
// hands the same pool to GORM.
func InitDB(ctx context.Context, cfg config.Config, log *zap.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("pgx", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := waitForDB(ctx, sqlDB, cfg, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := runMigrations(ctx, sqlDB, log); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), GormConfig(log, cfg.SlowQuery))
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	log.Info("database connected and migrated",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))
	return db, nil
}

func waitForDB(ctx context.Context, sqlDB *sql.DB, cfg config.Config, log *zap.Logger) error {
	var err error
	for attempt := 1; attempt <= cfg.ConnectAttempts; attempt++ {
		if err = sqlDB.PingContext(ctx); err == nil {
			return nil
		}
		log.Warn("waiting for database",
			zap.Int("attempt", attempt),
			zap.Int("attempts", cfg.ConnectAttempts),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return fmt.Errorf("wait for database: %w", ctx.Err())
		case <-time.After(cfg.ConnectInterval):
		}
	}
	return fmt.Errorf("database unreachable after %d attempts: %w", cfg.ConnectAttempts, err)
}

func runMigrations(ctx context.Context, sqlDB *sql.DB, log *zap.Logger) error {
	goose.SetBaseFS(migrations)
	goose.SetTableName("goose_migrations")
	goose.SetLogger(logger.NewGoose(log))
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}

	current, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err != nil {
		log.Debug("no migration version yet", zap.Error(err))
	} else {
		log.Info("current migration version", zap.Int64("version", current))
	}

	if err := goose.UpContext(ctx, sqlDB, migrationDir); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// AutoMigrate creates the schema from the models. Used for stores that do
// not run the Postgres migrations, such as the SQLite test databases.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.Chat{}, &models.Message{})
}

// Ping checks that a pooled connection is usable.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the underlying pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
