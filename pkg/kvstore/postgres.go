package kvstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tradehistory/config"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Record is one key-value row.
type Record struct {
	Key       string    `gorm:"primaryKey;type:text"`
	Value     []byte    `gorm:"type:bytea;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the default table name for GORM.
func (Record) TableName() string {
	return "kv_record"
}

// PostgresStore is an alternative backend for deployments without redis.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to Postgres, optionally creates the DB, and runs AutoMigrate.
func NewPostgresStore(cfg config.PostgresConfig, env string, createDB bool) (*PostgresStore, error) {
	if createDB {
		if err := createDatabase(cfg, env); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN(env)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, fmt.Errorf("auto-migrate kv table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres get %s: %w", key, err)
	}
	return rec.Value, nil
}

func (s *PostgresStore) Set(ctx context.Context, key string, value []byte) error {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Record{Key: key, Value: value})

	if tx.Error != nil {
		return fmt.Errorf("postgres set %s: %w", key, tx.Error)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("key = ?", key).Delete(&Record{}).Error; err != nil {
		return fmt.Errorf("postgres delete %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to retrieve raw DB: %w", err)
	}
	return db.Close()
}

// createDatabase connects to the postgres server and creates the configured
// database if it doesn't exist.
func createDatabase(cfg config.PostgresConfig, env string) error {
	// Connect to the default 'postgres' DB, not the target one
	adminCfg := cfg
	adminCfg.DBName = "postgres"

	db, err := sql.Open("postgres", adminCfg.DSN(env))
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1);`
	if err := db.QueryRow(query, cfg.DBName).Scan(&exists); err != nil {
		return fmt.Errorf("check db exists failed: %w", err)
	}

	if exists {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf("CREATE DATABASE %s", cfg.DBName))
	if err != nil {
		return fmt.Errorf("create db failed: %w", err)
	}

	return nil
}
