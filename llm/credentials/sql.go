package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sanchez314c/agent-chat/internal/database"
	"github.com/sanchez314c/agent-chat/internal/migration"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// credentialRecord is one row per provider. The schema is owned by the
// migration package.
type credentialRecord struct {
	Provider  string `gorm:"primaryKey;size:64"`
	Secret    string `gorm:"not null"`
	CreatedAt *time.Time
	UpdatedAt time.Time
}

func (credentialRecord) TableName() string { return "provider_credentials" }

// SQLStore keeps secrets in a relational table.
type SQLStore struct {
	pool       *database.PoolManager
	maxRetries int
}

// NewSQLStore wraps an open pool. Call Migrate before first use on a fresh
// database.
func NewSQLStore(pool *database.PoolManager) *SQLStore {
	return &SQLStore{pool: pool, maxRetries: 3}
}

// Migrate applies the pending schema migrations.
func (s *SQLStore) Migrate(ctx context.Context) error {
	db := s.pool.DB()
	dialect, err := migration.ParseDialect(db.Dialector.Name())
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("migrate credential table: %w", err)
	}
	m, err := migration.New(ctx, sqlDB, dialect)
	if err != nil {
		return fmt.Errorf("migrate credential table: %w", err)
	}
	defer m.Close()
	if err := m.Up(ctx); err != nil {
		return fmt.Errorf("migrate credential table: %w", err)
	}
	return nil
}

// Get returns the secret for providerID.
func (s *SQLStore) Get(ctx context.Context, providerID string) (string, error) {
	var rec credentialRecord
	err := s.pool.DB().WithContext(ctx).
		Where("provider = ?", providerID).
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	return rec.Secret, nil
}

// Set upserts the secret.
func (s *SQLStore) Set(ctx context.Context, providerID, secret string) error {
	if err := validate(providerID, secret); err != nil {
		return err
	}
	now := time.Now()
	rec := credentialRecord{Provider: providerID, Secret: secret, CreatedAt: &now, UpdatedAt: now}
	err := s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}},
			DoUpdates: clause.AssignmentColumns([]string{"secret", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Delete removes the row. Deleting an absent key is not an error.
func (s *SQLStore) Delete(ctx context.Context, providerID string) error {
	if err := validateID(providerID); err != nil {
		return err
	}
	err := s.pool.DB().WithContext(ctx).
		Where("provider = ?", providerID).
		Delete(&credentialRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// StatsCollector exports the pool statistics with db_name "credentials".
func (s *SQLStore) StatsCollector() prometheus.Collector {
	return s.pool.StatsCollector("credentials")
}

// Close closes the underlying pool.
func (s *SQLStore) Close() error {
	return s.pool.Close()
}
