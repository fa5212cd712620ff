package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// StoredCredential is the persisted session credential of one source
type StoredCredential struct {
	Source    string `gorm:"primaryKey;size:32"`
	Value     string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

// TableName keeps the table name stable across struct renames
func (StoredCredential) TableName() string {
	return "credentials"
}

// SQLite persists credentials in a SQLite database
type SQLite struct {
	db *gorm.DB
}

// NewSQLite creates a new SQLite storage
func NewSQLite(path string) (*SQLite, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	if err := db.AutoMigrate(&StoredCredential{}); err != nil {
		return nil, fmt.Errorf("error migrating database: %w", err)
	}

	return &SQLite{db: db}, nil
}

// SaveCredential inserts or replaces the credential of a source
func (s *SQLite) SaveCredential(source, value string) error {
	record := StoredCredential{
		Source:    source,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&record).Error
}

// LoadCredential returns the stored credential, or "" when none is stored
func (s *SQLite) LoadCredential(source string) (string, error) {
	record, err := s.GetCredential(source)
	if err != nil || record == nil {
		return "", err
	}
	return record.Value, nil
}

// GetCredential returns the stored record, or nil when none is stored
func (s *SQLite) GetCredential(source string) (*StoredCredential, error) {
	var record StoredCredential
	if err := s.db.Where("source = ?", source).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// DeleteCredential removes the stored credential of a source
func (s *SQLite) DeleteCredential(source string) error {
	return s.db.Delete(&StoredCredential{}, "source = ?", source).Error
}

// Close closes the storage connection
func (s *SQLite) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return err
	}
	return db.Close()
}
