// Package sqlstore implements the bot's persistence on top of gorm, for SQLite and MySQL.
package sqlstore

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"mediapool-bot/internal/database"
	"mediapool-bot/internal/database/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Store implements database.Store with gorm.
type Store struct {
	db      *gorm.DB
	isMySQL bool // dialect-specific insert-or-ignore syntax
}

var _ database.Store = (*Store)(nil)

// Open connects to a SQLite file or a MySQL DSN. MySQL DSNs need parseTime=true.
func Open(driver, dsn string, debug bool) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverMySQL:
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(debug)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	log.Printf("Successfully opened %s database", driver)
	return New(db), nil
}

// New wraps an already opened gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{
		db:      db,
		isMySQL: db.Dialector.Name() == DriverMySQL,
	}
}

func newGormLogger(debug bool) logger.Interface {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: 200 * time.Millisecond,
			LogLevel:      level,
			Colorful:      false,
		},
	)
}

// Migrate creates or updates every table.
func (s *Store) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.MediaRecord{},
		&models.ServedMarker{},
		&models.CategoryBinding{},
		&models.FavoriteEntry{},
		&models.LastServed{},
		&models.HistoryEntry{},
		&models.FilterPreference{},
		&models.BehaviorSetting{},
		&models.BatchSession{},
		&models.BatchItem{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// insertIgnore returns the dialect's "insert unless the key exists" verb.
func (s *Store) insertIgnore() string {
	if s.isMySQL {
		return "INSERT IGNORE"
	}
	return "INSERT OR IGNORE"
}
