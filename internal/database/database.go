package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"proptrack/server/internal/models"
)

var (
	ErrNotFound      = errors.New("property not found")
	ErrConstraint    = errors.New("constraint violation")
	ErrUnknownDriver = errors.New("unknown database driver")
)

// mysql error number for a failed CHECK constraint
const mysqlCheckViolated = 3819

type Database struct {
	db *gorm.DB
}

// Open connects to the configured datastore. driver is "sqlite" or "mysql";
// for sqlite target is a file path, for mysql a DSN.
func Open(driver, target string, logger *logrus.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite", "":
		if dir := filepath.Dir(target); dir != "." && target != ":memory:" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dialector = sqlite.Open(target)
	case "mysql":
		dialector = gormmysql.Open(target)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(logger),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// NewTestDB returns a migrated in-memory sqlite database
func NewTestDB() (*Database, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	// every pooled connection would get its own in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	d := &Database{db: db}
	if err := d.RunMigrations(); err != nil {
		return nil, err
	}
	return d, nil
}

func newGormLogger(logger *logrus.Logger) gormlogger.Interface {
	if logger == nil {
		return gormlogger.Default.LogMode(gormlogger.Silent)
	}
	level := gormlogger.Warn
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		level = gormlogger.Info
	}
	return gormlogger.New(logger, gormlogger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  level,
		IgnoreRecordNotFoundError: true,
	})
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// ListProperties returns every listing, newest first
func (d *Database) ListProperties(ctx context.Context) ([]models.Property, error) {
	properties := make([]models.Property, 0)
	err := d.db.WithContext(ctx).
		Order("created_at DESC").
		Order("id DESC").
		Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", translate(err))
	}
	return properties, nil
}

func (d *Database) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	var p models.Property
	err := d.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get property %d: %w", id, translate(err))
	}
	return &p, nil
}

// CreateProperty inserts one listing and fills in its id and timestamps
func (d *Database) CreateProperty(ctx context.Context, p *models.Property) error {
	if err := d.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("failed to insert property: %w", translate(err))
	}
	return nil
}

// InsertProperties stores a batch of listings in a single transaction with
// one bulk insert. Either every listing is stored or none is.
func (d *Database) InsertProperties(ctx context.Context, properties []*models.Property) error {
	if len(properties) == 0 {
		return nil
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&properties).Error
	})
	if err != nil {
		return fmt.Errorf("failed to insert properties batch: %w", translate(err))
	}
	return nil
}

// UpdateProperty applies a partial update keyed by id and returns the
// updated listing.
func (d *Database) UpdateProperty(ctx context.Context, id int64, columns map[string]interface{}) (*models.Property, error) {
	var updated models.Property
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&updated, id).Error; err != nil {
			return err
		}
		if len(columns) == 0 {
			return nil
		}
		if err := tx.Model(&updated).Updates(columns).Error; err != nil {
			return err
		}
		var fresh models.Property
		if err := tx.First(&fresh, id).Error; err != nil {
			return err
		}
		updated = fresh
		return nil
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update property %d: %w", id, translate(err))
	}
	return &updated, nil
}

// translate maps driver constraint failures onto ErrConstraint
func translate(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlCheckViolated {
		return fmt.Errorf("%w: %v", ErrConstraint, err)
	}
	return err
}
