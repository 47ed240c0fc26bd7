// Package datastore opens the relational database and migrates the alerting schema.
package datastore

import (
	"fmt"
	"time"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore/v2/entities"
	"github.com/edupresencia/fichai/internal/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// Supported drivers.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Open connects to the database selected by settings.
func Open(settings conf.DatabaseSettings, log logger.Logger) (*gorm.DB, error) {
	dialector, err := dialectorFor(settings)
	if err != nil {
		return nil, err
	}

	level := gorm_logger.Warn
	if settings.Debug {
		level = gorm_logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:  gorm_logger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", settings.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	switch settings.Driver {
	case DriverSQLite:
		// SQLite serialises writers; one connection avoids "database is locked".
		sqlDB.SetMaxOpenConns(1)
	default:
		if settings.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(settings.MaxOpenConns)
		}
		if settings.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(settings.MaxIdleConns)
		}
		if settings.ConnMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(settings.ConnMaxLife.Std())
		}
	}

	if log != nil {
		log.Info("database opened", logger.String("driver", settings.Driver))
	}
	return db, nil
}

func dialectorFor(settings conf.DatabaseSettings) (gorm.Dialector, error) {
	switch settings.Driver {
	case DriverSQLite, "":
		return sqlite.Open(settings.DSN), nil
	case DriverMySQL:
		return mysql.Open(settings.DSN), nil
	case DriverPostgres:
		return postgres.Open(settings.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", settings.Driver)
	}
}

// Models lists every entity managed by Migrate.
func Models() []any {
	return []any{
		&entities.AlertRule{},
		&entities.AlertHistory{},
		&entities.Communication{},
		&entities.Employee{},
	}
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// OpenInMemory opens a migrated private in-memory SQLite database. name must
// be unique per database, tests usually pass t.Name().
func OpenInMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=ON", sanitizeName(name))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func sanitizeName(name string) string {
	out := []rune(name)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
