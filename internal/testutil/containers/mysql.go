//go:build integration

package containers

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/datastore"
	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"gorm.io/gorm"
)

const (
	mysqlImage    = "mysql:8.0"
	mysqlDatabase = "fichai_test"
	mysqlUser     = "fichai"
	mysqlPassword = "fichai"
)

var validTableNameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// MySQLContainer is a migrated MySQL instance.
type MySQLContainer struct {
	container *mysql.MySQLContainer
	db        *gorm.DB
	dsn       string
}

// NewMySQLContainer starts MySQL and migrates the alerting schema.
func NewMySQLContainer(ctx context.Context) (*MySQLContainer, error) {
	container, err := mysql.Run(ctx, mysqlImage,
		mysql.WithDatabase(mysqlDatabase),
		mysql.WithUsername(mysqlUser),
		mysql.WithPassword(mysqlPassword),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start MySQL container: %w", err)
	}

	raw, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}
	cfg, err := mysqldriver.ParseDSN(raw)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Params = map[string]string{"charset": "utf8mb4"}
	dsn := cfg.FormatDSN()

	db, err := datastore.Open(conf.DatabaseSettings{Driver: datastore.DriverMySQL, DSN: dsn, MaxOpenConns: 10}, nil)
	if err != nil {
		_ = container.Terminate(context.Background())
		return nil, err
	}
	if err := datastore.Migrate(db); err != nil {
		_ = datastore.Close(db)
		_ = container.Terminate(context.Background())
		return nil, err
	}

	return &MySQLContainer{container: container, db: db, dsn: dsn}, nil
}

// DB returns the shared gorm handle. Tests must not close it.
func (c *MySQLContainer) DB(t *testing.T) *gorm.DB {
	t.Helper()
	if c.db == nil {
		t.Fatal("database connection is nil")
	}
	return c.db
}

// DSN returns the go-sql-driver DSN of the test database.
func (c *MySQLContainer) DSN() string {
	return c.dsn
}

// Reset empties the given tables.
func (c *MySQLContainer) Reset(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if !validTableNameRe.MatchString(table) {
			return fmt.Errorf("invalid table name: %s", table)
		}
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("SET FOREIGN_KEY_CHECKS = 0").Error; err != nil {
			return err
		}
		for _, table := range tables {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM `%s`", table)).Error; err != nil {
				return fmt.Errorf("failed to empty table %s: %w", table, err)
			}
		}
		return tx.Exec("SET FOREIGN_KEY_CHECKS = 1").Error
	})
}

// Terminate closes the connection pool and removes the container.
func (c *MySQLContainer) Terminate(ctx context.Context) error {
	if c.db != nil {
		_ = datastore.Close(c.db)
		c.db = nil
	}
	if err := c.container.Terminate(ctx); err != nil {
		return fmt.Errorf("failed to terminate MySQL container: %w", err)
	}
	return nil
}
