package datastore

import (
	"path/filepath"
	"testing"

	"github.com/edupresencia/fichai/internal/conf"
	"github.com/edupresencia/fichai/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrate_SQLiteFile(t *testing.T) {
	settings := conf.DatabaseSettings{
		Driver: DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "fichai.db"),
	}
	db, err := Open(settings, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Migrate(db))
	for _, table := range []string{"alert_rules", "alert_history", "communications", "employees"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s", table)
	}
	assert.True(t, db.Migrator().HasColumn("alert_rules", "notification_recipients"))
	assert.True(t, db.Migrator().HasColumn("alert_rules", "schedule_repeat_interval"))
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open(conf.DatabaseSettings{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func TestOpenInMemory_Isolated(t *testing.T) {
	a, err := OpenInMemory(t.Name() + "/a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(a) })
	b, err := OpenInMemory(t.Name() + "/b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(b) })

	require.NoError(t, a.Exec("INSERT INTO employees (id, institution_id, full_name, role, active) VALUES ('e1', 'i', 'n', 'employee', true)").Error)

	var count int64
	require.NoError(t, b.Table("employees").Count(&count).Error)
	assert.Zero(t, count)
}
