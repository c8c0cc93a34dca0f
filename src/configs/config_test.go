package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbguard-go/dbguard-go/src/pkg/migration"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, filepath.Join("data", "app.db"), cfg.DBPath)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, migration.DefaultBusyTimeoutMs, cfg.BusyTimeoutMs)
	assert.Equal(t, migration.DefaultRetentionCount, cfg.RetentionCount)
	assert.NoError(t, cfg.Verify())
}

func TestNewConfigWithBytes(t *testing.T) {
	cfg, err := NewConfigWithBytes([]byte(`
debug: true
db_path: /data/service.db
backup_dir: /data/backups
retention_count: 3
log:
  out_put_folder: /var/log/dbguard
`))
	require.NoError(t, err)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "/data/service.db", cfg.DBPath)
	assert.Equal(t, "/data/backups", cfg.BackupDir)
	assert.Equal(t, 3, cfg.RetentionCount)
	// 未出现的字段保持默认值
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "/var/log/dbguard", cfg.Log.OutPutFolder)
	assert.Equal(t, 7, cfg.Log.RotateDays)
}

func TestNewConfigWithBytes_Invalid(t *testing.T) {
	_, err := NewConfigWithBytes([]byte("db_path: [broken"))
	assert.Error(t, err)
}

func TestNewConfigWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("db_path: /tmp/app.db\n"), 0644))

	cfg, err := NewConfigWithFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/tmp/app.db", cfg.DBPath)
}

func TestNewConfigWithFile_Missing(t *testing.T) {
	_, err := NewConfigWithFile(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	cfg := NewConfig()
	cfg.DBPath = ""
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	cfg.MigrationsDir = ""
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	cfg.BusyTimeoutMs = -1
	assert.Error(t, cfg.Verify())

	cfg = NewConfig()
	cfg.RetentionCount = -1
	assert.Error(t, cfg.Verify())
}
