package main

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/dbguard-go/dbguard-go/src/pkg/migration"
)

func TestNewResult(t *testing.T) {
	cfg := &migration.Config{
		DBPath:    "/data/app.db",
		BackupDir: "/data/backups",
	}

	b, err := json.Marshal(newResult(true, "backup create", cfg))
	require.NoError(t, err)

	out := string(b)
	assert.True(t, gjson.Get(out, "ok").Bool())
	assert.Equal(t, "backup create", gjson.Get(out, "cmd").String())
	assert.Equal(t, "/data/app.db", gjson.Get(out, "db_path").String())
	assert.Equal(t, "/data/backups", gjson.Get(out, "backup_dir").String())
}

func TestBackupRecordsJSON(t *testing.T) {
	mtime := time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)
	records := []migration.BackupRecord{
		{Path: "/data/backups/app.nightly.20240601T123000Z.db", SizeBytes: 4096, ModTime: mtime},
		{Path: "/data/backups/app.manual.20240531T080000Z.db", SizeBytes: 8192, ModTime: mtime.Add(-24 * time.Hour)},
	}

	b, err := json.Marshal(backupRecordsJSON(records))
	require.NoError(t, err)

	out := string(b)
	require.Equal(t, int64(2), gjson.Get(out, "#").Int())
	assert.Equal(t, "/data/backups/app.nightly.20240601T123000Z.db", gjson.Get(out, "0.path").String())
	assert.Equal(t, int64(4096), gjson.Get(out, "0.size_bytes").Int())
	assert.Equal(t, "2024-06-01T12:30:00Z", gjson.Get(out, "0.mtime_utc").String())
	assert.Equal(t, int64(8192), gjson.Get(out, "1.size_bytes").Int())
}

func TestBackupRecordsJSON_Empty(t *testing.T) {
	b, err := json.Marshal(backupRecordsJSON(nil))
	require.NoError(t, err)
	// 空列表序列化为 []，而不是 null
	assert.Equal(t, "[]", string(b))
}

func TestApplyFlags(t *testing.T) {
	cfg := &migration.Config{
		DBPath:        "/data/app.db",
		MigrationsDir: "migrations",
		BackupDir:     "/data/backups",
	}

	applyFlags(cfg, "/tmp/other.db", "", "/tmp/bk", "")
	assert.Equal(t, "/tmp/other.db", cfg.DBPath)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, "/tmp/bk", cfg.BackupDir)
	assert.Empty(t, cfg.LegacyDBPath)
}
