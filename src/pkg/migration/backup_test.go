package migration

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeTestDB 创建一个带数据的真实 SQLite 数据库
func makeTestDB(t *testing.T, dbPath string) {
	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)")
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO notes (body) VALUES ('keep me')")
	require.NoError(t, err)
}

func TestBackupManager_CreateAndList(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)

	backupPath, err := bm.Create("Nightly Job!")
	require.NoError(t, err)
	assert.FileExists(t, backupPath)
	// 名称被规范化进文件名
	assert.Contains(t, filepath.Base(backupPath), ".nightly-job.")
	assert.True(t, strings.HasPrefix(filepath.Base(backupPath), "app."))
	assert.True(t, strings.HasSuffix(backupPath, ".db"))

	records, err := bm.List()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, backupPath, records[0].Path)
	assert.Greater(t, records[0].SizeBytes, int64(0))
}

func TestBackupManager_CreateMissingDatabase(t *testing.T) {
	cfg := testConfig(t)

	bm := NewBackupManager(cfg)
	_, err := bm.Create("manual")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupManager_RoundTrip(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)

	backupPath, err := bm.Create("before-change")
	require.NoError(t, err)

	// 备份后写入新数据，恢复应回到备份时刻的状态
	db, err := sql.Open("sqlite", cfg.DBPath)
	require.NoError(t, err)
	_, err = db.Exec("INSERT INTO notes (body) VALUES ('drop me')")
	require.NoError(t, err)
	require.NoError(t, db.Close())
	assert.Equal(t, 2, queryInt(t, cfg.DBPath, "SELECT COUNT(*) FROM notes"))

	require.NoError(t, bm.Restore(backupPath))
	assert.Equal(t, 1, queryInt(t, cfg.DBPath, "SELECT COUNT(*) FROM notes"))

	problems, err := CheckFileIntegrity(cfg.DBPath, DefaultBusyTimeoutMs)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestBackupManager_RestoreRemovesSidecars(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)
	backupPath, err := bm.Create("manual")
	require.NoError(t, err)

	// 伪造过期附属文件，恢复后必须被清除
	walPath := cfg.DBPath + "-wal"
	shmPath := cfg.DBPath + "-shm"
	require.NoError(t, os.WriteFile(walPath, []byte("stale"), 0644))
	require.NoError(t, os.WriteFile(shmPath, []byte("stale"), 0644))

	require.NoError(t, bm.Restore(backupPath))
	assert.NoFileExists(t, walPath)
	assert.NoFileExists(t, shmPath)
}

func TestBackupManager_RestoreRejectsGarbage(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	// 备份文件内容不是 SQLite 数据库
	garbagePath := filepath.Join(cfg.BackupDir, "app.manual.20260101T000000Z.db")
	require.NoError(t, os.MkdirAll(cfg.BackupDir, 0755))
	require.NoError(t, os.WriteFile(garbagePath, []byte("not a database"), 0644))

	bm := NewBackupManager(cfg)
	err := bm.Restore(garbagePath)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRestore)
}

func TestBackupManager_RestoreMissingFile(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)
	err := bm.Restore(filepath.Join(cfg.BackupDir, "no_such_backup.db"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBackupManager_ResolveBackupFile(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)
	backupPath, err := bm.Create("manual")
	require.NoError(t, err)

	// 完整路径
	resolved, err := bm.ResolveBackupFile(backupPath)
	require.NoError(t, err)
	assert.Equal(t, backupPath, resolved)

	// 备份目录内的纯文件名
	resolved, err = bm.ResolveBackupFile(filepath.Base(backupPath))
	require.NoError(t, err)
	assert.Equal(t, backupPath, resolved)

	// 两者都不是
	_, err = bm.ResolveBackupFile("no_such_backup.db")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)

	// 参数为空
	_, err = bm.ResolveBackupFile("")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestBackupManager_Retention(t *testing.T) {
	cfg := testConfig(t)
	cfg.RetentionCount = 2
	makeTestDB(t, cfg.DBPath)

	bm := NewBackupManager(cfg)

	// 其他名称前缀的备份不应受影响
	otherPath, err := bm.Create("other")
	require.NoError(t, err)

	first, err := bm.Create("nightly")
	require.NoError(t, err)
	_, err = bm.Create("nightly")
	require.NoError(t, err)
	_, err = bm.Create("nightly")
	require.NoError(t, err)

	records, err := bm.List()
	require.NoError(t, err)
	// nightly 保留 2 个，other 保留 1 个
	assert.Len(t, records, 3)

	// 最旧的 nightly 备份被删除
	assert.NoFileExists(t, first)
	assert.FileExists(t, otherPath)
}

func TestCheckFileIntegrity_Healthy(t *testing.T) {
	cfg := testConfig(t)
	makeTestDB(t, cfg.DBPath)

	problems, err := CheckFileIntegrity(cfg.DBPath, DefaultBusyTimeoutMs)
	require.NoError(t, err)
	assert.Empty(t, problems)
}

func TestNormalizeBackupName(t *testing.T) {
	assert.Equal(t, "manual", normalizeBackupName(""))
	assert.Equal(t, "manual", normalizeBackupName("   "))
	assert.Equal(t, "nightly-job", normalizeBackupName("Nightly Job!"))
	assert.Equal(t, "pre_upgrade", normalizeBackupName("pre_upgrade"))
	assert.Equal(t, "v1-2-3", normalizeBackupName("v1.2.3"))
}
