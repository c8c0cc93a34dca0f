package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger(t *testing.T) {
	cfg := testConfig(t)
	db, err := openDatabase(cfg.DBPath, DefaultBusyTimeoutMs)
	require.NoError(t, err)
	defer db.Close()

	ledger := NewLedger(db)

	// 建表幂等
	require.NoError(t, ledger.EnsureTable())
	require.NoError(t, ledger.EnsureTable())

	names, err := ledger.AppliedNames()
	require.NoError(t, err)
	assert.Empty(t, names)

	// 记录与读取
	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, ledger.RecordApplied(tx, "0001_init.sql"))
	require.NoError(t, tx.Commit())

	names, err = ledger.AppliedNames()
	require.NoError(t, err)
	assert.Contains(t, names, "0001_init.sql")

	// 脚本名是主键，重复记录必须失败
	tx, err = db.Begin()
	require.NoError(t, err)
	err = ledger.RecordApplied(tx, "0001_init.sql")
	assert.Error(t, err)
	require.NoError(t, tx.Rollback())
}
