package migration

import (
	"database/sql"
	"fmt"
	"time"
)

// Ledger 迁移台账，记录哪些脚本已被应用
// 只追加，不更新不删除；整体回退只会作为恢复旧备份的副作用发生
type Ledger struct {
	db *sql.DB
}

// NewLedger 创建迁移台账
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// EnsureTable 创建台账表（幂等）
func (l *Ledger) EnsureTable() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS ` + LedgerTable + ` (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to ensure ledger table: %w", err)
	}
	return nil
}

// AppliedNames 返回已应用的脚本名集合
func (l *Ledger) AppliedNames() (map[string]struct{}, error) {
	rows, err := l.db.Query("SELECT name FROM " + LedgerTable)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	names := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan ledger row: %w", err)
		}
		names[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	return names, nil
}

// RecordApplied 在给定事务内写入一条台账记录
// 与脚本共用同一事务，台账与 schema 状态不可能分叉
func (l *Ledger) RecordApplied(tx *sql.Tx, name string) error {
	_, err := tx.Exec(
		"INSERT INTO "+LedgerTable+" (name, applied_at) VALUES (?, ?)",
		name, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	return nil
}
