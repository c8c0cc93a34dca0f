package migration

import (
	"database/sql"
	"fmt"
)

// CheckIntegrity 在已打开的连接上执行 SQLite 原生一致性检查
// 返回问题列表，空列表表示数据库健康
func CheckIntegrity(db *sql.DB) ([]string, error) {
	rows, err := db.Query("PRAGMA integrity_check")
	if err != nil {
		return nil, fmt.Errorf("failed to run integrity check: %w", err)
	}
	defer rows.Close()

	var results []string
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan integrity check row: %w", err)
		}
		results = append(results, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read integrity check result: %w", err)
	}

	// 唯一一行 "ok" 表示通过
	if len(results) == 1 && results[0] == "ok" {
		return nil, nil
	}
	return results, nil
}

// CheckFileIntegrity 打开指定数据库文件并执行一致性检查
func CheckFileIntegrity(dbPath string, busyTimeoutMs int) ([]string, error) {
	db, err := openDatabase(dbPath, busyTimeoutMs)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return CheckIntegrity(db)
}
