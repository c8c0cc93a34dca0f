package migration

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// openDatabase 打开数据库连接并设置 pragma
// 外键约束开启、WAL 日志模式、busy_timeout 按配置生效
func openDatabase(dbPath string, busyTimeoutMs int) (*sql.DB, error) {
	// 确保目录存在
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + fmt.Sprintf(
		"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)",
		busyTimeoutMs)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// 每次运行只允许一个活动连接，pragma 按连接生效，脚本必须严格串行应用
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return db, nil
}

// quoteSQLString 将字符串转义为 SQL 单引号字面量
// VACUUM INTO 不支持参数绑定，只能拼接字面量
func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// sidecarPaths 返回数据库的 WAL 与共享内存附属文件路径
// 附属文件与主文件属于同一原子状态，恢复旧备份后必须一并清除
func sidecarPaths(dbPath string) []string {
	return []string{dbPath + "-wal", dbPath + "-shm"}
}

// removeSidecars 删除附属文件，文件不存在不算错误
func removeSidecars(dbPath string) error {
	for _, p := range sidecarPaths(dbPath) {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove sidecar %s: %w", p, err)
		}
	}
	return nil
}

// fileExists 检查文件是否存在
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// copyFile 复制文件并落盘
func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		os.Remove(dst)
		return err
	}

	return dstFile.Sync()
}

// moveFile 移动文件，优先 rename，跨文件系统时回退为复制后删除
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
