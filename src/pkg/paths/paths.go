// Package paths 负责解析迁移引擎所需的路径与阈值
// 环境变量读取集中在本包，核心引擎只消费解析完成的结果
package paths

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/dbguard-go/dbguard-go/src/configs"
	"github.com/dbguard-go/dbguard-go/src/pkg/migration"
)

// 协作者环境变量，均为可选覆盖项
const (
	EnvDBPath         = "DBGUARD_DB"
	EnvMigrationsDir  = "DBGUARD_MIGRATIONS"
	EnvBackupDir      = "DBGUARD_BACKUP_DIR"
	EnvLegacyDBPath   = "DBGUARD_LEGACY_DB"
	EnvBusyTimeoutMs  = "DBGUARD_BUSY_TIMEOUT_MS"
	EnvRetentionCount = "DBGUARD_RETENTION"
)

// Resolve 把配置文件与环境变量合并为引擎配置
// 优先级：环境变量 > 配置文件 > 默认值；命令行参数由调用方在结果上再覆盖
func Resolve(cfg *configs.Config) *migration.Config {
	// .env 文件存在则加载，已有环境变量不会被覆盖
	_ = godotenv.Load()

	out := &migration.Config{
		DBPath:         cfg.DBPath,
		MigrationsDir:  cfg.MigrationsDir,
		BackupDir:      cfg.BackupDir,
		LegacyDBPath:   cfg.LegacyDBPath,
		BusyTimeoutMs:  cfg.BusyTimeoutMs,
		RetentionCount: cfg.RetentionCount,
	}

	if v := os.Getenv(EnvDBPath); v != "" {
		out.DBPath = v
	}
	if v := os.Getenv(EnvMigrationsDir); v != "" {
		out.MigrationsDir = v
	}
	if v := os.Getenv(EnvBackupDir); v != "" {
		out.BackupDir = v
	}
	if v := os.Getenv(EnvLegacyDBPath); v != "" {
		out.LegacyDBPath = v
	}
	if v := os.Getenv(EnvBusyTimeoutMs); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.BusyTimeoutMs = n
		}
	}
	if v := os.Getenv(EnvRetentionCount); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out.RetentionCount = n
		}
	}

	// 备份目录缺省为数据库同级的 backups 目录
	if out.BackupDir == "" {
		out.BackupDir = filepath.Join(filepath.Dir(out.DBPath), "backups")
	}
	if out.BusyTimeoutMs <= 0 {
		out.BusyTimeoutMs = migration.DefaultBusyTimeoutMs
	}
	if out.RetentionCount <= 0 {
		out.RetentionCount = migration.DefaultRetentionCount
	}

	return out
}
