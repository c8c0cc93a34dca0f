package migration

import (
	"time"
)

const (
	// DefaultBusyTimeoutMs 默认 busy_timeout（毫秒）
	DefaultBusyTimeoutMs = 5000
	// DefaultRetentionCount 每个名称前缀默认保留的备份数量
	DefaultRetentionCount = 5
	// LedgerTable 迁移台账表名
	LedgerTable = "schema_migrations"
)

// Config 迁移引擎配置
// 路径与阈值均为已解析好的最终值，环境变量与旧路径探测由上层协作者完成
type Config struct {
	// DBPath 数据库文件路径
	DBPath string
	// MigrationsDir 迁移脚本目录（*.sql）
	MigrationsDir string
	// BackupDir 备份文件目录
	BackupDir string
	// LegacyDBPath 旧版本数据库路径（可选），首次运行时迁入 DBPath
	LegacyDBPath string
	// BusyTimeoutMs busy_timeout pragma（毫秒），0 表示使用默认值
	BusyTimeoutMs int
	// RetentionCount 每个名称前缀保留的备份数量，0 表示使用默认值
	RetentionCount int
}

// busyTimeout 返回生效的 busy_timeout 值
func (c *Config) busyTimeout() int {
	if c.BusyTimeoutMs <= 0 {
		return DefaultBusyTimeoutMs
	}
	return c.BusyTimeoutMs
}

// retention 返回生效的备份保留数量
func (c *Config) retention() int {
	if c.RetentionCount <= 0 {
		return DefaultRetentionCount
	}
	return c.RetentionCount
}

// MigrationFile 一个待应用的迁移脚本，读取后不可变
// Name 同时作为排序键，文件名字典序即应用顺序
type MigrationFile struct {
	Name string
	Path string
	SQL  string
}

// LedgerEntry 台账中的一条已应用记录
type LedgerEntry struct {
	Name      string
	AppliedAt time.Time
}

// BackupRecord 一个备份文件的元信息，完全来自文件系统
type BackupRecord struct {
	Path      string
	SizeBytes int64
	ModTime   time.Time
}

// RunResult 一次迁移运行的结果
type RunResult struct {
	// Applied 本次新应用的脚本数量
	Applied int
	// Total 目录中发现的脚本总数
	Total int
	// BackupPath 本次运行创建的快照路径（如果有）
	BackupPath string
}
