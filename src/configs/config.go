package configs

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dbguard-go/dbguard-go/src/pkg/migration"
)

// Log 日志配置
type Log struct {
	// OutPutFolder 日志文件输出目录，留空则只写 stderr
	OutPutFolder string `yaml:"out_put_folder" json:"out_put_folder"`
	// RotateDays 滚动日志保留天数，<=0 表示不清理
	RotateDays int `yaml:"rotate_days" json:"rotate_days"`
}

var defaultLog = Log{
	OutPutFolder: "",
	RotateDays:   7,
}

// Config 全局配置
type Config struct {
	// File 配置文件路径（运行时设置，不参与序列化）
	File  string `yaml:"-" json:"-"`
	Debug bool   `yaml:"debug" json:"debug"`

	// DBPath 数据库文件路径
	DBPath string `yaml:"db_path" json:"db_path"`
	// MigrationsDir 迁移脚本目录
	MigrationsDir string `yaml:"migrations_dir" json:"migrations_dir"`
	// BackupDir 备份目录，留空则默认为数据库同级的 backups 目录
	BackupDir string `yaml:"backup_dir" json:"backup_dir"`
	// LegacyDBPath 旧版本数据库路径（可选）
	LegacyDBPath string `yaml:"legacy_db_path" json:"legacy_db_path"`
	// BusyTimeoutMs busy_timeout pragma（毫秒）
	BusyTimeoutMs int `yaml:"busy_timeout_ms" json:"busy_timeout_ms"`
	// RetentionCount 每个名称前缀保留的备份数量
	RetentionCount int `yaml:"retention_count" json:"retention_count"`

	Log Log `yaml:"log" json:"log"`
}

// NewConfig 返回带默认值的配置
func NewConfig() *Config {
	return &Config{
		DBPath:         filepath.Join("data", "app.db"),
		MigrationsDir:  "migrations",
		BusyTimeoutMs:  migration.DefaultBusyTimeoutMs,
		RetentionCount: migration.DefaultRetentionCount,
		Log:            defaultLog,
	}
}

// NewConfigWithBytes 从 yaml 内容解析配置
func NewConfigWithBytes(b []byte) (*Config, error) {
	config := NewConfig()
	if err := yaml.Unmarshal(b, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return config, nil
}

// NewConfigWithFile 从 yaml 文件加载配置
func NewConfigWithFile(configFilePath string) (*Config, error) {
	b, err := os.ReadFile(configFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFilePath, err)
	}
	config, err := NewConfigWithBytes(b)
	if err != nil {
		return nil, err
	}
	config.File = configFilePath
	return config, nil
}

// Verify 校验配置
func (c *Config) Verify() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path 不能为空")
	}
	if c.MigrationsDir == "" {
		return fmt.Errorf("migrations_dir 不能为空")
	}
	if c.BusyTimeoutMs < 0 {
		return fmt.Errorf("busy_timeout_ms 不能为负数: %d", c.BusyTimeoutMs)
	}
	if c.RetentionCount < 0 {
		return fmt.Errorf("retention_count 不能为负数: %d", c.RetentionCount)
	}
	return nil
}
