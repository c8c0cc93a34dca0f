package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfig 配置错误（参数缺失或非法）
	ErrConfig = errors.New("invalid configuration")
	// ErrNotFound 文件不存在错误（备份文件或旧数据库）
	ErrNotFound = errors.New("file not found")
	// ErrIntegrity 完整性校验失败错误
	ErrIntegrity = errors.New("integrity check failed")
	// ErrScript 迁移脚本执行失败错误
	ErrScript = errors.New("migration script failed")
	// ErrRestore 备份恢复失败错误
	ErrRestore = errors.New("restore failed")
)

// ConfigError 配置错误，携带具体说明
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}

// Is 支持 errors.Is(err, ErrConfig)
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}

// NotFoundError 文件不存在错误，携带路径与文件类别
type NotFoundError struct {
	// What 文件类别（如 "backup file"、"legacy database"）
	What string
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.What, e.Path)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IntegrityError 完整性校验失败，携带数据库路径与问题列表
type IntegrityError struct {
	DBPath   string
	Problems []string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity check failed for %s: %s",
		e.DBPath, strings.Join(e.Problems, "; "))
}

func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}

// ScriptError 迁移脚本执行失败，携带脚本名与底层错误
type ScriptError struct {
	Name string
	Err  error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("migration script %s failed: %v", e.Name, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}

func (e *ScriptError) Is(target error) bool {
	return target == ErrScript
}

// RestoreError 备份恢复失败，携带备份路径与底层错误
type RestoreError struct {
	BackupPath string
	Err        error
}

func (e *RestoreError) Error() string {
	return fmt.Sprintf("restore from %s failed: %v", e.BackupPath, e.Err)
}

func (e *RestoreError) Unwrap() error {
	return e.Err
}

func (e *RestoreError) Is(target error) bool {
	return target == ErrRestore
}

// CombinedError 脚本失败且补偿恢复也失败，两个原因都不丢弃
type CombinedError struct {
	// Script 原始的脚本执行错误
	Script error
	// Restore 恢复过程中发生的错误
	Restore error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("%v (restore also failed: %v)", e.Script, e.Restore)
}

// Unwrap 同时暴露两个错误链，errors.Is/As 均可命中
func (e *CombinedError) Unwrap() []error {
	return []error{e.Script, e.Restore}
}
