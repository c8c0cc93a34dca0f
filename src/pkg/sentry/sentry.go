// Package sentry 提供 Sentry 错误监控的封装
// DSN 未配置时所有调用都是空操作
package sentry

import (
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

var (
	// initialized 标记 Sentry 是否已初始化
	initialized bool
	// initMu 保护初始化状态
	initMu sync.RWMutex
)

// Init 初始化 Sentry SDK
// dsn 为 Sentry DSN，留空则禁用
// environment 为环境标识（development/production）
// release 为版本号
func Init(dsn, environment, release string) error {
	if dsn == "" {
		return nil // DSN 为空时不初始化
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		Release:          release,
		AttachStacktrace: true,
		SampleRate:       1.0,
	})
	if err != nil {
		return err
	}

	initMu.Lock()
	initialized = true
	initMu.Unlock()

	return nil
}

// IsInitialized 返回 Sentry 是否已初始化
func IsInitialized() bool {
	initMu.RLock()
	defer initMu.RUnlock()
	return initialized
}

// CaptureErr 上报一个错误
func CaptureErr(err error) {
	if err == nil || !IsInitialized() {
		return
	}
	sentry.CaptureException(err)
}

// Flush 刷新所有待发送事件（程序退出前调用）
func Flush(timeout time.Duration) {
	if !IsInitialized() {
		return
	}
	sentry.Flush(timeout)
}

// Recover 用于 panic 恢复并上报
// 注意：必须先调用 recover()，再检查 Sentry 状态，否则 panic 不会被捕获
func Recover() {
	err := recover()
	if err == nil {
		return
	}
	if IsInitialized() {
		hub := sentry.CurrentHub()
		if hub != nil {
			hub.Recover(err)
		}
	}
}
