package log

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dbguard-go/dbguard-go/src/configs"
)

// New 初始化全局 logrus Logger
// 始终写 stderr；配置了输出目录时额外按天滚动写文件
func New(cfg *configs.Config) *logrus.Logger {
	logLevel := logrus.InfoLevel
	if cfg != nil && cfg.Debug {
		logLevel = logrus.DebugLevel
	}

	writers := []io.Writer{os.Stderr}
	if cfg != nil && cfg.Log.OutPutFolder != "" {
		if err := os.MkdirAll(cfg.Log.OutPutFolder, 0755); err == nil {
			rot := newDailyRotatingWriter(cfg.Log.OutPutFolder, "dbguard", cfg.Log.RotateDays)
			writers = append(writers, rot)
		} else {
			logrus.WithError(err).Warnf("failed to create log output folder: %s", cfg.Log.OutPutFolder)
		}
	}

	logrus.SetOutput(io.MultiWriter(writers...))
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logrus.SetLevel(logLevel)
	if cfg != nil && cfg.Debug {
		logrus.SetReportCaller(true)
	}

	return logrus.StandardLogger()
}

// GetLogger 返回全局唯一的 logrus Logger。
// 便于在代码任意位置获取 Logger，而无需层层传递。
func GetLogger() *logrus.Logger {
	return logrus.StandardLogger()
}

// WithFields 是对全局 Logger 的便捷封装，返回带字段的 Entry。
func WithFields(fields logrus.Fields) *logrus.Entry {
	return logrus.StandardLogger().WithFields(fields)
}

// dailyRotatingWriter 按“天”切分日志文件，文件名形如：<base>-YYYY-MM-DD.log
// 可选保留最近 N 天（retentionDays<=0 时不清理）。
type dailyRotatingWriter struct {
	dir           string
	base          string
	retentionDays int

	mu     sync.Mutex
	curDay string
	file   *os.File
}

func newDailyRotatingWriter(dir, base string, retentionDays int) *dailyRotatingWriter {
	w := &dailyRotatingWriter{dir: dir, base: base, retentionDays: retentionDays}
	_ = w.rotateIfNeededLocked(time.Now())
	return w
}

func (w *dailyRotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.rotateIfNeededLocked(time.Now()); err != nil {
		return 0, err
	}
	if w.file == nil {
		return 0, io.ErrClosedPipe
	}
	return w.file.Write(p)
}

func (w *dailyRotatingWriter) rotateIfNeededLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if w.file != nil && day == w.curDay {
		return nil
	}
	// 关闭旧文件
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	// 打开新文件
	name := w.filenameForDay(day)
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.curDay = day
	// 清理过期文件
	w.cleanupLocked(now)
	return nil
}

func (w *dailyRotatingWriter) filenameForDay(day string) string {
	return filepath.Join(w.dir, w.base+"-"+day+".log")
}

func (w *dailyRotatingWriter) cleanupLocked(now time.Time) {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := now.AddDate(0, 0, -w.retentionDays)
	pattern := filepath.Join(w.dir, w.base+"-*.log")
	files, _ := filepath.Glob(pattern)
	for _, f := range files {
		// 期望格式：<base>-YYYY-MM-DD.log
		base := filepath.Base(f)
		if !strings.HasPrefix(base, w.base+"-") || !strings.HasSuffix(base, ".log") {
			continue
		}
		dateStr := strings.TrimSuffix(strings.TrimPrefix(base, w.base+"-"), ".log")
		if t, err := time.Parse("2006-01-02", dateStr); err == nil {
			if t.Before(cutoff) {
				_ = os.Remove(f)
			}
		}
	}
}
