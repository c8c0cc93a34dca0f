package migration

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// backupTimeFormat 备份文件名中的时间戳格式（UTC，文件系统安全的 ISO8601）
	backupTimeFormat = "20060102T150405Z"
	// DefaultBackupName 未指定名称时使用的备份名
	DefaultBackupName = "manual"
)

// BackupManager 备份管理器
// 创建、列出、恢复与清理数据库的时间点快照
type BackupManager struct {
	dbPath    string
	backupDir string
	busyMs    int
	retention int
	logger    *logrus.Entry
}

// NewBackupManager 创建备份管理器
func NewBackupManager(cfg *Config) *BackupManager {
	return &BackupManager{
		dbPath:    cfg.DBPath,
		backupDir: cfg.BackupDir,
		busyMs:    cfg.busyTimeout(),
		retention: cfg.retention(),
		logger: logrus.WithFields(logrus.Fields{
			"component":  "backup_manager",
			"db_path":    cfg.DBPath,
			"backup_dir": cfg.BackupDir,
		}),
	}
}

// Create 创建数据库快照，返回备份文件路径
// 要求数据库文件已存在；快照通过引擎原生的一致性复制完成，不是裸文件拷贝
func (m *BackupManager) Create(name string) (string, error) {
	if !fileExists(m.dbPath) {
		return "", &NotFoundError{What: "database", Path: m.dbPath}
	}

	db, err := openDatabase(m.dbPath, m.busyMs)
	if err != nil {
		return "", err
	}
	defer db.Close()

	return m.createWithDB(db, name)
}

// createWithDB 在已打开的连接上创建快照
// 先把 WAL 完整落盘，再用 VACUUM INTO 生成无撕裂的一致副本
func (m *BackupManager) createWithDB(db *sql.DB, name string) (string, error) {
	if err := os.MkdirAll(m.backupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := time.Now().UTC()
	backupPath := m.backupFilePath(name, now, 0)
	for seq := 2; fileExists(backupPath); seq++ {
		// 同一秒内的多次快照用序号区分
		backupPath = m.backupFilePath(name, now, seq)
	}

	if _, err := db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return "", fmt.Errorf("failed to checkpoint wal: %w", err)
	}

	if _, err := db.Exec("VACUUM INTO " + quoteSQLString(backupPath)); err != nil {
		os.Remove(backupPath)
		return "", fmt.Errorf("failed to create backup: %w", err)
	}

	m.logger.WithFields(logrus.Fields{
		"backup_path": backupPath,
		"name":        normalizeBackupName(name),
	}).Info("backup created")

	// 清理超出保留数量的旧备份（清理失败不影响主流程）
	if _, err := m.Prune(); err != nil {
		m.logger.WithError(err).Warn("failed to prune old backups")
	}

	return backupPath, nil
}

// List 列出当前数据库的所有备份，最新的在前
func (m *BackupManager) List() ([]BackupRecord, error) {
	entries, err := os.ReadDir(m.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var records []BackupRecord
	for _, entry := range entries {
		if entry.IsDir() || !m.matchesBackupName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		records = append(records, BackupRecord{
			Path:      filepath.Join(m.backupDir, entry.Name()),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime().UTC(),
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if !records[i].ModTime.Equal(records[j].ModTime) {
			return records[i].ModTime.After(records[j].ModTime)
		}
		return records[i].Path > records[j].Path
	})

	return records, nil
}

// Restore 把备份文件恢复到数据库路径上
// 先写入临时文件再原子 rename，随后删除过期附属文件并做完整性校验
func (m *BackupManager) Restore(backupFile string) error {
	if backupFile == "" {
		return &ConfigError{Reason: "backup file is required"}
	}
	if !fileExists(backupFile) {
		return &NotFoundError{What: "backup file", Path: backupFile}
	}

	tmpPath := m.dbPath + ".restore-tmp"
	if err := copyFile(backupFile, tmpPath); err != nil {
		return &RestoreError{BackupPath: backupFile, Err: err}
	}
	if err := os.Rename(tmpPath, m.dbPath); err != nil {
		os.Remove(tmpPath)
		return &RestoreError{BackupPath: backupFile, Err: err}
	}

	// 附属文件属于被替换掉的旧状态，必须一并清除
	if err := removeSidecars(m.dbPath); err != nil {
		return &RestoreError{BackupPath: backupFile, Err: err}
	}

	problems, err := CheckFileIntegrity(m.dbPath, m.busyMs)
	if err != nil {
		return &RestoreError{BackupPath: backupFile, Err: err}
	}
	if len(problems) > 0 {
		return &IntegrityError{DBPath: m.dbPath, Problems: problems}
	}

	m.logger.WithField("backup_path", backupFile).Info("backup restored")
	return nil
}

// ResolveBackupFile 解析备份文件参数
// 接受绝对/相对路径，或备份目录内的纯文件名
func (m *BackupManager) ResolveBackupFile(fileArg string) (string, error) {
	if fileArg == "" {
		return "", &ConfigError{Reason: "backup file is required"}
	}
	if fileExists(fileArg) {
		return fileArg, nil
	}
	candidate := filepath.Join(m.backupDir, fileArg)
	if fileExists(candidate) {
		return candidate, nil
	}
	return "", &NotFoundError{What: "backup file", Path: fileArg}
}

// Prune 按名称前缀清理旧备份，每个前缀保留最近 retention 个
// 返回删除的文件数量
func (m *BackupManager) Prune() (int, error) {
	records, err := m.List()
	if err != nil {
		return 0, err
	}

	// List 已按新到旧排序，按名称前缀分组后超出部分即最旧的
	groups := make(map[string][]BackupRecord)
	for _, rec := range records {
		prefix := m.backupNamePrefix(filepath.Base(rec.Path))
		groups[prefix] = append(groups[prefix], rec)
	}

	removed := 0
	for _, group := range groups {
		if len(group) <= m.retention {
			continue
		}
		for _, rec := range group[m.retention:] {
			if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
				return removed, fmt.Errorf("failed to remove old backup %s: %w", rec.Path, err)
			}
			removed++
			m.logger.WithField("backup_path", rec.Path).Debug("old backup removed")
		}
	}

	return removed, nil
}

// backupFilePath 组装备份文件路径：<base>.<name>.<timestamp><ext>
func (m *BackupManager) backupFilePath(name string, now time.Time, seq int) string {
	base, ext := m.dbBaseExt()
	stamp := now.Format(backupTimeFormat)
	if seq > 0 {
		stamp = fmt.Sprintf("%s-%d", stamp, seq)
	}
	fileName := fmt.Sprintf("%s.%s.%s%s", base, normalizeBackupName(name), stamp, ext)
	return filepath.Join(m.backupDir, fileName)
}

// matchesBackupName 判断文件名是否是当前数据库的备份
func (m *BackupManager) matchesBackupName(fileName string) bool {
	base, ext := m.dbBaseExt()
	if !strings.HasPrefix(fileName, base+".") || !strings.HasSuffix(fileName, ext) {
		return false
	}
	middle := strings.TrimSuffix(strings.TrimPrefix(fileName, base+"."), ext)
	// 中段必须是 <name>.<timestamp> 两段
	return strings.Count(middle, ".") >= 1
}

// backupNamePrefix 提取文件名中的名称前缀（去掉时间戳）
// 规范化后的名称不含点号，第一个点号之后即时间戳
func (m *BackupManager) backupNamePrefix(fileName string) string {
	base, ext := m.dbBaseExt()
	middle := strings.TrimSuffix(strings.TrimPrefix(fileName, base+"."), ext)
	idx := strings.Index(middle, ".")
	if idx < 0 {
		return middle
	}
	return middle[:idx]
}

// dbBaseExt 返回数据库文件名的主干与扩展名
func (m *BackupManager) dbBaseExt() (string, string) {
	fileName := filepath.Base(m.dbPath)
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext), ext
}

// normalizeBackupName 规范化备份名：小写，非字母数字字符折叠为连字符
func normalizeBackupName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return DefaultBackupName
	}
	var b strings.Builder
	lastDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	result := strings.Trim(b.String(), "-")
	if result == "" {
		return DefaultBackupName
	}
	return result
}
