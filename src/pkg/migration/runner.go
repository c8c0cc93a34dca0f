package migration

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// PreMigrateBackupName 迁移前自动快照使用的备份名
const PreMigrateBackupName = "pre-migrate"

// Runner 迁移执行器
// 发现待应用脚本、创建迁移前快照、事务式应用、失败后自动恢复
type Runner struct {
	cfg    *Config
	backup *BackupManager
	logger *logrus.Entry
}

// NewRunner 创建迁移执行器
func NewRunner(cfg *Config) (*Runner, error) {
	if cfg == nil {
		return nil, &ConfigError{Reason: "config cannot be nil"}
	}
	if cfg.DBPath == "" {
		return nil, &ConfigError{Reason: "database path cannot be empty"}
	}
	if cfg.MigrationsDir == "" {
		return nil, &ConfigError{Reason: "migrations directory cannot be empty"}
	}
	if cfg.BackupDir == "" {
		return nil, &ConfigError{Reason: "backup directory cannot be empty"}
	}

	return &Runner{
		cfg:    cfg,
		backup: NewBackupManager(cfg),
		logger: logrus.WithFields(logrus.Fields{
			"component":      "migration_runner",
			"db_path":        cfg.DBPath,
			"migrations_dir": cfg.MigrationsDir,
			"run_id":         uuid.Must(uuid.NewV4()).String(),
		}),
	}, nil
}

// Run 执行一次迁移
// 成功时所有待应用脚本均已应用并记入台账；失败时数据库被恢复到运行前状态，
// 恢复本身失败会与原始错误合并上报，绝不静默吞掉
func (r *Runner) Run() (*RunResult, error) {
	if err := r.adoptLegacyDatabase(); err != nil {
		return nil, err
	}

	preExisted := fileExists(r.cfg.DBPath)

	files, err := loadMigrationFiles(r.cfg.MigrationsDir)
	if err != nil {
		return nil, err
	}

	db, err := openDatabase(r.cfg.DBPath, r.cfg.busyTimeout())
	if err != nil {
		return nil, err
	}

	result, backupPath, applyErr := r.migrate(db, files, preExisted)

	// 句柄在任何退出路径上都先关闭，恢复复制前不能留有文件锁
	closeErr := db.Close()

	if applyErr == nil {
		if closeErr != nil {
			return result, fmt.Errorf("failed to close database: %w", closeErr)
		}
		if result.Applied > 0 {
			r.logger.WithFields(logrus.Fields{
				"applied": result.Applied,
				"total":   result.Total,
			}).Info("database migration completed")
		}
		return result, nil
	}

	if backupPath == "" {
		return result, applyErr
	}

	r.logger.WithError(applyErr).Error("migration failed, restoring pre-migration backup")
	if restoreErr := r.backup.Restore(backupPath); restoreErr != nil {
		return result, &CombinedError{Script: applyErr, Restore: restoreErr}
	}
	r.logger.Info("database restored to pre-migration state")

	return result, applyErr
}

// migrate 打开台账、计算待应用集合、按需快照并依次应用脚本
// 返回的 backupPath 非空表示本次已创建快照，失败后调用方需恢复
func (r *Runner) migrate(db *sql.DB, files []MigrationFile, preExisted bool) (*RunResult, string, error) {
	result := &RunResult{Total: len(files)}

	ledger := NewLedger(db)
	if err := ledger.EnsureTable(); err != nil {
		return result, "", err
	}

	applied, err := ledger.AppliedNames()
	if err != nil {
		return result, "", err
	}

	var pending []MigrationFile
	for _, f := range files {
		if _, ok := applied[f.Name]; !ok {
			pending = append(pending, f)
		}
	}

	if len(pending) == 0 {
		r.logger.Debug("database schema is up to date")
		return result, "", nil
	}

	r.logger.WithFields(logrus.Fields{
		"pending": len(pending),
		"applied": len(applied),
	}).Info("pending migrations found")

	var backupPath string
	if preExisted {
		// 已经损坏的数据库绝不备份、绝不迁移
		problems, err := CheckIntegrity(db)
		if err != nil {
			return result, "", err
		}
		if len(problems) > 0 {
			return result, "", &IntegrityError{DBPath: r.cfg.DBPath, Problems: problems}
		}

		backupPath, err = r.backup.createWithDB(db, PreMigrateBackupName)
		if err != nil {
			return result, "", err
		}
		result.BackupPath = backupPath
	}

	for _, f := range pending {
		if err := r.applyOne(db, ledger, f); err != nil {
			return result, backupPath, err
		}
		result.Applied++
		r.logger.WithField("script", f.Name).Info("migration applied")
	}

	return result, backupPath, nil
}

// applyOne 在独立事务中执行单个脚本并写入台账记录
func (r *Runner) applyOne(db *sql.DB, ledger *Ledger, f MigrationFile) error {
	tx, err := db.Begin()
	if err != nil {
		return &ScriptError{Name: f.Name, Err: err}
	}

	if _, err := tx.Exec(f.SQL); err != nil {
		tx.Rollback()
		return &ScriptError{Name: f.Name, Err: err}
	}

	if err := ledger.RecordApplied(tx, f.Name); err != nil {
		tx.Rollback()
		return &ScriptError{Name: f.Name, Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &ScriptError{Name: f.Name, Err: err}
	}

	return nil
}

// adoptLegacyDatabase 把旧位置的数据库迁入当前路径
// 仅当目标不存在且旧文件存在时移动；附属文件随主文件一并迁移
func (r *Runner) adoptLegacyDatabase() error {
	legacy := r.cfg.LegacyDBPath
	if legacy == "" || fileExists(r.cfg.DBPath) {
		return nil
	}
	if !fileExists(legacy) {
		return &NotFoundError{What: "legacy database", Path: legacy}
	}

	if err := os.MkdirAll(filepath.Dir(r.cfg.DBPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	if err := moveFile(legacy, r.cfg.DBPath); err != nil {
		return fmt.Errorf("failed to adopt legacy database: %w", err)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if !fileExists(legacy + suffix) {
			continue
		}
		if err := moveFile(legacy+suffix, r.cfg.DBPath+suffix); err != nil {
			return fmt.Errorf("failed to adopt legacy sidecar: %w", err)
		}
	}

	r.logger.WithField("legacy_path", legacy).Info("legacy database adopted")
	return nil
}

// loadMigrationFiles 读取迁移目录下的所有 *.sql 脚本
// 返回结果按文件名字典序排序，即应用顺序
func loadMigrationFiles(dir string) ([]MigrationFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigError{Reason: fmt.Sprintf("migrations directory does not exist: %s", dir)}
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []MigrationFile
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		files = append(files, MigrationFile{
			Name: entry.Name(),
			Path: path,
			SQL:  string(content),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Name < files[j].Name
	})

	return files, nil
}
