package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/dustin/go-humanize"

	"github.com/dbguard-go/dbguard-go/src/configs"
	"github.com/dbguard-go/dbguard-go/src/consts"
	"github.com/dbguard-go/dbguard-go/src/log"
	"github.com/dbguard-go/dbguard-go/src/pkg/migration"
	"github.com/dbguard-go/dbguard-go/src/pkg/paths"
	"github.com/dbguard-go/dbguard-go/src/pkg/sentry"
)

var (
	app   = kingpin.New("dbguard", "Safe schema migration and backup tool for single-file SQLite databases.")
	conf  = app.Flag("config", "Config file path (yaml).").Short('c').String()
	debug = app.Flag("debug", "Enable debug logging.").Bool()

	migrateCmd    = app.Command("migrate", "Apply pending migration scripts.")
	migrateDB     = migrateCmd.Flag("db", "Database file path.").String()
	migrateDir    = migrateCmd.Flag("migrations", "Migrations directory.").String()
	migrateLegacy = migrateCmd.Flag("legacy-db", "Legacy database path to adopt on first run.").String()

	backupCmd = app.Command("backup", "Manage database backups.")

	backupCreateCmd  = backupCmd.Command("create", "Create a point-in-time backup.")
	backupCreateDB   = backupCreateCmd.Flag("db", "Database file path.").String()
	backupCreateDir  = backupCreateCmd.Flag("backup-dir", "Backup directory.").String()
	backupCreateName = backupCreateCmd.Flag("name", "Backup name.").String()
	backupCreateJSON = backupCreateCmd.Flag("json", "Print result as JSON.").Bool()

	backupListCmd  = backupCmd.Command("list", "List backups, newest first.")
	backupListDB   = backupListCmd.Flag("db", "Database file path.").String()
	backupListDir  = backupListCmd.Flag("backup-dir", "Backup directory.").String()
	backupListJSON = backupListCmd.Flag("json", "Print result as JSON.").Bool()

	backupRestoreCmd  = backupCmd.Command("restore", "Restore the database from a backup file.")
	backupRestoreFile = backupRestoreCmd.Flag("file", "Backup file path or name inside the backup directory.").Required().String()
	backupRestoreDB   = backupRestoreCmd.Flag("db", "Database file path.").String()
	backupRestoreDir  = backupRestoreCmd.Flag("backup-dir", "Backup directory.").String()
	backupRestoreJSON = backupRestoreCmd.Flag("json", "Print result as JSON.").Bool()

	backupPruneCmd  = backupCmd.Command("prune", "Delete backups beyond the retention count.")
	backupPruneDB   = backupPruneCmd.Flag("db", "Database file path.").String()
	backupPruneDir  = backupPruneCmd.Flag("backup-dir", "Backup directory.").String()
	backupPruneJSON = backupPruneCmd.Flag("json", "Print result as JSON.").Bool()

	versionCmd  = app.Command("version", "Print build information.")
	versionJSON = versionCmd.Flag("json", "Print result as JSON.").Bool()
)

func getConfig() (*configs.Config, error) {
	if *conf != "" {
		config, err := configs.NewConfigWithFile(*conf)
		if err != nil {
			return nil, err
		}
		return config, config.Verify()
	}
	config := configs.NewConfig()
	return config, config.Verify()
}

// applyFlags 把命令行参数覆盖到已解析的引擎配置上
func applyFlags(cfg *migration.Config, db, migrationsDir, backupDir, legacy string) {
	if db != "" {
		cfg.DBPath = db
	}
	if migrationsDir != "" {
		cfg.MigrationsDir = migrationsDir
	}
	if backupDir != "" {
		cfg.BackupDir = backupDir
	}
	if legacy != "" {
		cfg.LegacyDBPath = legacy
	}
}

// jsonResult --json 模式下输出的单个 JSON 对象
type jsonResult map[string]any

// newResult 构造带公共字段的结果对象
func newResult(ok bool, cmd string, cfg *migration.Config) jsonResult {
	return jsonResult{
		"ok":         ok,
		"cmd":        cmd,
		"db_path":    cfg.DBPath,
		"backup_dir": cfg.BackupDir,
	}
}

func emitJSON(res jsonResult) {
	b, err := json.Marshal(res)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return
	}
	fmt.Println(string(b))
}

// backupRecordsJSON 把备份记录转换为 JSON 数组元素
func backupRecordsJSON(records []migration.BackupRecord) []jsonResult {
	out := make([]jsonResult, 0, len(records))
	for _, rec := range records {
		out = append(out, jsonResult{
			"path":       rec.Path,
			"size_bytes": rec.SizeBytes,
			"mtime_utc":  rec.ModTime.Format(time.RFC3339),
		})
	}
	return out
}

func runMigrate(cfg *migration.Config) error {
	runner, err := migration.NewRunner(cfg)
	if err != nil {
		return err
	}
	result, err := runner.Run()
	if err != nil {
		return err
	}
	fmt.Printf("applied %d of %d migrations\n", result.Applied, result.Total)
	return nil
}

func runBackupCreate(cfg *migration.Config) error {
	bm := migration.NewBackupManager(cfg)
	backupPath, err := bm.Create(*backupCreateName)
	if err != nil {
		return err
	}
	if *backupCreateJSON {
		res := newResult(true, "backup create", cfg)
		res["backup_path"] = backupPath
		emitJSON(res)
		return nil
	}
	fmt.Printf("backup created: %s\n", backupPath)
	return nil
}

func runBackupList(cfg *migration.Config) error {
	bm := migration.NewBackupManager(cfg)
	records, err := bm.List()
	if err != nil {
		return err
	}
	if *backupListJSON {
		res := newResult(true, "backup list", cfg)
		res["backups"] = backupRecordsJSON(records)
		emitJSON(res)
		return nil
	}
	if len(records) == 0 {
		fmt.Println("no backups found")
		return nil
	}
	for _, rec := range records {
		fmt.Printf("%s\t%s\t%s\n",
			rec.ModTime.Format(time.RFC3339), humanize.Bytes(uint64(rec.SizeBytes)), rec.Path)
	}
	return nil
}

func runBackupRestore(cfg *migration.Config) error {
	bm := migration.NewBackupManager(cfg)
	backupFile, err := bm.ResolveBackupFile(*backupRestoreFile)
	if err != nil {
		return err
	}
	if err := bm.Restore(backupFile); err != nil {
		return err
	}
	if *backupRestoreJSON {
		res := newResult(true, "backup restore", cfg)
		res["backup_path"] = backupFile
		emitJSON(res)
		return nil
	}
	fmt.Printf("database restored from: %s\n", backupFile)
	return nil
}

func runBackupPrune(cfg *migration.Config) error {
	bm := migration.NewBackupManager(cfg)
	removed, err := bm.Prune()
	if err != nil {
		return err
	}
	if *backupPruneJSON {
		res := newResult(true, "backup prune", cfg)
		res["removed"] = removed
		emitJSON(res)
		return nil
	}
	fmt.Printf("removed %d old backups\n", removed)
	return nil
}

func runVersion() error {
	info := consts.GetAppInfo()
	if *versionJSON {
		b, err := json.Marshal(info)
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		return nil
	}
	fmt.Printf("%s %s\n", info.AppName, info.AppVersion)
	fmt.Printf("build time: %s\n", info.BuildTime)
	fmt.Printf("git hash:   %s\n", info.GitHash)
	fmt.Printf("platform:   %s (%s)\n", info.Platform, info.GoVersion)
	return nil
}

func main() {
	// 程序退出时刷新 Sentry 事件队列
	defer sentry.Flush(2 * time.Second)
	defer sentry.Recover()

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	if cmd == versionCmd.FullCommand() {
		if err := runVersion(); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
		return
	}

	config, err := getConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	if *debug {
		config.Debug = true
	}

	logger := log.New(config)
	logger.Debugf("%+v", consts.GetAppInfo())

	// Sentry 错误监控：环境变量提供 DSN 时启用
	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		environment := "production"
		if config.Debug {
			environment = "development"
		}
		if err := sentry.Init(dsn, environment, consts.AppVersion); err != nil {
			logger.WithError(err).Warn("failed to init sentry")
		}
	}

	engineCfg := paths.Resolve(config)

	var cmdErr error
	var jsonMode bool
	switch cmd {
	case migrateCmd.FullCommand():
		applyFlags(engineCfg, *migrateDB, *migrateDir, "", *migrateLegacy)
		cmdErr = runMigrate(engineCfg)
	case backupCreateCmd.FullCommand():
		applyFlags(engineCfg, *backupCreateDB, "", *backupCreateDir, "")
		jsonMode = *backupCreateJSON
		cmdErr = runBackupCreate(engineCfg)
	case backupListCmd.FullCommand():
		applyFlags(engineCfg, *backupListDB, "", *backupListDir, "")
		jsonMode = *backupListJSON
		cmdErr = runBackupList(engineCfg)
	case backupRestoreCmd.FullCommand():
		applyFlags(engineCfg, *backupRestoreDB, "", *backupRestoreDir, "")
		jsonMode = *backupRestoreJSON
		cmdErr = runBackupRestore(engineCfg)
	case backupPruneCmd.FullCommand():
		applyFlags(engineCfg, *backupPruneDB, "", *backupPruneDir, "")
		jsonMode = *backupPruneJSON
		cmdErr = runBackupPrune(engineCfg)
	}

	if cmdErr != nil {
		sentry.CaptureErr(cmdErr)
		if jsonMode {
			res := newResult(false, cmd, engineCfg)
			res["error"] = cmdErr.Error()
			emitJSON(res)
		}
		fmt.Fprintln(os.Stderr, cmdErr.Error())
		os.Exit(1)
	}
}
