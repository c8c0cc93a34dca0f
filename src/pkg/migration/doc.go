// Package migration 提供单文件 SQLite 数据库的安全迁移与备份框架
//
// 本包负责在应用生命周期内安全地演进数据库 schema，主要特性包括：
//
// 1. 文件式迁移：migrations 目录下的 *.sql 脚本按文件名字典序依次应用
// 2. 迁移台账：schema_migrations 表记录已应用脚本，保证每个脚本只应用一次
// 3. 事务式应用：每个脚本在独立事务中执行，台账记录与脚本共用同一事务
// 4. 备份与回滚：应用前自动创建一致性快照，迁移失败时自动从快照恢复
// 5. 完整性校验：快照前与恢复后均执行 PRAGMA integrity_check，绝不跳过
//
// 基本使用示例：
//
//	runner, err := migration.NewRunner(&migration.Config{
//	    DBPath:        "/path/to/app.db",
//	    MigrationsDir: "/path/to/migrations",
//	    BackupDir:     "/path/to/backups",
//	})
//	if err != nil {
//	    return err
//	}
//	result, err := runner.Run()
//
// 手动备份示例：
//
//	bm := migration.NewBackupManager(&migration.Config{DBPath: dbPath, BackupDir: dir})
//	backupPath, err := bm.Create("before-upgrade")
package migration
