package database

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/logger"
	"go.uber.org/zap"
)

const (
	migrationLockSuffix = ".migration.lock"
	migrationLockWait   = 30 * time.Second
	migrationLockStale  = 5 * time.Minute
	lockPollInterval    = 200 * time.Millisecond
)

// migrationLock 基于独占创建文件的跨进程迁移锁，仅对SQLite文件库生效
type migrationLock struct {
	path string
	file *os.File
}

func newMigrationLock(dbPath string) *migrationLock {
	return &migrationLock{path: dbPath + migrationLockSuffix}
}

// Acquire 获取锁，超过 migrationLockStale 的遗留锁文件会被接管
func (l *migrationLock) Acquire(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "创建锁目录失败")
	}

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o644)
		if err == nil {
			l.file = f
			logger.Debug("获取迁移锁成功", zap.String("lock", l.path))
			return nil
		}
		if removeIfStale(l.path, migrationLockStale) {
			continue
		}

		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), errors.ErrDatabaseConnect, "等待迁移锁超时").WithField(l.path)
		case <-ticker.C:
			if attempt%10 == 0 {
				logger.Debug("等待迁移锁", zap.String("lock", l.path), zap.Int("attempt", attempt))
			}
		}
	}
}

// Release 释放锁
func (l *migrationLock) Release() {
	if l.file == nil {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.file = nil
	logger.Debug("释放迁移锁", zap.String("lock", l.path))
}

func removeIfStale(path string, maxAge time.Duration) bool {
	info, err := os.Stat(path)
	if err != nil || time.Since(info.ModTime()) <= maxAge {
		return false
	}
	logger.Warn("迁移锁文件过期，删除", zap.String("lock", path), zap.Time("mod_time", info.ModTime()))
	return os.Remove(path) == nil
}

// getDBPath 获取SQLite数据库文件路径，内存库和其他驱动返回空串
func getDBPath() string {
	if DB == nil {
		return ""
	}
	switch DB.Dialector.Name() {
	case "sqlite", "sqlite3":
	default:
		return ""
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return ""
	}
	var seq int
	var name, file string
	if err := sqlDB.QueryRow("PRAGMA database_list").Scan(&seq, &name, &file); err != nil {
		return ""
	}
	return file
}

// cleanupStaleLocks 清理数据库目录下遗留的迁移锁
func cleanupStaleLocks(dbPath string) {
	matches, _ := filepath.Glob(filepath.Join(filepath.Dir(dbPath), "*"+migrationLockSuffix))
	for _, path := range matches {
		removeIfStale(path, 2*migrationLockStale)
	}
}
