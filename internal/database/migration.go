package database

import (
	"context"
	"fmt"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/logger"
	"github.com/wfunc/countdown-game/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate 自动迁移数据库表结构
func AutoMigrate() error {
	if DB == nil {
		return errors.New(errors.ErrDatabaseConnect, "数据库未初始化")
	}

	// 多个进程共用同一个SQLite文件时串行迁移
	if dbPath := getDBPath(); dbPath != "" {
		cleanupStaleLocks(dbPath)

		ctx, cancel := context.WithTimeout(context.Background(), migrationLockWait)
		defer cancel()
		lock := newMigrationLock(dbPath)
		if err := lock.Acquire(ctx); err != nil {
			logger.Error("无法获取迁移锁", zap.Error(err))
			return err
		}
		defer lock.Release()
	}

	logger.Info("开始数据库迁移...")

	for _, model := range models.AllModels() {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("迁移失败",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return errors.Wrap(err, errors.ErrDatabaseUpdate, "数据库迁移失败")
		}
		logger.Debug("迁移成功", zap.String("model", fmt.Sprintf("%T", model)))
	}

	if err := createIndexes(); err != nil {
		return err
	}

	logger.Info("数据库迁移完成")
	return nil
}

// createIndexes 创建排行榜和对局历史查询用的组合索引
func createIndexes() error {
	indexes := map[string]string{
		"idx_player_ratings_leaderboard": "CREATE INDEX IF NOT EXISTS idx_player_ratings_leaderboard ON player_ratings(rating, games_played)",
		"idx_match_records_winner_time":  "CREATE INDEX IF NOT EXISTS idx_match_records_winner_time ON match_records(winner_id, played_at)",
		"idx_match_records_loser_time":   "CREATE INDEX IF NOT EXISTS idx_match_records_loser_time ON match_records(loser_id, played_at)",
		"idx_session_snapshots_state":    "CREATE INDEX IF NOT EXISTS idx_session_snapshots_state ON session_snapshots(state, updated_at)",
	}
	for name, sql := range indexes {
		if err := DB.Exec(sql).Error; err != nil {
			logger.Warn("创建索引失败", zap.String("index", name), zap.Error(err))
		}
	}
	logger.Info("数据库索引创建完成")
	return nil
}
