package repository

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/countdown-game/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB 为测试创建内存数据库
func SetupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	// 内存库每个连接相互独立
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		panic(err)
	}
	return db
}

// CleanupTestDB 清理测试数据库
func CleanupTestDB(db *gorm.DB) {
	sqlDB, _ := db.DB()
	if sqlDB != nil {
		sqlDB.Close()
	}
}

// TestDB 创建测试数据库，测试结束时自动关闭
func TestDB(t *testing.T) *gorm.DB {
	db := SetupTestDB()
	t.Cleanup(func() { CleanupTestDB(db) })
	return db
}

// SeedRatings 按给定等级分创建玩家
func SeedRatings(t *testing.T, db *gorm.DB, ratings map[string]int) {
	for id, r := range ratings {
		err := db.Create(&models.PlayerRating{
			PlayerID:   id,
			Name:       "玩家" + id,
			Rating:     r,
			PeakRating: r,
		}).Error
		require.NoError(t, err)
	}
}

// CreateTestMatchRecord 创建测试对局记录
func CreateTestMatchRecord(sessionID, winnerID, loserID string, playedAt time.Time) *models.MatchRecord {
	return &models.MatchRecord{
		SessionID:          sessionID,
		WinnerID:           winnerID,
		LoserID:            loserID,
		WinnerScore:        60,
		LoserScore:         45,
		WinnerRatingBefore: 1500,
		WinnerRatingAfter:  1520,
		LoserRatingBefore:  1500,
		LoserRatingAfter:   1480,
		PlayedAt:           playedAt,
	}
}

// AssertPlayerRating 验证玩家等级分
func AssertPlayerRating(t *testing.T, expected, actual *models.PlayerRating) {
	assert.Equal(t, expected.PlayerID, actual.PlayerID, fmt.Sprintf("player %s", expected.PlayerID))
	assert.Equal(t, expected.Rating, actual.Rating)
	assert.Equal(t, expected.GamesPlayed, actual.GamesPlayed)
}
