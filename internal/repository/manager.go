package repository

import (
	"context"
	"sync"

	"gorm.io/gorm"
)

// Manager 仓储管理器，提供所有仓储的统一访问接口
type Manager struct {
	db *gorm.DB

	// 仓储实例（使用懒加载）
	ratingOnce sync.Once
	rating     RatingRepository

	matchRecordOnce sync.Once
	matchRecord     MatchRecordRepository
}

// NewManager 创建仓储管理器
func NewManager(db *gorm.DB) *Manager {
	return &Manager{db: db}
}

// GetDB 获取数据库实例
func (m *Manager) GetDB() *gorm.DB {
	return m.db
}

// Rating 获取等级分仓储
func (m *Manager) Rating() RatingRepository {
	m.ratingOnce.Do(func() {
		m.rating = NewRatingRepository(m.db)
	})
	return m.rating
}

// MatchRecord 获取对局记录仓储
func (m *Manager) MatchRecord() MatchRecordRepository {
	m.matchRecordOnce.Do(func() {
		m.matchRecord = NewMatchRecordRepository(m.db)
	})
	return m.matchRecord
}

// WithTransaction 在事务中执行，回调收到绑定事务的管理器
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *Manager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewManager(tx))
	})
}
