package repository

import (
	"context"
	stderrors "errors"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/models"
	"gorm.io/gorm"
)

// MatchRecordRepository 对局记录仓储接口
type MatchRecordRepository interface {
	BaseRepository
	Create(ctx context.Context, record *models.MatchRecord) error
	FindBySessionID(ctx context.Context, sessionID string) (*models.MatchRecord, error)
	ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.MatchRecord, error)
}

type matchRecordRepo struct {
	*baseRepo
}

// NewMatchRecordRepository 创建对局记录仓储
func NewMatchRecordRepository(db *gorm.DB) MatchRecordRepository {
	return &matchRecordRepo{baseRepo: &baseRepo{db: db}}
}

// Create 创建对局记录，同一会话只记录一次
func (r *matchRecordRepo) Create(ctx context.Context, record *models.MatchRecord) error {
	var count int64
	if err := r.conn(ctx).
		Model(&models.MatchRecord{}).
		Where("session_id = ?", record.SessionID).
		Count(&count).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseQuery, "查询对局记录失败")
	}
	if count > 0 {
		return errors.Newf(errors.ErrAlreadyExists, "对局已记录: %s", record.SessionID)
	}
	if err := r.conn(ctx).Create(record).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseInsert, "创建对局记录失败")
	}
	return nil
}

// FindBySessionID 根据会话ID查找
func (r *matchRecordRepo) FindBySessionID(ctx context.Context, sessionID string) (*models.MatchRecord, error) {
	var record models.MatchRecord
	err := r.conn(ctx).Where("session_id = ?", sessionID).First(&record).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf(errors.ErrNotFound, "对局记录不存在: %s", sessionID)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "查询对局记录失败")
	}
	return &record, nil
}

// ListByPlayer 玩家的对局历史，按时间倒序
func (r *matchRecordRepo) ListByPlayer(ctx context.Context, playerID string, pagination *Pagination) ([]*models.MatchRecord, error) {
	if pagination == nil {
		pagination = NewPagination(1, 10)
	}
	query := r.conn(ctx).
		Model(&models.MatchRecord{}).
		Where("winner_id = ? OR loser_id = ?", playerID, playerID)

	if err := query.Count(&pagination.Total).Error; err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "统计对局记录失败")
	}

	var records []*models.MatchRecord
	err := query.Order("played_at DESC").
		Scopes(Paginate(pagination)).
		Find(&records).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "查询对局记录失败")
	}
	return records, nil
}
