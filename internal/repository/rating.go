package repository

import (
	"context"
	stderrors "errors"

	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RatingRepository 等级分仓储接口
type RatingRepository interface {
	BaseRepository
	FindByPlayerID(ctx context.Context, playerID string) (*models.PlayerRating, error)
	GetOrCreate(ctx context.Context, playerID, name string, initial int) (*models.PlayerRating, error)
	Update(ctx context.Context, rating *models.PlayerRating) error
	Top(ctx context.Context, limit int) ([]*models.PlayerRating, error)
	Count(ctx context.Context) (int64, error)
}

type ratingRepo struct {
	*baseRepo
}

// NewRatingRepository 创建等级分仓储
func NewRatingRepository(db *gorm.DB) RatingRepository {
	return &ratingRepo{baseRepo: &baseRepo{db: db}}
}

// FindByPlayerID 根据玩家ID查找
func (r *ratingRepo) FindByPlayerID(ctx context.Context, playerID string) (*models.PlayerRating, error) {
	var rating models.PlayerRating
	err := r.conn(ctx).Where("player_id = ?", playerID).First(&rating).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Newf(errors.ErrPlayerNotFound, "玩家不存在: %s", playerID).WithField("player_id")
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "查询等级分失败")
	}
	return &rating, nil
}

// GetOrCreate 查找玩家等级分，不存在时以初始分创建
func (r *ratingRepo) GetOrCreate(ctx context.Context, playerID, name string, initial int) (*models.PlayerRating, error) {
	rating := models.PlayerRating{
		PlayerID:   playerID,
		Name:       name,
		Rating:     initial,
		PeakRating: initial,
	}
	err := r.conn(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "player_id"}}, DoNothing: true}).
		Create(&rating).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseInsert, "创建等级分失败")
	}
	found, err := r.FindByPlayerID(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if name != "" && found.Name != name {
		found.Name = name
		if err := r.conn(ctx).Model(found).Update("name", name).Error; err != nil {
			return nil, errors.Wrap(err, errors.ErrDatabaseUpdate, "更新玩家名称失败")
		}
	}
	return found, nil
}

// Update 保存等级分
func (r *ratingRepo) Update(ctx context.Context, rating *models.PlayerRating) error {
	if err := r.conn(ctx).Save(rating).Error; err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "更新等级分失败")
	}
	return nil
}

// Top 排行榜：等级分降序，同分按对局数降序
func (r *ratingRepo) Top(ctx context.Context, limit int) ([]*models.PlayerRating, error) {
	var ratings []*models.PlayerRating
	err := r.conn(ctx).
		Order("rating DESC").
		Order("games_played DESC").
		Order("player_id ASC").
		Limit(limit).
		Find(&ratings).Error
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "查询排行榜失败")
	}
	return ratings, nil
}

// Count 玩家总数
func (r *ratingRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn(ctx).Model(&models.PlayerRating{}).Count(&count).Error; err != nil {
		return 0, errors.Wrap(err, errors.ErrDatabaseQuery, "统计玩家失败")
	}
	return count, nil
}
