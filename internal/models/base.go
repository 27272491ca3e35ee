package models

import (
	"time"

	"gorm.io/gorm"
)

// BaseModel 公共字段
type BaseModel struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// AllModels 需要自动迁移的模型
func AllModels() []interface{} {
	return []interface{}{
		&SessionSnapshot{},
		&PlayerRating{},
		&MatchRecord{},
	}
}
