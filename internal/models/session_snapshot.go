package models

import (
	"time"
)

// SessionSnapshot 对局快照（用于会话恢复）
type SessionSnapshot struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	State     string    `gorm:"size:32;not null" json:"state"`
	Mode      string    `gorm:"size:16" json:"mode"`
	Data      string    `gorm:"type:text" json:"data"` // JSON格式的对局数据
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (SessionSnapshot) TableName() string {
	return "session_snapshots"
}
