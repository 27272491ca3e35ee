package models

import (
	"time"
)

// PlayerRating 玩家等级分
type PlayerRating struct {
	BaseModel
	PlayerID     string     `gorm:"uniqueIndex;size:64;not null" json:"player_id"`
	Name         string     `gorm:"size:100" json:"name"`
	Rating       int        `gorm:"default:1500;index" json:"rating"`
	PeakRating   int        `gorm:"default:1500" json:"peak_rating"`
	GamesPlayed  int        `gorm:"default:0" json:"games_played"`
	Wins         int        `gorm:"default:0" json:"wins"`
	Losses       int        `gorm:"default:0" json:"losses"`
	Draws        int        `gorm:"default:0" json:"draws"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
}

// TableName 指定表名
func (PlayerRating) TableName() string {
	return "player_ratings"
}

// MatchRecord 已结束的计分对局
type MatchRecord struct {
	BaseModel
	SessionID          string    `gorm:"uniqueIndex;size:64;not null" json:"session_id"`
	WinnerID           string    `gorm:"index;size:64" json:"winner_id"`
	LoserID            string    `gorm:"index;size:64" json:"loser_id"`
	IsDraw             bool      `gorm:"default:false" json:"is_draw"`
	WinnerScore        int       `json:"winner_score"`
	LoserScore         int       `json:"loser_score"`
	WinnerRatingBefore int       `json:"winner_rating_before"`
	WinnerRatingAfter  int       `json:"winner_rating_after"`
	LoserRatingBefore  int       `json:"loser_rating_before"`
	LoserRatingAfter   int       `json:"loser_rating_after"`
	SuddenDeathRounds  int       `gorm:"default:0" json:"sudden_death_rounds"`
	PlayedAt           time.Time `gorm:"index" json:"played_at"`
}

// TableName 指定表名
func (MatchRecord) TableName() string {
	return "match_records"
}
