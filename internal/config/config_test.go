package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())

	assert.Equal(t, 30*time.Second, c.Game.RoundTimeLimit)
	assert.Equal(t, "LLNLLNLLNLLLNLC", c.Game.Layout)
	assert.Len(t, c.Game.Layout, 15)
	assert.Equal(t, 18, c.Game.Scoring.NineLetterBonus)
	assert.Equal(t, 5, c.Game.Scoring.NumbersNearRange)
	assert.Equal(t, 10, c.Game.Scoring.NumbersFarRange)

	assert.Equal(t, 200, c.Matchmaking.InitialTolerance)
	assert.Equal(t, 100, c.Matchmaking.ToleranceStep)
	assert.Equal(t, 500, c.Matchmaking.MaxTolerance)
	assert.Equal(t, 2*time.Minute, c.Matchmaking.StaleAfter)
	assert.Equal(t, 15*time.Minute, c.Matchmaking.InviteTTL)

	assert.Equal(t, 1500, c.Rating.DefaultRating)
	assert.Equal(t, 40, c.Rating.ProvisionalK)
	assert.Equal(t, 20, c.Rating.StandardK)
	assert.Equal(t, 10, c.Rating.MasterK)

	assert.Empty(t, c.Auth.JWTSecret)
	assert.Equal(t, "countdown", c.Auth.Issuer)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"默认配置", func(c *Config) {}, false},
		{"无效回合时长", func(c *Config) { c.Game.RoundTimeLimit = 0 }, true},
		{"空回合编排", func(c *Config) { c.Game.Layout = "" }, true},
		{"未知回合类型", func(c *Config) { c.Game.Layout = "LLNLLNLLNLLLNLX" }, true},
		{"回合数不足", func(c *Config) { c.Game.Layout = "LLNC" }, true},
		{"回合数过多", func(c *Config) { c.Game.Layout = "LLNLLNLLNLLLNLCC" }, true},
		{"自定义编排", func(c *Config) { c.Game.Layout = "LNLNLNLNLNLNLNC" }, false},
		{"容差区间颠倒", func(c *Config) { c.Matchmaking.InitialTolerance = 600 }, true},
		{"负数下限", func(c *Config) { c.Rating.Floor = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestInitFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
game:
  round_time_limit: 45s
  layout: LNLNLNLNLNLNLNC
matchmaking:
  max_tolerance: 800
`)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	require.NoError(t, Init(path))
	c := Get()
	require.NotNil(t, c)
	assert.Equal(t, 45*time.Second, c.Game.RoundTimeLimit)
	assert.Equal(t, "LNLNLNLNLNLNLNC", c.Game.Layout)
	assert.Equal(t, 800, c.Matchmaking.MaxTolerance)
	// 未覆盖的字段仍保留默认值
	assert.Equal(t, 200, c.Matchmaking.InitialTolerance)
}
