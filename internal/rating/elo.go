package rating

import "math"

// Config 等级分规则
type Config struct {
	DefaultRating    int
	ProvisionalGames int // 对局数少于该值时使用 ProvisionalK
	ProvisionalK     int
	StandardK        int
	MasterThreshold  int // 等级分达到该值后使用 MasterK
	MasterK          int
	Floor            int
}

// DefaultConfig 默认规则
func DefaultConfig() Config {
	return Config{
		DefaultRating:    1500,
		ProvisionalGames: 30,
		ProvisionalK:     40,
		StandardK:        20,
		MasterThreshold:  2400,
		MasterK:          10,
		Floor:            0,
	}
}

// ExpectedScore 玩家 a 对 b 的期望得分
func ExpectedScore(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// KFactor 按对局数和当前等级分确定K值
func (c Config) KFactor(rating, gamesPlayed int) int {
	switch {
	case gamesPlayed < c.ProvisionalGames:
		return c.ProvisionalK
	case rating >= c.MasterThreshold:
		return c.MasterK
	default:
		return c.StandardK
	}
}

// next 计算新等级分，不低于下限
func (c Config) next(rating, k int, actual, expected float64) int {
	r := int(math.Round(float64(rating) + float64(k)*(actual-expected)))
	if r < c.Floor {
		r = c.Floor
	}
	return r
}
