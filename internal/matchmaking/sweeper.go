package matchmaking

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

// ExpireStale 清理过期的匹配请求和邀请码
func (q *Queue) ExpireStale() (requests, invites int) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	if q.cfg.StaleAfter > 0 {
		var stale []string
		for _, e := range q.waiting {
			if now.Sub(e.req.EnqueuedAt) > q.cfg.StaleAfter {
				stale = append(stale, e.req.PlayerID)
			}
		}
		for _, id := range stale {
			if e := q.removeLocked(id); e != nil {
				e.finish(nil, errors.New(errors.ErrMatchmakingTimeout).WithField("player_id"))
				requests++
			}
		}
	}

	for code, inv := range q.invites {
		if inv.Expired(now) {
			delete(q.invites, code)
			invites++
		}
	}

	if requests > 0 || invites > 0 {
		q.logger.Info("清理过期匹配数据",
			zap.Int("requests", requests),
			zap.Int("invites", invites))
	}
	return requests, invites
}

// StartSweeper 定期清理过期数据并放宽排队请求的容差，ctx 结束时停止
func (q *Queue) StartSweeper(ctx context.Context, interval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrUnknown, "创建调度器失败")
	}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			q.ExpireStale()
			if n := q.Widen(ctx); n > 0 {
				q.logger.Debug("后台放宽容差完成匹配", zap.Int("pairings", n))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, errors.Wrap(err, errors.ErrUnknown, "注册清理任务失败")
	}
	sched.Start()

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			q.logger.Warn("停止匹配清理任务失败", zap.Error(err))
		}
	}()
	return sched, nil
}
