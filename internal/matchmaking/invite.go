package matchmaking

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/wfunc/countdown-game/internal/errors"
	"go.uber.org/zap"
)

const (
	// InviteCodeLength 邀请码长度
	InviteCodeLength = 6
	inviteAlphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts  = 10
)

// SessionJoiner 邀请码入座所需的会话能力
type SessionJoiner interface {
	IsWaiting(sessionID string) bool
	Seat(ctx context.Context, sessionID, playerID, playerName string) error
}

// Invite 邀请码
type Invite struct {
	Code      string    `json:"code"`
	SessionID string    `json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired 是否已过期
func (i *Invite) Expired(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// CreateInviteCode 为等待中的对局生成邀请码，同一对局重复调用返回原邀请码
func (q *Queue) CreateInviteCode(ctx context.Context, sessionID string) (*Invite, error) {
	if sessionID == "" {
		return nil, errors.New(errors.ErrInvalidParam, "session id is required").WithField("session_id")
	}
	if q.joiner != nil && !q.joiner.IsWaiting(sessionID) {
		return nil, errors.Newf(errors.ErrGameAlreadyStarted, "session %s is not waiting for players", sessionID)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	for _, inv := range q.invites {
		if inv.SessionID == sessionID && !inv.Expired(now) {
			copied := *inv
			return &copied, nil
		}
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrUnknown, "生成邀请码失败")
		}
		if _, taken := q.invites[code]; taken {
			continue
		}
		inv := &Invite{
			Code:      code,
			SessionID: sessionID,
			CreatedAt: now,
			ExpiresAt: now.Add(q.cfg.InviteTTL),
		}
		q.invites[code] = inv
		q.logger.Info("创建邀请码",
			zap.String("session_id", sessionID),
			zap.String("code", code))
		copied := *inv
		return &copied, nil
	}
	return nil, errors.New(errors.ErrUnknown, "邀请码冲突次数过多")
}

// RedeemInviteCode 使用邀请码加入对局，返回会话ID
func (q *Queue) RedeemInviteCode(ctx context.Context, code, playerID, playerName string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !validCode(code) {
		return "", errors.Newf(errors.ErrInvalidInviteCode, "malformed code %q", code).WithField("code")
	}
	if playerID == "" {
		return "", errors.New(errors.ErrInvalidParam, "player id is required").WithField("player_id")
	}

	q.mu.Lock()
	inv, ok := q.invites[code]
	if !ok {
		q.mu.Unlock()
		return "", errors.New(errors.ErrInviteNotFound).WithField("code")
	}
	if inv.Expired(q.now()) {
		delete(q.invites, code)
		q.mu.Unlock()
		return "", errors.New(errors.ErrInviteExpired).WithField("code")
	}
	sessionID := inv.SessionID
	q.mu.Unlock()

	if q.joiner != nil {
		if !q.joiner.IsWaiting(sessionID) {
			q.revoke(code)
			return "", errors.Newf(errors.ErrInvalidInviteCode, "session %s is no longer waiting", sessionID).WithField("code")
		}
		if err := q.joiner.Seat(ctx, sessionID, playerID, playerName); err != nil {
			return "", err
		}
	}
	q.revoke(code)

	q.logger.Info("邀请码入座",
		zap.String("session_id", sessionID),
		zap.String("player_id", playerID))
	return sessionID, nil
}

// Invite 查询邀请码
func (q *Queue) Invite(code string) (*Invite, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	inv, ok := q.invites[strings.ToUpper(code)]
	if !ok {
		return nil, false
	}
	copied := *inv
	return &copied, true
}

func (q *Queue) revoke(code string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.invites, code)
}

func generateCode() (string, error) {
	var b strings.Builder
	max := big.NewInt(int64(len(inviteAlphabet)))
	for i := 0; i < InviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func validCode(code string) bool {
	if len(code) != InviteCodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if !strings.ContainsRune(inviteAlphabet, rune(code[i])) {
			return false
		}
	}
	return true
}
