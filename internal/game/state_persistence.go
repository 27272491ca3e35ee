package game

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wfunc/countdown-game/internal/errors"
	"github.com/wfunc/countdown-game/internal/models"
	"gorm.io/gorm"
)

// SessionSnapshot 对局快照
type SessionSnapshot struct {
	SessionID string    `json:"session_id"`
	State     GameState `json:"state"`
	Match     *Match    `json:"match"`
	SavedAt   time.Time `json:"saved_at"`
}

// NewSessionSnapshot 由对局生成快照（深拷贝）
func NewSessionSnapshot(m *Match, now time.Time) *SessionSnapshot {
	return &SessionSnapshot{
		SessionID: m.ID,
		State:     m.State,
		Match:     m.Clone(),
		SavedAt:   now,
	}
}

// StatePersister 快照持久化接口
type StatePersister interface {
	Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error
	Load(ctx context.Context, sessionID string) (*SessionSnapshot, error)
	Exists(ctx context.Context, sessionID string) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

func encodeSnapshot(snapshot *SessionSnapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrSnapshotCodec, "序列化快照失败")
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*SessionSnapshot, error) {
	var snapshot SessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, errors.Wrap(err, errors.ErrSnapshotCodec, "反序列化快照失败")
	}
	if snapshot.Match == nil {
		return nil, errors.New(errors.ErrSnapshotCodec, "快照缺少对局数据")
	}
	return &snapshot, nil
}

func snapshotNotFound(sessionID string) error {
	return errors.Newf(errors.ErrSessionNotFound, "快照不存在: %s", sessionID)
}

// MemoryStatePersister 内存快照存储（用于测试和单机运行）
type MemoryStatePersister struct {
	mu     sync.RWMutex
	states map[string][]byte
}

// NewMemoryStatePersister 创建内存持久化器
func NewMemoryStatePersister() *MemoryStatePersister {
	return &MemoryStatePersister{
		states: make(map[string][]byte),
	}
}

// Save 保存快照
func (p *MemoryStatePersister) Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states[sessionID] = data
	return nil
}

// Load 加载快照
func (p *MemoryStatePersister) Load(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	p.mu.RLock()
	data, exists := p.states[sessionID]
	p.mu.RUnlock()
	if !exists {
		return nil, snapshotNotFound(sessionID)
	}
	return decodeSnapshot(data)
}

// Exists 快照是否存在
func (p *MemoryStatePersister) Exists(ctx context.Context, sessionID string) (bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.states[sessionID]
	return ok, nil
}

// Delete 删除快照
func (p *MemoryStatePersister) Delete(ctx context.Context, sessionID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.states, sessionID)
	return nil
}

// DatabaseStatePersister 数据库快照存储
type DatabaseStatePersister struct {
	db *gorm.DB
}

// NewDatabaseStatePersister 创建数据库持久化器
func NewDatabaseStatePersister(db *gorm.DB) *DatabaseStatePersister {
	return &DatabaseStatePersister{db: db}
}

// Save 保存快照（存在则更新）
func (p *DatabaseStatePersister) Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}

	record := models.SessionSnapshot{SessionID: sessionID}
	result := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Assign(models.SessionSnapshot{
			State:     string(snapshot.State),
			Mode:      string(snapshot.Match.Mode),
			Data:      string(data),
			UpdatedAt: snapshot.SavedAt,
		}).
		FirstOrCreate(&record)
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrDatabaseUpdate, "保存快照失败")
	}
	return nil
}

// Load 加载快照
func (p *DatabaseStatePersister) Load(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	var record models.SessionSnapshot
	result := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		First(&record)
	if result.Error != nil {
		if stderrors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, snapshotNotFound(sessionID)
		}
		return nil, errors.Wrap(result.Error, errors.ErrDatabaseQuery, "查询快照失败")
	}
	return decodeSnapshot([]byte(record.Data))
}

// Exists 快照是否存在
func (p *DatabaseStatePersister) Exists(ctx context.Context, sessionID string) (bool, error) {
	var count int64
	if err := p.db.WithContext(ctx).
		Model(&models.SessionSnapshot{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error; err != nil {
		return false, errors.Wrap(err, errors.ErrDatabaseQuery, "查询快照失败")
	}
	return count > 0, nil
}

// Delete 删除快照
func (p *DatabaseStatePersister) Delete(ctx context.Context, sessionID string) error {
	result := p.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Delete(&models.SessionSnapshot{})
	if result.Error != nil {
		return errors.Wrap(result.Error, errors.ErrDatabaseUpdate, "删除快照失败")
	}
	return nil
}

// RedisKeyPrefix Redis快照键前缀
const RedisKeyPrefix = "countdown:session:"

// RedisStatePersister Redis快照存储
type RedisStatePersister struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStatePersister 创建Redis持久化器
func NewRedisStatePersister(client *redis.Client, ttl time.Duration) *RedisStatePersister {
	return &RedisStatePersister{
		client: client,
		ttl:    ttl,
	}
}

func (p *RedisStatePersister) key(sessionID string) string {
	return RedisKeyPrefix + sessionID
}

// Save 保存快照
func (p *RedisStatePersister) Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error {
	data, err := encodeSnapshot(snapshot)
	if err != nil {
		return err
	}
	if err := p.client.Set(ctx, p.key(sessionID), data, p.ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "写入Redis失败")
	}
	return nil
}

// Load 加载快照
func (p *RedisStatePersister) Load(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	data, err := p.client.Get(ctx, p.key(sessionID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, snapshotNotFound(sessionID)
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery, "读取Redis失败")
	}
	return decodeSnapshot(data)
}

// Exists 快照是否存在
func (p *RedisStatePersister) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := p.client.Exists(ctx, p.key(sessionID)).Result()
	if err != nil {
		return false, errors.Wrap(err, errors.ErrDatabaseQuery, "读取Redis失败")
	}
	return n > 0, nil
}

// Delete 删除快照
func (p *RedisStatePersister) Delete(ctx context.Context, sessionID string) error {
	if err := p.client.Del(ctx, p.key(sessionID)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseUpdate, "删除Redis键失败")
	}
	return nil
}

// CacheStatePersister 带缓存的持久化器（装饰器模式）
type CacheStatePersister struct {
	cache   StatePersister // 缓存层（如Redis）
	storage StatePersister // 存储层（如数据库）
}

// NewCacheStatePersister 创建带缓存的持久化器
func NewCacheStatePersister(cache, storage StatePersister) *CacheStatePersister {
	return &CacheStatePersister{
		cache:   cache,
		storage: storage,
	}
}

// Save 先写存储层，缓存失败不影响主流程
func (p *CacheStatePersister) Save(ctx context.Context, sessionID string, snapshot *SessionSnapshot) error {
	if err := p.storage.Save(ctx, sessionID, snapshot); err != nil {
		return err
	}
	_ = p.cache.Save(ctx, sessionID, snapshot)
	return nil
}

// Load 优先从缓存加载
func (p *CacheStatePersister) Load(ctx context.Context, sessionID string) (*SessionSnapshot, error) {
	if snapshot, err := p.cache.Load(ctx, sessionID); err == nil {
		return snapshot, nil
	}

	snapshot, err := p.storage.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	_ = p.cache.Save(ctx, sessionID, snapshot)
	return snapshot, nil
}

// Exists 任一层存在即可
func (p *CacheStatePersister) Exists(ctx context.Context, sessionID string) (bool, error) {
	if ok, err := p.cache.Exists(ctx, sessionID); err == nil && ok {
		return true, nil
	}
	return p.storage.Exists(ctx, sessionID)
}

// Delete 同时删除缓存和存储
func (p *CacheStatePersister) Delete(ctx context.Context, sessionID string) error {
	_ = p.cache.Delete(ctx, sessionID)
	return p.storage.Delete(ctx, sessionID)
}
