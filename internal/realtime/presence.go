package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// staleAfter drops connections whose instance stopped refreshing them.
const staleAfter = 3 * time.Minute

// PresenceStore tracks who is connected to which board. Entries are keyed
// by connection so several tabs of one user are tracked separately and
// collapsed when listed.
type PresenceStore interface {
	Join(ctx context.Context, boardID, connID string, p Participant) error
	Focus(ctx context.Context, boardID, connID, blockID string) error
	Touch(ctx context.Context, boardID, connID string) error
	Leave(ctx context.Context, boardID, connID string) error
	List(ctx context.Context, boardID string) ([]Participant, error)
}

type presenceEntry struct {
	Participant
	SeenAt    time.Time `json:"seenAt"`
	FocusedAt time.Time `json:"focusedAt"`
}

// collapse merges connections per user: the earliest connection time wins and
// the most recently set focus wins.
func collapse(entries []presenceEntry, now time.Time) []Participant {
	byUser := make(map[string]*presenceEntry)
	for i := range entries {
		e := entries[i]
		if now.Sub(e.SeenAt) > staleAfter {
			continue
		}
		cur, ok := byUser[e.UserID]
		if !ok {
			byUser[e.UserID] = &e
			continue
		}
		if e.ConnectedAt.Before(cur.ConnectedAt) {
			cur.ConnectedAt = e.ConnectedAt
		}
		if e.FocusedAt.After(cur.FocusedAt) {
			cur.FocusBlockID = e.FocusBlockID
			cur.FocusedAt = e.FocusedAt
		}
	}
	out := make([]Participant, 0, len(byUser))
	for _, e := range byUser {
		out = append(out, e.Participant)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}

// MemoryPresence keeps presence for a single instance.
type MemoryPresence struct {
	mu     sync.Mutex
	boards map[string]map[string]presenceEntry
	now    func() time.Time
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{boards: make(map[string]map[string]presenceEntry), now: time.Now}
}

func (m *MemoryPresence) Join(_ context.Context, boardID, connID string, p Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.boards[boardID]
	if !ok {
		room = make(map[string]presenceEntry)
		m.boards[boardID] = room
	}
	room[connID] = presenceEntry{Participant: p, SeenAt: m.now()}
	return nil
}

func (m *MemoryPresence) Focus(_ context.Context, boardID, connID, blockID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.boards[boardID][connID]; ok {
		now := m.now()
		e.FocusBlockID, e.FocusedAt, e.SeenAt = blockID, now, now
		m.boards[boardID][connID] = e
	}
	return nil
}

func (m *MemoryPresence) Touch(_ context.Context, boardID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.boards[boardID][connID]; ok {
		e.SeenAt = m.now()
		m.boards[boardID][connID] = e
	}
	return nil
}

func (m *MemoryPresence) Leave(_ context.Context, boardID, connID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.boards[boardID], connID)
	if len(m.boards[boardID]) == 0 {
		delete(m.boards, boardID)
	}
	return nil
}

func (m *MemoryPresence) List(_ context.Context, boardID string) ([]Participant, error) {
	m.mu.Lock()
	entries := make([]presenceEntry, 0, len(m.boards[boardID]))
	for _, e := range m.boards[boardID] {
		entries = append(entries, e)
	}
	m.mu.Unlock()
	return collapse(entries, m.now()), nil
}

// RedisPresence shares presence between instances in a hash per board.
type RedisPresence struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisPresence(client *redis.Client) *RedisPresence {
	return &RedisPresence{client: client, prefix: "presence:", now: time.Now}
}

func (r *RedisPresence) key(boardID string) string {
	return r.prefix + boardID
}

func (r *RedisPresence) write(ctx context.Context, boardID, connID string, e presenceEntry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal presence: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.key(boardID), connID, data)
	pipe.Expire(ctx, r.key(boardID), 2*staleAfter)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write presence: %w", err)
	}
	return nil
}

func (r *RedisPresence) read(ctx context.Context, boardID, connID string) (presenceEntry, bool, error) {
	raw, err := r.client.HGet(ctx, r.key(boardID), connID).Bytes()
	if errors.Is(err, redis.Nil) {
		return presenceEntry{}, false, nil
	}
	if err != nil {
		return presenceEntry{}, false, fmt.Errorf("read presence: %w", err)
	}
	var e presenceEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return presenceEntry{}, false, fmt.Errorf("decode presence: %w", err)
	}
	return e, true, nil
}

func (r *RedisPresence) Join(ctx context.Context, boardID, connID string, p Participant) error {
	return r.write(ctx, boardID, connID, presenceEntry{Participant: p, SeenAt: r.now()})
}

func (r *RedisPresence) Focus(ctx context.Context, boardID, connID, blockID string) error {
	e, ok, err := r.read(ctx, boardID, connID)
	if err != nil || !ok {
		return err
	}
	now := r.now()
	e.FocusBlockID, e.FocusedAt, e.SeenAt = blockID, now, now
	return r.write(ctx, boardID, connID, e)
}

func (r *RedisPresence) Touch(ctx context.Context, boardID, connID string) error {
	e, ok, err := r.read(ctx, boardID, connID)
	if err != nil || !ok {
		return err
	}
	e.SeenAt = r.now()
	return r.write(ctx, boardID, connID, e)
}

func (r *RedisPresence) Leave(ctx context.Context, boardID, connID string) error {
	if err := r.client.HDel(ctx, r.key(boardID), connID).Err(); err != nil {
		return fmt.Errorf("remove presence: %w", err)
	}
	return nil
}

func (r *RedisPresence) List(ctx context.Context, boardID string) ([]Participant, error) {
	all, err := r.client.HGetAll(ctx, r.key(boardID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list presence: %w", err)
	}
	entries := make([]presenceEntry, 0, len(all))
	for _, raw := range all {
		var e presenceEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return collapse(entries, r.now()), nil
}
