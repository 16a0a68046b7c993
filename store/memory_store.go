package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BatmanBruc/file-share-bot/internal/adverify"
	"github.com/BatmanBruc/file-share-bot/types"
)

// MemoryStore keeps everything in process memory. It backs local runs
// without Postgres and the package tests; ad click transitions go through
// adverify.Transition so it follows the same rules as the SQL store.
type MemoryStore struct {
	mu        sync.Mutex
	files     map[int]types.FileRecord
	banned    map[int64]types.BannedUser
	users     map[int64]types.BotUser
	accesses  []types.FileAccess
	adStates  map[int64]types.AdClickState
	adDetails []types.AdClickDetail
	deletions map[string]types.ScheduledDeletion
	settings  []byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files:     make(map[int]types.FileRecord),
		banned:    make(map[int64]types.BannedUser),
		users:     make(map[int64]types.BotUser),
		adStates:  make(map[int64]types.AdClickState),
		deletions: make(map[string]types.ScheduledDeletion),
	}
}

func (m *MemoryStore) CreateFile(_ context.Context, file *types.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if file.CreatedAt.IsZero() {
		file.CreatedAt = time.Now().UTC()
	}
	m.files[file.MessageID] = *file
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, messageID int) (*types.FileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[messageID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &f, nil
}

func (m *MemoryStore) CountFiles(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files), nil
}

func (m *MemoryStore) IsBanned(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.banned[userID]
	return ok, nil
}

func (m *MemoryStore) BanUser(_ context.Context, ban types.BannedUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ban.BannedAt.IsZero() {
		ban.BannedAt = time.Now().UTC()
	}
	m.banned[ban.UserID] = ban
	return nil
}

func (m *MemoryStore) UnbanUser(_ context.Context, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.banned[userID]
	delete(m.banned, userID)
	return ok, nil
}

func (m *MemoryStore) TouchUser(_ context.Context, user types.BotUser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.users[user.UserID]
	if ok {
		user.AccessCount = prev.AccessCount + 1
		user.FirstSeen = prev.FirstSeen
	} else {
		user.AccessCount = 1
		user.FirstSeen = user.LastActive
	}
	m.users[user.UserID] = user
	return nil
}

func (m *MemoryStore) User(userID int64) (types.BotUser, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	return u, ok
}

func (m *MemoryStore) RecordFileAccess(_ context.Context, access types.FileAccess) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accesses = append(m.accesses, access)
	return nil
}

func (m *MemoryStore) FileAccesses() []types.FileAccess {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.FileAccess(nil), m.accesses...)
}

func (m *MemoryStore) CountUsers(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users), nil
}

func (m *MemoryStore) GetAdClickState(_ context.Context, userID int64) (*types.AdClickState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.adStates[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	st.History = append([]types.AdHistoryEntry(nil), st.History...)
	return &st, nil
}

// PutAdClickState replaces a user's state as-is.
func (m *MemoryStore) PutAdClickState(st types.AdClickState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adStates[st.UserID] = st
}

func (m *MemoryStore) TouchFileAccess(_ context.Context, userID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.adStates[userID]
	if !ok {
		st = types.AdClickState{UserID: userID, CreatedAt: at}
	}
	st.LastFileAccess = &at
	m.adStates[userID] = st
	return nil
}

func (m *MemoryStore) BeginAdAttempt(_ context.Context, userID int64, fileParam string, at time.Time) error {
	_, err := m.transition(userID, adverify.EventAttempt, fileParam, at)
	return err
}

func (m *MemoryStore) MarkAdClicked(_ context.Context, userID int64, fileParam string, at time.Time) (bool, error) {
	return m.transition(userID, adverify.EventClick, fileParam, at)
}

func (m *MemoryStore) MarkAdVerified(_ context.Context, userID int64, at time.Time) (bool, error) {
	return m.transition(userID, adverify.EventVerify, "", at)
}

func (m *MemoryStore) MarkAdConverted(_ context.Context, userID int64, at time.Time) (bool, error) {
	return m.transition(userID, adverify.EventConvert, "", at)
}

func (m *MemoryStore) transition(userID int64, ev adverify.Event, fileParam string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.adStates[userID]
	if !ok {
		if ev != adverify.EventAttempt {
			return false, nil
		}
		st = types.AdClickState{UserID: userID}
	}
	next, err := adverify.Transition(st, ev, fileParam, at)
	if err == adverify.ErrInvalidTransition {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.adStates[userID] = next
	return true, nil
}

func (m *MemoryStore) SaveAdClickDetail(_ context.Context, detail types.AdClickDetail) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adDetails = append(m.adDetails, detail)
	return nil
}

func (m *MemoryStore) AdClickDetails() []types.AdClickDetail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.AdClickDetail(nil), m.adDetails...)
}

func (m *MemoryStore) ScheduleDeletion(_ context.Context, d *types.ScheduledDeletion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	m.deletions[d.ID] = *d
	return nil
}

func (m *MemoryStore) DueDeletions(_ context.Context, now time.Time, limit int) ([]types.ScheduledDeletion, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := make([]types.ScheduledDeletion, 0)
	for _, d := range m.deletions {
		if !d.DeleteAt.After(now) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].DeleteAt.Equal(due[j].DeleteAt) {
			return due[i].CreatedAt.Before(due[j].CreatedAt)
		}
		return due[i].DeleteAt.Before(due[j].DeleteAt)
	})
	if limit < 0 {
		limit = 0
	}
	if len(due) <= limit {
		return due, 0, nil
	}
	return due[:limit], len(due) - limit, nil
}

func (m *MemoryStore) RemoveDeletion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.deletions, id)
	return nil
}

func (m *MemoryStore) CountPendingDeletions(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.deletions), nil
}

func (m *MemoryStore) Deletions() []types.ScheduledDeletion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]types.ScheduledDeletion, 0, len(m.deletions))
	for _, d := range m.deletions {
		out = append(out, d)
	}
	return out
}

// SaveSettings merges doc into the stored settings document.
func (m *MemoryStore) SaveSettings(_ context.Context, doc map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	merged := make(map[string]any)
	if len(m.settings) > 0 {
		if err := json.Unmarshal(m.settings, &merged); err != nil {
			return err
		}
	}
	for k, v := range doc {
		merged[k] = v
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return err
	}
	m.settings = data
	return nil
}

func (m *MemoryStore) LoadSettings(_ context.Context, base types.Settings) (types.Settings, error) {
	m.mu.Lock()
	data := m.settings
	m.mu.Unlock()
	if len(data) == 0 {
		return base, nil
	}
	if err := json.Unmarshal(data, &base); err != nil {
		return base, err
	}
	return base, nil
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}
