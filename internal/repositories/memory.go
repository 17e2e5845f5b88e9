package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"dm-service/internal/apperr"
	"dm-service/internal/models"
)

// MemoryMessageRepo is an in-process MessageRepository for development and tests.
type MemoryMessageRepo struct {
	mu   sync.RWMutex
	msgs []models.Message
	now  func() time.Time
}

// NewMemoryMessageRepo constructs an empty store. A nil clock uses time.Now.
func NewMemoryMessageRepo(now func() time.Time) *MemoryMessageRepo {
	if now == nil {
		now = time.Now
	}
	return &MemoryMessageRepo{now: now}
}

func (r *MemoryMessageRepo) AppendMessage(_ context.Context, in models.NewMessage) (models.Message, error) {
	if err := in.Validate(); err != nil {
		return models.Message{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if in.ReplyToID != nil {
		if _, ok := r.get(*in.ReplyToID); !ok {
			return models.Message{}, apperr.Validation("reply target does not exist")
		}
	}
	msg := models.Message{
		ID:          int64(len(r.msgs) + 1),
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Body:        copyString(in.Body),
		Kind:        in.Kind,
		MediaRef:    copyString(in.MediaRef),
		ReplyToID:   in.ReplyToID,
		IsEncrypted: in.IsEncrypted,
		CreatedAt:   r.now(),
	}
	r.msgs = append(r.msgs, msg)
	return r.withReply(msg), nil
}

func (r *MemoryMessageRepo) ListMessages(_ context.Context, readerID, partnerID, page, pageSize int) ([]models.Message, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var between []models.Message
	for _, m := range r.msgs {
		if isBetween(m, readerID, partnerID) {
			between = append(between, r.withReply(m))
		}
	}
	sortNewestFirst(between)

	start := (page - 1) * pageSize
	if start > len(between) {
		start = len(between)
	}
	end := start + pageSize
	if end > len(between) {
		end = len(between)
	}
	window := between[start:end]
	out := make([]models.Message, len(window))
	for i, m := range window {
		out[len(window)-1-i] = m
	}

	for i := range r.msgs {
		m := &r.msgs[i]
		if m.SenderID == partnerID && m.ReceiverID == readerID && !m.IsRead {
			m.IsRead = true
			m.IsDelivered = true
		}
	}
	return out, len(between), nil
}

func (r *MemoryMessageRepo) GetMessage(_ context.Context, messageID int64) (models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	msg, ok := r.get(messageID)
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	return r.withReply(*msg), nil
}

func (r *MemoryMessageRepo) EditMessage(_ context.Context, messageID int64, actorID int, body string) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.get(messageID)
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if err := checkEditable(*msg, actorID, body); err != nil {
		return models.Message{}, err
	}
	msg.Body = &body
	msg.IsEdited = true
	return r.withReply(*msg), nil
}

func (r *MemoryMessageRepo) SoftDeleteMessage(_ context.Context, messageID int64, actorID int) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.get(messageID)
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.SenderID != actorID {
		return models.Message{}, apperr.Forbidden("only the sender can delete this message")
	}
	tombstone := models.DeletedBody
	msg.Body = &tombstone
	msg.IsDeleted = true
	return r.withReply(*msg), nil
}

func (r *MemoryMessageRepo) MarkDelivered(_ context.Context, messageID int64, actorID int) (models.Message, error) {
	return r.acknowledge(messageID, actorID, false)
}

func (r *MemoryMessageRepo) MarkRead(_ context.Context, messageID int64, actorID int) (models.Message, error) {
	return r.acknowledge(messageID, actorID, true)
}

func (r *MemoryMessageRepo) acknowledge(messageID int64, actorID int, read bool) (models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg, ok := r.get(messageID)
	if !ok {
		return models.Message{}, ErrMessageNotFound
	}
	if msg.ReceiverID != actorID {
		return models.Message{}, apperr.Forbidden("only the receiver can acknowledge this message")
	}
	msg.IsDelivered = true
	if read {
		msg.IsRead = true
	}
	return r.withReply(*msg), nil
}

func (r *MemoryMessageRepo) UnreadCount(_ context.Context, fromID, toID int) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	count := 0
	for _, m := range r.msgs {
		if m.SenderID == fromID && m.ReceiverID == toID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *MemoryMessageRepo) LastMessage(_ context.Context, userA, userB int) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var last *models.Message
	for i := range r.msgs {
		m := r.msgs[i]
		if !isBetween(m, userA, userB) {
			continue
		}
		if last == nil || newer(m, *last) {
			last = &m
		}
	}
	if last == nil {
		return nil, nil
	}
	msg := r.withReply(*last)
	return &msg, nil
}

func (r *MemoryMessageRepo) PartnerIDs(_ context.Context, userID int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := map[int]struct{}{}
	var ids []int
	for _, m := range r.msgs {
		if m.SenderID != userID && m.ReceiverID != userID {
			continue
		}
		partner := m.Partner(userID)
		if _, ok := seen[partner]; ok {
			continue
		}
		seen[partner] = struct{}{}
		ids = append(ids, partner)
	}
	return ids, nil
}

func (r *MemoryMessageRepo) get(id int64) (*models.Message, bool) {
	if id <= 0 || id > int64(len(r.msgs)) {
		return nil, false
	}
	return &r.msgs[id-1], true
}

func (r *MemoryMessageRepo) withReply(m models.Message) models.Message {
	m.Body = copyString(m.Body)
	if m.ReplyToID != nil {
		if target, ok := r.get(*m.ReplyToID); ok {
			m.ReplyTo = target.Summary()
			m.ReplyTo.Body = copyString(target.Body)
		}
	}
	return m
}

func isBetween(m models.Message, a, b int) bool {
	return (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a)
}

func newer(a, b models.Message) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortNewestFirst(msgs []models.Message) {
	sort.SliceStable(msgs, func(i, j int) bool { return newer(msgs[i], msgs[j]) })
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

type blockKey struct {
	blocker int
	blocked int
}

// MemoryBlockRepo is an in-process BlockRepository.
type MemoryBlockRepo struct {
	mu     sync.RWMutex
	order  []blockKey
	blocks map[blockKey]struct{}
}

func NewMemoryBlockRepo() *MemoryBlockRepo {
	return &MemoryBlockRepo{blocks: make(map[blockKey]struct{})}
}

func (r *MemoryBlockRepo) Block(_ context.Context, blockerID, blockedID int) (bool, error) {
	if blockerID == blockedID {
		return false, apperr.Validation("cannot block yourself")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockKey{blockerID, blockedID}
	if _, ok := r.blocks[key]; ok {
		return false, nil
	}
	r.blocks[key] = struct{}{}
	r.order = append(r.order, key)
	return true, nil
}

func (r *MemoryBlockRepo) Unblock(_ context.Context, blockerID, blockedID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := blockKey{blockerID, blockedID}
	if _, ok := r.blocks[key]; !ok {
		return nil
	}
	delete(r.blocks, key)
	for i, k := range r.order {
		if k == key {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *MemoryBlockRepo) IsBlockedEitherDirection(_ context.Context, userA, userB int) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ab := r.blocks[blockKey{userA, userB}]
	_, ba := r.blocks[blockKey{userB, userA}]
	return ab || ba, nil
}

func (r *MemoryBlockRepo) ListBlockedBy(_ context.Context, userID int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int
	for i := len(r.order) - 1; i >= 0; i-- {
		if r.order[i].blocker == userID {
			ids = append(ids, r.order[i].blocked)
		}
	}
	return ids, nil
}

func (r *MemoryBlockRepo) BlockedPartners(_ context.Context, userID int) ([]int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var ids []int
	for _, k := range r.order {
		switch userID {
		case k.blocker:
			ids = append(ids, k.blocked)
		case k.blocked:
			ids = append(ids, k.blocker)
		}
	}
	return ids, nil
}

// MemoryUserRepo is an in-process UserDirectory seeded by Put.
type MemoryUserRepo struct {
	mu    sync.RWMutex
	users map[int]models.User
	now   func() time.Time
}

func NewMemoryUserRepo(now func() time.Time) *MemoryUserRepo {
	if now == nil {
		now = time.Now
	}
	return &MemoryUserRepo{users: make(map[int]models.User), now: now}
}

// Put inserts or replaces a user.
func (r *MemoryUserRepo) Put(user models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
}

func (r *MemoryUserRepo) Resolve(_ context.Context, userID int) (models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[userID]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *MemoryUserRepo) ResolveMany(_ context.Context, ids []int) (map[int]models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[int]models.User, len(ids))
	for _, id := range ids {
		if user, ok := r.users[id]; ok {
			result[id] = user
		}
	}
	return result, nil
}

func (r *MemoryUserRepo) SetOnline(_ context.Context, userID int, online bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	seen := r.now()
	user.IsOnline = online
	user.LastSeen = &seen
	r.users[userID] = user
	return nil
}

var (
	_ MessageRepository = (*MessageRepo)(nil)
	_ MessageRepository = (*MemoryMessageRepo)(nil)
	_ BlockRepository   = (*BlockRepo)(nil)
	_ BlockRepository   = (*MemoryBlockRepo)(nil)
	_ UserDirectory     = (*UserRepo)(nil)
	_ UserDirectory     = (*MemoryUserRepo)(nil)
)
