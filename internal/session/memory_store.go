package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"yard-service/internal/model"
)

type Option func(*MemoryStore)

func WithTTL(ttl time.Duration) Option {
	return func(s *MemoryStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

// MemoryStore хранит снимки сессий в карте под одним RWMutex.
// Каждое обновление заменяет снимок целиком, поэтому читатель видит либо старое, либо новое состояние.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.RecognitionSession
	ttl      time.Duration
	now      func() time.Time
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		sessions: make(map[string]model.RecognitionSession),
		ttl:      DefaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Create(_ context.Context) (model.RecognitionSession, error) {
	now := s.now()
	session := model.RecognitionSession{
		ID:        uuid.NewString(),
		Status:    model.SessionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.sessions[session.ID] = session
	s.mu.Unlock()
	return session, nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.RecognitionSession, error) {
	s.mu.RLock()
	session, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || s.expired(session) {
		return model.RecognitionSession{}, ErrNotFound
	}
	return session, nil
}

func (s *MemoryStore) MarkProcessing(_ context.Context, id string) error {
	return s.update(id, startProcessing)
}

func (s *MemoryStore) MarkCompleted(_ context.Context, id, plate string) error {
	return ignoreMissing(s.update(id, complete(plate)))
}

func (s *MemoryStore) MarkError(_ context.Context, id, message string) error {
	return ignoreMissing(s.update(id, fail(message)))
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep удаляет истекшие сессии и возвращает их количество
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

// Run периодически вызывает Sweep до отмены ctx
func (s *MemoryStore) Run(ctx context.Context, interval time.Duration, log zerolog.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				log.Debug().Int("removed", removed).Int("active", s.Len()).Msg("expired recognition sessions swept")
			}
		}
	}
}

// update проверяет и применяет переход под общей блокировкой
func (s *MemoryStore) update(id string, apply transition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[id]
	if !ok || s.expired(session) {
		return ErrNotFound
	}
	next, err := apply(session, s.now())
	if err != nil {
		return err
	}
	s.sessions[id] = next
	return nil
}

func (s *MemoryStore) expired(session model.RecognitionSession) bool {
	return s.now().Sub(session.UpdatedAt) > s.ttl
}
