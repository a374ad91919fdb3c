package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"yard-service/internal/model"
)

const (
	defaultKeyPrefix  = "yard:ocr-session:"
	maxUpdateAttempts = 5
)

// RedisStore хранит сессии как JSON с TTL.
// Обновления идут через WATCH и SET XX, поэтому истекшая сессия не воскресает,
// а два конкурентных перехода не затирают друг друга.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) Create(ctx context.Context) (model.RecognitionSession, error) {
	now := s.now()
	session := model.RecognitionSession{
		ID:        uuid.NewString(),
		Status:    model.SessionStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	payload, err := json.Marshal(session)
	if err != nil {
		return model.RecognitionSession{}, err
	}
	if err := s.client.Set(ctx, s.key(session.ID), payload, s.ttl).Err(); err != nil {
		return model.RecognitionSession{}, fmt.Errorf("save session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (model.RecognitionSession, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	return decodeSession(payload, err)
}

func (s *RedisStore) MarkProcessing(ctx context.Context, id string) error {
	return s.update(ctx, id, startProcessing)
}

func (s *RedisStore) MarkCompleted(ctx context.Context, id, plate string) error {
	return ignoreMissing(s.update(ctx, id, complete(plate)))
}

func (s *RedisStore) MarkError(ctx context.Context, id, message string) error {
	return ignoreMissing(s.update(ctx, id, fail(message)))
}

// update читает и переписывает сессию под WATCH: если ключ изменился между GET и EXEC,
// транзакция отменяется и переход проверяется заново на свежем снимке
func (s *RedisStore) update(ctx context.Context, id string, apply transition) error {
	key := s.key(id)
	txf := func(tx *redis.Tx) error {
		session, err := decodeSession(tx.Get(ctx, key).Bytes())
		if err != nil {
			return err
		}
		next, err := apply(session, s.now())
		if err != nil {
			return err
		}
		payload, err := json.Marshal(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetXX(ctx, key, payload, s.ttl)
			return nil
		})
		// redis.Nil от SET XX означает, что ключ успел истечь
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrInProgress) {
			return fmt.Errorf("update session: %w", err)
		}
		return err
	}
	return fmt.Errorf("update session: %w", redis.TxFailedErr)
}

func decodeSession(payload []byte, err error) (model.RecognitionSession, error) {
	if errors.Is(err, redis.Nil) {
		return model.RecognitionSession{}, ErrNotFound
	}
	if err != nil {
		return model.RecognitionSession{}, fmt.Errorf("load session: %w", err)
	}

	var session model.RecognitionSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return model.RecognitionSession{}, fmt.Errorf("decode session: %w", err)
	}
	return session, nil
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}
