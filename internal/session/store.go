package session

import (
	"context"
	"errors"
	"time"

	"yard-service/internal/model"
)

var (
	ErrNotFound   = errors.New("session not found")
	ErrInProgress = errors.New("recognition already in progress")
)

const DefaultTTL = 30 * time.Minute

// Store хранит сессии распознавания.
// MarkProcessing атомарно переводит сессию в PROCESSING: для неизвестной сессии возвращает ErrNotFound,
// для уже обрабатываемой ErrInProgress. MarkCompleted и MarkError для неизвестной или истекшей
// сессии ничего не делают и не возвращают ошибку.
type Store interface {
	Create(ctx context.Context) (model.RecognitionSession, error)
	Get(ctx context.Context, id string) (model.RecognitionSession, error)
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, plate string) error
	MarkError(ctx context.Context, id, message string) error
}

type transition func(session model.RecognitionSession, now time.Time) (model.RecognitionSession, error)

func startProcessing(session model.RecognitionSession, now time.Time) (model.RecognitionSession, error) {
	if session.Status == model.SessionStatusProcessing {
		return session, ErrInProgress
	}
	return session.Processing(now), nil
}

func complete(plate string) transition {
	return func(session model.RecognitionSession, now time.Time) (model.RecognitionSession, error) {
		return session.Completed(plate, now), nil
	}
}

func fail(message string) transition {
	return func(session model.RecognitionSession, now time.Time) (model.RecognitionSession, error) {
		return session.Failed(message, now), nil
	}
}

func ignoreMissing(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
