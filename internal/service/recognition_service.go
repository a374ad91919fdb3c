package service

import (
	"context"
	"errors"
	"fmt"

	"yard-service/internal/model"
	"yard-service/internal/recognition"
	"yard-service/internal/session"
)

type ImageSubmitter interface {
	Submit(ctx context.Context, sessionID string, image []byte) error
}

// RecognitionService сессии распознавания для мобильной загрузки снимка
type RecognitionService struct {
	sessions session.Store
	runner   ImageSubmitter
}

func NewRecognitionService(sessions session.Store, runner ImageSubmitter) *RecognitionService {
	return &RecognitionService{
		sessions: sessions,
		runner:   runner,
	}
}

func (s *RecognitionService) StartSession(ctx context.Context) (model.RecognitionSession, error) {
	return s.sessions.Create(ctx)
}

func (s *RecognitionService) GetSession(ctx context.Context, id string) (model.RecognitionSession, error) {
	current, err := s.sessions.Get(ctx, id)
	if errors.Is(err, session.ErrNotFound) {
		return model.RecognitionSession{}, fmt.Errorf("%w: session", ErrNotFound)
	}
	return current, err
}

// SubmitImage принимает снимок и сразу возвращает управление; итог появится в сессии.
// Повторная отправка разрешена после завершения, но не пока идет распознавание:
// перевод в PROCESSING делает хранилище, поэтому из двух одновременных загрузок проходит одна.
func (s *RecognitionService) SubmitImage(ctx context.Context, id string, image []byte) error {
	if len(image) == 0 {
		return fmt.Errorf("%w: image is empty", ErrInvalidInput)
	}

	err := s.runner.Submit(ctx, id, image)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return fmt.Errorf("%w: session", ErrNotFound)
	case errors.Is(err, session.ErrInProgress):
		return fmt.Errorf("%w: %s", ErrConflict, session.ErrInProgress)
	case errors.Is(err, recognition.ErrQueueFull):
		return fmt.Errorf("%w: %s", ErrUnavailable, recognition.MessageQueueFull)
	case errors.Is(err, recognition.ErrStopped):
		return fmt.Errorf("%w: %s", ErrUnavailable, recognition.MessageShutdown)
	}
	return err
}
