package model

import "time"

type SessionStatus string

const (
	SessionStatusPending    SessionStatus = "PENDING"
	SessionStatusProcessing SessionStatus = "PROCESSING"
	SessionStatusCompleted  SessionStatus = "COMPLETED"
	SessionStatusError      SessionStatus = "ERROR"
)

// RecognitionSession снимок одной попытки распознавания номера.
// Снимок не изменяется после создания: каждое обновление заменяет его целиком.
type RecognitionSession struct {
	ID              string        `json:"session_id"`
	Status          SessionStatus `json:"status"`
	RecognizedPlate *string       `json:"recognized_plate"`
	ErrorMessage    *string       `json:"error_message"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

func (s RecognitionSession) Processing(now time.Time) RecognitionSession {
	s.Status = SessionStatusProcessing
	s.RecognizedPlate = nil
	s.ErrorMessage = nil
	s.UpdatedAt = now
	return s
}

func (s RecognitionSession) Completed(plate string, now time.Time) RecognitionSession {
	s.Status = SessionStatusCompleted
	s.RecognizedPlate = &plate
	s.ErrorMessage = nil
	s.UpdatedAt = now
	return s
}

func (s RecognitionSession) Failed(message string, now time.Time) RecognitionSession {
	s.Status = SessionStatusError
	s.RecognizedPlate = nil
	s.ErrorMessage = &message
	s.UpdatedAt = now
	return s
}
