//go:build !cgo

package ocr

import (
	"context"

	"github.com/rs/zerolog"
)

type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
}

// Tesseract без cgo: libtesseract недоступна, любой вызов возвращает ErrEngineUnavailable
type Tesseract struct {
	log zerolog.Logger
}

func NewTesseract(_ TesseractConfig, log zerolog.Logger) *Tesseract {
	return &Tesseract{log: log.With().Str("engine", "tesseract").Logger()}
}

func (t *Tesseract) Recognize(_ context.Context, _ []byte) (string, error) {
	return "", ErrEngineUnavailable
}
