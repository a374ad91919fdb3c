//go:build cgo

package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
	"github.com/rs/zerolog"
)

const plateWhitelist = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type TesseractConfig struct {
	Languages      []string
	TessdataPrefix string
}

// Tesseract распознает номер через libtesseract.
// Сначала режим одной строки, при пустом результате режим одного блока.
type Tesseract struct {
	cfg TesseractConfig
	log zerolog.Logger
}

func NewTesseract(cfg TesseractConfig, log zerolog.Logger) *Tesseract {
	if len(cfg.Languages) == 0 {
		cfg.Languages = []string{"por", "eng"}
	}
	return &Tesseract{cfg: cfg, log: log.With().Str("engine", "tesseract").Logger()}
}

func (t *Tesseract) Recognize(ctx context.Context, image []byte) (string, error) {
	prepared, err := PrepareImage(image)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	client := gosseract.NewClient()
	defer client.Close()

	if t.cfg.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(t.cfg.TessdataPrefix); err != nil {
			return "", fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := client.SetLanguage(t.cfg.Languages...); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	if err := client.SetWhitelist(plateWhitelist); err != nil {
		return "", fmt.Errorf("set whitelist: %w", err)
	}
	if err := client.SetImageFromBytes(prepared); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}

	text := t.pass(client, gosseract.PSM_SINGLE_LINE)
	if strings.TrimSpace(text) == "" {
		t.log.Debug().Msg("single line pass returned nothing, trying single block")
		text = t.pass(client, gosseract.PSM_SINGLE_BLOCK)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	plate := ExtractPlateText(text)
	if plate == "" {
		return "", ErrNoPlate
	}
	return plate, nil
}

// pass ошибка одного прохода не фатальна: пустой текст означает переход к следующему режиму
func (t *Tesseract) pass(client *gosseract.Client, mode gosseract.PageSegMode) string {
	if err := client.SetPageSegMode(mode); err != nil {
		t.log.Warn().Err(err).Msg("set page segmentation mode")
		return ""
	}
	text, err := client.Text()
	if err != nil {
		t.log.Warn().Err(err).Msg("tesseract pass failed")
		return ""
	}
	return text
}
