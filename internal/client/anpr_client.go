package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"yard-service/internal/config"
	"yard-service/internal/ocr"
)

type ANPRRecognition struct {
	Plate      string  `json:"plate"`
	Confidence float64 `json:"confidence"`
}

type ANPRRecognitionResponse struct {
	Data ANPRRecognition `json:"data"`
}

// ANPRClient распознает номера через внутренний ANPR-сервис
type ANPRClient struct {
	baseURL       string
	internalToken string
	httpClient    *http.Client
	retryDelay    time.Duration
}

func NewANPRClient(cfg *config.Config) *ANPRClient {
	return &ANPRClient{
		baseURL:       cfg.ExternalServices.ANPRServiceURL,
		internalToken: cfg.ExternalServices.ANPRInternalToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: 500 * time.Millisecond,
	}
}

// Recognize отправляет изображение в ANPR-сервис и возвращает распознанный текст номера
func (c *ANPRClient) Recognize(ctx context.Context, image []byte) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("%w: ANPR service URL is not configured", ocr.ErrEngineUnavailable)
	}
	if len(image) == 0 {
		return "", fmt.Errorf("empty image")
	}

	endpoint := c.baseURL + "/internal/anpr/recognize"

	// Выполняем запрос с retry при сетевых ошибках
	var resp *http.Response
	var lastErr error
	maxRetries := 3
	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := c.newRequest(ctx, endpoint, image)
		if err != nil {
			return "", err
		}
		resp, lastErr = c.httpClient.Do(req)
		if lastErr == nil {
			break
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if attempt == maxRetries-1 {
			return "", fmt.Errorf("failed to execute request after %d attempts: %w", maxRetries, lastErr)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(time.Duration(attempt+1) * c.retryDelay):
		}
	}
	if resp == nil {
		return "", fmt.Errorf("failed to execute request: %w", lastErr)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusUnprocessableEntity:
		return "", ocr.ErrNoPlate
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("ANPR service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response ANPRRecognitionResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	plate := strings.TrimSpace(response.Data.Plate)
	if plate == "" {
		return "", ocr.ErrNoPlate
	}
	return plate, nil
}

func (c *ANPRClient) newRequest(ctx context.Context, endpoint string, image []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.internalToken != "" {
		req.Header.Set("X-Internal-Token", c.internalToken)
	}
	return req, nil
}
