package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// matches_template дает кандидату небольшой приоритет над равными по уверенности
const templateBonus = 2.0

// Признаки отсутствующего профиля страны в выводе alpr
var missingProfileMarkers = []string{
	"cpu classifier",
	"error loading",
	"missing config for the country",
	"br.xml",
}

type OpenALPRConfig struct {
	Command        string
	Region         string
	FallbackRegion string
	TopN           int
	MinConfidence  float64
}

// OpenALPR запускает CLI alpr на временном файле и выбирает лучший номер из JSON-вывода
type OpenALPR struct {
	cfg OpenALPRConfig
	log zerolog.Logger
	run func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func NewOpenALPR(cfg OpenALPRConfig, log zerolog.Logger) *OpenALPR {
	if cfg.Command == "" {
		cfg.Command = "alpr"
	}
	if cfg.Region == "" {
		cfg.Region = "br"
	}
	if cfg.TopN <= 0 {
		cfg.TopN = 10
	}
	return &OpenALPR{
		cfg: cfg,
		log: log.With().Str("engine", "openalpr").Logger(),
		run: combinedOutput,
	}
}

func combinedOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func (a *OpenALPR) Recognize(ctx context.Context, image []byte) (string, error) {
	tmp, err := os.CreateTemp("", "yard-plate-*.jpg")
	if err != nil {
		return "", fmt.Errorf("create temp image: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(image); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp image: %w", err)
	}

	plate, output, err := a.runOnce(ctx, tmp.Name(), a.cfg.Region)
	if err == nil {
		return plate, nil
	}

	if a.cfg.FallbackRegion == "" || a.cfg.FallbackRegion == a.cfg.Region || !needsFallback(output) {
		return "", err
	}

	a.log.Warn().Err(err).Str("region", a.cfg.Region).Str("fallback", a.cfg.FallbackRegion).
		Msg("region profile failed, retrying with fallback")
	plate, _, err = a.runOnce(ctx, tmp.Name(), a.cfg.FallbackRegion)
	return plate, err
}

func (a *OpenALPR) runOnce(ctx context.Context, path, region string) (string, string, error) {
	args := []string{"-j", "-c", region, "-n", strconv.Itoa(a.cfg.TopN), path}
	a.log.Debug().Str("command", a.cfg.Command).Strs("args", args).Msg("running alpr")

	out, err := a.run(ctx, a.cfg.Command, args...)
	output := string(out)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", output, ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", output, fmt.Errorf("alpr exited with code %d (%s)", exitErr.ExitCode(), region)
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", output, fmt.Errorf("%w: %v", ErrEngineUnavailable, err)
		}
		return "", output, fmt.Errorf("run alpr (%s): %w", region, err)
	}

	plate, err := BestALPRPlate(out, a.cfg.MinConfidence)
	if err != nil {
		return "", output, err
	}
	return plate, output, nil
}

func needsFallback(output string) bool {
	lower := strings.ToLower(output)
	for _, marker := range missingProfileMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

type alprOutput struct {
	Results []alprResult `json:"results"`
}

type alprResult struct {
	Plate      string          `json:"plate"`
	Confidence float64         `json:"confidence"`
	Candidates []alprCandidate `json:"candidates"`
}

type alprCandidate struct {
	Plate           string  `json:"plate"`
	Confidence      float64 `json:"confidence"`
	MatchesTemplate int     `json:"matches_template"`
}

// BestALPRPlate разбирает вывод `alpr -j` (допускается мусор до и после JSON)
// и возвращает номер с наибольшим счетом среди результатов и кандидатов с уверенностью >= minConfidence
func BestALPRPlate(output []byte, minConfidence float64) (string, error) {
	start := bytes.IndexByte(output, '{')
	end := bytes.LastIndexByte(output, '}')
	if start < 0 || end <= start {
		return "", errors.New("alpr output contains no json")
	}

	var parsed alprOutput
	if err := json.Unmarshal(output[start:end+1], &parsed); err != nil {
		return "", fmt.Errorf("decode alpr output: %w", err)
	}

	bestScore := -1.0
	bestPlate := ""
	for _, result := range parsed.Results {
		if result.Plate != "" && result.Confidence >= minConfidence && result.Confidence > bestScore {
			bestScore = result.Confidence
			bestPlate = result.Plate
		}
		for _, candidate := range result.Candidates {
			score := candidate.Confidence
			if candidate.MatchesTemplate == 1 {
				score += templateBonus
			}
			if candidate.Plate != "" && candidate.Confidence >= minConfidence && score > bestScore {
				bestScore = score
				bestPlate = candidate.Plate
			}
		}
	}

	if bestPlate == "" {
		return "", ErrNoPlate
	}
	return bestPlate, nil
}
