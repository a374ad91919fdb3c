package recognition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"yard-service/internal/metrics"
	"yard-service/internal/ocr"
	"yard-service/internal/ports"
	"yard-service/internal/utils"
)

var (
	ErrQueueFull = errors.New("recognition queue is full")
	ErrStopped   = errors.New("recognition runner stopped")

	errRecognizerPanic = errors.New("recognizer panicked")
)

// Сообщения, которые видит клиент. Исходная причина пишется только в лог.
const (
	MessageNoPlate   = "no valid plate recognized"
	MessageTimeout   = "recognition timed out"
	MessageFailed    = "recognition failed"
	MessageQueueFull = "recognition queue is full"
	MessageShutdown  = "recognition service is shutting down"
)

const (
	defaultWorkers    = 4
	defaultQueueSize  = 64
	defaultTimeout    = 20 * time.Second
	storeWriteTimeout = 5 * time.Second
)

// SessionWriter часть хранилища сессий, нужная раннеру
type SessionWriter interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id, plate string) error
	MarkError(ctx context.Context, id, message string) error
}

type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type job struct {
	sessionID string
	image     []byte
}

type result struct {
	text string
	err  error
}

// Runner передает изображения движку OCR на пуле воркеров с ограниченной очередью.
// Любой исход задачи, включая панику движка, заканчивается COMPLETED или ERROR в хранилище.
type Runner struct {
	sessions   SessionWriter
	recognizer ports.Recognizer
	cfg        Config
	log        zerolog.Logger

	jobs   chan job
	mu     sync.RWMutex
	closed bool
}

func NewRunner(sessions SessionWriter, recognizer ports.Recognizer, cfg Config, log zerolog.Logger) *Runner {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	return &Runner{
		sessions:   sessions,
		recognizer: recognizer,
		cfg:        cfg,
		log:        log.With().Str("component", "recognition_runner").Logger(),
		jobs:       make(chan job, cfg.QueueSize),
	}
}

// Submit переводит сессию в PROCESSING и ставит изображение в очередь, не дожидаясь OCR.
// Если очередь заполнена, сессия сразу получает ERROR и возвращается ErrQueueFull.
func (r *Runner) Submit(ctx context.Context, sessionID string, image []byte) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStopped
	}

	if err := r.sessions.MarkProcessing(ctx, sessionID); err != nil {
		return fmt.Errorf("mark session processing: %w", err)
	}

	select {
	case r.jobs <- job{sessionID: sessionID, image: image}:
		metrics.RecognitionQueueDepth.Inc()
		return nil
	default:
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeRejected).Inc()
		r.log.Warn().Str("session_id", sessionID).Int("queue_size", r.cfg.QueueSize).Msg("recognition queue is full")
		r.finish(ctx, sessionID, "", MessageQueueFull)
		return ErrQueueFull
	}
}

// Run запускает воркеры и блокируется до отмены ctx.
// Задачи в работе дорабатывают в пределах своего таймаута, оставшиеся в очереди получают ERROR.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info().Int("workers", r.cfg.Workers).Int("queue_size", r.cfg.QueueSize).
		Dur("timeout", r.cfg.Timeout).Msg("recognition runner started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Workers; i++ {
		g.Go(func() error {
			r.work(gctx)
			return nil
		})
	}

	<-ctx.Done()
	r.stop()
	err := g.Wait()
	aborted := r.drain(ctx)

	r.log.Info().Int("aborted", aborted).Msg("recognition runner stopped")
	return err
}

func (r *Runner) work(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ctx.Done():
			return
		case j, ok := <-r.jobs:
			if !ok {
				return
			}
			metrics.RecognitionQueueDepth.Dec()
			r.process(ctx, j)
		}
	}
}

func (r *Runner) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		close(r.jobs)
	}
}

func (r *Runner) drain(ctx context.Context) int {
	aborted := 0
	for j := range r.jobs {
		metrics.RecognitionQueueDepth.Dec()
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeAborted).Inc()
		r.finish(ctx, j.sessionID, "", MessageShutdown)
		aborted++
	}
	return aborted
}

func (r *Runner) process(ctx context.Context, j job) {
	log := r.log.With().Str("session_id", j.sessionID).Logger()

	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.Timeout)
	defer cancel()

	started := time.Now()
	text, err := r.recognize(jobCtx, j.image)
	metrics.RecognitionDuration.Observe(time.Since(started).Seconds())

	switch {
	case errors.Is(err, errRecognizerPanic):
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomePanic).Inc()
		log.Error().Err(err).Msg("recognizer crashed")
		r.finish(ctx, j.sessionID, "", MessageFailed)
		return
	case errors.Is(err, context.DeadlineExceeded):
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeTimeout).Inc()
		log.Warn().Dur("timeout", r.cfg.Timeout).Msg("recognition timed out")
		r.finish(ctx, j.sessionID, "", MessageTimeout)
		return
	case errors.Is(err, ocr.ErrNoPlate):
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeNoPlate).Inc()
		log.Info().Msg("engine found no plate")
		r.finish(ctx, j.sessionID, "", MessageNoPlate)
		return
	case err != nil:
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error().Err(err).Msg("recognition failed")
		r.finish(ctx, j.sessionID, "", MessageFailed)
		return
	}

	candidate := utils.NormalizePlateCandidate(text)
	if !candidate.Valid() {
		metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeNoPlate).Inc()
		log.Info().Str("raw", text).Msg("recognized text is too short for a plate")
		r.finish(ctx, j.sessionID, "", MessageNoPlate)
		return
	}

	if candidate.LowConfidence {
		log.Warn().Str("raw", text).Str("plate", candidate.Canonical).Msg("plate normalized with forced digits")
	}
	metrics.RecognitionJobs.WithLabelValues(metrics.OutcomeCompleted).Inc()
	log.Info().Str("plate", candidate.Canonical).Msg("plate recognized")
	r.finish(ctx, j.sessionID, candidate.Canonical, "")
}

// recognize вызывает движок в отдельной горутине, чтобы таймаут срабатывал
// даже если движок не смотрит на ctx, а паника не роняла воркер
func (r *Runner) recognize(ctx context.Context, image []byte) (string, error) {
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("%w: %v", errRecognizerPanic, p)}
			}
		}()
		text, err := r.recognizer.Recognize(ctx, image)
		done <- result{text: text, err: err}
	}()

	select {
	case res := <-done:
		// движок, убитый по дедлайну, возвращает свою ошибку; это все равно таймаут
		if res.err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// finish пишет итог сессии; запись не зависит от отмены ctx вызывающего
func (r *Runner) finish(ctx context.Context, sessionID, plate, message string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), storeWriteTimeout)
	defer cancel()

	var err error
	if message == "" {
		err = r.sessions.MarkCompleted(writeCtx, sessionID, plate)
	} else {
		err = r.sessions.MarkError(writeCtx, sessionID, message)
	}
	if err != nil {
		r.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to store recognition result")
	}
}
