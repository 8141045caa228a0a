package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrQueueClosed = errors.New("queue is closed")

// Queue is an in-memory job queue served by a fixed pool of workers.
// Jobs are lost on restart; callers re-publish from persisted state.
type Queue struct {
	jobChan     chan *ScreenshotJob
	closeChan   chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	closed      bool
	started     bool
	workerCount int
	maxRetries  int
	backoff     time.Duration
	log         zerolog.Logger
}

type Option func(*Queue)

// WithBackoff sets the base retry delay. Retry n waits n times this.
func WithBackoff(d time.Duration) Option {
	return func(q *Queue) { q.backoff = d }
}

// NewQueue creates a queue. bufferSize is how many jobs can wait before
// publishing blocks.
func NewQueue(log zerolog.Logger, bufferSize, workerCount, maxRetries int, opts ...Option) *Queue {
	if workerCount < 1 {
		workerCount = 1
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	q := &Queue{
		jobChan:     make(chan *ScreenshotJob, bufferSize),
		closeChan:   make(chan struct{}),
		workerCount: workerCount,
		maxRetries:  maxRetries,
		backoff:     time.Second,
		log:         log,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PublishScreenshot enqueues processing of a screenshot.
func (q *Queue) PublishScreenshot(ctx context.Context, screenshotID uint) error {
	return q.publish(ctx, &ScreenshotJob{
		JobID:        uuid.New().String(),
		ScreenshotID: screenshotID,
		Status:       JobStatusPending,
		CreatedAt:    time.Now(),
		MaxRetries:   q.maxRetries,
	})
}

func (q *Queue) publish(ctx context.Context, job *ScreenshotJob) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobChan <- job:
		q.log.Debug().Str("job_id", job.JobID).Uint("screenshot_id", job.ScreenshotID).Msg("Job enqueued")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return ErrQueueClosed
	}
}

// Start launches the workers. It returns immediately.
func (q *Queue) Start(ctx context.Context, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.started {
		return errors.New("queue already started")
	}
	q.started = true

	for i := 0; i < q.workerCount; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}
	q.log.Info().Int("workers", q.workerCount).Msg("Worker pool started")
	return nil
}

func (q *Queue) worker(ctx context.Context, handler Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			q.processJob(ctx, job, handler)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, job *ScreenshotJob, handler Handler) {
	log := q.log.With().Str("job_id", job.JobID).Uint("screenshot_id", job.ScreenshotID).Logger()

	job.Status = JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	err := q.run(ctx, job, handler)

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err == nil {
		job.Status = JobStatusCompleted
		job.Error = ""
		log.Info().Dur("duration", completedAt.Sub(now)).Msg("Job completed")
		return
	}

	job.Error = err.Error()
	if IsPermanent(err) || job.RetryCount >= job.MaxRetries {
		job.Status = JobStatusFailed
		log.Error().Err(err).Int("retry_count", job.RetryCount).Msg("Job failed")
		return
	}

	job.RetryCount++
	job.Status = JobStatusRetrying
	backoff := time.Duration(job.RetryCount) * q.backoff
	log.Warn().Err(err).Int("retry_count", job.RetryCount).Dur("backoff", backoff).Msg("Job failed, retrying")

	time.AfterFunc(backoff, func() {
		job.Status = JobStatusPending
		job.StartedAt = nil
		job.CompletedAt = nil
		if err := q.publish(ctx, job); err != nil {
			log.Warn().Err(err).Msg("Could not re-enqueue job")
		}
	})
}

// run calls the handler, turning a panic into an error so one bad
// screenshot cannot kill a worker.
func (q *Queue) run(ctx context.Context, job *ScreenshotJob, handler Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = Permanent(errors.New("handler panicked"))
			q.log.Error().Interface("panic", r).Uint("screenshot_id", job.ScreenshotID).Msg("Job handler panicked")
		}
	}()
	return handler(ctx, job)
}

// Stop closes the queue and waits for in-flight jobs, or for ctx to end.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
