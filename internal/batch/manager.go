package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"video-parser/pkg/models"
)

var (
	ErrNoItems      = errors.New("batch contains no urls")
	ErrTooManyItems = errors.New("batch exceeds the item limit")
	ErrJobNotFound  = errors.New("batch job not found")
)

// Resolver resolves free-form share text, typically a *registry.Registry
type Resolver interface {
	Resolve(ctx context.Context, shareText string) (*models.VideoInfo, error)
}

// DefaultRetention is how long finished background jobs stay queryable
const DefaultRetention = time.Hour

// Config bounds batch work
type Config struct {
	MaxConcurrent int
	MaxItems      int
	// Retention bounds how long a finished background job is kept. Zero
	// means DefaultRetention.
	Retention time.Duration
}

// JobStatus represents the status of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
	JobStatusPartial   JobStatus = "partial"
)

// Result statuses
const (
	ResultSuccess   = "success"
	ResultFailed    = "failed"
	ResultCancelled = "cancelled"
)

// BatchProgress tracks progress of a batch job
type BatchProgress struct {
	Total      int     `json:"total"`
	Completed  int     `json:"completed"`
	Failed     int     `json:"failed"`
	InProgress int     `json:"in_progress"`
	Percentage float64 `json:"percentage"`
}

// BatchResult is the outcome of one item; results keep input order
type BatchResult struct {
	Index     int               `json:"index"`
	URL       string            `json:"url"`
	VideoInfo *models.VideoInfo `json:"data,omitempty"`
	Status    string            `json:"status"`
	Error     string            `json:"error,omitempty"`
	Kind      string            `json:"kind,omitempty"`
	Duration  time.Duration     `json:"duration"`
}

// BatchJob represents a batch resolution job
type BatchJob struct {
	ID          string        `json:"id"`
	URLs        []string      `json:"urls"`
	Status      JobStatus     `json:"status"`
	Progress    BatchProgress `json:"progress"`
	Results     []BatchResult `json:"results"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	mu     sync.Mutex
	cancel context.CancelFunc
}

// Snapshot returns a copy safe to read while the job runs
func (j *BatchJob) Snapshot() *BatchJob {
	j.mu.Lock()
	defer j.mu.Unlock()

	cp := &BatchJob{
		ID:        j.ID,
		URLs:      append([]string(nil), j.URLs...),
		Status:    j.Status,
		Progress:  j.Progress,
		Results:   append([]BatchResult(nil), j.Results...),
		StartedAt: j.StartedAt,
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return cp
}

// ProgressFunc is called after every finished item
type ProgressFunc func(progress BatchProgress)

// BatchManager runs batch resolutions with bounded concurrency. Each item is
// an independent resolution; items never share upstream requests.
type BatchManager struct {
	resolver      Resolver
	logger        zerolog.Logger
	maxConcurrent int
	maxItems      int
	retention     time.Duration

	mu   sync.RWMutex
	jobs map[string]*BatchJob

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBatchManager creates a new batch manager
func NewBatchManager(resolver Resolver, config Config) *BatchManager {
	ctx, cancel := context.WithCancel(context.Background())

	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.Retention <= 0 {
		config.Retention = DefaultRetention
	}

	return &BatchManager{
		resolver:      resolver,
		logger:        zerolog.New(os.Stdout).With().Timestamp().Str("component", "batch_manager").Logger(),
		maxConcurrent: config.MaxConcurrent,
		maxItems:      config.MaxItems,
		retention:     config.Retention,
		jobs:          make(map[string]*BatchJob),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// SetLogger sets the logger
func (bm *BatchManager) SetLogger(logger zerolog.Logger) {
	bm.logger = logger
}

// newJob validates urls and builds a pending job
func (bm *BatchManager) newJob(urls []string) (*BatchJob, error) {
	cleaned := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			cleaned = append(cleaned, u)
		}
	}

	if len(cleaned) == 0 {
		return nil, ErrNoItems
	}
	if bm.maxItems > 0 && len(cleaned) > bm.maxItems {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyItems, len(cleaned), bm.maxItems)
	}

	results := make([]BatchResult, len(cleaned))
	for i, u := range cleaned {
		results[i] = BatchResult{Index: i, URL: u}
	}

	return &BatchJob{
		ID:        uuid.NewString(),
		URLs:      cleaned,
		Status:    JobStatusPending,
		Progress:  BatchProgress{Total: len(cleaned)},
		Results:   results,
		StartedAt: time.Now(),
	}, nil
}

// Run resolves urls and blocks until every item finished or ctx is done
func (bm *BatchManager) Run(ctx context.Context, urls []string, onProgress ProgressFunc) (*BatchJob, error) {
	job, err := bm.newJob(urls)
	if err != nil {
		return nil, err
	}

	bm.process(ctx, job, onProgress)
	return job.Snapshot(), nil
}

// Start registers a job and resolves it in the background. Use GetJob to
// poll it and CancelJob to stop it.
func (bm *BatchManager) Start(urls []string) (*BatchJob, error) {
	job, err := bm.newJob(urls)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(bm.ctx)
	job.cancel = cancel

	bm.mu.Lock()
	bm.evictLocked(time.Now())
	bm.jobs[job.ID] = job
	bm.mu.Unlock()

	bm.wg.Add(1)
	go func() {
		defer bm.wg.Done()
		defer cancel()
		bm.process(ctx, job, nil)
	}()

	return job.Snapshot(), nil
}

// process resolves every item of job
func (bm *BatchManager) process(ctx context.Context, job *BatchJob, onProgress ProgressFunc) {
	bm.logger.Info().Str("job_id", job.ID).Int("items", len(job.URLs)).Msg("Starting batch job")

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(bm.maxConcurrent)

	for i := range job.URLs {
		if ctx.Err() != nil {
			bm.markCancelled(job, i)
			continue
		}

		i := i
		g.Go(func() error {
			bm.resolveItem(ctx, job, i, onProgress)
			return nil
		})
	}
	_ = g.Wait()

	bm.finish(ctx, job)
	bm.logger.Info().
		Str("job_id", job.ID).
		Str("status", string(job.Status)).
		Int("failed", job.Progress.Failed).
		Msg("Batch job completed")
}

func (bm *BatchManager) resolveItem(ctx context.Context, job *BatchJob, i int, onProgress ProgressFunc) {
	job.mu.Lock()
	job.Progress.InProgress++
	job.mu.Unlock()

	start := time.Now()
	info, err := bm.resolver.Resolve(ctx, job.URLs[i])
	elapsed := time.Since(start)

	job.mu.Lock()
	r := &job.Results[i]
	r.Duration = elapsed
	job.Progress.InProgress--
	if err != nil {
		r.Status = ResultFailed
		r.Error = err.Error()
		r.Kind = models.ErrorKind(err)
		job.Progress.Failed++
		bm.logger.Warn().Err(err).Str("job_id", job.ID).Str("url", r.URL).Msg("Batch item failed")
	} else {
		r.Status = ResultSuccess
		r.VideoInfo = info
	}
	job.Progress.Completed++
	job.Progress.Percentage = float64(job.Progress.Completed) / float64(job.Progress.Total) * 100
	progress := job.Progress
	job.mu.Unlock()

	if onProgress != nil {
		onProgress(progress)
	}
}

func (bm *BatchManager) markCancelled(job *BatchJob, i int) {
	job.mu.Lock()
	defer job.mu.Unlock()
	job.Results[i].Status = ResultCancelled
	job.Results[i].Error = context.Canceled.Error()
}

func (bm *BatchManager) finish(ctx context.Context, job *BatchJob) {
	job.mu.Lock()
	defer job.mu.Unlock()

	now := time.Now()
	job.CompletedAt = &now

	switch {
	case ctx.Err() != nil && job.Progress.Completed < job.Progress.Total:
		job.Status = JobStatusCancelled
	case job.Progress.Failed == 0:
		job.Status = JobStatusCompleted
	case job.Progress.Failed == job.Progress.Total:
		job.Status = JobStatusFailed
	default:
		job.Status = JobStatusPartial
	}
}

// evictLocked drops jobs that finished more than the retention period ago.
// bm.mu must be held.
func (bm *BatchManager) evictLocked(now time.Time) {
	for id, job := range bm.jobs {
		job.mu.Lock()
		expired := job.CompletedAt != nil && now.Sub(*job.CompletedAt) > bm.retention
		job.mu.Unlock()
		if expired {
			delete(bm.jobs, id)
		}
	}
}

// GetJob returns a snapshot of a background job
func (bm *BatchManager) GetJob(jobID string) (*BatchJob, error) {
	bm.mu.RLock()
	job, ok := bm.jobs[jobID]
	bm.mu.RUnlock()

	if !ok {
		return nil, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// CancelJob stops a background job; finished items keep their results
func (bm *BatchManager) CancelJob(jobID string) error {
	bm.mu.RLock()
	job, ok := bm.jobs[jobID]
	bm.mu.RUnlock()

	if !ok {
		return ErrJobNotFound
	}
	if job.cancel != nil {
		job.cancel()
	}
	return nil
}

// Close cancels every background job and waits for them
func (bm *BatchManager) Close() error {
	bm.cancel()
	bm.wg.Wait()
	return nil
}
