package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stratlab-sync/internal/client"
	"stratlab-sync/internal/errors"
	"stratlab-sync/internal/logging"
)

// API is the slice of the remote client the controller needs.
type API interface {
	SubmitJob(ctx context.Context, body client.JobSubmission) (*client.SubmitReply, error)
	JobStatus(ctx context.Context, jobID string) (*client.StatusDoc, error)
	JobResults(ctx context.Context, jobID string, includeTrades bool, maxTrades int) (*client.ResultsDoc, error)
	CancelJob(ctx context.Context, jobID string) error
}

// Config describes a job to submit.
type Config struct {
	Name           string
	Symbols        []string
	Start          string // ISO date, e.g. 2023-01-01
	End            string
	StrategyType   string
	InitialCapital float64
	Parameters     map[string]interface{}
}

// Controller is the job lifecycle state machine. It never schedules polls
// itself; whoever owns a job re-invokes Poll until a terminal state.
type Controller struct {
	api         API
	log         zerolog.Logger
	clock       func() time.Time
	maxRetained int

	mu   sync.Mutex
	jobs map[string]*Job
}

// Options configures a Controller.
type Options struct {
	// MaxRetained bounds how many terminal job records are kept; the oldest
	// terminated are evicted first. Active jobs are never evicted.
	MaxRetained int
	// Clock supplies the current time. Nil means time.Now.
	Clock func() time.Time
}

// NewController creates a Controller over the given API.
func NewController(api API, opts Options, logger zerolog.Logger) *Controller {
	if opts.MaxRetained <= 0 {
		opts.MaxRetained = 64
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Controller{
		api:         api,
		log:         logger.With().Str("component", "jobs").Logger(),
		clock:       clock,
		maxRetained: opts.MaxRetained,
		jobs:        make(map[string]*Job),
	}
}

// validate checks a submission before any remote call. Constraint violations
// fail fast here; no network round-trip is wasted on a bad config.
func validate(cfg Config) error {
	if cfg.Name == "" {
		return errors.NewValidationError("name", cfg.Name, "must not be empty")
	}
	if len(cfg.Symbols) == 0 {
		return errors.NewValidationError("symbols", cfg.Symbols, "at least one symbol is required")
	}
	for _, s := range cfg.Symbols {
		if s == "" {
			return errors.NewValidationError("symbols", cfg.Symbols, "symbols must not be empty")
		}
	}
	start, err := time.Parse("2006-01-02", cfg.Start)
	if err != nil {
		return errors.NewValidationError("start", cfg.Start, "must be an ISO date (YYYY-MM-DD)")
	}
	end, err := time.Parse("2006-01-02", cfg.End)
	if err != nil {
		return errors.NewValidationError("end", cfg.End, "must be an ISO date (YYYY-MM-DD)")
	}
	if !start.Before(end) {
		return errors.NewValidationError("end", cfg.End, "must be after start")
	}
	if cfg.StrategyType == "" {
		return errors.NewValidationError("strategy_type", cfg.StrategyType, "must not be empty")
	}
	return nil
}

// Submit validates cfg, submits the job and seeds the local record at
// initialized with progress 0. Returns the server-issued job ID.
func (c *Controller) Submit(ctx context.Context, cfg Config) (string, error) {
	if err := validate(cfg); err != nil {
		return "", err
	}

	reply, err := c.api.SubmitJob(ctx, client.JobSubmission{
		Name:           cfg.Name,
		Symbols:        cfg.Symbols,
		StartDate:      cfg.Start,
		EndDate:        cfg.End,
		StrategyType:   cfg.StrategyType,
		InitialCapital: cfg.InitialCapital,
		Parameters:     cfg.Parameters,
	})
	if err != nil {
		return "", errors.Wrap(err, "job submission failed")
	}

	now := c.clock()
	job := &Job{
		ID:        reply.JobID,
		Name:      cfg.Name,
		Status:    StateInitialized,
		Progress:  0,
		Message:   reply.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}

	c.mu.Lock()
	c.jobs[job.ID] = job
	c.mu.Unlock()

	c.log.Info().Str("job_id", job.ID).Str("name", cfg.Name).Msg("Job submitted")
	return job.ID, nil
}

// Poll performs a single-shot status fetch and folds the reply into the
// local record. A transport failure is an error for this call only: the
// record is left untouched and the job never transitions to error because of
// it. Polling a terminal job is a no-op returning the terminal record.
func (c *Controller) Poll(ctx context.Context, jobID string) (Job, error) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return Job{}, errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}
	if job.Status.IsTerminal() {
		snapshot := *job
		c.mu.Unlock()
		return snapshot, nil
	}
	c.mu.Unlock()

	doc, err := c.api.JobStatus(ctx, jobID)
	if err != nil {
		return Job{}, errors.Wrapf(err, "status fetch for job %s", jobID)
	}

	return c.apply(jobID, doc), nil
}

// apply folds a remote status document into the local record under the
// monotonicity rules: regressions and unknown states are ignored in favor of
// the retained record.
func (c *Controller) apply(jobID string, doc *client.StatusDoc) Job {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobID]
	if !ok {
		return Job{}
	}
	if job.Status.IsTerminal() {
		return *job
	}

	next := State(doc.Status)
	switch {
	case !next.Valid():
		c.log.Warn().Str("job_id", jobID).Str("status", doc.Status).
			Msg("Unknown remote status ignored")
	case next == job.Status:
		// No transition, but progress and message still advance.
	case canTransition(job.Status, next):
		logging.LogJobTransition(c.log, jobID, string(job.Status), string(next), doc.Progress)
		job.Status = next
	default:
		c.log.Warn().Str("job_id", jobID).
			Str("from", string(job.Status)).Str("to", string(next)).
			Msg("Out-of-order remote status ignored")
	}

	if doc.Progress >= 0 && doc.Progress <= 100 && doc.Progress > job.Progress {
		job.Progress = doc.Progress
	}
	if job.Status == StateCompleted {
		job.Progress = 100
	}
	if doc.Message != "" {
		job.Message = doc.Message
	}
	job.EstimatedCompletion = doc.EstimatedCompletion
	job.UpdatedAt = c.clock()

	if job.Status.IsTerminal() && job.terminalAt.IsZero() {
		job.terminalAt = c.clock()
		c.evictLocked()
	}

	return *job
}

// Cancel requests cancellation. Best-effort and fire-and-forget: transport
// failures are logged and absorbed, and the authoritative outcome is only
// known via the next Poll. Cancelling a terminal job is a harmless no-op.
func (c *Controller) Cancel(ctx context.Context, jobID string) error {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}
	if job.Status.IsTerminal() {
		c.mu.Unlock()
		return nil
	}
	alreadyRequested := job.cancelRequested
	job.cancelRequested = true
	if !alreadyRequested && canTransition(job.Status, StateCanceling) {
		logging.LogJobTransition(c.log, jobID, string(job.Status), string(StateCanceling), job.Progress)
		job.Status = StateCanceling
		job.UpdatedAt = c.clock()
	}
	c.mu.Unlock()

	if err := c.api.CancelJob(ctx, jobID); err != nil {
		c.log.Warn().Err(err).Str("job_id", jobID).Msg("Cancel request failed, will retry via poll")
	}
	return nil
}

// FetchResults retrieves the results document for a completed job.
// Requesting results earlier is a caller error; partial data is never
// silently substituted. includeTrades and maxTrades bound the trade list
// only, never the summary payload.
func (c *Controller) FetchResults(ctx context.Context, jobID string, includeTrades bool, maxTrades int) (*client.ResultsDoc, error) {
	c.mu.Lock()
	job, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", jobID)
	}
	status := job.Status
	c.mu.Unlock()

	if status != StateCompleted {
		return nil, errors.Wrapf(errors.ErrResultsNotReady, "job %s is %s", jobID, status)
	}

	doc, err := c.api.JobResults(ctx, jobID, includeTrades, maxTrades)
	if err != nil {
		return nil, errors.Wrapf(err, "results fetch for job %s", jobID)
	}
	return doc, nil
}

// Get returns a snapshot of the local record for jobID.
func (c *Controller) Get(jobID string) (Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[jobID]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns snapshots of all retained records, newest first.
func (c *Controller) List() []Job {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Job, 0, len(c.jobs))
	for _, job := range c.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// evictLocked drops the oldest-terminated records beyond the retention
// bound. Active records are never evicted. Callers must hold c.mu.
func (c *Controller) evictLocked() {
	var terminal []*Job
	for _, job := range c.jobs {
		if job.Status.IsTerminal() {
			terminal = append(terminal, job)
		}
	}
	if len(terminal) <= c.maxRetained {
		return
	}
	sort.Slice(terminal, func(i, j int) bool {
		return terminal[i].terminalAt.Before(terminal[j].terminalAt)
	})
	for _, job := range terminal[:len(terminal)-c.maxRetained] {
		delete(c.jobs, job.ID)
	}
}
