package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mvidal/flight-emissions-back/internal/batch"
	"github.com/mvidal/flight-emissions-back/internal/domain"
)

const (
	defaultTick      = 60 * time.Second
	stopTimeout      = 10 * time.Second
	archivePrefixFmt = "20060102_150405"
)

// Directories are the three queue directories the service routes files
// between. Scheduled is the inbox; Processed and Errors are the outcomes.
type Directories struct {
	Scheduled string
	Processed string
	Errors    string
}

func (d Directories) Ensure() error {
	for _, dir := range []string{d.Scheduled, d.Processed, d.Errors} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create queue directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileResult is the per-file entry of a run summary.
type FileResult struct {
	File          string                  `json:"file"`
	Destination   domain.BatchDestination `json:"destination,omitempty"`
	ProcessedRows int                     `json:"processed_rows"`
	ErrorRows     int                     `json:"error_rows"`
	SuccessRate   float64                 `json:"success_rate"`
	Moved         bool                    `json:"moved"`
	Error         string                  `json:"error,omitempty"`
}

// RunSummary reports one pass over the scheduled directory.
type RunSummary struct {
	RunID      string       `json:"run_id"`
	Forced     bool         `json:"forced"`
	Skipped    bool         `json:"skipped"`
	Files      []FileResult `json:"files"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// StatusInfo is the operator-facing view of the scheduler.
type StatusInfo struct {
	SchedulerRunning bool              `json:"scheduler_running"`
	LastRun          *time.Time        `json:"last_run,omitempty"`
	NextRun          *time.Time        `json:"next_run,omitempty"`
	CacheSize        int               `json:"cache_size"`
	Schedules        []string          `json:"schedules"`
	Params           domain.TripParams `json:"batch_params"`
	Directories      map[string]string `json:"directories"`
}

// ArchiveSummary reports one clearing of the processed directory.
type ArchiveSummary struct {
	BackupDir  string   `json:"backup_dir"`
	MovedFiles []string `json:"moved_files"`
}

type ServiceConfig struct {
	Processor *batch.Processor
	Tracker   *batch.Tracker
	Cache     ProcessedCache
	Dirs      Directories
	Logger    *log.Logger
	Tick      time.Duration
}

// Service owns the scheduling loop, the single-flight guard, the processed
// cache and the current trip parameters. One pass over the scheduled
// directory runs at a time; ticks and manual triggers that land during a
// pass are skipped, never queued.
type Service struct {
	processor *batch.Processor
	tracker   *batch.Tracker
	cache     ProcessedCache
	dirs      Directories
	logger    *log.Logger
	tick      time.Duration

	// passMu is the single-flight guard. Acquired with TryLock only.
	passMu sync.Mutex

	mu      sync.Mutex
	specs   []ScheduleSpec
	params  domain.TripParams
	lastRun time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewService(cfg ServiceConfig) *Service {
	tick := cfg.Tick
	if tick <= 0 {
		tick = defaultTick
	}
	return &Service{
		processor: cfg.Processor,
		tracker:   cfg.Tracker,
		cache:     cfg.Cache,
		dirs:      cfg.Dirs,
		logger:    cfg.Logger,
		tick:      tick,
		params:    domain.DefaultTripParams(),
	}
}

// Schedule registers a recurring trigger. Safe to call while running.
func (s *Service) Schedule(spec ScheduleSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs = append(s.specs, spec)
	s.logger.Printf("schedule registered: %s", spec)
}

// SetParams replaces the trip parameters applied to scheduled runs.
func (s *Service) SetParams(params domain.TripParams) {
	normalized := params.Normalize()
	s.mu.Lock()
	s.params = normalized
	s.mu.Unlock()
	s.logger.Printf("batch params updated passengers=%d cabin=%s round_trip=%v",
		normalized.Passengers, normalized.CabinClass, normalized.RoundTrip)
}

func (s *Service) currentParams() domain.TripParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Start launches the background loop. Calling Start on a running service is
// a no-op.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.logger.Printf("scheduler already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.run(ctx, s.stopCh, s.doneCh)
	s.logger.Printf("scheduler started tick=%s schedules=%d", s.tick, len(s.specs))
}

// Stop signals the loop and waits for it to exit, bounded by stopTimeout.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()

	select {
	case <-done:
		s.logger.Printf("scheduler stopped")
	case <-time.After(stopTimeout):
		s.logger.Printf("scheduler loop did not exit within %s", stopTimeout)
	}
}

func (s *Service) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case now := <-ticker.C:
			if s.anyDue(last, now) {
				if _, err := s.ProcessPending(ctx, false); err != nil {
					s.logger.Printf("scheduled run failed err=%v", err)
				}
			}
			last = now
		}
	}
}

func (s *Service) anyDue(after, now time.Time) bool {
	s.mu.Lock()
	specs := make([]ScheduleSpec, len(s.specs))
	copy(specs, s.specs)
	s.mu.Unlock()

	for _, spec := range specs {
		if spec.Due(after, now) {
			return true
		}
	}
	return false
}

// TriggerManualRun runs one pass immediately, bypassing the processed cache
// and, when params is non-nil, overriding the configured trip parameters for
// this run only.
func (s *Service) TriggerManualRun(ctx context.Context, params *domain.TripParams) (*RunSummary, error) {
	if params != nil {
		return s.processPending(ctx, true, params.Normalize())
	}
	return s.ProcessPending(ctx, true)
}

// ProcessPending runs one pass over the scheduled directory. When force is
// true the processed cache is bypassed. Returns a skipped summary without
// touching any file if another pass is in flight.
func (s *Service) ProcessPending(ctx context.Context, force bool) (*RunSummary, error) {
	return s.processPending(ctx, force, s.currentParams())
}

func (s *Service) processPending(ctx context.Context, force bool, params domain.TripParams) (*RunSummary, error) {
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		Forced:    force,
		StartedAt: time.Now(),
		Files:     []FileResult{},
	}

	if !s.passMu.TryLock() {
		s.logger.Printf("run skipped: processing already in progress run_id=%s", summary.RunID)
		summary.Skipped = true
		summary.FinishedAt = time.Now()
		return summary, nil
	}
	defer s.passMu.Unlock()

	if err := s.dirs.Ensure(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dirs.Scheduled)
	if err != nil {
		return nil, fmt.Errorf("read scheduled directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		name := entry.Name()
		if !force && s.cache.Contains(ctx, name) {
			s.logger.Printf("file skipped: already processed file=%s", name)
			continue
		}
		summary.Files = append(summary.Files, s.processOne(ctx, name, params))
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	summary.FinishedAt = time.Now()
	s.logger.Printf("run finished run_id=%s files=%d forced=%v", summary.RunID, len(summary.Files), force)
	return summary, nil
}

func (s *Service) processOne(ctx context.Context, name string, params domain.TripParams) FileResult {
	path := filepath.Join(s.dirs.Scheduled, name)

	result, err := s.processor.ProcessFile(ctx, path, params)

	// Cached even on failure so a broken file does not wedge the scheduler
	// into retrying it on every tick. Forced runs still get through.
	s.cache.Add(ctx, name)

	if err != nil {
		s.logger.Printf("file failed before row processing file=%s err=%v", name, err)
		return FileResult{File: name, Error: err.Error()}
	}

	fileResult := FileResult{
		File:          name,
		Destination:   result.Destination,
		ProcessedRows: result.ProcessedRows,
		ErrorRows:     result.ErrorRows,
		SuccessRate:   result.SuccessRate,
	}

	destDir := s.dirs.Errors
	if result.Destination == domain.DestinationProcessed {
		destDir = s.dirs.Processed
	}

	movedName := time.Now().Format(archivePrefixFmt) + "_" + name
	destPath := filepath.Join(destDir, movedName)
	if err := moveFile(path, destPath); err != nil {
		// The file stays in the scheduled directory; the cache entry above
		// keeps it from being retried until forced.
		s.logger.Printf("file move failed file=%s dest=%s err=%v", name, destPath, err)
		return fileResult
	}
	fileResult.Moved = true

	if err := writeResultSidecar(destPath+".result.json", result); err != nil {
		s.logger.Printf("sidecar write failed file=%s err=%v", movedName, err)
	}

	s.logger.Printf("file routed file=%s destination=%s processed=%d errors=%d",
		name, result.Destination, result.ProcessedRows, result.ErrorRows)
	return fileResult
}

// ClearCache empties the processed-file cache and returns how many entries
// were dropped.
func (s *Service) ClearCache(ctx context.Context) int {
	cleared := s.cache.Clear(ctx)
	s.logger.Printf("processed cache cleared entries=%d", cleared)
	return cleared
}

// Progress returns the live progress snapshot of the current (or last) file.
func (s *Service) Progress() domain.ProgressSnapshot {
	return s.tracker.Snapshot()
}

// Status reports scheduler state for the status endpoint.
func (s *Service) Status(ctx context.Context) StatusInfo {
	s.mu.Lock()
	running := s.running
	lastRun := s.lastRun
	specs := make([]ScheduleSpec, len(s.specs))
	copy(specs, s.specs)
	params := s.params
	s.mu.Unlock()

	info := StatusInfo{
		SchedulerRunning: running,
		CacheSize:        s.cache.Size(ctx),
		Schedules:        make([]string, 0, len(specs)),
		Params:           params,
		Directories: map[string]string{
			"scheduled": s.dirs.Scheduled,
			"processed": s.dirs.Processed,
			"errors":    s.dirs.Errors,
		},
	}
	for _, spec := range specs {
		info.Schedules = append(info.Schedules, spec.String())
	}
	if !lastRun.IsZero() {
		info.LastRun = &lastRun
	}
	if next := s.nextRun(time.Now(), specs); !next.IsZero() {
		info.NextRun = &next
	}
	return info
}

func (s *Service) nextRun(now time.Time, specs []ScheduleSpec) time.Time {
	var next time.Time
	for _, spec := range specs {
		occurrence := spec.NextAfter(now)
		if occurrence.IsZero() {
			continue
		}
		if next.IsZero() || occurrence.Before(next) {
			next = occurrence
		}
	}
	return next
}

// ArchiveProcessed moves everything out of the processed directory into a
// sibling backup_<timestamp> directory.
func (s *Service) ArchiveProcessed() (*ArchiveSummary, error) {
	if err := s.dirs.Ensure(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dirs.Processed)
	if err != nil {
		return nil, fmt.Errorf("read processed directory: %w", err)
	}

	backupDir := filepath.Join(filepath.Dir(s.dirs.Processed), "backup_"+time.Now().Format(archivePrefixFmt))
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup directory: %w", err)
	}

	summary := &ArchiveSummary{BackupDir: backupDir, MovedFiles: []string{}}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		src := filepath.Join(s.dirs.Processed, entry.Name())
		if err := moveFile(src, filepath.Join(backupDir, entry.Name())); err != nil {
			s.logger.Printf("archive move failed file=%s err=%v", entry.Name(), err)
			continue
		}
		summary.MovedFiles = append(summary.MovedFiles, entry.Name())
	}

	s.logger.Printf("processed directory archived dir=%s files=%d", backupDir, len(summary.MovedFiles))
	return summary, nil
}

// moveFile renames src to dst, falling back to copy-and-remove when the two
// paths sit on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create destination: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy file: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("flush destination: %w", err)
	}
	return os.Remove(src)
}

func writeResultSidecar(path string, result *domain.BatchResult) error {
	payload, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return os.WriteFile(path, payload, 0o644)
}
