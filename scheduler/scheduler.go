// Package scheduler runs the background work around the catalog: CSV drops
// picked up from an import directory, scheduled downloads from a remote URL
// and a staleness monitor that also retries storage after a failed load.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron"

	"github.com/MLotfy88/Medi-Tempo/data"
	"github.com/MLotfy88/Medi-Tempo/entities"
	"github.com/MLotfy88/Medi-Tempo/interfaces"
	"github.com/MLotfy88/Medi-Tempo/logging"
	"github.com/MLotfy88/Medi-Tempo/metrics"
)

const (
	ProcessedDir = "processed"
	FailedDir    = "failed"

	defaultDebounce        = 500 * time.Millisecond
	defaultMonitorInterval = time.Hour
	movedFileTimeLayout    = "20060102T150405"
)

// Options configures which jobs run. Empty ImportDir disables directory
// imports and empty ImportURL disables downloads.
type Options struct {
	ImportDir   string
	Interval    time.Duration
	ImportURL   string
	ImportTimes string
	StaleAfter  time.Duration
}

var _ interfaces.Scheduler = (*Scheduler)(nil)

// Scheduler handles background imports and monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	importer  interfaces.Importer
	opts      Options
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	dirJob  *gocron.Job
	urlJob  *gocron.Job
	watcher *fsnotify.Watcher
	timer   *time.Timer

	debounce        time.Duration
	monitorInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, importer interfaces.Importer, opts Options) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.ImportTimes == "" {
		opts.ImportTimes = "06:00;18:00"
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()

	return &Scheduler{
		dataStore:       dataStore,
		importer:        importer,
		opts:            opts,
		scheduler:       s,
		debounce:        defaultDebounce,
		monitorInterval: defaultMonitorInterval,
		ctx:             ctx,
		cancel:          cancel,
	}
}

// Start registers the configured jobs, starts the directory watcher and the
// staleness monitor.
func (s *Scheduler) Start() error {
	if s.opts.ImportDir != "" {
		if err := s.ensureDirs(); err != nil {
			return err
		}

		job, err := s.scheduler.Every(s.opts.Interval).Do(func() {
			if _, err := s.ScanDir(s.ctx); err != nil {
				logging.Error("Directory import failed", "dir", s.opts.ImportDir, "error", err)
			}
		})
		if err != nil {
			logging.Error("Failed to schedule directory imports", "error", err)
			return fmt.Errorf("failed to schedule directory imports: %w", err)
		}
		s.mu.Lock()
		s.dirJob = job
		s.mu.Unlock()

		if err := s.startWatcher(); err != nil {
			// Polling still picks files up, only later
			logging.Warn("File watcher unavailable, relying on polling", "dir", s.opts.ImportDir, "error", err)
		}
	}

	if s.opts.ImportURL != "" {
		job, err := s.scheduler.Every(1).Days().At(s.opts.ImportTimes).Do(func() {
			if err := s.ImportURL(s.ctx); err != nil {
				logging.Error("Scheduled download failed", "url", s.opts.ImportURL, "error", err)
			}
		})
		if err != nil {
			logging.Error("Failed to schedule downloads", "times", s.opts.ImportTimes, "error", err)
			return fmt.Errorf("failed to schedule downloads: %w", err)
		}
		s.mu.Lock()
		s.urlJob = job
		s.mu.Unlock()
	}

	s.scheduler.StartAsync()
	s.startMonitoring()

	logging.Info("Scheduler started",
		"import_dir", s.opts.ImportDir,
		"interval", s.opts.Interval.String(),
		"import_url", s.opts.ImportURL,
		"import_times", s.opts.ImportTimes)
	return nil
}

// Stop stops every job and waits for background goroutines
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()

	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	watcher := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logging.Warn("Failed to close file watcher", "error", err)
		}
	}
	s.wg.Wait()
}

// NextImport returns the earliest upcoming scheduled import, or the zero
// time when nothing is scheduled.
func (s *Scheduler) NextImport() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	var next time.Time
	for _, job := range []*gocron.Job{s.dirJob, s.urlJob} {
		if job == nil {
			continue
		}
		run := job.NextRun()
		if run.IsZero() {
			continue
		}
		if next.IsZero() || run.Before(next) {
			next = run
		}
	}
	return next
}

// ScanDir imports every CSV file waiting in the import directory, oldest
// name first. Imported files move to processed/, unparseable ones to
// failed/. Files that parsed but could not be stored stay in place for the
// next scan. It returns the number of records added.
func (s *Scheduler) ScanDir(ctx context.Context) (int, error) {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Import already in progress, skipping directory scan")
		return 0, nil
	}
	defer s.dataStore.EndUpdate()

	if err := s.ensureDirs(); err != nil {
		return 0, err
	}

	files, err := pendingFiles(s.opts.ImportDir)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return added, err
		}

		n, err := s.importFile(ctx, path)
		added += n
		if err != nil {
			// Storage trouble affects every remaining file too
			return added, err
		}
	}
	return added, nil
}

func (s *Scheduler) importFile(ctx context.Context, path string) (int, error) {
	name := filepath.Base(path)

	res, err := s.importer.ParseFile(ctx, path)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, err
		}
		logging.Warn("Rejected import file", "file", name, "error", err)
		metrics.RecordImportFailure(metrics.SourceDir)
		s.moveFile(path, FailedDir)
		return 0, nil
	}

	result, err := s.dataStore.AddMedications(ctx, res.Medications)
	if err != nil {
		metrics.RecordImportFailure(metrics.SourceDir)
		return 0, fmt.Errorf("failed to store %s: %w", name, err)
	}

	metrics.RecordImport(metrics.SourceDir, result.Added, result.Skipped, len(res.RowErrors))
	logImport("Imported file", result, res, "file", name)
	s.moveFile(path, ProcessedDir)
	return result.Added, nil
}

// ImportURL downloads the configured URL and adds its records
func (s *Scheduler) ImportURL(ctx context.Context) error {
	if s.opts.ImportURL == "" {
		return nil
	}
	if !s.dataStore.BeginUpdate() {
		logging.Info("Import already in progress, skipping download")
		return nil
	}
	defer s.dataStore.EndUpdate()

	start := time.Now()
	res, err := s.importer.Download(ctx, s.opts.ImportURL)
	if err != nil {
		metrics.RecordImportFailure(metrics.SourceURL)
		return err
	}

	result, err := s.dataStore.AddMedications(ctx, res.Medications)
	if err != nil {
		metrics.RecordImportFailure(metrics.SourceURL)
		return fmt.Errorf("failed to store download: %w", err)
	}

	metrics.RecordImport(metrics.SourceURL, result.Added, result.Skipped, len(res.RowErrors))
	logImport("Imported download", result, res, "url", s.opts.ImportURL, "duration", time.Since(start).String())
	return nil
}

func logImport(msg string, result entities.AddResult, res *entities.ParseResult, args ...any) {
	args = append(args,
		"added", result.Added,
		"skipped", result.Skipped,
		"rejected", len(res.RowErrors),
		"total", result.Total)
	logging.Info(msg, args...)
	for _, rowErr := range res.RowErrors {
		logging.Debug("Rejected row", "line", rowErr.Line, "field", rowErr.Field, "message", rowErr.Message)
	}
}

func (s *Scheduler) ensureDirs() error {
	for _, dir := range []string{
		s.opts.ImportDir,
		filepath.Join(s.opts.ImportDir, ProcessedDir),
		filepath.Join(s.opts.ImportDir, FailedDir),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create import directory %s: %w", dir, err)
		}
	}
	return nil
}

// moveFile prefixes the name with a timestamp so repeated drops of the same
// file name never collide.
func (s *Scheduler) moveFile(path, subdir string) {
	name := time.Now().Format(movedFileTimeLayout) + "-" + filepath.Base(path)
	dest := filepath.Join(filepath.Dir(path), subdir, name)
	if err := os.Rename(path, dest); err != nil {
		logging.Error("Failed to move import file", "file", path, "dest", dest, "error", err)
	}
}

func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !isCSV(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv") && !strings.HasPrefix(name, ".")
}

// startWatcher triggers a scan shortly after a CSV file lands in the import
// directory. Bursts of events collapse into one scan.
func (s *Scheduler) startWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(s.opts.ImportDir); err != nil {
		_ = watcher.Close()
		return err
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
					continue
				}
				if filepath.Dir(event.Name) != filepath.Clean(s.opts.ImportDir) || !isCSV(filepath.Base(event.Name)) {
					continue
				}
				logging.Debug("Import file event", "file", event.Name, "op", event.Op.String())
				s.scheduleScan()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("File watcher error", "error", err)
			}
		}
	}()
	return nil
}

func (s *Scheduler) scheduleScan() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		// Register with wg under mu so Stop either sees the scan or
		// prevents it
		s.mu.Lock()
		if s.ctx.Err() != nil {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		defer s.wg.Done()

		if _, err := s.ScanDir(s.ctx); err != nil && !errors.Is(err, context.Canceled) {
			logging.Error("Directory import failed", "dir", s.opts.ImportDir, "error", err)
		}
	})
}

// startMonitoring monitors the freshness of the catalog
func (s *Scheduler) startMonitoring() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.monitorInterval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkStaleness(s.ctx)
			}
		}
	}()
}

// checkStaleness reloads from storage while the store serves the fallback
// set, and warns when the data is older than StaleAfter.
func (s *Scheduler) checkStaleness(ctx context.Context) {
	if s.dataStore.FallbackActive() {
		logging.Info("Catalog is in fallback mode, retrying storage")
		s.dataStore.Load(ctx)
		if s.dataStore.FallbackActive() {
			logging.Warn("Storage still unavailable, serving built-in medications")
		}
		return
	}

	lastUpdated := s.dataStore.LastUpdated()
	if lastUpdated.IsZero() {
		return
	}
	if age := time.Since(lastUpdated); age > s.opts.StaleAfter {
		logging.Warn("Catalog hasn't been updated recently",
			"last_updated", data.FormatTimestamp(lastUpdated),
			"age", age.Round(time.Minute).String(),
			"stale_after", s.opts.StaleAfter.String())
	}
}
