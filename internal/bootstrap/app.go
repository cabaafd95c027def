// Package bootstrap wires configuration, the readiness coordinator, the
// startup probes, and the Wails runtime together.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"tts-converter/internal/config"
	"tts-converter/internal/domain"
	"tts-converter/internal/ffmpeg"
	"tts-converter/internal/jobs"
	"tts-converter/internal/readiness"
	"tts-converter/internal/segment"
	"tts-converter/internal/voices"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrNotReady is returned when a conversion is requested before all
// readiness preconditions hold.
var ErrNotReady = errors.New("application is not ready to convert")

// ErrNoConversionRunner is returned when no synthesis backend is wired in.
var ErrNoConversionRunner = errors.New("no conversion runner configured")

// encoderProbe abstracts the capability probe for testability.
type encoderProbe interface {
	Detect(ctx context.Context) domain.EncoderStatus
}

// voiceLoader abstracts the retrying voice loader for testability.
type voiceLoader interface {
	Load(ctx context.Context) voices.Result
	Retry(ctx context.Context) ([]domain.Voice, error)
	AttemptState() voices.AttemptState
}

// ConversionRequest describes one conversion job handed to the runner.
type ConversionRequest struct {
	JobID     string
	Chunks    []string
	VoiceID   string
	Format    domain.OutputFormat
	OutputDir string
	OnStage   func(status domain.JobStatus)
}

// ConversionResult carries the artifact path of a finished job.
type ConversionResult struct {
	OutputPath string
}

// conversionRunner executes a prepared conversion job. Synthesis and
// transcoding live behind this seam; the startup core does not implement
// them.
type conversionRunner interface {
	Run(ctx context.Context, req ConversionRequest) (ConversionResult, error)
}

// App wires configuration, probes, coordinator, jobs, and UI runtime
// callbacks. It is the external initialization orchestrator: it feeds the
// coordinator as each underlying startup signal resolves.
type App struct {
	Config      config.Config
	Coordinator *readiness.Coordinator
	Jobs        *jobs.Manager
	Runner      conversionRunner

	probe  encoderProbe
	loader voiceLoader
	events *jobs.EventBus
	assets fs.FS

	mu          sync.Mutex
	outputDir   string
	activeJobID string
	cancel      context.CancelFunc
	runtimeCtx  context.Context
}

// New builds the application with environment configuration and real
// OS-backed probes.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded
// frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	coordinator := readiness.NewCoordinator()
	loader := voices.NewLoader(voices.Options{
		Timeout:     cfg.EnumerationTimeout,
		MaxAttempts: cfg.MaxLoadAttempts,
		Locale:      cfg.Locale,
		OnProgress:  voiceProgressBridge(coordinator),
	})

	app := &App{
		Config:      cfg,
		Coordinator: coordinator,
		Jobs:        jobs.NewManager(),
		probe:       ffmpeg.NewProbe(cfg.ResourcesDir, cfg.ProbeTimeout),
		loader:      loader,
		events:      jobs.NewEventBus(1000),
		assets:      assets,
		outputDir:   cfg.OutputDir,
	}
	app.bridgeReadinessEvents()
	return app, nil
}

// NewForTests creates an app with injectable probe, loader, and runner.
func NewForTests(cfg config.Config, probe encoderProbe, loader voiceLoader, runner conversionRunner) *App {
	app := &App{
		Config:      cfg,
		Coordinator: readiness.NewCoordinator(),
		Jobs:        jobs.NewManager(),
		Runner:      runner,
		probe:       probe,
		loader:      loader,
		events:      jobs.NewEventBus(1000),
		outputDir:   cfg.OutputDir,
	}
	app.bridgeReadinessEvents()
	return app
}

// voiceProgressBridge mirrors loader attempt progress into coordinator
// voice state so the UI sees each retry.
func voiceProgressBridge(coordinator *readiness.Coordinator) func(voices.Progress) {
	return func(p voices.Progress) {
		switch p.Kind {
		case voices.ProgressStarted:
			coordinator.UpdateVoiceState(true, false, nil, 0, nil)
		case voices.ProgressAttempt:
			coordinator.UpdateVoiceState(true, false, nil, p.Attempt, nil)
		}
		// Terminal outcomes are applied by the caller of Load/Retry,
		// which has the full result.
	}
}

// bridgeReadinessEvents republishes every coordinator event over the Wails
// runtime so the UI layer can subscribe per kind.
func (a *App) bridgeReadinessEvents() {
	kinds := []readiness.EventKind{
		readiness.KindVoice,
		readiness.KindFFmpeg,
		readiness.KindOutputFolder,
		readiness.KindInitialization,
		readiness.KindFormatAvailability,
		readiness.KindAutomaticFormatChange,
		readiness.KindAction,
		readiness.KindStateChange,
	}
	for _, kind := range kinds {
		kind := kind
		a.Coordinator.Subscribe(kind, func(event readiness.Event) {
			a.emitRuntime("readiness:"+string(kind), event)
		})
	}
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Text to Speech Converter",
		Width:       1080,
		Height:      720,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores the Wails runtime context and kicks off the concurrent
// startup probes. The encoder probe and the voice load run independently;
// the initializing flag clears once both have settled.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	a.runtimeCtx = ctx
	a.mu.Unlock()

	a.Coordinator.UpdateInitializationState(true)
	a.Coordinator.UpdateOutputFolderState(false, a.Config.OutputDir)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		status := a.probe.Detect(context.Background())
		a.Coordinator.UpdateFFmpegState(status)
	}()

	go func() {
		defer wg.Done()
		a.applyLoadResult(a.loader.Load(context.Background()))
	}()

	go func() {
		wg.Wait()
		a.Coordinator.UpdateInitializationState(false)
		log.Info().Bool("ready", a.Coordinator.IsReady()).Msg("startup probes settled")
	}()
}

// applyLoadResult feeds a terminal load outcome into the coordinator.
func (a *App) applyLoadResult(result voices.Result) {
	if errors.Is(result.Err, voices.ErrLoadInFlight) {
		return
	}
	if result.Success {
		a.Coordinator.UpdateVoiceState(false, true, result.Voices, result.Attempt, nil)
		return
	}
	a.Coordinator.UpdateVoiceState(false, false, nil, result.Attempts, result.Err)
	a.Coordinator.RequestAction("retryVoiceLoad")
}

// RetryVoiceLoad is the manual retry entrypoint for the UI error banner.
// While a load is already in flight the request is a no-op.
func (a *App) RetryVoiceLoad() error {
	loaded, err := a.loader.Retry(context.Background())
	if errors.Is(err, voices.ErrLoadInFlight) {
		return nil
	}

	state := a.loader.AttemptState()
	if err != nil {
		a.Coordinator.UpdateVoiceState(false, false, nil, state.CurrentAttempt, err)
		a.Coordinator.RequestAction("retryVoiceLoad")
		return err
	}

	a.Coordinator.UpdateVoiceState(false, true, loaded, state.CurrentAttempt, nil)
	return nil
}

// RefreshEncoder re-probes the encoder and returns the fresh snapshot.
func (a *App) RefreshEncoder() domain.EncoderStatus {
	status := a.probe.Detect(context.Background())
	a.Coordinator.UpdateFFmpegState(status)
	return status
}

// SetOutputFolder records a user-selected output folder. The folder arrives
// already validated from the UI layer.
func (a *App) SetOutputFolder(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("output folder path is empty")
	}

	a.mu.Lock()
	a.outputDir = path
	a.mu.Unlock()

	a.Coordinator.UpdateOutputFolderState(true, a.Config.OutputDir)
	return nil
}

// OutputFolder returns the folder conversions currently write to.
func (a *App) OutputFolder() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outputDir
}

// GetReadinessState returns the full coordinator snapshot.
func (a *App) GetReadinessState() readiness.State {
	return a.Coordinator.State()
}

// GetVoices returns the loaded voice list.
func (a *App) GetVoices() []domain.Voice {
	return a.Coordinator.State().Voices
}

// GetVoiceLoadState exposes the retry loop state to the UI.
func (a *App) GetVoiceLoadState() voices.AttemptState {
	return a.loader.AttemptState()
}

// SetFormat changes the active output format selection.
func (a *App) SetFormat(format string, force bool) bool {
	return a.Coordinator.SetSelectedFormat(domain.OutputFormat(format), force)
}

// ValidateFormat checks a format against current capabilities.
func (a *App) ValidateFormat(format string) readiness.ValidationResult {
	return a.Coordinator.ValidateFormatSelection(domain.OutputFormat(format))
}

// StartConversion validates preconditions, segments the text, and hands the
// job to the conversion runner asynchronously.
func (a *App) StartConversion(text, voiceID string) (domain.Job, error) {
	if !a.Coordinator.IsReady() {
		return domain.Job{}, ErrNotReady
	}
	if strings.TrimSpace(text) == "" {
		return domain.Job{}, fmt.Errorf("conversion text is empty")
	}
	if a.Runner == nil {
		return domain.Job{}, ErrNoConversionRunner
	}

	format := a.Coordinator.SelectedFormat()
	if verdict := a.Coordinator.ValidateFormatSelection(format); !verdict.Valid {
		return domain.Job{}, fmt.Errorf("format %s rejected: %s", format, verdict.Reason)
	}

	job := domain.Job{
		ID:      uuid.NewString(),
		VoiceID: voiceID,
		Format:  format,
	}
	if err := a.Jobs.Start(job); err != nil {
		return domain.Job{}, err
	}

	chunks := segment.Split(text, a.Config.MaxChunkLength)
	a.Jobs.SetChunkCount(len(chunks))

	ctx, cancel := context.WithCancel(context.Background())
	a.mu.Lock()
	a.activeJobID = job.ID
	a.cancel = cancel
	a.mu.Unlock()

	a.publishStatus(job.ID, domain.JobStatusSegmenting, fmt.Sprintf("Split text into %d chunks", len(chunks)))

	go a.runConversion(ctx, job, chunks)
	return a.Jobs.Current(), nil
}

// CancelConversion cancels the currently running job, if any.
func (a *App) CancelConversion() error {
	a.mu.Lock()
	cancel := a.cancel
	activeJobID := a.activeJobID
	a.mu.Unlock()

	if cancel == nil {
		return jobs.ErrNoRunningJob
	}

	cancel()
	if err := a.Jobs.Cancel(); err != nil && !errors.Is(err, jobs.ErrNoRunningJob) {
		return err
	}

	if activeJobID != "" {
		a.publishStatus(activeJobID, domain.JobStatusCancelled, "Cancellation requested")
	}
	return nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// runConversion executes the runner and maps outcomes to job events.
func (a *App) runConversion(ctx context.Context, job domain.Job, chunks []string) {
	req := ConversionRequest{
		JobID:     job.ID,
		Chunks:    chunks,
		VoiceID:   job.VoiceID,
		Format:    job.Format,
		OutputDir: a.OutputFolder(),
		OnStage: func(status domain.JobStatus) {
			if err := a.Jobs.Transition(status); err == nil {
				a.publishStatus(job.ID, status, "Entered "+string(status)+" stage")
			}
		},
	}

	result, err := a.Runner.Run(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			_ = a.Jobs.Transition(domain.JobStatusCancelled)
			a.publishStatus(job.ID, domain.JobStatusCancelled, "Job cancelled")
			a.clearActiveJob(job.ID)
			return
		}

		_ = a.Jobs.Transition(domain.JobStatusFailed)
		a.publishEvent(jobs.Event{
			JobID:   job.ID,
			Type:    jobs.EventTypeError,
			Status:  domain.JobStatusFailed,
			Message: err.Error(),
		})
		a.clearActiveJob(job.ID)
		return
	}

	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(job.ID, domain.JobStatusDone, "Job completed")
	}
	a.publishEvent(jobs.Event{
		JobID:      job.ID,
		Type:       jobs.EventTypeResult,
		Status:     domain.JobStatusDone,
		Message:    "Audio exported",
		Format:     job.Format,
		ChunkCount: len(chunks),
		OutputPath: result.OutputPath,
	})
	a.clearActiveJob(job.ID)
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)
	a.emitRuntime("job:event", published)
}

// emitRuntime pushes one event over the Wails runtime when it is up.
func (a *App) emitRuntime(name string, payload interface{}) {
	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, name, payload)
	}
}

// clearActiveJob clears cancellation handles for completed job IDs.
func (a *App) clearActiveJob(jobID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.activeJobID == jobID {
		a.activeJobID = ""
		a.cancel = nil
	}
}
