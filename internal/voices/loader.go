// Package voices enumerates installed synthesis voices from an external
// command, retrying transient failures with exponential backoff.
package voices

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"

	"tts-converter/internal/domain"
	"tts-converter/internal/proc"
)

// ErrNoVoices indicates enumeration produced zero valid records. It fails
// the attempt the same way a spawn error does.
var ErrNoVoices = errors.New("no voices found")

// ErrLoadInFlight indicates a load sequence is already running; callers
// treat it as a no-op rather than starting an overlapping sequence.
var ErrLoadInFlight = errors.New("voice load already in progress")

// ProgressKind classifies loader progress notifications.
type ProgressKind string

const (
	ProgressStarted        ProgressKind = "started"
	ProgressAttempt        ProgressKind = "attempt"
	ProgressRetryScheduled ProgressKind = "retryScheduled"
	ProgressSucceeded      ProgressKind = "succeeded"
	ProgressFailed         ProgressKind = "failed"
)

// Progress is one loader notification. For a failing three-attempt run the
// stream is: started, attempt 1, retryScheduled, attempt 2, retryScheduled,
// attempt 3, failed.
type Progress struct {
	Kind        ProgressKind  `json:"kind"`
	Attempt     int           `json:"attempt,omitempty"`
	MaxAttempts int           `json:"maxAttempts,omitempty"`
	Delay       time.Duration `json:"delay,omitempty"`
	VoiceCount  int           `json:"voiceCount,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// AttemptState is a read-only snapshot of the retry loop, owned exclusively
// by the loader.
type AttemptState struct {
	IsLoading      bool   `json:"isLoading"`
	CurrentAttempt int    `json:"currentAttempt"`
	MaxAttempts    int    `json:"maxAttempts"`
	LastError      string `json:"lastError,omitempty"`
}

// Result is the structured outcome of one automatic load sequence.
type Result struct {
	Success         bool
	Voices          []domain.Voice
	Attempt         int
	Attempts        int
	Err             error
	Troubleshooting []string
}

// BackoffPolicy maps a 1-based failed attempt number to the wait before the
// next attempt.
type BackoffPolicy func(attempt int) time.Duration

// DefaultBackoff doubles per attempt: 2s after the first failure, 4s after
// the second.
func DefaultBackoff(attempt int) time.Duration {
	return time.Duration(1<<attempt) * time.Second
}

// Options configures a Loader. Zero fields get production defaults.
type Options struct {
	Command     string
	Args        []string
	Timeout     time.Duration
	MaxAttempts int
	Locale      string
	Runner      proc.Runner
	Backoff     BackoffPolicy
	Sleep       func(context.Context, time.Duration) error
	OnProgress  func(Progress)
}

// Loader obtains a non-empty voice list, retrying transient failures. A
// single in-flight flag guarantees at most one attempt sequence at a time.
type Loader struct {
	command    string
	args       []string
	timeout    time.Duration
	max        int
	locale     language.Tag
	runner     proc.Runner
	backoff    BackoffPolicy
	sleep      func(context.Context, time.Duration) error
	onProgress func(Progress)

	mu       sync.Mutex
	inFlight bool
	state    AttemptState
}

// NewLoader builds a loader, applying production defaults for unset options.
func NewLoader(opts Options) *Loader {
	if opts.Command == "" {
		opts.Command, opts.Args = ListCommand(goruntime.GOOS, "resources")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.Runner == nil {
		opts.Runner = proc.NewExecRunner()
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	return &Loader{
		command:    opts.Command,
		args:       opts.Args,
		timeout:    opts.Timeout,
		max:        opts.MaxAttempts,
		locale:     ResolveLocale(opts.Locale),
		runner:     opts.Runner,
		backoff:    opts.Backoff,
		sleep:      opts.Sleep,
		onProgress: opts.OnProgress,
		state:      AttemptState{MaxAttempts: opts.MaxAttempts},
	}
}

// ListCommand returns the platform voice enumeration command. On Windows the
// installed voices come from System.Speech via PowerShell; elsewhere a
// bundled helper emits records in the same shape.
func ListCommand(goos, resourcesDir string) (string, []string) {
	if goos == "windows" {
		script := `Add-Type -AssemblyName System.Speech; ` +
			`(New-Object System.Speech.Synthesis.SpeechSynthesizer).GetInstalledVoices() | ` +
			`ForEach-Object { $v = $_.VoiceInfo; "Name: $($v.Name), Gender: $($v.Gender), Language: $($v.Culture)" }`
		return "powershell", []string{"-NoProfile", "-NonInteractive", "-Command", script}
	}
	return filepath.Join(resourcesDir, goos, goruntime.GOARCH, "list-voices"), nil
}

// Load runs one automatic attempt sequence and always returns a structured
// result, never an error. A concurrent call while a sequence is in flight
// returns a failed result carrying ErrLoadInFlight without side effects.
func (l *Loader) Load(ctx context.Context) Result {
	if !l.begin() {
		return Result{Success: false, Err: ErrLoadInFlight}
	}

	l.notify(Progress{Kind: ProgressStarted, MaxAttempts: l.max})

	var lastErr error
	for attempt := 1; attempt <= l.max; attempt++ {
		l.setAttempt(attempt)
		l.notify(Progress{Kind: ProgressAttempt, Attempt: attempt, MaxAttempts: l.max})

		loaded, err := l.enumerate(ctx)
		if err == nil {
			l.finish(nil)
			l.notify(Progress{Kind: ProgressSucceeded, Attempt: attempt, MaxAttempts: l.max, VoiceCount: len(loaded)})
			log.Info().Int("attempt", attempt).Int("voices", len(loaded)).Msg("voice enumeration succeeded")
			return Result{Success: true, Voices: loaded, Attempt: attempt, Attempts: attempt}
		}

		lastErr = err
		log.Warn().Int("attempt", attempt).Int("maxAttempts", l.max).Err(err).Msg("voice enumeration attempt failed")

		// No wait is issued after the final attempt.
		if attempt < l.max {
			delay := l.backoff(attempt)
			l.notify(Progress{Kind: ProgressRetryScheduled, Attempt: attempt, MaxAttempts: l.max, Delay: delay})
			if sleepErr := l.sleep(ctx, delay); sleepErr != nil {
				lastErr = sleepErr
				l.finish(lastErr)
				l.notify(Progress{Kind: ProgressFailed, Attempt: attempt, MaxAttempts: l.max, Error: lastErr.Error()})
				return Result{Success: false, Attempt: attempt, Attempts: attempt, Err: lastErr, Troubleshooting: Troubleshoot(lastErr)}
			}
		}
	}

	l.finish(lastErr)
	l.notify(Progress{Kind: ProgressFailed, Attempt: l.max, MaxAttempts: l.max, Error: lastErr.Error()})
	log.Error().Int("attempts", l.max).Err(lastErr).Msg("voice enumeration exhausted all attempts")
	return Result{Success: false, Attempt: l.max, Attempts: l.max, Err: lastErr, Troubleshooting: Troubleshoot(lastErr)}
}

// Retry is the manual entrypoint. It resets the attempt counter, re-runs the
// sequence, and unlike Load rejects with the last error on terminal failure.
func (l *Loader) Retry(ctx context.Context) ([]domain.Voice, error) {
	result := l.Load(ctx)
	if result.Err != nil && errors.Is(result.Err, ErrLoadInFlight) {
		return nil, ErrLoadInFlight
	}
	if !result.Success {
		return nil, result.Err
	}
	return result.Voices, nil
}

// AttemptState returns a snapshot of the retry loop state.
func (l *Loader) AttemptState() AttemptState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// enumerate spawns the listing command once and parses its output. A result
// with zero parsed voices fails the attempt.
func (l *Loader) enumerate(ctx context.Context) ([]domain.Voice, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	output, err := l.runner.Run(ctx, l.command, l.args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("voice listing timed out after %s", l.timeout)
		}
		return nil, fmt.Errorf("voice listing command failed (exit %d): %w", output.ExitCode, err)
	}

	parsed := ParseList(output.Stdout)
	if len(parsed) == 0 {
		return nil, ErrNoVoices
	}

	MarkDefault(parsed, l.locale)
	return parsed, nil
}

// begin claims the in-flight flag and resets the attempt counter.
func (l *Loader) begin() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.inFlight {
		return false
	}
	l.inFlight = true
	l.state = AttemptState{IsLoading: true, MaxAttempts: l.max}
	return true
}

// setAttempt records the current attempt number.
func (l *Loader) setAttempt(attempt int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state.CurrentAttempt = attempt
}

// finish releases the in-flight flag and records the terminal error.
func (l *Loader) finish(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	l.state.IsLoading = false
	if err != nil {
		l.state.LastError = err.Error()
	} else {
		l.state.LastError = ""
	}
}

// notify delivers one progress notification when a listener is attached.
func (l *Loader) notify(p Progress) {
	if l.onProgress != nil {
		l.onProgress(p)
	}
}

// sleepContext waits for the delay or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
