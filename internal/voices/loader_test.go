package voices

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tts-converter/internal/proc"
)

const voiceOutput = `Name: Microsoft David Desktop, Gender: Male, Language: en-US
Name: Microsoft Zira Desktop, Gender: Female, Language: en-US`

// scriptedRunner returns canned responses per call, in order.
type scriptedRunner struct {
	mu        sync.Mutex
	responses []func() (proc.Result, error)
	calls     int
}

func (r *scriptedRunner) Run(context.Context, string, ...string) (proc.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := r.calls
	r.calls = idx + 1
	if idx >= len(r.responses) {
		idx = len(r.responses) - 1
	}
	return r.responses[idx]()
}

func alwaysFail(err error) *scriptedRunner {
	return &scriptedRunner{responses: []func() (proc.Result, error){
		func() (proc.Result, error) { return proc.Result{ExitCode: 1}, err },
	}}
}

// testLoader wires a loader with recorded sleeps and progress.
func testLoader(t *testing.T, runner proc.Runner) (*Loader, *[]time.Duration, *[]ProgressKind) {
	t.Helper()
	var delays []time.Duration
	var kinds []ProgressKind
	loader := NewLoader(Options{
		Command:     "list-voices",
		MaxAttempts: 3,
		Locale:      "en-US",
		Runner:      runner,
		Sleep: func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		},
		OnProgress: func(p Progress) { kinds = append(kinds, p.Kind) },
	})
	return loader, &delays, &kinds
}

// TestLoadSucceedsFirstAttempt verifies the happy path and default marking.
func TestLoadSucceedsFirstAttempt(t *testing.T) {
	runner := &scriptedRunner{responses: []func() (proc.Result, error){
		func() (proc.Result, error) { return proc.Result{Stdout: voiceOutput}, nil },
	}}
	loader, delays, kinds := testLoader(t, runner)

	result := loader.Load(context.Background())
	require.True(t, result.Success)
	require.Len(t, result.Voices, 2)
	assert.Equal(t, 1, result.Attempt)
	assert.True(t, result.Voices[0].IsDefault)
	assert.Empty(t, *delays)
	assert.Equal(t, []ProgressKind{ProgressStarted, ProgressAttempt, ProgressSucceeded}, *kinds)

	state := loader.AttemptState()
	assert.False(t, state.IsLoading)
	assert.Empty(t, state.LastError)
}

// TestLoadPermanentFailureBacksOff pins the attempt count, the exact delay
// schedule, and the notification ordering for a permanently failing command.
func TestLoadPermanentFailureBacksOff(t *testing.T) {
	runner := alwaysFail(errors.New("spawn failed"))
	loader, delays, kinds := testLoader(t, runner)

	result := loader.Load(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, 3, runner.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *delays)
	assert.Equal(t, []ProgressKind{
		ProgressStarted,
		ProgressAttempt, ProgressRetryScheduled,
		ProgressAttempt, ProgressRetryScheduled,
		ProgressAttempt,
		ProgressFailed,
	}, *kinds)
	assert.NotEmpty(t, result.Troubleshooting)
}

// TestLoadEmptyVoiceListConsumesAttempt treats zero parsed voices like a
// thrown error for retry purposes.
func TestLoadEmptyVoiceListConsumesAttempt(t *testing.T) {
	runner := &scriptedRunner{responses: []func() (proc.Result, error){
		func() (proc.Result, error) { return proc.Result{Stdout: "nothing parseable"}, nil },
		func() (proc.Result, error) { return proc.Result{Stdout: voiceOutput}, nil },
	}}
	loader, delays, _ := testLoader(t, runner)

	result := loader.Load(context.Background())
	require.True(t, result.Success)
	assert.Equal(t, 2, result.Attempt)
	assert.Equal(t, []time.Duration{2 * time.Second}, *delays)
}

// TestLoadEmptyListExhaustion fails with ErrNoVoices after all attempts.
func TestLoadEmptyListExhaustion(t *testing.T) {
	runner := &scriptedRunner{responses: []func() (proc.Result, error){
		func() (proc.Result, error) { return proc.Result{Stdout: ""}, nil },
	}}
	loader, _, _ := testLoader(t, runner)

	result := loader.Load(context.Background())
	require.False(t, result.Success)
	assert.ErrorIs(t, result.Err, ErrNoVoices)
	assert.Equal(t, 3, result.Attempts)
}

// TestRetryRejectsWithLastError checks the manual path propagates failure.
func TestRetryRejectsWithLastError(t *testing.T) {
	failure := errors.New("engine unavailable")
	loader, _, _ := testLoader(t, alwaysFail(failure))

	loaded, err := loader.Retry(context.Background())
	assert.Nil(t, loaded)
	require.Error(t, err)
	assert.ErrorContains(t, err, "engine unavailable")
}

// TestRetryWhileInFlightIsNoOp verifies the single in-flight guard.
func TestRetryWhileInFlightIsNoOp(t *testing.T) {
	firstAttemptStarted := make(chan struct{})
	release := make(chan struct{})
	runner := &scriptedRunner{responses: []func() (proc.Result, error){
		func() (proc.Result, error) {
			close(firstAttemptStarted)
			<-release
			return proc.Result{Stdout: voiceOutput}, nil
		},
	}}
	loader, _, _ := testLoader(t, runner)

	done := make(chan Result, 1)
	go func() { done <- loader.Load(context.Background()) }()
	<-firstAttemptStarted

	_, err := loader.Retry(context.Background())
	assert.ErrorIs(t, err, ErrLoadInFlight)

	close(release)
	result := <-done
	assert.True(t, result.Success)
	assert.Equal(t, 1, runner.calls)
}

// TestAttemptStateTracksProgress exposes loop state to observers.
func TestAttemptStateTracksProgress(t *testing.T) {
	var observed []int
	runner := alwaysFail(errors.New("boom"))
	var loader *Loader
	loader = NewLoader(Options{
		Command:     "list-voices",
		MaxAttempts: 2,
		Runner:      runner,
		Sleep: func(context.Context, time.Duration) error {
			observed = append(observed, loader.AttemptState().CurrentAttempt)
			return nil
		},
	})

	result := loader.Load(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, []int{1}, observed)

	state := loader.AttemptState()
	assert.False(t, state.IsLoading)
	assert.Equal(t, 2, state.CurrentAttempt)
	assert.Equal(t, 2, state.MaxAttempts)
	assert.Contains(t, state.LastError, "boom")
}

// TestLoadCancelledDuringBackoff stops the sequence without further attempts.
func TestLoadCancelledDuringBackoff(t *testing.T) {
	runner := alwaysFail(errors.New("boom"))
	loader := NewLoader(Options{
		Command:     "list-voices",
		MaxAttempts: 3,
		Runner:      runner,
		Sleep: func(context.Context, time.Duration) error {
			return context.Canceled
		},
	})

	result := loader.Load(context.Background())
	require.False(t, result.Success)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, runner.calls)
	assert.ErrorIs(t, result.Err, context.Canceled)
}

// TestTroubleshootClassification picks guidance by error class.
func TestTroubleshootClassification(t *testing.T) {
	perm := Troubleshoot(errors.New("fork/exec: permission denied"))
	require.NotEmpty(t, perm)
	assert.Contains(t, perm[0], "permissions")

	timeout := Troubleshoot(context.DeadlineExceeded)
	require.NotEmpty(t, timeout)
	assert.Contains(t, timeout[0], "too long")

	generic := Troubleshoot(errors.New("something odd"))
	assert.NotEmpty(t, generic)
}
