package ffmpeg

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tts-converter/internal/domain"
	"tts-converter/internal/proc"
)

// fakeRunner answers version checks per executable path.
type fakeRunner struct {
	outputs map[string]proc.Result
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) Run(_ context.Context, name string, _ ...string) (proc.Result, error) {
	r.calls = append(r.calls, name)
	if err, ok := r.errs[name]; ok {
		return proc.Result{ExitCode: 1}, err
	}
	if out, ok := r.outputs[name]; ok {
		return out, nil
	}
	return proc.Result{ExitCode: -1}, errors.New("executable file not found")
}

func statFound(string) (os.FileInfo, error)   { return nil, nil }
func statMissing(string) (os.FileInfo, error) { return nil, os.ErrNotExist }

func newTestProbe(runner proc.Runner, lookPath func(string) (string, error), stat func(string) (os.FileInfo, error)) *Probe {
	return NewProbeForTests("resources", time.Second, runner, lookPath, stat, "linux", "amd64")
}

// TestDetectBundledEncoderValidates covers the happy path of the chain.
func TestDetectBundledEncoderValidates(t *testing.T) {
	bundled := filepath.Join("resources", "linux", "amd64", "ffmpeg")
	runner := &fakeRunner{outputs: map[string]proc.Result{
		bundled: {Stdout: "ffmpeg version 6.1.1-static Copyright (c) 2000-2023"},
	}}

	probe := newTestProbe(runner, func(string) (string, error) {
		t.Fatal("system lookup should not run when bundled validates")
		return "", nil
	}, statFound)

	status := probe.Detect(context.Background())
	require.True(t, status.Available)
	assert.Equal(t, domain.EncoderSourceBundled, status.Source)
	assert.True(t, status.Validated)
	assert.Equal(t, bundled, status.Path)
	assert.Equal(t, "6.1.1-static", status.Version)
	assert.Empty(t, status.Error)
}

// TestDetectFallsBackToSystem checks bundled failure + system success.
func TestDetectFallsBackToSystem(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]proc.Result{
		"/usr/bin/ffmpeg": {Stdout: "ffmpeg version n7.0"},
	}}

	probe := newTestProbe(runner, func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}, statMissing)

	status := probe.Detect(context.Background())
	require.True(t, status.Available)
	assert.Equal(t, domain.EncoderSourceSystem, status.Source)
	assert.Equal(t, "/usr/bin/ffmpeg", status.Path)
	assert.Equal(t, "n7.0", status.Version)
}

// TestDetectBundledInvalidOutputFallsBack treats an unparsable banner as a
// failed candidate, not a probe error.
func TestDetectBundledInvalidOutputFallsBack(t *testing.T) {
	bundled := filepath.Join("resources", "linux", "amd64", "ffmpeg")
	runner := &fakeRunner{outputs: map[string]proc.Result{
		bundled:           {Stdout: "segmentation fault"},
		"/usr/bin/ffmpeg": {Stdout: "ffmpeg version 5.1.4"},
	}}

	probe := newTestProbe(runner, func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}, statFound)

	status := probe.Detect(context.Background())
	require.True(t, status.Available)
	assert.Equal(t, domain.EncoderSourceSystem, status.Source)
}

// TestDetectBareCommandLastResort validates the final chain candidate.
func TestDetectBareCommandLastResort(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]proc.Result{
		"ffmpeg": {Stdout: "ffmpeg version 4.4"},
	}}

	probe := newTestProbe(runner, func(string) (string, error) {
		return "", errors.New("not in PATH")
	}, statMissing)

	status := probe.Detect(context.Background())
	require.True(t, status.Available)
	assert.Equal(t, domain.EncoderSourceSystem, status.Source)
	assert.Equal(t, "ffmpeg", status.Path)
}

// TestDetectAllCandidatesFail returns a non-fatal unavailable status.
func TestDetectAllCandidatesFail(t *testing.T) {
	runner := &fakeRunner{}

	probe := newTestProbe(runner, func(string) (string, error) {
		return "", errors.New("not in PATH")
	}, statMissing)

	status := probe.Detect(context.Background())
	assert.False(t, status.Available)
	assert.Equal(t, domain.EncoderSourceNone, status.Source)
	assert.False(t, status.Validated)
	assert.NotEmpty(t, status.Error)
}

// TestDetectSystemValidationFailureRecordsLastError keeps the last failure
// in the final error field when every candidate fails.
func TestDetectSystemValidationFailureRecordsLastError(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{
		"/usr/bin/ffmpeg": errors.New("exit status 127"),
		"ffmpeg":          errors.New("exit status 127"),
	}}

	probe := newTestProbe(runner, func(name string) (string, error) {
		return "/usr/bin/" + name, nil
	}, statMissing)

	status := probe.Detect(context.Background())
	require.False(t, status.Available)
	assert.Contains(t, status.Error, "ffmpeg")
}

// TestBundledPathWindowsSuffix checks the platform path convention.
func TestBundledPathWindowsSuffix(t *testing.T) {
	probe := NewProbeForTests("resources", time.Second, &fakeRunner{}, nil, nil, "windows", "arm64")
	assert.Equal(t, filepath.Join("resources", "windows", "arm64", "ffmpeg.exe"), probe.BundledPath())
}
