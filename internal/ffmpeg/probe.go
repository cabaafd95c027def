// Package ffmpeg detects and validates an external audio encoder through a
// bundled-then-system fallback chain.
package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	goruntime "runtime"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"tts-converter/internal/domain"
	"tts-converter/internal/proc"
)

// versionPattern tolerantly matches the encoder's version banner, e.g.
// "ffmpeg version 6.1.1-static ...".
var versionPattern = regexp.MustCompile(`version\s+(\S+)`)

// Probe answers "is there a usable encoder, and where" without throwing.
// It is stateless per call and may be invoked again to re-probe.
type Probe struct {
	resourcesDir string
	command      string
	timeout      time.Duration
	runner       proc.Runner
	lookPath     func(string) (string, error)
	stat         func(string) (os.FileInfo, error)
	goos         string
	goarch       string
}

// NewProbe builds a probe using real OS dependencies.
func NewProbe(resourcesDir string, timeout time.Duration) *Probe {
	return &Probe{
		resourcesDir: resourcesDir,
		command:      "ffmpeg",
		timeout:      timeout,
		runner:       proc.NewExecRunner(),
		lookPath:     exec.LookPath,
		stat:         os.Stat,
		goos:         goruntime.GOOS,
		goarch:       goruntime.GOARCH,
	}
}

// NewProbeForTests creates a probe with injectable dependencies.
func NewProbeForTests(
	resourcesDir string,
	timeout time.Duration,
	runner proc.Runner,
	lookPath func(string) (string, error),
	stat func(string) (os.FileInfo, error),
	goos string,
	goarch string,
) *Probe {
	return &Probe{
		resourcesDir: resourcesDir,
		command:      "ffmpeg",
		timeout:      timeout,
		runner:       runner,
		lookPath:     lookPath,
		stat:         stat,
		goos:         goos,
		goarch:       goarch,
	}
}

// BundledPath resolves the platform-convention location of the shipped binary.
func (p *Probe) BundledPath() string {
	name := p.command
	if p.goos == "windows" {
		name += ".exe"
	}
	return filepath.Join(p.resourcesDir, p.goos, p.goarch, name)
}

// Detect walks the fallback chain and returns the first candidate that
// validates. Every failure along the chain is swallowed and recorded only in
// the final Error field; absence of an encoder is not fatal to the caller.
func (p *Probe) Detect(ctx context.Context) domain.EncoderStatus {
	var lastErr error

	bundled := p.BundledPath()
	if _, err := p.stat(bundled); err != nil {
		lastErr = fmt.Errorf("bundled encoder not found at %s: %w", bundled, err)
		log.Debug().Str("path", bundled).Err(err).Msg("bundled encoder missing")
	} else if version, err := p.validate(ctx, bundled); err != nil {
		lastErr = fmt.Errorf("bundled encoder at %s failed validation: %w", bundled, err)
		log.Debug().Str("path", bundled).Err(err).Msg("bundled encoder failed validation")
	} else {
		log.Info().Str("path", bundled).Str("version", version).Msg("using bundled encoder")
		return domain.EncoderStatus{
			Available: true,
			Source:    domain.EncoderSourceBundled,
			Validated: true,
			Path:      bundled,
			Version:   version,
		}
	}

	if path, err := p.lookPath(p.command); err != nil {
		lastErr = fmt.Errorf("%s not found in PATH: %w", p.command, err)
	} else if version, err := p.validate(ctx, path); err != nil {
		lastErr = fmt.Errorf("system encoder at %s failed validation: %w", path, err)
	} else {
		log.Info().Str("path", path).Str("version", version).Msg("using system encoder")
		return domain.EncoderStatus{
			Available: true,
			Source:    domain.EncoderSourceSystem,
			Validated: true,
			Path:      path,
			Version:   version,
		}
	}

	// Last resort: the bare command name may resolve through shell-level
	// mechanisms that LookPath does not see.
	if version, err := p.validate(ctx, p.command); err != nil {
		lastErr = fmt.Errorf("invoking %s directly failed: %w", p.command, err)
	} else {
		log.Info().Str("command", p.command).Str("version", version).Msg("using encoder from bare command")
		return domain.EncoderStatus{
			Available: true,
			Source:    domain.EncoderSourceSystem,
			Validated: true,
			Path:      p.command,
			Version:   version,
		}
	}

	log.Warn().Err(lastErr).Msg("no usable encoder found, MP3 output will be unavailable")
	return domain.EncoderStatus{
		Available: false,
		Source:    domain.EncoderSourceNone,
		Error:     lastErr.Error(),
	}
}

// validate spawns the candidate with a version flag and parses its banner.
func (p *Probe) validate(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	result, err := p.runner.Run(ctx, path, "-version")
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("version check timed out after %s", p.timeout)
		}
		return "", fmt.Errorf("version check failed (exit %d): %w", result.ExitCode, err)
	}

	match := versionPattern.FindStringSubmatch(result.Stdout)
	if match == nil {
		return "", fmt.Errorf("version banner not recognized: %q", firstLine(result.Stdout))
	}
	return match[1], nil
}

// firstLine trims output to its first line for error messages.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
