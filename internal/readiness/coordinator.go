// Package readiness derives the single "can the app convert now" signal and
// keeps the output-format selection consistent with capability state.
package readiness

import (
	"sync"

	"github.com/rs/zerolog/log"

	"tts-converter/internal/domain"
)

// ReasonMP3Unavailable is attached to automatic downgrades when the encoder
// stops being usable.
const ReasonMP3Unavailable = "mp3_unavailable"

// State is an immutable snapshot of all readiness signals plus the derived
// fields. Callers never mutate it; the coordinator overwrites its own copy
// through the Update methods only.
type State struct {
	Initializing        bool                 `json:"initializing"`
	VoicesLoading       bool                 `json:"voicesLoading"`
	VoicesLoaded        bool                 `json:"voicesLoaded"`
	Voices              []domain.Voice       `json:"voices"`
	VoiceAttempt        int                  `json:"voiceAttempt"`
	VoiceError          string               `json:"voiceError,omitempty"`
	FFmpeg              domain.EncoderStatus `json:"ffmpeg"`
	OutputFolderSet     bool                 `json:"outputFolderSet"`
	DefaultOutputFolder string               `json:"defaultOutputFolder,omitempty"`

	// Derived, never set directly.
	Ready          bool                `json:"ready"`
	MP3Available   bool                `json:"mp3Available"`
	SelectedFormat domain.OutputFormat `json:"selectedFormat"`
}

// ValidationResult is the outcome of a format selection query.
type ValidationResult struct {
	Valid           bool                `json:"valid"`
	Reason          string              `json:"reason,omitempty"`
	SuggestedFormat domain.OutputFormat `json:"suggestedFormat,omitempty"`
}

// ListenerID identifies one subscription for removal.
type ListenerID int64

// Coordinator owns the readiness state. All fields are mutated exclusively
// through its Update methods, each of which recomputes the derived signals
// and notifies subscribers before returning.
type Coordinator struct {
	mu        sync.Mutex
	state     State
	listeners map[EventKind]map[ListenerID]func(Event)
	nextID    ListenerID
}

// NewCoordinator starts in the initializing state with WAV selected; MP3
// only becomes selectable once an encoder probe validates.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		state: State{
			Initializing:   true,
			SelectedFormat: domain.FormatWAV,
			FFmpeg:         domain.EncoderStatus{Source: domain.EncoderSourceNone},
		},
		listeners: make(map[EventKind]map[ListenerID]func(Event)),
	}
}

// Subscribe registers a callback for one event kind and returns its id.
func (c *Coordinator) Subscribe(kind EventKind, fn func(Event)) ListenerID {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	if c.listeners[kind] == nil {
		c.listeners[kind] = make(map[ListenerID]func(Event))
	}
	c.listeners[kind][id] = fn
	return id
}

// Unsubscribe removes a previously registered callback.
func (c *Coordinator) Unsubscribe(kind EventKind, id ListenerID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.listeners[kind], id)
}

// UpdateVoiceState records voice-load progress and recomputes readiness.
func (c *Coordinator) UpdateVoiceState(loading, loaded bool, voiceList []domain.Voice, attempt int, loadErr error) {
	c.mu.Lock()
	c.state.VoicesLoading = loading
	c.state.VoicesLoaded = loaded
	c.state.Voices = append([]domain.Voice(nil), voiceList...)
	c.state.VoiceAttempt = attempt
	if loadErr != nil {
		c.state.VoiceError = loadErr.Error()
	} else {
		c.state.VoiceError = ""
	}
	c.recomputeLocked()

	events := []Event{VoiceEvent{
		Loading: loading,
		Loaded:  loaded,
		Voices:  append([]domain.Voice(nil), c.state.Voices...),
		Attempt: attempt,
		Error:   c.state.VoiceError,
	}}
	c.emitLocked(events)
}

// UpdateFFmpegState records an encoder probe snapshot, recomputes MP3
// eligibility, and downgrades the active selection when MP3 becomes
// unavailable while selected. The downgrade event fires exactly once,
// inside this call.
func (c *Coordinator) UpdateFFmpegState(status domain.EncoderStatus) {
	c.mu.Lock()
	wasUsable := c.state.MP3Available
	c.state.FFmpeg = status
	c.recomputeLocked()
	nowUsable := c.state.MP3Available

	events := []Event{FFmpegEvent{Status: status}}
	if wasUsable != nowUsable {
		events = append(events, FormatAvailabilityEvent{MP3Available: nowUsable})
	}
	if wasUsable && !nowUsable && c.state.SelectedFormat == domain.FormatMP3 {
		c.state.SelectedFormat = domain.FormatWAV
		events = append(events, AutomaticFormatChangeEvent{
			NewFormat: domain.FormatWAV,
			Reason:    ReasonMP3Unavailable,
		})
		log.Info().Msg("encoder became unavailable, output format downgraded to wav")
	}
	// No forced upgrade: an unusable-to-usable transition leaves an
	// existing wav selection alone.
	c.emitLocked(events)
}

// UpdateOutputFolderState records the output folder signal.
func (c *Coordinator) UpdateOutputFolderState(set bool, defaultFolder string) {
	c.mu.Lock()
	c.state.OutputFolderSet = set
	c.state.DefaultOutputFolder = defaultFolder
	c.recomputeLocked()

	c.emitLocked([]Event{OutputFolderEvent{Set: set, DefaultFolder: defaultFolder}})
}

// UpdateInitializationState records startup progress.
func (c *Coordinator) UpdateInitializationState(initializing bool) {
	c.mu.Lock()
	c.state.Initializing = initializing
	c.recomputeLocked()

	c.emitLocked([]Event{InitializationEvent{Initializing: initializing}})
}

// RequestAction asks the UI layer to surface an affordance.
func (c *Coordinator) RequestAction(name string) {
	c.mu.Lock()
	c.emitLocked([]Event{ActionEvent{Name: name}})
}

// IsReady reports whether all conversion preconditions hold.
func (c *Coordinator) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Ready
}

// HasVoices reports whether at least one voice is loaded.
func (c *Coordinator) HasVoices() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.state.Voices) > 0
}

// CanConvertToMP3 reports current MP3 eligibility.
func (c *Coordinator) CanConvertToMP3() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.MP3Available
}

// SelectedFormat returns the active output format.
func (c *Coordinator) SelectedFormat() domain.OutputFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.SelectedFormat
}

// SetSelectedFormat changes the active format. Selecting MP3 while it is
// unavailable is rejected unless force is set; an unknown format is always
// rejected. Returns whether the selection was applied.
func (c *Coordinator) SetSelectedFormat(format domain.OutputFormat, force bool) bool {
	c.mu.Lock()
	if !format.IsValid() {
		c.mu.Unlock()
		return false
	}
	if format == domain.FormatMP3 && !c.state.MP3Available && !force {
		c.mu.Unlock()
		return false
	}
	if c.state.SelectedFormat == format {
		c.mu.Unlock()
		return true
	}

	c.state.SelectedFormat = format
	c.emitLocked(nil)
	return true
}

// ValidateFormatSelection is a pure query against current state; it never
// mutates. It guards the UI picker and the start of a conversion job.
func (c *Coordinator) ValidateFormatSelection(format domain.OutputFormat) ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !format.IsValid() {
		return ValidationResult{
			Valid:           false,
			Reason:          "unsupported format",
			SuggestedFormat: domain.FormatWAV,
		}
	}
	if format == domain.FormatMP3 && !c.state.MP3Available {
		return ValidationResult{
			Valid:           false,
			Reason:          ReasonMP3Unavailable,
			SuggestedFormat: domain.FormatWAV,
		}
	}
	return ValidationResult{Valid: true}
}

// State returns an immutable snapshot of the coordinator state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// recomputeLocked derives ready and MP3 eligibility from the raw signals.
// Invariant: ready == !initializing && voicesLoaded && (folder set or a
// default folder exists).
func (c *Coordinator) recomputeLocked() {
	c.state.Ready = !c.state.Initializing &&
		c.state.VoicesLoaded &&
		(c.state.OutputFolderSet || c.state.DefaultOutputFolder != "")
	c.state.MP3Available = c.state.FFmpeg.Usable()
}

// snapshotLocked copies the state so callers cannot alias the voice slice.
func (c *Coordinator) snapshotLocked() State {
	snapshot := c.state
	snapshot.Voices = append([]domain.Voice(nil), c.state.Voices...)
	return snapshot
}

// emitLocked releases the lock and delivers the given events followed by
// one StateChange snapshot. The caller must hold the lock; it is released
// here so listeners may call back into the coordinator.
func (c *Coordinator) emitLocked(events []Event) {
	events = append(events, StateChangeEvent{State: c.snapshotLocked()})

	type delivery struct {
		fn    func(Event)
		event Event
	}
	var deliveries []delivery
	for _, event := range events {
		for _, fn := range c.listeners[event.Kind()] {
			deliveries = append(deliveries, delivery{fn: fn, event: event})
		}
	}
	c.mu.Unlock()

	for _, d := range deliveries {
		d.fn(d.event)
	}
}
