package readiness

import "tts-converter/internal/domain"

// EventKind is a closed enumeration of coordinator event kinds. Each kind
// carries its own typed payload; there is no stringly-typed dispatch.
type EventKind string

const (
	KindVoice                 EventKind = "voice"
	KindFFmpeg                EventKind = "ffmpeg"
	KindOutputFolder          EventKind = "outputFolder"
	KindInitialization        EventKind = "initialization"
	KindFormatAvailability    EventKind = "formatAvailability"
	KindAutomaticFormatChange EventKind = "automaticFormatChange"
	KindAction                EventKind = "action"
	KindStateChange           EventKind = "stateChange"
)

// Event is one coordinator notification. Delivery is synchronous within the
// mutating call that produced it.
type Event interface {
	Kind() EventKind
}

// VoiceEvent reports voice-load progress and outcome.
type VoiceEvent struct {
	Loading bool           `json:"loading"`
	Loaded  bool           `json:"loaded"`
	Voices  []domain.Voice `json:"voices,omitempty"`
	Attempt int            `json:"attempt,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Kind implements Event.
func (VoiceEvent) Kind() EventKind { return KindVoice }

// FFmpegEvent reports the latest encoder probe snapshot.
type FFmpegEvent struct {
	Status domain.EncoderStatus `json:"status"`
}

// Kind implements Event.
func (FFmpegEvent) Kind() EventKind { return KindFFmpeg }

// OutputFolderEvent reports output folder selection changes.
type OutputFolderEvent struct {
	Set           bool   `json:"set"`
	DefaultFolder string `json:"defaultFolder,omitempty"`
}

// Kind implements Event.
func (OutputFolderEvent) Kind() EventKind { return KindOutputFolder }

// InitializationEvent reports startup progress.
type InitializationEvent struct {
	Initializing bool `json:"initializing"`
}

// Kind implements Event.
func (InitializationEvent) Kind() EventKind { return KindInitialization }

// FormatAvailabilityEvent reports MP3 eligibility transitions.
type FormatAvailabilityEvent struct {
	MP3Available bool `json:"mp3Available"`
}

// Kind implements Event.
func (FormatAvailabilityEvent) Kind() EventKind { return KindFormatAvailability }

// AutomaticFormatChangeEvent reports a forced downgrade of the active
// output format.
type AutomaticFormatChangeEvent struct {
	NewFormat domain.OutputFormat `json:"newFormat"`
	Reason    string              `json:"reason"`
}

// Kind implements Event.
func (AutomaticFormatChangeEvent) Kind() EventKind { return KindAutomaticFormatChange }

// ActionEvent asks the UI layer to surface an affordance, e.g. a retry
// button on the error banner.
type ActionEvent struct {
	Name string `json:"name"`
}

// Kind implements Event.
func (ActionEvent) Kind() EventKind { return KindAction }

// StateChangeEvent carries a full state snapshot after any update.
type StateChangeEvent struct {
	State State `json:"state"`
}

// Kind implements Event.
func (StateChangeEvent) Kind() EventKind { return KindStateChange }
