package domain

// EncoderSource identifies which fallback-chain candidate provided the encoder.
type EncoderSource string

const (
	EncoderSourceBundled EncoderSource = "bundled"
	EncoderSourceSystem  EncoderSource = "system"
	EncoderSourceNone    EncoderSource = "none"
)

// EncoderStatus is an immutable snapshot of one encoder probe cycle.
// It is overwritten wholesale on re-probe and never mutated in place.
type EncoderStatus struct {
	Available bool          `json:"available"`
	Source    EncoderSource `json:"source"`
	Validated bool          `json:"validated"`
	Path      string        `json:"path,omitempty"`
	Version   string        `json:"version,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// Usable reports whether the encoder can be used for MP3 output.
func (s EncoderStatus) Usable() bool {
	return s.Available && s.Validated
}
