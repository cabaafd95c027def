package domain

// JobStatus tracks each pipeline stage for a single conversion job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusSegmenting   JobStatus = "segmenting"
	JobStatusSynthesizing JobStatus = "synthesizing"
	JobStatusEncoding     JobStatus = "encoding"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
	JobStatusCancelled    JobStatus = "cancelled"
)

// OutputFormat is a supported audio output format for conversion jobs.
type OutputFormat string

const (
	FormatWAV OutputFormat = "wav"
	FormatMP3 OutputFormat = "mp3"
)

// IsValid reports whether the format is one of the supported output formats.
func (f OutputFormat) IsValid() bool {
	return f == FormatWAV || f == FormatMP3
}

// Job stores the current job identity, lifecycle status, and work summary.
type Job struct {
	ID         string       `json:"id"`
	Status     JobStatus    `json:"status"`
	VoiceID    string       `json:"voiceId,omitempty"`
	Format     OutputFormat `json:"format,omitempty"`
	ChunkCount int          `json:"chunkCount,omitempty"`
}
