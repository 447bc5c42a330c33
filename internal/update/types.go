package update

import (
	"fmt"
	"time"
)

// UpdateDescriptor is the update metadata served by the update server.
// It is read-only once retrieved.
type UpdateDescriptor struct {
	Version        string            `json:"version" yaml:"version"`
	DownloadURL    string            `json:"downloadUrl" yaml:"download_url"`
	FileSizeBytes  int64             `json:"fileSizeBytes" yaml:"file_size_bytes"`
	ContentHash    string            `json:"contentHash" yaml:"content_hash"` // hex sha256, compared case-insensitively
	ReleaseNotes   string            `json:"releaseNotes,omitempty" yaml:"release_notes,omitempty"`
	Mandatory      bool              `json:"mandatory" yaml:"mandatory"`
	MinimumVersion string            `json:"minimumVersion,omitempty" yaml:"minimum_version,omitempty"`
	ReleaseDate    time.Time         `json:"releaseDate" yaml:"release_date"`
	Metadata       map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Status tags an Outcome.
type Status int

const (
	StatusNoUpdateAvailable Status = iota
	StatusUpdateAvailable
	StatusDownloading
	StatusDownloaded
	StatusInstalling
	StatusCompleted
	StatusFailed
	StatusCancelled
)

var statusNames = map[Status]string{
	StatusNoUpdateAvailable: "no-update-available",
	StatusUpdateAvailable:   "update-available",
	StatusDownloading:       "downloading",
	StatusDownloaded:        "downloaded",
	StatusInstalling:        "installing",
	StatusCompleted:         "completed",
	StatusFailed:            "failed",
	StatusCancelled:         "cancelled",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status name in json and yaml output.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Outcome is the result of a pipeline stage. Outcomes are built fresh at every
// transition and passed by value.
type Outcome struct {
	Status     Status            `json:"status" yaml:"status"`
	Descriptor *UpdateDescriptor `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	Progress   int               `json:"progress" yaml:"progress"` // 0-100
	Message    string            `json:"message,omitempty" yaml:"message,omitempty"`
	Err        error             `json:"-" yaml:"-"`
}

// IsSuccess is true for every status except StatusFailed.
func (o Outcome) IsSuccess() bool {
	return o.Status != StatusFailed
}

// String renders a one-line summary.
func (o Outcome) String() string {
	s := o.Status.String()
	if o.Descriptor != nil && o.Descriptor.Version != "" {
		s += " " + o.Descriptor.Version
	}
	switch o.Status {
	case StatusDownloading, StatusInstalling:
		s += fmt.Sprintf(" (%d%%)", o.Progress)
	}
	if o.Message != "" {
		s += ": " + o.Message
	}
	return s
}

// StatusFunc observes stage transitions.
type StatusFunc func(Outcome)

// ProgressFunc observes progress in whole percent.
type ProgressFunc func(percent int)

// Notify calls fn if it is set.
func (fn StatusFunc) Notify(o Outcome) {
	if fn != nil {
		fn(o)
	}
}

func NoUpdate(d *UpdateDescriptor) Outcome {
	return Outcome{Status: StatusNoUpdateAvailable, Descriptor: d}
}

func Available(d *UpdateDescriptor) Outcome {
	return Outcome{Status: StatusUpdateAvailable, Descriptor: d}
}

func Downloading(d *UpdateDescriptor, percent int) Outcome {
	return Outcome{Status: StatusDownloading, Descriptor: d, Progress: clampPercent(percent)}
}

func Downloaded(d *UpdateDescriptor) Outcome {
	return Outcome{Status: StatusDownloaded, Descriptor: d, Progress: 100}
}

func Installing(d *UpdateDescriptor, percent int) Outcome {
	return Outcome{Status: StatusInstalling, Descriptor: d, Progress: clampPercent(percent)}
}

func Completed(d *UpdateDescriptor) Outcome {
	return Outcome{Status: StatusCompleted, Descriptor: d, Progress: 100}
}

func Cancelled(d *UpdateDescriptor) Outcome {
	return Outcome{Status: StatusCancelled, Descriptor: d}
}

// Failed builds a failed outcome; the message carries err's text.
func Failed(d *UpdateDescriptor, err error) Outcome {
	o := Outcome{Status: StatusFailed, Descriptor: d, Err: err}
	if err != nil {
		o.Message = err.Error()
	}
	return o
}

func clampPercent(p int) int {
	return max(0, min(100, p))
}
