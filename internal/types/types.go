package types

import "time"

// Status is the lifecycle state of a transcription job.
type Status string

// Job status constants
const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Source type constants
const (
	SourceUpload = "upload"
	SourceCLI    = "cli"
)

// LanguageAuto asks the engine to detect the spoken language.
const LanguageAuto = "auto"

// Segment represents a timestamped segment of transcription
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// TranscriptionResult is the payload of a completed job.
type TranscriptionResult struct {
	Transcript string    `json:"transcript"`
	Language   string    `json:"language"`
	Device     string    `json:"device"`
	SizeMB     float64   `json:"size_mb"`
	Duration   float64   `json:"duration"`
	WordCount  int       `json:"word_count"`
	Segments   []Segment `json:"segments,omitempty"`
}

// Snapshot is a point-in-time, self-contained view of a job.
type Snapshot struct {
	ID              string               `json:"job_id"`
	Name            string               `json:"name,omitempty"`
	Language        string               `json:"language,omitempty"`
	Status          Status               `json:"status"`
	Progress        float64              `json:"progress"`
	Result          *TranscriptionResult `json:"result,omitempty"`
	Error           string               `json:"error,omitempty"`
	CancelRequested bool                 `json:"cancel_requested"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
	FinishedAt      *time.Time           `json:"finished_at,omitempty"`
}

// TranscriptRecord is one archived transcript row.
type TranscriptRecord struct {
	JobID       string    `json:"job_id"`
	RequestName string    `json:"request_name"`
	SourceType  string    `json:"source_type"`
	GDriveURL   string    `json:"gdrive_url,omitempty"`
	LocalPath   string    `json:"local_path"`
	Language    string    `json:"language"`
	CreatedAt   time.Time `json:"created_at"`
	Duration    float64   `json:"duration"`
	WordCount   int       `json:"word_count"`
}
