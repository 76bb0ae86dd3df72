// pkg/schema/events.go
package schema

// BatchRequested asks a worker to run one batch over files it can read.
type BatchRequested struct {
	JobID      string   `json:"job_id"`
	Operation  string   `json:"operation"` // compress | convert
	Format     string   `json:"format,omitempty"`
	Page       int      `json:"page,omitempty"`
	Scale      float64  `json:"scale,omitempty"`
	Sources    []string `json:"sources"`
	HappenedAt int64    `json:"happened_at"`
}

type ProcessingStage string

const (
	StageValidation ProcessingStage = "validation"
	StageProcessing ProcessingStage = "processing"
	StagePackaging  ProcessingStage = "packaging"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

// ProgressEvent is one progress signal of one item.
type ProgressEvent struct {
	JobID      string `json:"job_id"`
	ItemID     string `json:"item_id"`
	Stage      string `json:"stage"`
	Percent    int    `json:"percent"`
	HappenedAt int64  `json:"happened_at"`
}

type ItemResult struct {
	ItemID       string      `json:"item_id"`
	Name         string      `json:"name"`
	OutputName   string      `json:"output_name,omitempty"`
	Status       string      `json:"status"`
	OriginalSize int64       `json:"original_size"`
	OutputSize   int64       `json:"output_size,omitempty"`
	Error        string      `json:"error,omitempty"`
	FailureType  FailureType `json:"failure_type,omitempty"`
}

type BatchLifecycleEvent struct {
	JobID           string          `json:"job_id"`
	Operation       string          `json:"operation"`
	Stage           ProcessingStage `json:"stage"`
	ProcessingStart int64           `json:"processing_start,omitempty"`
	ProcessingEnd   int64           `json:"processing_end,omitempty"`
	Error           string          `json:"error,omitempty"`
	FailureType     FailureType     `json:"failure_type,omitempty"`
	HappenedAt      int64           `json:"happened_at"`
}

type BatchDone struct {
	ID               string                `json:"id"`
	Operation        string                `json:"operation"`
	Format           string                `json:"format,omitempty"`
	ArchivePath      string                `json:"archive_path,omitempty"`
	TotalProcessed   int                   `json:"total_processed"`
	TotalFailed      int                   `json:"total_failed"`
	TotalRejected    int                   `json:"total_rejected"`
	OriginalBytes    int64                 `json:"original_bytes"`
	OutputBytes      int64                 `json:"output_bytes"`
	SavingsPercent   float64               `json:"savings_percent"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
	Results          []ItemResult          `json:"results,omitempty"`
	Lifecycle        []BatchLifecycleEvent `json:"lifecycle,omitempty"`
	Error            string                `json:"error,omitempty"`
	FailureType      FailureType           `json:"failure_type,omitempty"`
	HappenedAt       int64                 `json:"happened_at"`
}
