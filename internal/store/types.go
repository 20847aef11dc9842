package store

// Job statuses recorded in the ledger.
const (
	StatusUploading  = "uploading"
	StatusProcessing = "processing"
	StatusFailed     = "failed"
)

// Job represents one export-and-upload run.
type Job struct {
	ID           string // local uuid
	JobID        string // server-assigned job id
	Status       string
	ChatCount    int
	MessageCount int
	ArchiveBytes int64
	ResultsURL   string
	CreatedAt    int64 // unix millis
}
