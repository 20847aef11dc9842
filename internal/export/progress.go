package export

// Stage names emitted by the pipeline, in strict order. No stage is skipped
// or repeated except Exporting, which ticks incrementally.
const (
	StageInitializing = "Initializing"
	StagePreparing    = "Preparing"
	StageExporting    = "Exporting"
	StagePackaging    = "Packaging"
	StageComplete     = "Complete"
)

// Progress is one staged update from the pipeline.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// ProgressSink receives staged updates. Emit is called synchronously from
// the per-message hot loop and must be cheap and non-blocking; a slow sink
// directly stalls the export.
type ProgressSink interface {
	Emit(Progress)
}

// ProgressFunc adapts a function to a ProgressSink.
type ProgressFunc func(Progress)

// Emit calls f.
func (f ProgressFunc) Emit(p Progress) { f(p) }

// NopSink discards all updates.
var NopSink ProgressSink = ProgressFunc(func(Progress) {})
