package content

import (
	"time"
)

// Stage identifies one step of the processing pipeline.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageSanitize  Stage = "sanitize"
	StageTransform Stage = "transform"
	StageIndex     Stage = "index"
	StagePublish   Stage = "publish"
)

// Stages lists the pipeline stages in execution order.
func Stages() []Stage {
	return []Stage{StageValidate, StageSanitize, StageTransform, StageIndex, StagePublish}
}

// StageTransition records one state change of a pipeline run.
type StageTransition struct {
	From      string        `json:"from"`
	To        string        `json:"to"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration"` // Time spent in the previous state
	Error     string        `json:"error,omitempty"`
}

// ProcessingResult is the outcome of one pipeline stage or of a whole
// pipeline run. The terminal result of a run is retained in the
// pipeline's results table keyed by ProcessingID.
type ProcessingResult struct {
	Success      bool              `json:"success"`
	Message      string            `json:"message"`
	ProcessingID string            `json:"processingId"`
	Stage        Stage             `json:"stage,omitempty"`
	Duration     time.Duration     `json:"duration"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Transitions  []StageTransition `json:"transitions,omitempty"`
}

// SuccessResult builds a successful stage result.
func SuccessResult(processingID string, stage Stage, message string) *ProcessingResult {
	return &ProcessingResult{
		Success:      true,
		Message:      message,
		ProcessingID: processingID,
		Stage:        stage,
		Metadata:     make(map[string]string),
	}
}

// FailureResult builds a failed stage result.
func FailureResult(processingID string, stage Stage, message string) *ProcessingResult {
	return &ProcessingResult{
		Success:      false,
		Message:      message,
		ProcessingID: processingID,
		Stage:        stage,
		Metadata:     make(map[string]string),
	}
}

// Clone returns an independent deep copy of the result.
func (pr *ProcessingResult) Clone() *ProcessingResult {
	if pr == nil {
		return nil
	}
	clone := *pr
	if pr.Metadata != nil {
		clone.Metadata = make(map[string]string, len(pr.Metadata))
		for k, v := range pr.Metadata {
			clone.Metadata[k] = v
		}
	}
	if pr.Transitions != nil {
		clone.Transitions = make([]StageTransition, len(pr.Transitions))
		copy(clone.Transitions, pr.Transitions)
	}
	return &clone
}
