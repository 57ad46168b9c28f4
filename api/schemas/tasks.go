package schemas

import "time"

// -- Task Schemas --

// FillTask is a single unit of work: fill the form at URL with Profile.
type FillTask struct {
	ID              string            `json:"id" mapstructure:"id"`
	URL             string            `json:"url" mapstructure:"url"`
	Profile         *CandidateProfile `json:"candidate_profile" mapstructure:"candidate_profile"`
	DetectionMethod Strategy          `json:"detection_method,omitempty" mapstructure:"detection_method"`
	// Submit controls whether the form is submitted after filling.
	Submit bool `json:"submit" mapstructure:"submit"`
}

// Severity distinguishes hard field failures from advisory warnings.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// FieldError records why a single field, or the submission step, failed.
type FieldError struct {
	FieldID  string   `json:"field_id"`
	Label    string   `json:"label,omitempty"`
	Reason   string   `json:"reason"`
	Severity Severity `json:"severity"`
}

// Checkpoint names the moment a screenshot was captured.
type Checkpoint string

const (
	CheckpointPostLoad   Checkpoint = "post_load"
	CheckpointPostFill   Checkpoint = "post_fill"
	CheckpointPostSubmit Checkpoint = "post_submit"
)

// Screenshot is an opaque PNG blob. encoding/json renders Data as base64.
type Screenshot struct {
	Checkpoint Checkpoint `json:"checkpoint"`
	Data       []byte     `json:"data"`
	CapturedAt time.Time  `json:"captured_at"`
}

// FillResult is the terminal outcome of a FillTask.
type FillResult struct {
	TaskID               string       `json:"task_id"`
	URL                  string       `json:"url"`
	DetectionMethod      Strategy     `json:"detection_method"`
	FieldsDetected       int          `json:"fields_detected"`
	FieldsAttempted      int          `json:"fields_attempted"`
	FieldsFilled         int          `json:"fields_filled"`
	Errors               []FieldError `json:"errors"`
	Screenshots          []Screenshot `json:"screenshots"`
	Submitted            bool         `json:"submitted"`
	ConfirmationReceived bool         `json:"confirmation_received"`
	StartedAt            time.Time    `json:"started_at"`
	FinishedAt           time.Time    `json:"finished_at"`
}

// NewFillResult returns a result with non-nil slices so that it serializes
// as empty arrays rather than null.
func NewFillResult(task FillTask, method Strategy) *FillResult {
	return &FillResult{
		TaskID:          task.ID,
		URL:             task.URL,
		DetectionMethod: method,
		Errors:          []FieldError{},
		Screenshots:     []Screenshot{},
		StartedAt:       time.Now().UTC(),
	}
}

// AddError appends a field-level error.
func (r *FillResult) AddError(fieldID, label, reason string, severity Severity) {
	r.Errors = append(r.Errors, FieldError{FieldID: fieldID, Label: label, Reason: reason, Severity: severity})
}
