package models

import "encoding/json"

// ErrorHandlingMode is the per-workflow failure policy.
type ErrorHandlingMode string

const (
	ErrorHandlingStop     ErrorHandlingMode = "stop"
	ErrorHandlingContinue ErrorHandlingMode = "continue"
	ErrorHandlingRetry    ErrorHandlingMode = "retry"
)

// Settings defaults applied to workflows saved without explicit values.
const (
	DefaultTimezone      = "UTC"
	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 1000   // ms
	DefaultTimeout       = 300000 // ms
)

// WorkflowSettings holds the execution policy knobs of a workflow.
type WorkflowSettings struct {
	Timezone              string            `json:"timezone"`
	ErrorHandling         ErrorHandlingMode `json:"errorHandling"         validate:"omitempty,oneof=stop continue retry"`
	RetryAttempts         int               `json:"retryAttempts"         validate:"min=0"`
	RetryDelay            int               `json:"retryDelay"            validate:"min=0"` // ms
	Timeout               int               `json:"timeout"               validate:"min=0"` // ms
	SaveExecutionProgress bool              `json:"saveExecutionProgress"`
	SaveDataOnError       bool              `json:"saveDataOnError"`
	SaveDataOnSuccess     bool              `json:"saveDataOnSuccess"`
	SaveManualExecutions  bool              `json:"saveManualExecutions"`
}

// DefaultSettings returns the settings used when a workflow omits them.
func DefaultSettings() WorkflowSettings {
	return WorkflowSettings{
		Timezone:              DefaultTimezone,
		ErrorHandling:         ErrorHandlingStop,
		RetryAttempts:         DefaultRetryAttempts,
		RetryDelay:            DefaultRetryDelay,
		Timeout:               DefaultTimeout,
		SaveExecutionProgress: true,
		SaveDataOnError:       true,
		SaveDataOnSuccess:     false,
		SaveManualExecutions:  true,
	}
}

// ApplyDefaults fills the fields whose zero value is not a valid setting.
// Numeric knobs and boolean flags are kept as given: a zero retryAttempts
// means no retries and a zero timeout means no per-attempt bound. Omitted
// numeric fields are defaulted when decoding, see UnmarshalJSON.
func (s *WorkflowSettings) ApplyDefaults() {
	if s.Timezone == "" {
		s.Timezone = DefaultTimezone
	}

	if s.ErrorHandling == "" {
		s.ErrorHandling = ErrorHandlingStop
	}
}

// UnmarshalJSON starts from the defaults so omitted fields keep their default value.
func (s *WorkflowSettings) UnmarshalJSON(data []byte) error {
	type plain WorkflowSettings

	decoded := plain(DefaultSettings())
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	*s = WorkflowSettings(decoded)

	return nil
}
