package models

import "fmt"

// Phase tags identifying which stage of the pipeline an error came from.
const (
	PhaseValidation    = "validation"
	PhaseStatic        = "static"
	PhaseDynamic       = "dynamic"
	PhaseParsing       = "parsing"
	PhaseInteraction   = "interaction"
	PhaseFallback      = "fallback"
	PhaseOrchestration = "orchestration"
)

// ScrapeError is a phase-tagged, non-fatal error accumulated on the result.
// It also implements the error interface so a ScrapeError can travel through
// ordinary error returns when needed.
type ScrapeError struct {
	Message string `json:"message"`
	Phase   string `json:"phase"`
	Err     error  `json:"-"` // wrapped cause, never serialized
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Phase, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// Errf builds a ScrapeError value for appending to ScrapeResult.Errors.
func Errf(phase, format string, args ...any) ScrapeError {
	return ScrapeError{Phase: phase, Message: fmt.Sprintf(format, args...)}
}
