package consensus

import "fmt"

type validationMode int

const (
	modeValid validationMode = iota
	modeInvalid
	modeError
)

// ValidationState accumulates the outcome of a validation pass. Expected
// failures are recorded with DoS/Invalid and never surface as Go errors;
// Error marks an internal failure unrelated to the peer's input.
type ValidationState struct {
	mode         validationMode
	dosScore     int
	rejectCode   RejectCode
	rejectReason string
	debugMessage string
}

// DoS records an invalid outcome with misbehavior score level. It always
// returns false so that callers can write `return state.DoS(...)`.
func (s *ValidationState) DoS(level int, code RejectCode, reason, debug string) bool {
	if s.mode == modeError {
		return false
	}
	s.rejectCode = code
	s.rejectReason = reason
	s.debugMessage = debug
	s.dosScore += level
	s.mode = modeInvalid
	return false
}

func (s *ValidationState) Invalid(code RejectCode, reason, debug string) bool {
	return s.DoS(0, code, reason, debug)
}

// Error marks the state as failed for reasons unrelated to the peer input.
func (s *ValidationState) Error(reason string) bool {
	if s.mode == modeValid {
		s.rejectReason = reason
	}
	s.mode = modeError
	return false
}

func (s *ValidationState) IsValid() bool { return s.mode == modeValid }
func (s *ValidationState) IsInvalid() bool { return s.mode == modeInvalid }
func (s *ValidationState) IsError() bool { return s.mode == modeError }

func (s *ValidationState) DoSScore() int { return s.dosScore }
func (s *ValidationState) RejectCode() RejectCode { return s.rejectCode }
func (s *ValidationState) RejectReason() string { return s.rejectReason }
func (s *ValidationState) DebugMessage() string { return s.debugMessage }

// Err returns nil for a valid state and a *RejectError otherwise.
func (s *ValidationState) Err() error {
	if s.IsValid() {
		return nil
	}
	return &RejectError{
		Code:   s.rejectCode,
		Reason: s.rejectReason,
		DoS:    s.dosScore,
		Debug:  s.debugMessage,
	}
}

func (s *ValidationState) String() string {
	switch s.mode {
	case modeValid:
		return "valid"
	case modeError:
		return fmt.Sprintf("error: %s", s.rejectReason)
	default:
		return fmt.Sprintf("invalid: %s (code %s, dos %d)", s.rejectReason, s.rejectCode, s.dosScore)
	}
}
