package convergence

// CanonicalStatus is the provider-independent state of a target.
type CanonicalStatus string

const (
	StatusHealthy          CanonicalStatus = "Healthy"
	StatusArchived         CanonicalStatus = "Archived"
	StatusTerminated       CanonicalStatus = "Terminated"
	StatusDisconnected     CanonicalStatus = "Disconnected"
	StatusInitiating       CanonicalStatus = "Initiating"
	StatusInfoNotAvailable CanonicalStatus = "InfoNotAvailable"
	StatusInitialSync      CanonicalStatus = "InitialSync"
	StatusRescanning       CanonicalStatus = "Rescanning"
	StatusImpaired         CanonicalStatus = "Impaired"
	StatusInProgress       CanonicalStatus = "InProgress"
)

// IsTerminalSuccess reports whether a target in this state needs no further polling.
func (s CanonicalStatus) IsTerminalSuccess() bool {
	return s == StatusHealthy
}

// IsPermanentFailure reports whether the target can never converge.
func (s CanonicalStatus) IsPermanentFailure() bool {
	return s == StatusArchived || s == StatusTerminated
}

// Classification is the outcome of classifying one target.
// Message carries the human text persisted for the target; when empty the status itself is used.
type Classification struct {
	Status  CanonicalStatus
	Message string
}

// Display returns the value written to the status field.
func (c Classification) Display() string {
	if c.Message != "" {
		return c.Message
	}
	switch c.Status {
	case StatusInfoNotAvailable:
		return "Info not available"
	default:
		return string(c.Status)
	}
}
