package convergence

import (
	"fmt"
	"strings"
	"time"
)

// InstanceStatus is the health payload of one launched instance.
type InstanceStatus struct {
	InstanceID          string `json:"instanceId"`
	State               string `json:"instanceState"`
	SystemStatus        string `json:"systemStatus"`
	InstanceStatusCheck string `json:"instanceStatus"`
}

// ClassifyInstance maps an instance health payload to a Classification.
func ClassifyInstance(raw InstanceStatus, ok bool, now time.Time) Classification {
	state := strings.ToLower(strings.TrimSpace(raw.State))
	if !ok || state == "" {
		return Classification{Status: StatusInfoNotAvailable}
	}

	switch state {
	case "terminated", "shutting-down":
		return Classification{Status: StatusTerminated}
	case "pending":
		return Classification{Status: StatusInitiating, Message: "Initiating"}
	case "running":
		checks := []string{raw.SystemStatus, raw.InstanceStatusCheck}
		passed, impaired := 0, false
		for _, c := range checks {
			switch strings.ToLower(c) {
			case "ok":
				passed++
			case "impaired":
				impaired = true
			}
		}
		switch {
		case passed == len(checks):
			return Classification{Status: StatusHealthy}
		case impaired:
			return Classification{Status: StatusImpaired, Message: fmt.Sprintf("Impaired - %d/%d checks passed", passed, len(checks))}
		default:
			return Classification{Status: StatusInitiating, Message: fmt.Sprintf("Initializing - %d/%d checks passed", passed, len(checks))}
		}
	default:
		return Classification{Status: StatusInProgress, Message: capitalize(state)}
	}
}
