package convergence

import (
	"strconv"
	"strings"
	"time"
)

// Replication states and steps reported by the provider.
const (
	ReplicationInitialSync  = "INITIAL_SYNC"
	ReplicationRescan       = "RESCAN"
	ReplicationInitiating   = "INITIATING"
	ReplicationContinuous   = "CONTINUOUS"
	ReplicationDisconnected = "DISCONNECTED"

	StepStartDataTransfer = "START_DATA_TRANSFER"
	StepSucceeded         = "SUCCEEDED"
)

// SourceServer is the replication payload of one source server.
type SourceServer struct {
	SourceServerID      string               `json:"sourceServerID"`
	IsArchived          bool                 `json:"isArchived"`
	DataReplicationInfo *DataReplicationInfo `json:"dataReplicationInfo,omitempty"`
}

// DataReplicationInfo describes the replication progress of a source server.
type DataReplicationInfo struct {
	DataReplicationState      string                     `json:"dataReplicationState"`
	DataReplicationInitiation *DataReplicationInitiation `json:"dataReplicationInitiation,omitempty"`
	// EtaDateTime is an RFC 3339 timestamp, empty when the provider has no estimate.
	EtaDateTime string `json:"etaDateTime,omitempty"`
}

// DataReplicationInitiation lists the initiation steps.
type DataReplicationInitiation struct {
	Steps []InitiationStep `json:"steps"`
}

// InitiationStep is one initiation step and its status.
type InitiationStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

const (
	initialSyncPrefix = "Initial sync, ETA "
	rescanPrefix      = "Rescanning, ETA "
	notAvailable      = "not available"
)

// ClassifyReplication maps a replication payload to a Classification. The first matching rule wins.
func ClassifyReplication(raw SourceServer, ok bool, now time.Time) Classification {
	if ok && raw.IsArchived {
		return Classification{Status: StatusArchived}
	}
	if !ok || raw.DataReplicationInfo == nil {
		return Classification{Status: StatusInfoNotAvailable}
	}

	info := raw.DataReplicationInfo
	state := info.DataReplicationState
	lastStep := lastSucceededStep(info)

	switch {
	case strings.EqualFold(state, ReplicationInitialSync):
		return Classification{Status: StatusInitialSync, Message: syncMessage(initialSyncPrefix, lastStep, info.EtaDateTime, now)}
	case strings.EqualFold(state, ReplicationRescan):
		return Classification{Status: StatusRescanning, Message: syncMessage(rescanPrefix, lastStep, info.EtaDateTime, now)}
	case strings.EqualFold(state, ReplicationInitiating):
		if lastStep == "" {
			return Classification{Status: StatusInitiating, Message: "Initiating"}
		}
		return Classification{Status: StatusInitiating, Message: "Initiating - " + lastStep}
	case strings.EqualFold(state, ReplicationContinuous):
		return Classification{Status: StatusHealthy}
	case strings.EqualFold(state, ReplicationDisconnected):
		return Classification{Status: StatusDisconnected, Message: "Disconnected - Please reinstall agent"}
	default:
		return Classification{Status: StatusInProgress, Message: capitalize(state)}
	}
}

func lastSucceededStep(info *DataReplicationInfo) string {
	if info.DataReplicationInitiation == nil {
		return ""
	}
	last := ""
	for _, step := range info.DataReplicationInitiation.Steps {
		if strings.EqualFold(step.Status, StepSucceeded) {
			last = step.Name
		}
	}
	return last
}

func syncMessage(prefix, lastStep, eta string, now time.Time) string {
	switch lastStep {
	case "":
		return prefix + notAvailable
	case StepStartDataTransfer:
		target, err := time.Parse(time.RFC3339, eta)
		if eta == "" || err != nil {
			return prefix + notAvailable
		}
		return prefix + FormatETA(target, now)
	default:
		return lastStep
	}
}

// FormatETA renders the wall-clock distance from now to target, ignoring the date.
// Both are compared in UTC; a target earlier in the day than now wraps past midnight.
func FormatETA(target, now time.Time) string {
	target, now = target.UTC(), now.UTC()
	n := (target.Hour()-now.Hour())*60 + (target.Minute() - now.Minute())
	if n < 0 {
		n += 24 * 60
	}
	if n < 60 {
		return strconv.Itoa(n) + " Minutes"
	}
	return strconv.Itoa(n/60) + " Hours"
}

func capitalize(s string) string {
	s = strings.ToLower(s)
	if s == "" {
		return string(StatusInProgress)
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
