package convergence

import "time"

// Recorder receives per-run measurements. metrics.Collector implements it.
type Recorder interface {
	RecordPollRound(poller string, duration time.Duration, converging int)
	RecordStatusWrite(poller, result string)
	RecordPollOutcome(poller, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordPollRound(string, time.Duration, int) {}
func (nopRecorder) RecordStatusWrite(string, string)           {}
func (nopRecorder) RecordPollOutcome(string, string)           {}
