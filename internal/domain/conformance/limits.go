package conformance

import "time"

// RunLimits describes optional resource boundaries for compiling and running a case.
//
// A zero value RunLimits imposes no additional restrictions.
type RunLimits struct {
	// TimeLimit caps each compiler and program invocation. Zero means no limit.
	TimeLimit time.Duration
	// MemoryLimitBytes caps container memory usage in bytes. Only the docker
	// backend enforces it. Zero means no limit.
	MemoryLimitBytes int64
}

// Normalize clamps negative limits to zero.
func (l RunLimits) Normalize() RunLimits {
	if l.TimeLimit < 0 {
		l.TimeLimit = 0
	}
	if l.MemoryLimitBytes < 0 {
		l.MemoryLimitBytes = 0
	}
	return l
}
