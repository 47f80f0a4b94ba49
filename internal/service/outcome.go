// Package service holds the SleepWell business operations. Services sit on
// top of sync repositories and never talk to the cache or the remote
// directly.
package service

import (
	"github.com/sleepwell/sleepwell-server/internal/sync"
)

// EventEmitter receives domain events. sse.Manager implements it.
type EventEmitter interface {
	Emit(event any)
}

type noopEmitter struct{}

func (noopEmitter) Emit(any) {}

func emitterOrNoop(e EventEmitter) EventEmitter {
	if e == nil {
		return noopEmitter{}
	}
	return e
}

// combine folds the outcomes of several repository calls into one. The
// result is degraded when any part was, and keeps the first degraded reason.
func combine(outs ...sync.Outcome) sync.Outcome {
	var result sync.Outcome
	for i, out := range outs {
		if i == 0 {
			result = out
			continue
		}
		if out.Verdict.CheckedAt.After(result.Verdict.CheckedAt) {
			result.Verdict = out.Verdict
		}
		if out.Degraded() && !result.Degraded() {
			result.State = out.State
			result.Path = out.Path
			result.Reason = out.Reason
		}
		result.Pending = result.Pending || out.Pending
		result.CacheSkipped = result.CacheSkipped || out.CacheSkipped
	}
	return result
}
