package connectivity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type okProber struct{}

func (okProber) Probe(context.Context) error { return nil }

func TestSet_OfflineVerdictSurvivesLateProbeResult(t *testing.T) {
	m := NewMonitor(okProber{}, Options{MinRefresh: time.Hour, Interval: time.Hour})
	m.SetOnline(false)

	// A probe that finished just after the host went offline.
	got := m.set(Verdict{Status: StatusConnected, CheckedAt: time.Now()}, false)

	assert.Equal(t, StatusUnreachable, got.Status)
	assert.Equal(t, StatusUnreachable, m.Last().Status)
}

func TestSet_ForcedVerdictIsInstalledWhileOffline(t *testing.T) {
	m := NewMonitor(okProber{}, Options{MinRefresh: time.Hour, Interval: time.Hour})
	m.SetOnline(false)

	got := m.set(Verdict{Status: StatusSchemaMissing, Message: "x"}, true)

	assert.Equal(t, StatusSchemaMissing, got.Status)
	assert.Equal(t, StatusSchemaMissing, m.Last().Status)
}
