package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/collector"
)

func TestNewScheduler_RegistersEntry(t *testing.T) {
	t.Parallel()

	eng := newTestEngine([]*collector.Source{source("A")}, &fakeRunner{}, nil)

	sched, err := NewScheduler(eng, 30*time.Minute, quietLogger())
	require.NoError(t, err)

	assert.Len(t, sched.Entries(), 1)
	assert.True(t, sched.Next().IsZero(), "next is unset before start")
}

func TestNewScheduler_InvalidInterval(t *testing.T) {
	t.Parallel()

	eng := newTestEngine([]*collector.Source{source("A")}, &fakeRunner{}, nil)

	_, err := NewScheduler(eng, -time.Minute, quietLogger())
	require.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	eng := newTestEngine([]*collector.Source{source("A")}, &fakeRunner{}, nil)

	sched, err := NewScheduler(eng, time.Hour, nil)
	require.NoError(t, err)

	sched.Start()
	require.Eventually(t, func() bool { return !sched.Next().IsZero() }, time.Second, 10*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sched.Next(), time.Minute)

	ctx := sched.Stop()
	<-ctx.Done()
}

func TestScheduler_RunOnce(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	eng := newTestEngine([]*collector.Source{source("A"), source("B")}, runner, nil)

	sched, err := NewScheduler(eng, time.Hour, quietLogger())
	require.NoError(t, err)

	sched.runOnce()

	require.NotNil(t, eng.LastSummary())
	assert.Equal(t, "run-test", eng.LastSummary().RunID)
	assert.Equal(t, 2, runner.calls)
}

func TestScheduler_RunOnceAfterStopIsCancelled(t *testing.T) {
	t.Parallel()

	eng := newTestEngine([]*collector.Source{source("A")}, &fakeRunner{}, nil)

	sched, err := NewScheduler(eng, time.Hour, quietLogger())
	require.NoError(t, err)
	<-sched.Stop().Done()

	sched.runOnce()

	require.NotNil(t, eng.LastSummary())
	assert.True(t, eng.LastSummary().Cancelled)
	assert.True(t, eng.LastSummary().AllCollectorsFailed())
}
