package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"wisefido-carehub/internal/clock"
	"wisefido-carehub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReminders struct {
	mu    sync.Mutex
	items []models.Reminder
	err   error
}

func (f *fakeReminders) List(_ context.Context, _ string) ([]models.Reminder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Reminder, len(f.items))
	copy(out, f.items)
	return out, f.err
}

func (f *fakeReminders) set(items ...models.Reminder) {
	f.mu.Lock()
	f.items = items
	f.mu.Unlock()
}

type fakeLog struct {
	mu     sync.Mutex
	kinds  []models.EventKind
	msgs   []string
	nextID int64
}

func (f *fakeLog) Append(_ context.Context, kind models.EventKind, msg string, now time.Time) models.EventRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.kinds = append(f.kinds, kind)
	f.msgs = append(f.msgs, msg)
	return models.EventRecord{ID: f.nextID, Time: models.FormatMinute(now), Msg: msg}
}

func (f *fakeLog) messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type telemetryCall struct {
	feed  string
	value string
	delay time.Duration
}

type fakeNotifier struct {
	mu    sync.Mutex
	calls []telemetryCall
}

func (f *fakeNotifier) Telemetry(feed, value string) {
	f.mu.Lock()
	f.calls = append(f.calls, telemetryCall{feed: feed, value: value})
	f.mu.Unlock()
}

func (f *fakeNotifier) TelemetryAfter(delay time.Duration, feed, value string) {
	f.mu.Lock()
	f.calls = append(f.calls, telemetryCall{feed: feed, value: value, delay: delay})
	f.mu.Unlock()
}

func (f *fakeNotifier) snapshot() []telemetryCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]telemetryCall(nil), f.calls...)
}

var testConfig = Config{
	PollInterval: 10 * time.Second,
	ClearDelay:   30 * time.Second,
	Feed:         "med-alerts",
}

func at(hour, min, sec int) time.Time {
	return time.Date(2026, 10, 15, hour, min, sec, 0, time.UTC)
}

func newTestScheduler(reminders *fakeReminders, clk clock.Clock) (*Scheduler, *fakeLog, *fakeNotifier) {
	log := &fakeLog{}
	n := &fakeNotifier{}
	if clk == nil {
		clk = clock.NewFakeClock(at(0, 0, 0))
	}
	s := NewScheduler("bob", reminders, log, n, clk, testConfig, zap.NewNop(), nil)
	return s, log, n
}

func TestTick_FiresOncePerMinute(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	s, log, n := newTestScheduler(reminders, nil)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx, at(8, 0, 3)))
	assert.Equal(t, []string{"MEDICATION TIME: Aspirin"}, log.messages())
	assert.Equal(t, []models.EventKind{models.EventKindMedication}, log.kinds)
	assert.Equal(t, []telemetryCall{
		{feed: "med-alerts", value: "1"},
		{feed: "med-alerts", value: "0", delay: 30 * time.Second},
	}, n.snapshot())
	assert.Equal(t, "08:00", s.LastFiredMinute())

	// 同一分钟再次 tick 不重复触发
	require.NoError(t, s.Tick(ctx, at(8, 0, 7)))
	assert.Len(t, log.messages(), 1)
	assert.Len(t, n.snapshot(), 2)
}

func TestTick_NoMatchHasNoSideEffects(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	s, log, n := newTestScheduler(reminders, nil)

	require.NoError(t, s.Tick(context.Background(), at(7, 59, 50)))
	assert.Empty(t, log.messages())
	assert.Empty(t, n.snapshot())
	assert.Equal(t, "", s.LastFiredMinute())
}

func TestTick_FiresOnlyFirstOfCoScheduledReminders(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{
		{Time: "08:00", Desc: "Aspirin"},
		{Time: "08:00", Desc: "Vitamin D"},
	}}
	s, log, _ := newTestScheduler(reminders, nil)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx, at(8, 0, 0)))
	require.NoError(t, s.Tick(ctx, at(8, 0, 10)))
	require.NoError(t, s.Tick(ctx, at(8, 0, 50)))

	// 第二条同一分钟的提醒不会触发
	assert.Equal(t, []string{"MEDICATION TIME: Aspirin"}, log.messages())
}

func TestTick_ObservesReminderChangesOnNextTick(t *testing.T) {
	reminders := &fakeReminders{}
	s, log, _ := newTestScheduler(reminders, nil)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx, at(9, 30, 0)))
	assert.Empty(t, log.messages())

	reminders.set(models.Reminder{Time: "09:30", Desc: "Insulin"})
	require.NoError(t, s.Tick(ctx, at(9, 30, 10)))
	assert.Equal(t, []string{"MEDICATION TIME: Insulin"}, log.messages())
}

func TestTick_SameMinuteNextDayFiresAgain(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{
		{Time: "08:00", Desc: "Aspirin"},
		{Time: "08:01", Desc: "Metformin"},
	}}
	s, log, _ := newTestScheduler(reminders, nil)
	ctx := context.Background()

	require.NoError(t, s.Tick(ctx, at(8, 0, 0)))
	require.NoError(t, s.Tick(ctx, at(8, 1, 0)))
	require.NoError(t, s.Tick(ctx, at(8, 0, 0).Add(24*time.Hour)))

	assert.Equal(t, []string{
		"MEDICATION TIME: Aspirin",
		"MEDICATION TIME: Metformin",
		"MEDICATION TIME: Aspirin",
	}, log.messages())
}

func TestTick_ReminderSourceError(t *testing.T) {
	reminders := &fakeReminders{err: errors.New("redis down")}
	s, log, _ := newTestScheduler(reminders, nil)

	err := s.Tick(context.Background(), at(8, 0, 0))
	assert.Error(t, err)
	assert.Empty(t, log.messages())
	assert.Equal(t, "", s.LastFiredMinute())
}

func TestStartStop(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	clk := clock.NewFakeClock(at(8, 0, 3))
	s, log, _ := newTestScheduler(reminders, clk)

	s.Start(context.Background())
	assert.True(t, s.Running())

	// 启动时立即执行一次
	assert.Eventually(t, func() bool {
		return len(log.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.Running())

	// 重复 Stop 安全
	s.Stop()
}

func TestRestart_PreservesDedup(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	clk := clock.NewFakeClock(at(8, 0, 3))
	s, log, _ := newTestScheduler(reminders, clk)
	ctx := context.Background()

	s.Start(ctx)
	assert.Eventually(t, func() bool {
		return len(log.messages()) == 1
	}, time.Second, 5*time.Millisecond)

	s.Restart(ctx)
	defer s.Stop()
	assert.True(t, s.Running())

	// 重启后立即执行的 tick 仍在同一分钟，不重复触发
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, log.messages(), 1)
}

func TestStop_CancelledParentContext(t *testing.T) {
	reminders := &fakeReminders{}
	s, _, _ := newTestScheduler(reminders, nil)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after parent context was cancelled")
	}
}

func TestTick_FormatsInConfiguredLocation(t *testing.T) {
	shanghai := time.FixedZone("CST", 8*3600)
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	log := &fakeLog{}
	cfg := testConfig
	cfg.Location = shanghai
	s := NewScheduler("bob", reminders, log, &fakeNotifier{}, clock.NewFakeClock(at(0, 0, 0)), cfg, zap.NewNop(), nil)
	ctx := context.Background()

	// 08:00 UTC 对应本地 16:00，不触发
	require.NoError(t, s.Tick(ctx, at(8, 0, 3)))
	assert.Empty(t, log.messages())

	// 00:00 UTC 对应本地 08:00
	require.NoError(t, s.Tick(ctx, at(0, 0, 3)))
	assert.Equal(t, []string{"MEDICATION TIME: Aspirin"}, log.messages())
	assert.Equal(t, "08:00", s.LastFiredMinute())
}

func TestSeedLastFiredMinute_SuppressesImmediateTick(t *testing.T) {
	reminders := &fakeReminders{items: []models.Reminder{{Time: "08:00", Desc: "Aspirin"}}}
	clk := clock.NewFakeClock(at(8, 0, 30))
	s, log, n := newTestScheduler(reminders, clk)

	s.SeedLastFiredMinute("08:00")
	s.Start(context.Background())
	defer s.Stop()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, log.messages())
	assert.Empty(t, n.snapshot())
	assert.Equal(t, "08:00", s.LastFiredMinute())
}
