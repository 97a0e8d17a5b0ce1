package daemon

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplanner-app/dayplanner/internal/app/notify"
	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Monday 11:00.
var now = time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Scheduler.Timezone = "UTC"
	cfg.Logging.Level = "error"
	cfg.Telemetry.Metrics = false
	return cfg
}

func startNATS(t *testing.T) *server.Server {
	t.Helper()
	ns, err := server.NewServer(&server.Options{
		Host: "127.0.0.1", Port: -1, JetStream: true, StoreDir: t.TempDir(), NoLog: true,
	})
	require.NoError(t, err)
	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		t.Fatal("nats server not ready")
	}
	t.Cleanup(func() {
		ns.Shutdown()
		ns.WaitForShutdown()
	})
	return ns
}

func TestNewWithConfig_Wiring(t *testing.T) {
	d, err := NewWithConfig(context.Background(), testConfig(), t.TempDir(), domain.FixedClock{T: now})
	require.NoError(t, err)
	t.Cleanup(d.Close)

	assert.Nil(t, d.Bus)
	assert.Equal(t, []string{"inbox"}, d.Sink.Names())
	assert.Equal(t, 7, d.Reschedule.Config().DaysAhead)
	assert.Equal(t, "heuristic", d.Reschedule.Config().Strategy.Name())

	statuses := d.Health.RunOnce(context.Background())
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.Name
		assert.True(t, s.Healthy, "%s: %s", s.Name, s.Error)
	}
	assert.Equal(t, []string{"sqlite", "data_dir", "detector"}, names)
}

func TestNewWithConfig_Rejects(t *testing.T) {
	cfg := testConfig()
	cfg.Scheduler.Strategy = "astrology"
	_, err := NewWithConfig(context.Background(), cfg, t.TempDir(), nil)
	assert.ErrorIs(t, err, domain.ErrUnknownStrategy)

	cfg = testConfig()
	cfg.Logging.Format = "yaml"
	_, err = NewWithConfig(context.Background(), cfg, t.TempDir(), nil)
	assert.Error(t, err)
}

// A task that ended past the grace period is finalized, moved and
// announced on both the inbox and the NATS stream.
func TestSweep_EndToEnd(t *testing.T) {
	ns := startNATS(t)
	cfg := testConfig()
	cfg.NATS.Enabled = true
	cfg.NATS.URL = ns.ClientURL()

	ctx := context.Background()
	d, err := NewWithConfig(ctx, cfg, t.TempDir(), domain.FixedClock{T: now})
	require.NoError(t, err)
	t.Cleanup(d.Close)
	assert.Equal(t, []string{"inbox", "nats"}, d.Sink.Names())

	task, err := d.Tasks.Create(ctx, "u1", domain.Task{
		Name: "Essay", Category: domain.CategoryAcademics, Priority: domain.PriorityHigh,
		StartTime: now.Add(-2 * time.Hour), EndTime: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	rep := d.Sweep(ctx)
	assert.Equal(t, 1, rep.Missed)
	assert.Equal(t, 1, rep.Rescheduled)
	assert.Zero(t, rep.Failed)

	moved, err := d.Tasks.Get(ctx, "u1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskPending, moved.Status)
	assert.False(t, moved.StartTime.Before(now))

	inbox, err := d.Inbox.List(ctx, "u1", false, 10)
	require.NoError(t, err)
	kinds := map[domain.NotificationKind]int{}
	for _, n := range inbox {
		kinds[n.Kind]++
	}
	assert.Equal(t, 1, kinds[domain.NotifyMissed])
	assert.Equal(t, 1, kinds[domain.NotifyRescheduled])

	nc, err := nats.Connect(ns.ClientURL())
	require.NoError(t, err)
	defer nc.Close()
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	msg, err := js.GetLastMsgForSubject(ctx, cfg.NATS.Stream, d.Bus.Subject("u1"))
	require.NoError(t, err)
	var last domain.Notification
	require.NoError(t, json.Unmarshal(msg.Data, &last))
	assert.Equal(t, task.ID, last.TaskID)
	assert.Equal(t, domain.NotifyMissed, last.Kind, "the missed notice follows the reschedule notice")
	assert.Equal(t, notify.GuardClosed, d.BusGuard.State())
}

func TestServe_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.API.Port = 0
	cfg.Scheduler.Enabled = false

	d, err := NewWithConfig(context.Background(), cfg, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(d.Close)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
