package reminder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/infra/sqlite"
	"github.com/dayplanner-app/dayplanner/internal/logging"
)

var now = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type memorySink struct {
	mu  sync.Mutex
	got []domain.Notification
}

func (m *memorySink) Emit(_ context.Context, n domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, n)
	return nil
}

func setup(t *testing.T) (*sqlite.DB, *memorySink, *Service) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sink := &memorySink{}
	return db, sink, NewService(db, db, sink, domain.FixedClock{T: now}, 0, logging.Nop())
}

func add(t *testing.T, db *sqlite.DB, name string, status domain.TaskStatus, start time.Time, reminded bool) domain.Task {
	t.Helper()
	task, err := db.CreateTask(context.Background(), domain.Task{
		UserID: "u1", Name: name, Type: domain.TaskOneTime, Status: status,
		Date: start.Truncate(24 * time.Hour), StartTime: start, EndTime: start.Add(2 * time.Minute),
		ReminderSent: reminded,
	})
	require.NoError(t, err)
	return task
}

func TestSendUpcoming(t *testing.T) {
	db, sink, s := setup(t)
	ctx := context.Background()

	soon := add(t, db, "Standup", domain.TaskPending, now.Add(5*time.Minute), false)
	add(t, db, "Later", domain.TaskPending, now.Add(time.Hour), false)
	add(t, db, "Started", domain.TaskPending, now.Add(-10*time.Minute), false)
	add(t, db, "Already", domain.TaskPending, now.Add(8*time.Minute), true)
	add(t, db, "Done", domain.TaskCompleted, now.Add(62*time.Minute), false)

	sent, failed := s.SendUpcoming(ctx)
	assert.Equal(t, 1, sent)
	assert.Zero(t, failed)

	require.Len(t, sink.got, 1)
	n := sink.got[0]
	assert.Equal(t, domain.NotifyReminder, n.Kind)
	assert.Equal(t, soon.ID, n.TaskID)
	assert.Equal(t, `Reminder: "Standup" starts in 5 minutes!`, n.Message)

	stored, err := db.GetTask(ctx, soon.ID)
	require.NoError(t, err)
	assert.True(t, stored.ReminderSent)

	// A second sweep does not remind again.
	sent, _ = s.SendUpcoming(ctx)
	assert.Zero(t, sent)
	assert.Len(t, sink.got, 1)
}

func TestResetFlags(t *testing.T) {
	db, _, s := setup(t)
	ctx := context.Background()
	done := add(t, db, "Done", domain.TaskCompleted, now.Add(-2*time.Hour), true)
	pending := add(t, db, "Pending", domain.TaskPending, now.Add(2*time.Hour), true)

	n, err := s.ResetFlags(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := db.GetTask(ctx, done.ID)
	require.NoError(t, err)
	assert.False(t, got.ReminderSent)
	got, err = db.GetTask(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent, "pending tasks keep their flag")
}

func TestMessage(t *testing.T) {
	assert.Equal(t, `Reminder: "Gym" starts in 10 minutes!`, Message("Gym", 10*time.Minute))
	assert.Equal(t, `Reminder: "Gym" starts in 10 minutes!`, Message("Gym", 9*time.Minute+time.Second))
	assert.Equal(t, `Reminder: "Gym" starts in 1 minute!`, Message("Gym", 30*time.Second))
	assert.Equal(t, `Reminder: "Gym" starts now!`, Message("Gym", 0))
}

func TestNewService_Defaults(t *testing.T) {
	s := NewService(nil, nil, nil, nil, 0, nil)
	assert.Equal(t, DefaultLead, s.Lead())
}
