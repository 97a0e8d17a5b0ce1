package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

var day = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func newTask(user, name string, start, end time.Time) domain.Task {
	return domain.Task{
		UserID:    user,
		Name:      name,
		Type:      domain.TaskOneTime,
		Date:      day,
		StartTime: start,
		EndTime:   end,
		Category:  domain.CategoryHealth,
		Priority:  domain.PriorityHigh,
	}
}

// ─── Database Lifecycle ─────────────────────────────────────────────────────

func TestOpen_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(filepath.Join(dir, "planner.db"))
	assert.NoError(t, err, "planner.db should exist")
	assert.NoError(t, db.Ping(context.Background()))
}

func TestOpen_MigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db1, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(dir)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}

// ─── Task CRUD ──────────────────────────────────────────────────────────────

func TestCreateTask_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	in := newTask("u1", "Gym", at(9, 0), at(10, 0))
	in.Description = "leg day"
	created, err := db.CreateTask(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, int64(1), created.Version)
	assert.Equal(t, domain.TaskPending, created.Status)

	got, err := db.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Gym", got.Name)
	assert.Equal(t, "leg day", got.Description)
	assert.True(t, got.StartTime.Equal(at(9, 0)))
	assert.True(t, got.EndTime.Equal(at(10, 0)))
	assert.True(t, got.Date.Equal(day))
	assert.Equal(t, domain.CategoryHealth, got.Category)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.False(t, got.ReminderSent)
}

func TestCreateTask_Recurring(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	in := newTask("u1", "Standup", at(9, 0), at(9, 15))
	in.Type = domain.TaskRecurring
	in.RecurrenceRule = []time.Weekday{time.Monday, time.Wednesday, time.Friday}
	created, err := db.CreateTask(ctx, in)
	require.NoError(t, err)

	got, err := db.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, in.RecurrenceRule, got.RecurrenceRule)

	wed := time.Wednesday
	found, err := db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Type: domain.TaskRecurring, Weekday: &wed})
	require.NoError(t, err)
	assert.Len(t, found, 1)

	sun := time.Sunday
	found, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Type: domain.TaskRecurring, Weekday: &sun})
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCreateTask_Invalid(t *testing.T) {
	db := newTestDB(t)
	_, err := db.CreateTask(context.Background(), newTask("u1", "", at(9, 0), at(10, 0)))
	assert.ErrorIs(t, err, domain.ErrInvalidTask)
}

func TestCreateTask_Overlap(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.CreateTask(ctx, newTask("u1", "A", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	_, err = db.CreateTask(ctx, newTask("u1", "B", at(9, 30), at(10, 30)))
	assert.ErrorIs(t, err, domain.ErrTaskOverlap)

	// Touching endpoints are allowed.
	_, err = db.CreateTask(ctx, newTask("u1", "C", at(10, 0), at(11, 0)))
	assert.NoError(t, err)

	// Other users are independent.
	_, err = db.CreateTask(ctx, newTask("u2", "D", at(9, 30), at(10, 30)))
	assert.NoError(t, err)
}

func TestCreateTask_NonCompletedTasksBlock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	missed := newTask("u1", "A", at(9, 0), at(10, 0))
	missed.Status = domain.TaskMissed
	_, err := db.CreateTask(ctx, missed)
	require.NoError(t, err)

	_, err = db.CreateTask(ctx, newTask("u1", "B", at(9, 0), at(10, 0)))
	assert.ErrorIs(t, err, domain.ErrTaskOverlap, "missed tasks still hold their window")

	done := newTask("u1", "C", at(11, 0), at(12, 0))
	done.Status = domain.TaskCompleted
	_, err = db.CreateTask(ctx, done)
	require.NoError(t, err)

	_, err = db.CreateTask(ctx, newTask("u1", "D", at(11, 0), at(12, 0)))
	assert.NoError(t, err, "completed tasks do not block new ones")

	late := newTask("u1", "E", at(9, 30), at(10, 30))
	late.Status = domain.TaskCompleted
	_, err = db.CreateTask(ctx, late)
	assert.ErrorIs(t, err, domain.ErrTaskOverlap, "a task created as completed is checked too")
}

func TestCreateTask_TemplatesDoNotBlock(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	tpl := newTask("u1", "Run", at(9, 0), at(10, 0))
	tpl.Type = domain.TaskRecurring
	tpl.RecurrenceRule = []time.Weekday{time.Tuesday}
	_, err := db.CreateTask(ctx, tpl)
	require.NoError(t, err)

	_, err = db.CreateTask(ctx, newTask("u1", "Run", at(9, 0), at(10, 0)))
	assert.NoError(t, err, "an instance may sit on its template's window")

	_, err = db.CreateTask(ctx, tpl)
	assert.NoError(t, err, "templates are never overlap-checked")
}

func TestGetTask_NotFound(t *testing.T) {
	db := newTestDB(t)
	_, err := db.GetTask(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestSaveTask_VersionCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	created, err := db.CreateTask(ctx, newTask("u1", "Gym", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	first := created
	first.Status = domain.TaskMissed
	saved, err := db.SaveTask(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	stale := created
	stale.Name = "stale write"
	_, err = db.SaveTask(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	got, err := db.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskMissed, got.Status)
	assert.Equal(t, "Gym", got.Name)
}

func TestSaveTask_OverlapRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	_, err := db.CreateTask(ctx, newTask("u1", "Blocker", at(14, 0), at(15, 0)))
	require.NoError(t, err)
	moving, err := db.CreateTask(ctx, newTask("u1", "Mover", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	moving.StartTime, moving.EndTime = at(14, 30), at(15, 30)
	_, err = db.SaveTask(ctx, moving)
	assert.ErrorIs(t, err, domain.ErrTaskOverlap)

	// The task itself never conflicts with its own previous window.
	moving.StartTime, moving.EndTime = at(9, 30), at(10, 30)
	_, err = db.SaveTask(ctx, moving)
	assert.NoError(t, err)
}

func TestSaveTask_FlagWritesSkipOverlapCheck(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	old, err := db.CreateTask(ctx, newTask("u1", "Draft", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	old.Status = domain.TaskCompleted
	old, err = db.SaveTask(ctx, old)
	require.NoError(t, err)

	fresh, err := db.CreateTask(ctx, newTask("u1", "Revise", at(9, 0), at(10, 0)))
	require.NoError(t, err)

	fresh.ImmediateMissedNotified = true
	fresh, err = db.SaveTask(ctx, fresh)
	require.NoError(t, err, "a flag write on a task resting on a completed window")
	fresh.ReminderSent = true
	fresh.Name = "Revise essay"
	_, err = db.SaveTask(ctx, fresh)
	require.NoError(t, err)

	// Reopening the completed task places it again.
	old.Status = domain.TaskPending
	_, err = db.SaveTask(ctx, old)
	assert.ErrorIs(t, err, domain.ErrTaskOverlap)
}

func TestUpdateTask_HoldsNonCompletedRule(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	missed := newTask("u1", "Missed", at(9, 0), at(10, 0))
	missed.Status = domain.TaskMissed
	_, err := db.CreateTask(ctx, missed)
	require.NoError(t, err)
	done := newTask("u1", "Done", at(13, 0), at(14, 0))
	done.Status = domain.TaskCompleted
	_, err = db.CreateTask(ctx, done)
	require.NoError(t, err)
	task, err := db.CreateTask(ctx, newTask("u1", "Edit me", at(11, 0), at(12, 0)))
	require.NoError(t, err)

	onMissed := task
	onMissed.StartTime, onMissed.EndTime = at(9, 30), at(10, 30)
	_, err = db.UpdateTask(ctx, onMissed)
	assert.ErrorIs(t, err, domain.ErrTaskOverlap)

	onDone := task
	onDone.StartTime, onDone.EndTime = at(13, 0), at(14, 0)
	saved, err := db.UpdateTask(ctx, onDone)
	require.NoError(t, err, "completed tasks do not block user edits")
	assert.EqualValues(t, 2, saved.Version)

	stale := task
	stale.Name = "stale"
	_, err = db.UpdateTask(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestDeleteTask(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	gone, err := db.CreateTask(ctx, newTask("u1", "Gone", at(9, 0), at(10, 0)))
	require.NoError(t, err)
	kept, err := db.CreateTask(ctx, newTask("u1", "Kept", at(11, 0), at(12, 0)))
	require.NoError(t, err)
	for _, id := range []string{gone.ID, kept.ID} {
		_, err := db.InsertNotification(ctx, domain.Notification{
			UserID: "u1", TaskID: id, Kind: domain.NotifyReminder, Message: id,
		})
		require.NoError(t, err)
	}

	require.NoError(t, db.DeleteTask(ctx, gone.ID))

	_, err = db.GetTask(ctx, gone.ID)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
	notes, err := db.ListNotifications(ctx, "u1", false, 0)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, kept.ID, notes[0].TaskID)

	assert.ErrorIs(t, db.DeleteTask(ctx, gone.ID), domain.ErrTaskNotFound)
}

func TestSaveTask_NotFound(t *testing.T) {
	db := newTestDB(t)
	task := newTask("u1", "Ghost", at(9, 0), at(10, 0))
	task.ID = "ghost"
	task.Status = domain.TaskPending
	_, err := db.SaveTask(context.Background(), task)
	assert.ErrorIs(t, err, domain.ErrTaskNotFound)
}

func TestSaveTask_ConcurrentPlacement(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	a, err := db.CreateTask(ctx, newTask("u1", "A", at(6, 0), at(7, 0)))
	require.NoError(t, err)
	b, err := db.CreateTask(ctx, newTask("u1", "B", at(7, 0), at(8, 0)))
	require.NoError(t, err)

	// Both writers try to move into 12:00–13:00; exactly one may win.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, task := range []domain.Task{a, b} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			task.StartTime, task.EndTime = at(12, 0), at(13, 0)
			_, errs[i] = db.SaveTask(ctx, task)
		}()
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			assert.ErrorIs(t, err, domain.ErrTaskOverlap)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestFindTasks_Filters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	mk := func(user, name string, start, end time.Time, status domain.TaskStatus) {
		task := newTask(user, name, start, end)
		task.Status = status
		_, err := db.CreateTask(ctx, task)
		require.NoError(t, err)
	}
	mk("u1", "early", at(7, 0), at(8, 0), domain.TaskPending)
	mk("u1", "done", at(9, 0), at(10, 0), domain.TaskCompleted)
	mk("u1", "missed", at(11, 0), at(12, 0), domain.TaskMissed)
	mk("u1", "late", at(20, 0), at(21, 0), domain.TaskPending)
	mk("u2", "other", at(9, 0), at(10, 0), domain.TaskPending)

	got, err := db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Statuses: domain.BlockingStatuses()})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"early", "done", "late"}, names(got))

	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Overlapping: &domain.Interval{Start: at(9, 30), End: at(11, 30)}})
	require.NoError(t, err)
	assert.Equal(t, []string{"done", "missed"}, names(got))

	got, err = db.FindTasks(ctx, domain.TaskFilter{Statuses: []domain.TaskStatus{domain.TaskPending}, EndedBy: at(10, 0)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"early", "other"}, names(got))

	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", StartFrom: at(9, 0), StartBefore: at(20, 0)})
	require.NoError(t, err)
	assert.Equal(t, []string{"done", "missed"}, names(got))

	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", DateFrom: day, DateBefore: day.AddDate(0, 0, 1), Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	notified := false
	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u2", ImmediateMissedNotified: &notified, ReminderSent: &notified})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Name: "late"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	got, err = db.FindTasks(ctx, domain.TaskFilter{UserID: "u1", Name: "late", ExcludeID: got[0].ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestResetReminderFlags(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	done := newTask("u1", "done", at(9, 0), at(10, 0))
	done.Status = domain.TaskCompleted
	done.ReminderSent = true
	_, err := db.CreateTask(ctx, done)
	require.NoError(t, err)

	pending := newTask("u1", "pending", at(11, 0), at(12, 0))
	pending.ReminderSent = true
	p, err := db.CreateTask(ctx, pending)
	require.NoError(t, err)

	n, err := db.ResetReminderFlags(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := db.GetTask(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.ReminderSent, "pending tasks keep their flag")
}

// ─── Settings ───────────────────────────────────────────────────────────────

func TestSleepWindow_DefaultAndSave(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	w, err := db.SleepWindow(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultSleepWindow(), w)

	require.NoError(t, db.SaveSleepWindow(ctx, "u1", domain.SleepWindow{Start: "01:00", End: "06:00"}))
	w, err = db.SleepWindow(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "01:00", w.Start)
	assert.Equal(t, "06:00", w.End)

	err = db.SaveSleepWindow(ctx, "u1", domain.SleepWindow{Start: "bad", End: "06:00"})
	assert.ErrorIs(t, err, domain.ErrInvalidSleepWindow)
}

// ─── Progress ───────────────────────────────────────────────────────────────

func TestProgress_RecentNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i := range 3 {
		_, err := db.InsertProgress(ctx, domain.ProgressRecord{
			UserID: "u1", TaskID: "t", TaskName: "Read",
			Status:        domain.TaskCompleted,
			CompletedAt:   at(10+i, 0),
			OriginalStart: at(9+i, 0),
		})
		require.NoError(t, err)
	}
	_, err := db.InsertProgress(ctx, domain.ProgressRecord{
		UserID: "u1", TaskID: "t", TaskName: "Read", Status: domain.TaskMissed, CompletedAt: at(20, 0),
	})
	require.NoError(t, err)

	got, err := db.RecentProgress(ctx, "u1", domain.TaskCompleted, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].CompletedAt.Equal(at(12, 0)))
	assert.True(t, got[1].OriginalStart.Equal(at(10, 0)))
}

// ─── Notifications ──────────────────────────────────────────────────────────

func TestNotifications_InsertListRead(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	n, err := db.InsertNotification(ctx, domain.Notification{
		UserID: "u1", TaskID: "t1", Kind: domain.NotifyReminder, Message: "soon",
	})
	require.NoError(t, err)
	require.NotEmpty(t, n.ID)

	list, err := db.ListNotifications(ctx, "u1", true, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "soon", list[0].Message)
	assert.Equal(t, domain.NotifyReminder, list[0].Kind)

	ok, err := db.MarkNotificationRead(ctx, "u1", n.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.MarkNotificationRead(ctx, "u2", n.ID)
	require.NoError(t, err)
	assert.False(t, ok, "other users cannot mark it")

	list, err = db.ListNotifications(ctx, "u1", true, 10)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func names(tasks []domain.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Name
	}
	return out
}
