package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamtasks/internal/messaging"
	"teamtasks/internal/model"
)

var madrid, _ = time.LoadLocation("Europe/Madrid")

// Monday 2024-06-03, local midnight.
var today = time.Date(2024, 6, 3, 0, 0, 0, 0, madrid)

func at(days int) *time.Time {
	d := today.AddDate(0, 0, days)
	return &d
}

func TestClassify(t *testing.T) {
	tasks := []model.Task{
		{ID: "p1", UserAssignedID: "ana", SelectedDate: model.DatePeriodic, DatePeriodic: model.WeekdaysOf(time.Monday, time.Friday)},
		{ID: "p2", UserAssignedID: "ana", SelectedDate: model.DatePeriodic, DatePeriodic: model.WeekdaysOf(time.Tuesday)},
		{ID: "d1", UserAssignedID: "ana", SelectedDate: model.DateSingle, Date: at(0)},
		{ID: "d2", UserAssignedID: "ana", SelectedDate: model.DateSingle, Date: at(1)},
		{ID: "l1", UserAssignedID: "ben", SelectedDate: model.DateLimit, DateLimit: at(0)},
		{ID: "l2", UserAssignedID: "ben", SelectedDate: model.DateLimit, DateLimit: at(1)},
		{ID: "l3", UserAssignedID: "ben", SelectedDate: model.DateLimit, DateLimit: at(2)},
		{ID: "w1", UserAssignedID: "ben", SelectedDate: model.WithoutDate},
		{ID: "c1", UserAssignedID: "cai", SelectedDate: model.DateSingle, Date: at(0), Completed: true},
		{ID: "u1", SelectedDate: model.DateSingle, Date: at(0)},
	}

	counts := Classify(tasks, today)

	require.Len(t, counts, 2)
	assert.Equal(t, DigestCounts{Periodic: 1, Date: 1}, *counts["ana"])
	assert.Equal(t, DigestCounts{DateLimit: 2}, *counts["ben"])
}

func TestClassify_DateTaskCountsOnlyAsDate(t *testing.T) {
	tasks := []model.Task{
		{UserAssignedID: "ana", SelectedDate: model.DateSingle, Date: at(0), DatePeriodic: model.WeekdaysOf(time.Monday)},
		{UserAssignedID: "ben", SelectedDate: model.DatePeriodic, DatePeriodic: model.WeekdaysOf(time.Monday), Date: at(0)},
	}

	counts := Classify(tasks, today)

	assert.Equal(t, DigestCounts{Date: 1}, *counts["ana"])
	assert.Equal(t, DigestCounts{Periodic: 1}, *counts["ben"])
}

func TestComposeDigest(t *testing.T) {
	tests := []struct {
		counts DigestCounts
		body   string
	}{
		{DigestCounts{Periodic: 1}, "You have 1 recurring task for today."},
		{DigestCounts{Periodic: 3}, "You have 3 recurring tasks for today."},
		{DigestCounts{Date: 1}, "You have 1 task scheduled for today."},
		{DigestCounts{Date: 2}, "You have 2 tasks scheduled for today."},
		{DigestCounts{Periodic: 2, Date: 1}, "You have 3 tasks for today: 2 recurring and 1 scheduled."},
		{DigestCounts{DateLimit: 1}, "1 task reaches its deadline soon."},
		{DigestCounts{Periodic: 1, DateLimit: 4}, "You have 1 recurring task for today. 4 tasks reach their deadline soon."},
		{DigestCounts{Periodic: 1, Date: 1, DateLimit: 1}, "You have 2 tasks for today: 1 recurring and 1 scheduled. 1 task reaches its deadline soon."},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			n := ComposeDigest(tt.counts)

			assert.Equal(t, "Today's tasks", n.Title)
			assert.Equal(t, tt.body, n.Body)
			assert.Equal(t, "dailyDigest", n.Data["type"])
		})
	}

	n := ComposeDigest(DigestCounts{Periodic: 2, Date: 1, DateLimit: 5})
	assert.Equal(t, map[string]string{"type": "dailyDigest", "periodic": "2", "date": "1", "dateLimit": "5"}, n.Data)
}

type fakeDigestSource struct {
	tasks []model.Task
	err   error
}

func (f *fakeDigestSource) ListOpenAssigned(context.Context) ([]model.Task, error) {
	return f.tasks, f.err
}

type fakeTokenLookup map[string]string

func (f fakeTokenLookup) ListByUsers(_ context.Context, ids []string) (map[string]string, error) {
	out := map[string]string{}
	for _, id := range ids {
		if tok, ok := f[id]; ok {
			out[id] = tok
		}
	}
	return out, nil
}

type recordingGateway struct {
	mu   sync.Mutex
	sent map[string]messaging.Notification
	fail map[string]bool
}

func (g *recordingGateway) Send(_ context.Context, token string, n messaging.Notification) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail[token] {
		return errors.New("unregistered token")
	}
	g.sent[token] = n
	return nil
}

func TestDigestJob_Run(t *testing.T) {
	// Arrange
	source := &fakeDigestSource{tasks: []model.Task{
		{UserAssignedID: "ana", SelectedDate: model.DatePeriodic, DatePeriodic: model.WeekdaysOf(time.Monday)},
		{UserAssignedID: "ana", SelectedDate: model.DateSingle, Date: at(0)},
		{UserAssignedID: "ben", SelectedDate: model.DateSingle, Date: at(0)},
		{UserAssignedID: "cai", SelectedDate: model.DateLimit, DateLimit: at(1)},
		{UserAssignedID: "dan", SelectedDate: model.DateSingle, Date: at(0)},
	}}
	tokens := fakeTokenLookup{"ana": "tok-ana", "ben": "tok-ben", "cai": "tok-cai"}
	gateway := &recordingGateway{sent: map[string]messaging.Notification{}, fail: map[string]bool{"tok-ben": true}}

	job := NewDigestJob(zap.NewNop().Sugar(), source, tokens, gateway, madrid, 2)
	job.now = func() time.Time { return today.Add(9 * time.Hour) }

	// Act
	report, err := job.Run(context.Background())

	// Assert
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user ben")
	assert.Equal(t, &DigestReport{Recipients: 4, Sent: 2, Failed: 1, NoToken: 1}, report)
	assert.Equal(t, "You have 2 tasks for today: 1 recurring and 1 scheduled.", gateway.sent["tok-ana"].Body)
	assert.Equal(t, "1 task reaches its deadline soon.", gateway.sent["tok-cai"].Body)
}

func TestDigestJob_Run_LoadFailure(t *testing.T) {
	boom := errors.New("db down")
	job := NewDigestJob(zap.NewNop().Sugar(), &fakeDigestSource{err: boom}, fakeTokenLookup{}, &recordingGateway{}, madrid, 1)

	_, err := job.Run(context.Background())

	assert.ErrorIs(t, err, boom)
}
