package scheduler

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"teamtasks/internal/messaging"
	"teamtasks/internal/metrics"
	"teamtasks/internal/model"
)

const digestTitle = "Today's tasks"

type DigestSource interface {
	ListOpenAssigned(ctx context.Context) ([]model.Task, error)
}

type TokenLookup interface {
	ListByUsers(ctx context.Context, userIDs []string) (map[string]string, error)
}

// DigestCounts are the per-user counters of one digest.
type DigestCounts struct {
	Periodic  int
	Date      int
	DateLimit int
}

func (c DigestCounts) Total() int {
	return c.Periodic + c.Date + c.DateLimit
}

type DigestReport struct {
	Recipients int
	Sent       int
	Failed     int
	NoToken    int
}

// DigestJob sends every user a summary of the tasks they have for today.
type DigestJob struct {
	logger  *zap.SugaredLogger
	tasks   DigestSource
	tokens  TokenLookup
	gateway messaging.Gateway
	loc     *time.Location
	workers int

	now func() time.Time
}

func NewDigestJob(logger *zap.SugaredLogger, tasks DigestSource, tokens TokenLookup, gateway messaging.Gateway, loc *time.Location, workers int) *DigestJob {
	if workers <= 0 {
		workers = 1
	}
	return &DigestJob{
		logger:  logger,
		tasks:   tasks,
		tokens:  tokens,
		gateway: gateway,
		loc:     loc,
		workers: workers,
		now:     time.Now,
	}
}

func (j *DigestJob) GetName() string {
	return "daily_digest"
}

func (j *DigestJob) Execute() {
	report, err := j.Run(context.Background())
	if err != nil {
		j.logger.Warnw("daily digest finished with failures",
			"recipients", report.Recipients, "sent", report.Sent, "failed", report.Failed, "err", err)
		return
	}
	j.logger.Infow("daily digest finished",
		"recipients", report.Recipients, "sent", report.Sent, "noToken", report.NoToken)
}

// Run sends one digest. A failed delivery is counted and reported in the returned
// error without stopping the others.
func (j *DigestJob) Run(ctx context.Context) (*DigestReport, error) {
	report := &DigestReport{}

	open, err := j.tasks.ListOpenAssigned(ctx)
	if err != nil {
		return report, err
	}

	counts := Classify(open, model.StartOfDay(j.now(), j.loc))
	if len(counts) == 0 {
		return report, nil
	}

	users := make([]string, 0, len(counts))
	for userID := range counts {
		users = append(users, userID)
	}
	sort.Strings(users)
	report.Recipients = len(users)

	tokens, err := j.tokens.ListByUsers(ctx, users)
	if err != nil {
		return report, err
	}

	pool, err := ants.NewPool(j.workers)
	if err != nil {
		return report, fmt.Errorf("create digest pool: %w", err)
	}
	defer pool.Release()

	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		result *multierror.Error
	)
	record := func(userID string, err error) {
		mu.Lock()
		defer mu.Unlock()
		metrics.Digest(err)
		if err != nil {
			report.Failed++
			result = multierror.Append(result, fmt.Errorf("user %s: %w", userID, err))
			return
		}
		report.Sent++
	}

	for _, userID := range users {
		token, ok := tokens[userID]
		if !ok || token == "" {
			report.NoToken++
			continue
		}

		userID, note := userID, ComposeDigest(*counts[userID])
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			record(userID, j.gateway.Send(ctx, token, note))
		})
		if err != nil {
			wg.Done()
			record(userID, err)
		}
	}
	wg.Wait()

	return report, result.ErrorOrNil()
}

// Classify counts, per assignee, the open tasks that need attention on today (a
// local midnight). Periodic tasks count when they recur today, dated tasks when they
// fall on today and deadline tasks when the deadline is today or tomorrow.
func Classify(tasks []model.Task, today time.Time) map[string]*DigestCounts {
	tomorrow := today.AddDate(0, 0, 1)
	counts := make(map[string]*DigestCounts)

	for i := range tasks {
		t := &tasks[i]
		if t.Completed || t.UserAssignedID == "" {
			continue
		}

		c := counts[t.UserAssignedID]
		if c == nil {
			c = &DigestCounts{}
		}

		switch t.SelectedDate {
		case model.DatePeriodic:
			if !t.DatePeriodic.Has(today.Weekday()) {
				continue
			}
			c.Periodic++
		case model.DateSingle:
			if t.Date == nil || !model.SameDay(*t.Date, today) {
				continue
			}
			c.Date++
		case model.DateLimit:
			if t.DateLimit == nil {
				continue
			}
			limit := model.StartOfDay(*t.DateLimit, today.Location())
			if !limit.Equal(today) && !limit.Equal(tomorrow) {
				continue
			}
			c.DateLimit++
		default:
			continue
		}
		counts[t.UserAssignedID] = c
	}
	return counts
}

// ComposeDigest renders the digest notification for one user.
func ComposeDigest(c DigestCounts) messaging.Notification {
	var body string
	switch {
	case c.Periodic > 0 && c.Date > 0:
		body = fmt.Sprintf("You have %d tasks for today: %d recurring and %d scheduled.",
			c.Periodic+c.Date, c.Periodic, c.Date)
	case c.Periodic > 0:
		body = fmt.Sprintf("You have %s for today.", plural(c.Periodic, "recurring task", "recurring tasks"))
	case c.Date > 0:
		body = fmt.Sprintf("You have %s scheduled for today.", plural(c.Date, "task", "tasks"))
	}

	if c.DateLimit > 0 {
		deadline := fmt.Sprintf("%d tasks reach their deadline soon.", c.DateLimit)
		if c.DateLimit == 1 {
			deadline = "1 task reaches its deadline soon."
		}
		if body != "" {
			body += " "
		}
		body += deadline
	}

	return messaging.Notification{
		Title: digestTitle,
		Body:  body,
		Data: map[string]string{
			"type":      "dailyDigest",
			"periodic":  strconv.Itoa(c.Periodic),
			"date":      strconv.Itoa(c.Date),
			"dateLimit": strconv.Itoa(c.DateLimit),
		},
	}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return strconv.Itoa(n) + " " + many
}
