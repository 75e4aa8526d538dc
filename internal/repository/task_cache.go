package repository

import (
	"fmt"
	"sync"
	"time"
)

type cachedPage struct {
	taskListID string
	page       *TaskPage
	expires    time.Time
}

// TaskQueryCache memoizes task list queries by their full filter. Entries expire
// after ttl and are dropped whenever a task of their list changes.
type TaskQueryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cachedPage
}

func NewTaskQueryCache(ttl time.Duration) *TaskQueryCache {
	return &TaskQueryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cachedPage),
	}
}

func filterKey(f TaskFilter) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d|%s", f.TeamID, f.TaskListID, f.UserAssignedID, f.SelectedDate, normalizeLimit(f.Limit), f.TitlePrefix)
	if f.Completed != nil {
		key += fmt.Sprintf("|c=%t", *f.Completed)
	}
	if f.AvailableToAssign != nil {
		key += fmt.Sprintf("|a=%t", *f.AvailableToAssign)
	}
	if f.Day != nil {
		key += "|d=" + f.Day.Format("2006-01-02")
	}
	if f.After != nil {
		key += fmt.Sprintf("|after=%s/%d/%s", f.After.Title, f.After.CreatedAt.UnixNano(), f.After.ID)
	}
	return key
}

func (c *TaskQueryCache) Get(f TaskFilter) (*TaskPage, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := filterKey(f)
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.page, true
}

func (c *TaskQueryCache) Put(f TaskFilter, page *TaskPage) {
	if c == nil || c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[filterKey(f)] = cachedPage{
		taskListID: f.TaskListID,
		page:       page,
		expires:    c.now().Add(c.ttl),
	}
}

// InvalidateTaskList drops the entries of taskListID and every entry not bound to a
// single list.
func (c *TaskQueryCache) InvalidateTaskList(taskListID string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.taskListID == "" || entry.taskListID == taskListID {
			delete(c.entries, key)
		}
	}
}

func (c *TaskQueryCache) InvalidateAll() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]cachedPage)
}

func (c *TaskQueryCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
