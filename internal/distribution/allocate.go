package distribution

import (
	"sort"

	"teamtasks/internal/model"
)

// One preferred task per preferenceDivisor unassigned tasks.
const preferenceDivisor = 5

// PreferenceCap is the number of tasks a member may select in a round: a fifth of the
// unassigned tasks, rounded down, and never less than one.
func PreferenceCap(unassigned int) int {
	c := unassigned / preferenceDivisor
	if c < 1 {
		return 1
	}
	return c
}

// PlanManual turns the temporal assignees of tasks into assignments.
func PlanManual(tasks []model.Task) []model.Assignment {
	plan := make([]model.Assignment, 0, len(tasks))
	for _, t := range tasks {
		if t.TemporalUserAssignedID == "" {
			continue
		}
		plan = append(plan, model.Assignment{
			TaskID:           t.ID,
			UserID:           t.TemporalUserAssignedID,
			ExpectedTemporal: t.TemporalUserAssignedID,
		})
	}
	return plan
}

// AllocatePreferences resolves selections into assignments. Only the first limit
// selections of each member count, in registration order; each task then goes to the
// first member who selected it. Selections of tasks missing from available are
// ignored; unselected tasks stay unassigned.
func AllocatePreferences(prefs []model.TaskPreference, available []model.Task, limit int) []model.Assignment {
	open := make(map[string]bool, len(available))
	for _, t := range available {
		open[t.ID] = true
	}

	ordered := make([]model.TaskPreference, len(prefs))
	copy(ordered, prefs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	counted := make(map[string]int)
	var within []model.TaskPreference
	for _, p := range ordered {
		if !open[p.TaskID] || counted[p.UserID] >= limit {
			continue
		}
		counted[p.UserID]++
		within = append(within, p)
	}

	var plan []model.Assignment
	for _, p := range within {
		if !open[p.TaskID] {
			continue
		}
		open[p.TaskID] = false
		plan = append(plan, model.Assignment{TaskID: p.TaskID, UserID: p.UserID})
	}
	return plan
}

// excessSelections groups prefs by user in registration order and returns, for every
// user over limit, the task ids selected after the first limit ones.
func excessSelections(prefs []model.TaskPreference, limit int) map[string][]string {
	ordered := make([]model.TaskPreference, len(prefs))
	copy(ordered, prefs)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	seen := make(map[string]int)
	excess := make(map[string][]string)
	for _, p := range ordered {
		seen[p.UserID]++
		if seen[p.UserID] > limit {
			excess[p.UserID] = append(excess[p.UserID], p.TaskID)
		}
	}
	return excess
}

func sortedUsers(m map[string]int) []string {
	users := make([]string, 0, len(m))
	for u := range m {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
