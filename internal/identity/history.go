package identity

import (
	"encoding/json"
	"time"
)

// historyLimit bounds the recent-poll list the way the original UI does:
// ten entries, most recent first.
const historyLimit = 10

type Visit struct {
	PollID    string `json:"id"`
	Title     string `json:"title"`
	VisitedAt int64  `json:"visitedAt"`
}

// RecordVisit moves or inserts the poll at the head of the recent list,
// deduplicated by poll id and truncated to the limit.
func (m *Manager) RecordVisit(pollID, title string) error {
	if pollID == "" {
		return nil
	}
	recent := m.RecentPolls()

	next := make([]Visit, 0, len(recent)+1)
	next = append(next, Visit{PollID: pollID, Title: title, VisitedAt: time.Now().UnixMilli()})
	for _, v := range recent {
		if v.PollID == pollID {
			continue
		}
		next = append(next, v)
	}
	if len(next) > historyLimit {
		next = next[:historyLimit]
	}

	data, err := json.Marshal(next)
	if err != nil {
		return err
	}
	return m.kv.Set(keyHistory, string(data))
}

// RecentPolls returns the stored visit history, most recent first.
// Corrupt stored history is treated as empty rather than surfaced.
func (m *Manager) RecentPolls() []Visit {
	raw, ok := m.kv.Get(keyHistory)
	if !ok || raw == "" {
		return nil
	}
	var visits []Visit
	if err := json.Unmarshal([]byte(raw), &visits); err != nil {
		return nil
	}
	return visits
}
