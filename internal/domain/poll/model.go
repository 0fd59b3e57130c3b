package poll

import (
	"fmt"
	"time"

	"chousei/internal/store"
)

// Collection is the top-level store collection holding poll documents.
const Collection = "polls"

type Candidate struct {
	ID    int    `json:"candidateId"`
	Label string `json:"label"`
}

type Poll struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Detail     string      `json:"detail"`
	Fee        *int        `json:"fee,omitempty"`
	Candidates []Candidate `json:"candidates"`
	CreatedAt  time.Time   `json:"created_at"`
}

func DocPath(id string) string {
	return Collection + "/" + id
}

// ParticipantsPath and MessagesPath address a poll's subcollections.
func ParticipantsPath(id string) string {
	return Collection + "/" + id + "/participants"
}

func MessagesPath(id string) string {
	return Collection + "/" + id + "/messages"
}

// NextCandidateID assigns max(existing)+1, so an id is never reused even
// after its candidate was deleted. A stale client's in-flight vote for a
// removed candidate can therefore never attach to a new one.
func NextCandidateID(candidates []Candidate) int {
	max := -1
	for _, c := range candidates {
		if c.ID > max {
			max = c.ID
		}
	}
	return max + 1
}

// FromDocument decodes a poll document. Field representations differ per
// backend (in-process values vs jsonb round-trips), so numbers and times
// are read loosely.
func FromDocument(doc store.Document) (Poll, error) {
	p := Poll{ID: doc.ID}
	p.Title, _ = doc.Fields["title"].(string)
	p.Detail, _ = doc.Fields["detail"].(string)

	if raw, ok := doc.Fields["fee"]; ok && raw != nil {
		if fee, ok := fieldInt(raw); ok && fee >= 0 {
			p.Fee = &fee
		}
	}
	if ts, ok := store.FieldTime(doc.Fields["created_at"]); ok {
		p.CreatedAt = ts
	}

	rawList, ok := doc.Fields["candidates"].([]any)
	if !ok && doc.Fields["candidates"] != nil {
		return p, fmt.Errorf("poll %s: malformed candidates field", doc.ID)
	}
	p.Candidates = make([]Candidate, 0, len(rawList))
	for _, raw := range rawList {
		m, ok := raw.(map[string]any)
		if !ok {
			return p, fmt.Errorf("poll %s: malformed candidate entry", doc.ID)
		}
		id, ok := fieldInt(m["candidateId"])
		if !ok {
			return p, fmt.Errorf("poll %s: candidate without id", doc.ID)
		}
		label, _ := m["label"].(string)
		p.Candidates = append(p.Candidates, Candidate{ID: id, Label: label})
	}
	return p, nil
}

// Fields encodes the mutable poll document body. The id stays outside:
// it is the store's, not a field.
func (p Poll) Fields() map[string]any {
	fields := map[string]any{
		"title":      p.Title,
		"detail":     p.Detail,
		"candidates": candidatesField(p.Candidates),
		"created_at": store.ServerTimestamp,
	}
	if p.Fee != nil {
		fields["fee"] = *p.Fee
	}
	return fields
}

func candidatesField(candidates []Candidate) []any {
	out := make([]any, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, map[string]any{
			"candidateId": c.ID,
			"label":       c.Label,
		})
	}
	return out
}

func fieldInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
