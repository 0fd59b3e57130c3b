package participant

import (
	"fmt"
	"strconv"
	"time"

	"chousei/internal/domain/poll"
	"chousei/internal/store"
)

// Vote is one participant's answer for one candidate. The three symbols
// are a closed set; anything else is rejected at submission time.
type Vote string

const (
	VoteYes   Vote = "o" // available
	VoteMaybe Vote = "t" // maybe
	VoteNo    Vote = "x" // unavailable
)

// Weight is the scoring table: o=2, t=1, x=0. Unknown symbols that leak
// in from stored data also weigh 0.
func (v Vote) Weight() int {
	switch v {
	case VoteYes:
		return 2
	case VoteMaybe:
		return 1
	default:
		return 0
	}
}

func (v Vote) Valid() bool {
	return v == VoteYes || v == VoteMaybe || v == VoteNo
}

func ParseVote(s string) (Vote, error) {
	v := Vote(s)
	if !v.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidVote, s)
	}
	return v, nil
}

// Answers maps candidate id to vote symbol. A missing key means "no
// answer yet": shown as unavailable, weighed 0. Keys for candidates that
// were since removed from the poll are harmless and ignored by scoring.
type Answers map[int]Vote

type Participant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Comment   string    `json:"comment"`
	Answers   Answers   `json:"answers"`
	HasPaid   bool      `json:"hasPaid"`
	CreatedAt time.Time `json:"created_at"`
}

func FromDocument(doc store.Document) Participant {
	p := Participant{ID: doc.ID, Answers: Answers{}}
	p.Name, _ = doc.Fields["name"].(string)
	p.Comment, _ = doc.Fields["comment"].(string)
	p.HasPaid, _ = doc.Fields["hasPaid"].(bool)
	if ts, ok := store.FieldTime(doc.Fields["created_at"]); ok {
		p.CreatedAt = ts
	}

	switch raw := doc.Fields["answers"].(type) {
	case map[string]any:
		for key, value := range raw {
			id, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			if symbol, ok := value.(string); ok {
				p.Answers[id] = Vote(symbol)
			}
		}
	case map[string]string:
		for key, symbol := range raw {
			id, err := strconv.Atoi(key)
			if err != nil {
				continue
			}
			p.Answers[id] = Vote(symbol)
		}
	}
	return p
}

func (p Participant) fields() map[string]any {
	answers := make(map[string]any, len(p.Answers))
	for id, vote := range p.Answers {
		answers[strconv.Itoa(id)] = string(vote)
	}
	return map[string]any{
		"name":       p.Name,
		"comment":    p.Comment,
		"answers":    answers,
		"hasPaid":    p.HasPaid,
		"created_at": store.ServerTimestamp,
	}
}

// FromDocuments decodes a whole participants snapshot, preserving the
// store's created_at ascending order.
func FromDocuments(docs []store.Document) []Participant {
	out := make([]Participant, 0, len(docs))
	for _, doc := range docs {
		out = append(out, FromDocument(doc))
	}
	return out
}

// DocPath addresses one participant under its poll.
func DocPath(pollID, participantID string) string {
	return poll.ParticipantsPath(pollID) + "/" + participantID
}
