// internal/elastic/docs.go
package elastic

import (
	"encoding/json"
	"time"

	"github.com/sirdesai22/padel-score/internal/models"
)

// MatchDoc is the searchable summary of a match. The state blob itself is
// not indexed.
type MatchDoc struct {
	OwnerID       string    `json:"owner_id"`
	Status        string    `json:"status"`
	Won           *bool     `json:"won,omitempty"`
	Version       int64     `json:"version"`
	LastSeq       int64     `json:"last_seq"`
	LastEventType string    `json:"last_event_type,omitempty"`
	PlayedAt      time.Time `json:"played_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// BuildMatchDoc summarizes a match, its state row and its latest event. last
// may be nil for a match without events.
func BuildMatchDoc(m models.Match, st models.MatchState, last *models.MatchEvent) ([]byte, error) {
	doc := MatchDoc{
		OwnerID:   m.OwnerID,
		Status:    m.Status,
		Won:       m.Won,
		Version:   st.Version,
		PlayedAt:  m.PlayedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if last != nil {
		doc.LastSeq = last.Seq
		doc.LastEventType = last.EventType
	}
	return json.Marshal(doc)
}
