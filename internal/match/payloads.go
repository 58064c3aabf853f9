package match

import (
	"encoding/json"
	"fmt"
)

type startPayload struct {
	Mode        string   `json:"mode"`
	GoldenPoint bool     `json:"goldenPoint"`
	Players     []string `json:"players"`
}

type pointPayload struct {
	Winner string `json:"winner"`
}

type endPayload struct {
	Won        bool            `json:"won"`
	FinalStats json.RawMessage `json:"finalStats"`
}

type teamScore struct {
	Games int `json:"games"`
	Sets  int `json:"sets"`
}

type initialState struct {
	Mode        string   `json:"mode"`
	GoldenPoint bool     `json:"goldenPoint"`
	Players     []string `json:"players"`
	Score       struct {
		TeamA teamScore `json:"teamA"`
		TeamB teamScore `json:"teamB"`
	} `json:"score"`
	CurrentSet int   `json:"currentSet"`
	History    []any `json:"history"`
}

// defaultInitialState is the scoreboard used when create carries no state.
func defaultInitialState(p CreateParams) (json.RawMessage, error) {
	st := initialState{
		Mode:        p.Mode,
		GoldenPoint: p.GoldenPoint,
		Players:     p.Players,
		CurrentSet:  1,
		History:     []any{},
	}
	data, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("marshal initial state: %w", err)
	}
	return data, nil
}
