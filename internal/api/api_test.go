package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirdesai22/padel-score/internal/api"
	"github.com/sirdesai22/padel-score/internal/match"
	"github.com/sirdesai22/padel-score/internal/storage/memory"
)

type matchBody struct {
	MatchID string          `json:"matchId"`
	Status  string          `json:"status"`
	Version int64           `json:"version"`
	State   json.RawMessage `json:"state"`
	Won     *bool           `json:"won"`
}

type errorBody struct {
	Error   string `json:"error"`
	Details struct {
		CurrentVersion int64           `json:"currentVersion"`
		CurrentState   json.RawMessage `json:"currentState"`
	} `json:"details"`
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	mux := http.NewServeMux()
	api.New(match.NewService(store), store).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) *http.Response {
	t.Helper()
	var r *bytes.Reader
	if body == "" {
		r = bytes.NewReader(nil)
	} else {
		r = bytes.NewReader([]byte(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("%s %s status = %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want)
	}
}

func createMatch(t *testing.T, srv *httptest.Server, user string) matchBody {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/matches", `{"userId":"`+user+`","mode":"standard","initialState":{"p":0}}`)
	expectStatus(t, resp, http.StatusCreated)
	var m matchBody
	decodeBody(t, resp, &m)
	if got := resp.Header.Get("Location"); got != "/matches/"+m.MatchID {
		t.Fatalf("Location = %q, want /matches/%s", got, m.MatchID)
	}
	return m
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	resp := do(t, srv, http.MethodGet, "/health", "")
	expectStatus(t, resp, http.StatusOK)
}

func TestMatchFlow(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	m := createMatch(t, srv, "u1")
	if m.Version != 0 || m.Status != "LIVE" || string(m.State) != `{"p":0}` {
		t.Fatalf("created = %+v", m)
	}

	// second create returns the same match with 200
	resp := do(t, srv, http.MethodPost, "/matches", `{"userId":"u1"}`)
	expectStatus(t, resp, http.StatusOK)
	var again matchBody
	decodeBody(t, resp, &again)
	if again.MatchID != m.MatchID {
		t.Fatalf("second create id = %s, want %s", again.MatchID, m.MatchID)
	}

	resp = do(t, srv, http.MethodPut, "/matches/"+m.MatchID+"/point", `{"userId":"u1","winner":"A","expectedVersion":0,"newState":{"p":1}}`)
	expectStatus(t, resp, http.StatusOK)
	var afterPoint matchBody
	decodeBody(t, resp, &afterPoint)
	if afterPoint.Version != 1 {
		t.Fatalf("version after point = %d, want 1", afterPoint.Version)
	}

	resp = do(t, srv, http.MethodPut, "/matches/"+m.MatchID+"/point", `{"userId":"u1","winner":"B","expectedVersion":0,"newState":{"p":2}}`)
	expectStatus(t, resp, http.StatusConflict)
	var conflict errorBody
	decodeBody(t, resp, &conflict)
	if conflict.Error != "Version conflict" || conflict.Details.CurrentVersion != 1 || string(conflict.Details.CurrentState) != `{"p":1}` {
		t.Fatalf("conflict body = %+v", conflict)
	}

	resp = do(t, srv, http.MethodPost, "/matches/"+m.MatchID+"/undo", `{"userId":"u1","expectedVersion":1,"newState":{"p":0}}`)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, srv, http.MethodPut, "/matches/"+m.MatchID+"/state", `{"userId":"u1","expectedVersion":2,"state":{"p":0,"serve":"B"}}`)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, srv, http.MethodGet, "/matches/active?userId=u1", "")
	expectStatus(t, resp, http.StatusOK)
	var active matchBody
	decodeBody(t, resp, &active)
	if active.Version != 3 {
		t.Fatalf("active version = %d, want 3", active.Version)
	}

	resp = do(t, srv, http.MethodPost, "/matches/"+m.MatchID+"/finish", `{"userId":"u1","won":true,"finalStats":{"aces":2}}`)
	expectStatus(t, resp, http.StatusOK)

	resp = do(t, srv, http.MethodPut, "/matches/"+m.MatchID+"/point", `{"userId":"u1","winner":"A","expectedVersion":3,"newState":{}}`)
	expectStatus(t, resp, http.StatusConflict)

	resp = do(t, srv, http.MethodGet, "/matches/active?userId=u1", "")
	expectStatus(t, resp, http.StatusNotFound)

	resp = do(t, srv, http.MethodGet, "/matches/"+m.MatchID+"/events?userId=u1&afterSeq=1&limit=2", "")
	expectStatus(t, resp, http.StatusOK)
	var events []struct {
		Seq       int64  `json:"seq"`
		EventType string `json:"eventType"`
	}
	decodeBody(t, resp, &events)
	if len(events) != 2 || events[0].EventType != "POINT" || events[1].EventType != "UNDO" {
		t.Fatalf("events = %+v, want POINT then UNDO", events)
	}
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	m := createMatch(t, srv, "u1")

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"create without user", http.MethodPost, "/matches", `{}`, http.StatusBadRequest},
		{"create with broken json", http.MethodPost, "/matches", `{"userId":`, http.StatusBadRequest},
		{"active without user", http.MethodGet, "/matches/active", "", http.StatusBadRequest},
		{"active for user without match", http.MethodGet, "/matches/active?userId=u2", "", http.StatusNotFound},
		{"point with malformed id", http.MethodPut, "/matches/nope/point", `{"userId":"u1","newState":{}}`, http.StatusBadRequest},
		{"point on unknown match", http.MethodPut, "/matches/00000000-0000-0000-0000-000000000001/point", `{"userId":"u1","newState":{}}`, http.StatusNotFound},
		{"point by other user", http.MethodPut, "/matches/" + m.MatchID + "/point", `{"userId":"u2","newState":{}}`, http.StatusForbidden},
		{"point without state", http.MethodPut, "/matches/" + m.MatchID + "/point", `{"userId":"u1","expectedVersion":0}`, http.StatusBadRequest},
		{"update without state", http.MethodPut, "/matches/" + m.MatchID + "/state", `{"userId":"u1","state":null}`, http.StatusBadRequest},
		{"undo with stale version", http.MethodPost, "/matches/" + m.MatchID + "/undo", `{"userId":"u1","expectedVersion":5,"newState":{}}`, http.StatusConflict},
		{"events by other user", http.MethodGet, "/matches/" + m.MatchID + "/events?userId=u2", "", http.StatusForbidden},
		{"events with bad cursor", http.MethodGet, "/matches/" + m.MatchID + "/events?userId=u1&afterSeq=x", "", http.StatusBadRequest},
		{"events with oversized page", http.MethodGet, "/matches/" + m.MatchID + "/events?userId=u1&limit=5000", "", http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, srv, tc.method, tc.path, tc.body)
			expectStatus(t, resp, tc.want)
			var body errorBody
			decodeBody(t, resp, &body)
			if body.Error == "" {
				t.Fatal("error body has no message")
			}
		})
	}
}

func TestAbandonActiveMatch(t *testing.T) {
	t.Parallel()
	srv := newServer(t)
	first := createMatch(t, srv, "u1")

	resp := do(t, srv, http.MethodDelete, "/matches/active?userId=u1", "")
	expectStatus(t, resp, http.StatusNoContent)

	resp = do(t, srv, http.MethodDelete, "/matches/active?userId=u1", "")
	expectStatus(t, resp, http.StatusNoContent)

	second := createMatch(t, srv, "u1")
	if second.MatchID == first.MatchID {
		t.Fatal("new match reused the abandoned id")
	}
}

func TestUpsertUser(t *testing.T) {
	t.Parallel()
	srv := newServer(t)

	resp := do(t, srv, http.MethodPost, "/users/u1", `{"name":"Ana","email":"ana@example.com"}`)
	expectStatus(t, resp, http.StatusOK)
	var u struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	decodeBody(t, resp, &u)
	if u.ID != "u1" || u.Name != "Ana" || u.Email != "ana@example.com" {
		t.Fatalf("user = %+v", u)
	}

	resp = do(t, srv, http.MethodPost, "/users/u2", `{"email":"ana@example.com"}`)
	expectStatus(t, resp, http.StatusConflict)
	var body errorBody
	decodeBody(t, resp, &body)
	if !strings.Contains(body.Error, "Email already exists") {
		t.Fatalf("error = %q", body.Error)
	}
}
