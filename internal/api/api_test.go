package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/deckhand/internal/deckservice"
	"github.com/starford/deckhand/internal/testutil"
)

// testEnv sets up a temp deck directory, SQLite ledger, service, and router.
// An empty authToken means disabled mode.
func testEnv(t *testing.T, authToken string) (*deckservice.Service, http.Handler, string) {
	t.Helper()
	return testEnvWithSSE(t, authToken != "", authToken, nil)
}

func testEnvWithSSE(t *testing.T, authEnabled bool, token string, sseHandler http.Handler) (*deckservice.Service, http.Handler, string) {
	t.Helper()

	deckDir := t.TempDir()
	svc, err := deckservice.New(deckservice.WithLedger(testutil.TestLedger(t)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := svc.Add(context.Background(), testutil.TestDeck(t, deckDir, "spells")); err != nil {
		t.Fatalf("Add: %v", err)
	}

	router := NewRouter(svc, authEnabled, token, sseHandler)
	return svc, router, deckDir
}

func do(router http.Handler, method, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestListDecks(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/decks", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp DeckListResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Decks) != 1 || resp.Decks[0].Name != "spells" || resp.Decks[0].Entries != 2 {
		t.Errorf("decks = %+v", resp.Decks)
	}
}

func TestGetDeck(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/decks/spells", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var det struct {
		Name    string           `json:"name"`
		Title   string           `json:"title"`
		Output  string           `json:"output"`
		Cards   []map[string]any `json:"cards"`
		General map[string]any   `json:"general"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &det)
	if det.Title != "spells" || len(det.Cards) != 2 {
		t.Errorf("detail = %+v", det)
	}
	if filepath.Base(det.Output) != "spells.html" {
		t.Errorf("output = %q", det.Output)
	}
}

func TestGetDeck_NotFound(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/decks/nope", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing deck = %d, want 404", w.Code)
	}
}

func TestGetEntry(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/decks/spells/entries/first", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var e struct {
		ID     string         `json:"id"`
		Copies int            `json:"copies"`
		Fields map[string]any `json:"fields"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &e)
	if e.ID != "first" || e.Copies != 1 || e.Fields["title"] != "One" {
		t.Errorf("entry = %+v", e)
	}

	w = do(router, http.MethodGet, "/decks/spells/entries/ghost", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing entry = %d, want 404", w.Code)
	}
}

func TestSyncDeck(t *testing.T) {
	_, router, dir := testEnv(t, "")

	w := do(router, http.MethodPost, "/decks/spells/sync", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp SyncResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Outcome != "unchanged" || resp.Revision != 1 {
		t.Errorf("sync = %+v", resp)
	}

	def := filepath.Join(dir, "spells.yaml")
	_ = os.WriteFile(def, []byte("extends: spells.yaml\n"), 0o644)
	testutil.Touch(t, def)

	w = do(router, http.MethodPost, "/decks/spells/sync", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("cyclic sync = %d, want 422", w.Code)
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Outcome != "failed" || resp.Error == "" || resp.Revision != 1 {
		t.Errorf("failed sync = %+v", resp)
	}

	if w := do(router, http.MethodPost, "/decks/nope/sync", ""); w.Code != http.StatusNotFound {
		t.Errorf("sync missing deck = %d, want 404", w.Code)
	}
}

func TestHistory(t *testing.T) {
	_, router, _ := testEnv(t, "")

	w := do(router, http.MethodGet, "/decks/spells/history?limit=5", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp HistoryResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Passes) != 1 || resp.Passes[0].Outcome != "resolved" {
		t.Errorf("passes = %+v", resp.Passes)
	}
}

func TestIcon(t *testing.T) {
	_, router, dir := testEnv(t, "")
	testutil.WriteFile(t, dir, "fire.svg", "<svg/>")

	w := do(router, http.MethodGet, "/decks/spells/icons/fire", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp IconResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Path != "/fire.svg" {
		t.Errorf("path = %q, want /fire.svg", resp.Path)
	}

	if w := do(router, http.MethodGet, "/decks/spells/icons/water", ""); w.Code != http.StatusNotFound {
		t.Errorf("missing icon = %d, want 404", w.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	if w := do(router, http.MethodGet, "/decks", "secret123"); w.Code != http.StatusOK {
		t.Errorf("authed list = %d, want 200", w.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	if w := do(router, http.MethodGet, "/decks", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("unauthed = %d, want 401", w.Code)
	}
}

func TestAuthMiddleware_WrongToken(t *testing.T) {
	_, router, _ := testEnv(t, "secret123")

	if w := do(router, http.MethodGet, "/decks", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("wrong token = %d, want 401", w.Code)
	}
}

// blockingSSE writes headers and blocks until the request context is done.
var blockingSSE = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	<-r.Context().Done()
})

func TestSSEEvents_AuthProtected(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, true, "secret", blockingSSE)

	if w := do(router, http.MethodGet, "/events", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("SSE no auth = %d, want 401", w.Code)
	}
}

func TestSSEEvents_ValidToken(t *testing.T) {
	_, router, _ := testEnvWithSSE(t, true, "tok", blockingSSE)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer tok")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code == http.StatusUnauthorized {
		t.Error("SSE with valid token should not 401")
	}
}
