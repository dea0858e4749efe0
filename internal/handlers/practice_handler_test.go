package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"echotype/internal/generator"
	"echotype/internal/models"
	"echotype/internal/security"
	"echotype/internal/service"
)

type stubItems struct {
	items []models.PracticeItem
}

func (s *stubItems) ListItems(_ context.Context, _ string) ([]models.PracticeItem, error) {
	return s.items, nil
}

func (s *stubItems) ListGroups(_ context.Context) ([]models.Group, error) {
	if len(s.items) == 0 {
		return nil, nil
	}
	return []models.Group{{Key: s.items[0].GroupKey, Kind: s.items[0].Kind, ItemCount: len(s.items)}}, nil
}

func (s *stubItems) CountItems(_ context.Context, _ string) (int, error) {
	return len(s.items), nil
}

func (s *stubItems) SeedItems(_ context.Context, _ string, _ models.ItemKind, _ []string) error {
	return nil
}

type stubPlayer struct{}

func (stubPlayer) Play(_ context.Context, _, _ string) {}
func (stubPlayer) PlaySuccessCue()                     {}
func (stubPlayer) PlayErrorCue()                       {}

type stubExampleStore struct{}

func (stubExampleStore) Save(_ context.Context, _ string, _ models.ExampleEntry, _ string) (int64, error) {
	return 1, nil
}

func (stubExampleStore) LoadExisting(_ context.Context, _ string) ([]models.ExampleEntry, error) {
	return nil, nil
}

type stubProgressStore struct {
	counts map[models.Mode]int
}

func (s *stubProgressStore) Load(_ context.Context, mode models.Mode) (int, error) {
	return s.counts[mode], nil
}

func (s *stubProgressStore) Save(_ context.Context, mode models.Mode, completed int) error {
	s.counts[mode] = completed
	return nil
}

type stubGenerator struct {
	entry models.ExampleEntry
	err   error
}

func (g *stubGenerator) GenerateExample(_ context.Context, _ generator.Request) (models.ExampleEntry, error) {
	if g.err != nil {
		return models.ExampleEntry{}, g.err
	}
	return g.entry, nil
}

type stubWarmer struct{}

func (stubWarmer) Warm(_ context.Context, _ []string) map[string]error { return nil }

func newTestServer(t *testing.T, items []models.PracticeItem, gen *stubGenerator) *httptest.Server {
	t.Helper()
	log := zap.NewNop().Sugar()
	src := &stubItems{items: items}

	handler := NewPracticeHandler(
		src,
		service.NewCatalogService(src, stubWarmer{}, log),
		service.NewExampleService(gen, stubExampleStore{}, log),
		service.NewProgressService(&stubProgressStore{counts: map[models.Mode]int{}}, log),
		stubPlayer{},
		log,
		0,
	)

	srv := httptest.NewServer(NewRouter(handler, nil, security.NewRateLimiter(100, time.Minute), log))
	t.Cleanup(srv.Close)
	return srv
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeSession(t *testing.T, resp *http.Response) sessionResponse {
	t.Helper()
	defer resp.Body.Close()
	var out sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return out
}

func startSession(t *testing.T, srv *httptest.Server, mode string) (string, sessionResponse) {
	t.Helper()
	resp := postJSON(t, srv.URL+"/api/sessions", startSessionRequest{Mode: mode, GroupKey: "travel"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start: status %d", resp.StatusCode)
	}
	out := decodeSession(t, resp)
	if out.SessionID == "" {
		t.Fatal("start returned no session id")
	}
	return out.SessionID, out
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t, []models.PracticeItem{
		models.NewWordItem(1, "arrival", "travel"),
		models.NewWordItem(2, "departure", "travel"),
	}, &stubGenerator{})

	id, out := startSession(t, srv, "vocabulary")
	if out.State.Phase != service.PhaseReady {
		t.Fatalf("phase = %s, want %s", out.State.Phase, service.PhaseReady)
	}

	base := srv.URL + "/api/sessions/" + id

	resp := postJSON(t, base+"/input", inputRequest{Slot: 0, Value: "arrival"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("input: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = postJSON(t, base+"/check", nil)
	defer resp.Body.Close()
	var check checkResponse
	if err := json.NewDecoder(resp.Body).Decode(&check); err != nil {
		t.Fatalf("decode check: %v", err)
	}
	if !check.Correct || check.State.Phase != service.PhaseCorrect {
		t.Fatalf("check = %v phase %s", check.Correct, check.State.Phase)
	}

	resp = postJSON(t, base+"/advance", nil)
	out = decodeSession(t, resp)
	if out.State.CurrentIndex != 1 {
		t.Errorf("current = %d, want 1", out.State.CurrentIndex)
	}
}

func TestStartSessionValidation(t *testing.T) {
	srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, &stubGenerator{})

	tests := []struct {
		name string
		req  startSessionRequest
		want int
	}{
		{"bad mode", startSessionRequest{Mode: "quiz", GroupKey: "travel"}, http.StatusBadRequest},
		{"missing group", startSessionRequest{Mode: "vocabulary"}, http.StatusBadRequest},
		{"set out of range", startSessionRequest{Mode: "vocabulary", GroupKey: "travel", SetIndex: 9}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, srv.URL+"/api/sessions", tt.req)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestUnknownSession(t *testing.T) {
	srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, &stubGenerator{})

	resp, err := http.Get(srv.URL + "/api/sessions/nope")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGenerateExampleOverHTTP(t *testing.T) {
	gen := &stubGenerator{entry: models.ExampleEntry{
		English:    "Her arrival surprised everyone.",
		Vietnamese: "Sự xuất hiện của cô ấy làm mọi người ngạc nhiên.",
	}}
	srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, gen)

	id, _ := startSession(t, srv, "vocabulary")

	resp := postJSON(t, srv.URL+"/api/sessions/"+id+"/example", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate: status %d", resp.StatusCode)
	}
	var out exampleResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Example == nil || out.Example.English != gen.entry.English {
		t.Errorf("example = %+v", out.Example)
	}
	if out.Total != 1 {
		t.Errorf("total = %d, want 1", out.Total)
	}
}

func TestGenerateExampleUpstreamErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"rate limited", &generator.UpstreamError{Kind: generator.UpstreamRateLimit, Status: 429}, http.StatusTooManyRequests},
		{"auth", &generator.UpstreamError{Kind: generator.UpstreamAuth, Status: 401}, http.StatusBadGateway},
		{"server", &generator.UpstreamError{Kind: generator.UpstreamServer, Status: 502}, http.StatusBadGateway},
		{"garbage output", fmt.Errorf("decode: %w", generator.ErrParse), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, &stubGenerator{err: tt.err})
			id, _ := startSession(t, srv, "vocabulary")

			resp := postJSON(t, srv.URL+"/api/sessions/"+id+"/example", nil)
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestProgressEndpoints(t *testing.T) {
	srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, &stubGenerator{})

	id, _ := startSession(t, srv, "vocabulary")
	base := srv.URL + "/api/sessions/" + id

	postJSON(t, base+"/input", inputRequest{Slot: 0, Value: "arrival"}).Body.Close()
	postJSON(t, base+"/check", nil).Body.Close()

	resp, err := http.Get(srv.URL + "/api/progress?mode=vocabulary")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var progress progressResponse
	if err := json.NewDecoder(resp.Body).Decode(&progress); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if progress.Completed != 1 {
		t.Errorf("completed = %d, want 1", progress.Completed)
	}

	reset := postJSON(t, srv.URL+"/api/progress/reset?mode=vocabulary", nil)
	reset.Body.Close()
	if reset.StatusCode != http.StatusNoContent {
		t.Errorf("reset: status %d", reset.StatusCode)
	}
}

func TestEndSession(t *testing.T) {
	srv := newTestServer(t, []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}, &stubGenerator{})
	id, _ := startSession(t, srv, "vocabulary")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: status %d", resp.StatusCode)
	}

	get, err := http.Get(srv.URL + "/api/sessions/" + id)
	if err != nil {
		t.Fatal(err)
	}
	get.Body.Close()
	if get.StatusCode != http.StatusNotFound {
		t.Errorf("status after delete = %d, want 404", get.StatusCode)
	}
}

func TestGenerateEndpointRateLimited(t *testing.T) {
	log := zap.NewNop().Sugar()
	src := &stubItems{items: []models.PracticeItem{models.NewWordItem(1, "arrival", "travel")}}
	handler := NewPracticeHandler(
		src,
		service.NewCatalogService(src, stubWarmer{}, log),
		service.NewExampleService(&stubGenerator{entry: models.ExampleEntry{English: "x"}}, stubExampleStore{}, log),
		service.NewProgressService(&stubProgressStore{counts: map[models.Mode]int{}}, log),
		stubPlayer{},
		log,
		0,
	)
	srv := httptest.NewServer(NewRouter(handler, nil, security.NewRateLimiter(1, time.Hour), log))
	defer srv.Close()

	id, _ := startSession(t, srv, "vocabulary")
	url := srv.URL + "/api/sessions/" + id + "/example"

	first := postJSON(t, url, nil)
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first generate: status %d", first.StatusCode)
	}

	second := postJSON(t, url, nil)
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second generate: status %d, want 429", second.StatusCode)
	}
}
