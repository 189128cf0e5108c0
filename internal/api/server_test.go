package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/reliefhq/relief/internal/answer"
	"github.com/reliefhq/relief/internal/crawl"
	"github.com/reliefhq/relief/internal/log"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeIngestor struct {
	paths []string
}

func (f *fakeIngestor) IngestPaths(_ context.Context, paths []string) (int, []string) {
	f.paths = paths
	return 2 * len(paths), paths
}

type fakeCrawler struct {
	req  crawl.Request
	fail bool
}

func (f *fakeCrawler) Crawl(_ context.Context, req crawl.Request) (*crawl.Result, error) {
	f.req = req
	if f.fail {
		return nil, fmt.Errorf("network down")
	}
	return &crawl.Result{PagesIndexed: 3, Visited: []string{"a", "b", "c"}}, nil
}

type fakeAnswerer struct {
	question string
	topK     int
	fail     bool
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, topK int) (*answer.Result, error) {
	f.question = question
	f.topK = topK
	if f.fail {
		return nil, fmt.Errorf("provider exploded")
	}
	return &answer.Result{
		Answer:  "42",
		Sources: []answer.Source{{ID: "doc#chunk-0", URI: "doc", Snippet: "text", Score: 0.9}},
	}, nil
}

type fakeCounter struct{ fail bool }

func (f *fakeCounter) Count(context.Context) (int, error) {
	if f.fail {
		return 0, fmt.Errorf("store gone")
	}
	return 7, nil
}

type testDeps struct {
	ingestor *fakeIngestor
	crawler  *fakeCrawler
	answerer *fakeAnswerer
	counter  *fakeCounter
}

func newTestServer(t *testing.T, mutate func(*testDeps), cfg ...Config) (*httptest.Server, *testDeps) {
	t.Helper()
	d := &testDeps{
		ingestor: &fakeIngestor{},
		crawler:  &fakeCrawler{},
		answerer: &fakeAnswerer{},
		counter:  &fakeCounter{},
	}
	if mutate != nil {
		mutate(d)
	}
	c := Config{
		UploadDir:   t.TempDir(),
		CORSOrigins: []string{"http://localhost:5173"},
		RateLimit:   1000,
		RateBurst:   1000,
	}
	if len(cfg) > 0 {
		c = cfg[0]
		if c.UploadDir == "" {
			c.UploadDir = t.TempDir()
		}
	}
	srv := NewServer(c, Deps{
		Ingestor: d.ingestor,
		Crawler:  d.crawler,
		Answerer: d.answerer,
		Index:    d.counter,
	}, nil, log.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		// Drop keep-alive connections so goleak sees a quiet runtime.
		http.DefaultClient.CloseIdleConnections()
		ts.Close()
	})
	return ts, d
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

func TestHealthEndpoints(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	for _, path := range []string{"/health", "/ready"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestReadyFailsWhenStoreDown(t *testing.T) {
	ts, _ := newTestServer(t, func(d *testDeps) { d.counter.fail = true })

	resp, err := http.Get(ts.URL + "/ready")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("GET /ready = %d, want 503", resp.StatusCode)
	}
}

func TestChat(t *testing.T) {
	ts, d := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/chat", ChatRequest{Query: "sizing basics", TopK: 4})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[ChatResponse](t, resp)
	if body.Answer != "42" || len(body.Sources) != 1 {
		t.Errorf("body = %+v", body)
	}
	if d.answerer.question != "sizing basics" || d.answerer.topK != 4 {
		t.Errorf("answerer saw %q/%d", d.answerer.question, d.answerer.topK)
	}
}

func TestChatValidation(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/chat", ChatRequest{Query: "   "})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty query status = %d, want 400", resp.StatusCode)
	}
}

func TestChatProviderFailure(t *testing.T) {
	ts, _ := newTestServer(t, func(d *testDeps) { d.answerer.fail = true })

	resp := postJSON(t, ts.URL+"/api/v1/chat", ChatRequest{Query: "q"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
}

func TestCrawl(t *testing.T) {
	ts, d := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/crawl", CrawlRequest{
		Seeds:          []string{"https://example.com"},
		AllowedDomains: []string{"example.com"},
		MaxPages:       10,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[CrawlResponse](t, resp)
	if !body.Success || body.PagesIndexed != 3 {
		t.Errorf("body = %+v", body)
	}
	if d.crawler.req.MaxPages != 10 || len(d.crawler.req.Seeds) != 1 {
		t.Errorf("crawler saw %+v", d.crawler.req)
	}
}

func TestCrawlRequiresSeeds(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/crawl", CrawlRequest{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIngestPaths(t *testing.T) {
	ts, d := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/api/v1/ingest", IngestRequest{Paths: []string{"/data/a.txt"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[UploadResponse](t, resp)
	if !body.Success || body.NumFiles != 1 {
		t.Errorf("body = %+v", body)
	}
	if len(d.ingestor.paths) != 1 || d.ingestor.paths[0] != "/data/a.txt" {
		t.Errorf("ingestor saw %v", d.ingestor.paths)
	}
}

func TestUpload(t *testing.T) {
	ts, d := newTestServer(t, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files", "../sneaky/manual.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("valve manual content")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+"/api/v1/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decodeBody[UploadResponse](t, resp)
	if !body.Success || body.NumFiles != 1 {
		t.Errorf("body = %+v", body)
	}
	// Path traversal in the filename is neutralized.
	saved := d.ingestor.paths[0]
	if filepath.Base(saved) != "manual.txt" || strings.Contains(saved, "sneaky") {
		t.Errorf("saved path = %q", saved)
	}
	data, err := os.ReadFile(saved)
	if err != nil || string(data) != "valve manual content" {
		t.Errorf("saved content = %q, %v", data, err)
	}
}

func TestRateLimit(t *testing.T) {
	ts, _ := newTestServer(t, nil, Config{RateLimit: 0.0001, RateBurst: 1})

	first, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	first.Body.Close()
	if first.StatusCode != http.StatusOK {
		t.Fatalf("first request = %d, want 200", first.StatusCode)
	}

	second, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	second.Body.Close()
	if second.StatusCode != http.StatusTooManyRequests {
		t.Errorf("second request = %d, want 429", second.StatusCode)
	}
	if second.Header.Get("Retry-After") == "" {
		t.Error("429 missing Retry-After")
	}
}

func TestRequestIDAssigned(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("X-Request-Id") == "" {
		t.Error("response missing X-Request-Id")
	}
}

func TestCORSPreflight(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/chat", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Errorf("Allow-Origin = %q", got)
	}
}

func TestCORSUnknownOrigin(t *testing.T) {
	ts, _ := newTestServer(t, nil)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://evil.example")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.Header.Get("Access-Control-Allow-Origin") != "" {
		t.Error("CORS headers set for unknown origin")
	}
}
