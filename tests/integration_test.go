package tests

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/require"

	"github.com/fuzzkit/repro/internal/api"
	"github.com/fuzzkit/repro/internal/logger"
)

const fixtureToken = "Bearer fixture-token"

// detailTemplate is the service document for testcase 4242: a d8 job whose
// prebuilt archive lives at a storage URL the fake gsutil understands.
const detailTemplate = `{
  "id": 4242,
  "crash_type": "Heap-use-after-free",
  "crash_state": "v8::internal::Heap::CollectGarbage\nv8::internal::Factory::NewFixedArray",
  "crash_revision": 530000,
  "crash_stacktrace": {
    "lines": [
      {"content": "[Environment] ASAN_OPTIONS = allocator_may_return_null=1:symbolize=0"},
      {"content": "Running command: /b/build/out/Release/d8 --flag-one --flag-two /testcase"},
      {"content": "=================================================================="}
    ]
  },
  "metadata": {
    "build_url": "https://storage.cloud.google.com/fuzzkit-builds/v8-asan-530000.zip"
  },
  "testcase": {
    "job_type": "linux_asan_d8",
    "absolute_path": "/fuzzer/dir/fuzz-123.js",
    "one_time_crasher_flag": false,
    "gestures": []
  }
}`

const crashReport = `==4242==ERROR: AddressSanitizer: heap-use-after-free on address 0x61b000001234
READ of size 8 at 0x61b000001234 thread T0
    #0 0x7f2a10 in v8::internal::Heap::CollectGarbage(v8::internal::AllocationSpace) heap.cc:120
    #1 0x7f2a20 in v8::internal::Factory::NewFixedArray(int) factory.cc:55
    #2 0x7f2a30 in v8::internal::Runtime_AllocateInNewSpace runtime.cc:913`

// fuzzkitFixture is an in-process stand-in for the FuzzKit service. Handlers
// enforce the authorization header and hand back a refreshed token the way
// the real service does.
type fuzzkitFixture struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	detailCalls   int
	downloadCalls int
	listPages     map[int][]map[string]any
	testcaseBody  string
}

func newFuzzkitFixture(t *testing.T) *fuzzkitFixture {
	t.Helper()

	f := &fuzzkitFixture{
		t:            t,
		listPages:    map[int][]map[string]any{},
		testcaseBody: "// crash input\n",
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v2/testcase-detail/refresh", f.handleDetail)
	mux.HandleFunc("/v2/testcase-detail/download-testcase", f.handleDownload)
	mux.HandleFunc("/v2/testcases/load", f.handleList)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fuzzkitFixture) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	return header == fixtureToken || header == "Bearer refreshed-token"
}

func (f *fuzzkitFixture) handleDetail(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req struct {
		TestcaseID string `json:"testcaseId"`
	}
	body, _ := io.ReadAll(r.Body)
	require.NoError(f.t, json.Unmarshal(body, &req))
	require.Equal(f.t, "4242", req.TestcaseID)

	f.mu.Lock()
	f.detailCalls++
	f.mu.Unlock()

	w.Header().Set("x-fuzzkit-authorization", "Bearer refreshed-token")
	fmt.Fprint(w, detailTemplate)
}

func (f *fuzzkitFixture) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	f.mu.Lock()
	f.downloadCalls++
	f.mu.Unlock()

	w.Header().Set("Content-Disposition", `attachment; filename="fuzz-123.js"`)
	fmt.Fprint(w, f.testcaseBody)
}

func (f *fuzzkitFixture) handleList(w http.ResponseWriter, r *http.Request) {
	if !f.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	var req struct {
		Page int `json:"page"`
	}
	body, _ := io.ReadAll(r.Body)
	require.NoError(f.t, json.Unmarshal(body, &req))

	f.mu.Lock()
	items := f.listPages[req.Page]
	f.mu.Unlock()
	if items == nil {
		items = []map[string]any{}
	}

	require.NoError(f.t, json.NewEncoder(w).Encode(map[string]any{"items": items}))
}

func (f *fuzzkitFixture) counts() (detail, download int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detailCalls, f.downloadCalls
}

func (f *fuzzkitFixture) setPage(page int, items []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listPages[page] = items
}

// client builds an api client against the fixture with a stored token, so no
// interactive verification runs.
func (f *fuzzkitFixture) client(t *testing.T, cacheDir string, log *logger.Logger) *api.Client {
	t.Helper()

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.Logger = nil

	client := api.New(api.Options{
		BaseURL:  f.server.URL,
		CacheDir: cacheDir,
		Logger:   log,
		HTTP:     httpClient,
	})
	require.NoError(t, client.StoreAuthHeader(fixtureToken))
	return client
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(logger.Options{Writer: io.Discard})
	require.NoError(t, err)
	return log
}

func waitTimeout(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the daemon to stop")
	}
}
