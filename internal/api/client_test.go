package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// newTestClient points a Client at the fixture server with retries tuned
// for test speed.
func newTestClient(t *testing.T, server *httptest.Server) *Client {
	t.Helper()

	httpClient := retryablehttp.NewClient()
	httpClient.RetryMax = 0
	httpClient.RetryWaitMin = time.Millisecond
	httpClient.RetryWaitMax = time.Millisecond
	httpClient.Logger = nil

	return New(Options{
		BaseURL:  server.URL,
		CacheDir: t.TempDir(),
		HTTP:     httpClient,
		OpenBrowser: func(string) error {
			return nil
		},
		ReadCode: func() (string, error) {
			return "fresh-code", nil
		},
	})
}

func TestClient_TestcaseInfoUsesStoredHeader(t *testing.T) {
	t.Parallel()

	var gotAuth, gotAgent string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "595467", body["testcaseId"])

		w.Write([]byte(`{"id": 595467}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.StoreAuthHeader("Bearer stored-token"))

	data, err := client.TestcaseInfo(context.Background(), "595467")

	require.NoError(t, err)
	assert.JSONEq(t, `{"id": 595467}`, string(data))
	assert.Equal(t, "Bearer stored-token", gotAuth)
	assert.Equal(t, "fuzzkit-repro", gotAgent)
}

func TestClient_UnauthorizedTriggersVerificationOnce(t *testing.T) {
	t.Parallel()

	var headers []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = append(headers, r.Header.Get("Authorization"))
		if r.Header.Get("Authorization") != "VerificationCode fresh-code" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("x-fuzzkit-authorization", "Bearer minted-token")
		w.Write([]byte(`{"ok": true}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.StoreAuthHeader("Bearer expired-token"))

	_, err := client.TestcaseInfo(context.Background(), "1")

	require.NoError(t, err)
	require.Equal(t, []string{"Bearer expired-token", "VerificationCode fresh-code"}, headers)

	// The minted token replaces the expired one for the next run.
	assert.Equal(t, "Bearer minted-token", client.StoredAuthHeader())
}

func TestClient_MissingHeaderStartsVerificationImmediately(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "VerificationCode fresh-code", r.Header.Get("Authorization"))
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.TestcaseInfo(context.Background(), "1")
	require.NoError(t, err)
}

func TestClient_PersistentRejectionIsAuthError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("bad verification code"))
	}))
	defer server.Close()

	client := newTestClient(t, server)

	_, err := client.TestcaseInfo(context.Background(), "1")

	var authErr *reproerrors.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusUnauthorized, authErr.StatusCode)
	assert.Contains(t, authErr.Body, "bad verification code")
}

func TestClient_StoreAuthHeaderIsOwnerOnly(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permission bits")
	}

	dir := t.TempDir()
	client := New(Options{CacheDir: dir})

	require.NoError(t, client.StoreAuthHeader("Bearer secret"))

	info, err := os.Stat(filepath.Join(dir, "auth_header"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.Equal(t, "Bearer secret", client.StoredAuthHeader())
}

func TestClient_ListTestcasesWalksPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, float64(2), body["page"])
		require.Equal(t, "yes", body["reproducible"])

		w.Write([]byte(`{"items": [
			{"id": 11, "jobType": "linux_asan_d8"},
			{"id": 12, "jobType": "libfuzzer_chrome_asan"}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.StoreAuthHeader("Bearer token"))

	items, err := client.ListTestcases(context.Background(), 2)

	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, int64(11), items[0].ID)
	assert.Equal(t, "libfuzzer_chrome_asan", items[1].JobType)
}

func TestClient_DownloadTestcaseHonorsContentDisposition(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "595467", r.URL.Query().Get("id"))
		w.Header().Set("Content-Disposition", `attachment; filename="crash-poc.html"`)
		w.Write([]byte("<html>poc</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.StoreAuthHeader("Bearer token"))

	dest := t.TempDir()
	path, err := client.DownloadTestcase(context.Background(), "595467", dest)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "crash-poc.html"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<html>poc</html>", string(data))
}

func TestClient_DownloadTestcaseRejectsTraversalNames(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../escape.html"`)
		w.Write([]byte("nope"))
	}))
	defer server.Close()

	client := newTestClient(t, server)
	require.NoError(t, client.StoreAuthHeader("Bearer token"))

	dest := t.TempDir()
	path, err := client.DownloadTestcase(context.Background(), "1", dest)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "escape.html"), path)
}
