package builder

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	defaultCrrevURL   = "https://cr-rev.appspot.com/_ah/api/crrev/v1/get_numbering"
	defaultGitilesURL = "https://chromium.googlesource.com/chromium/src.git"
)

var pdfiumRevisionPattern = regexp.MustCompile(`'pdfium_revision'\s*:\s*'([0-9a-fA-F]+)'`)

// ResolverOptions configures a RevisionResolver. The zero value talks to the
// production endpoints.
type ResolverOptions struct {
	HTTP       *retryablehttp.Client
	CrrevURL   string
	GitilesURL string
}

// RevisionResolver maps FuzzKit build revisions to git SHAs through the
// crrev numbering API, and pins the matching pdfium SHA out of the Chromium
// DEPS file.
type RevisionResolver struct {
	http       *retryablehttp.Client
	crrevURL   string
	gitilesURL string
}

// NewRevisionResolver creates a resolver.
func NewRevisionResolver(opts ResolverOptions) *RevisionResolver {
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = retryablehttp.NewClient()
		httpClient.RetryMax = 3
		httpClient.RetryWaitMin = 1 * time.Second
		httpClient.RetryWaitMax = 10 * time.Second
		httpClient.Logger = nil
	}

	crrev := opts.CrrevURL
	if crrev == "" {
		crrev = defaultCrrevURL
	}
	gitiles := opts.GitilesURL
	if gitiles == "" {
		gitiles = defaultGitilesURL
	}

	return &RevisionResolver{http: httpClient, crrevURL: crrev, gitilesURL: gitiles}
}

// SHA converts a commit-position revision number into the git SHA of the
// named repository ("chromium/src", "v8/v8").
func (r *RevisionResolver) SHA(ctx context.Context, revision int64, repo string) (string, error) {
	query := url.Values{
		"number":               {strconv.FormatInt(revision, 10)},
		"numbering_identifier": {"refs/heads/master"},
		"numbering_type":       {"COMMIT_POSITION"},
		"project":              {"chromium"},
		"repo":                 {repo},
	}

	body, err := r.get(ctx, r.crrevURL+"?"+query.Encode())
	if err != nil {
		return "", err
	}

	var payload struct {
		GitSHA string `json:"git_sha"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if payload.GitSHA == "" {
		return "", fmt.Errorf("crrev has no SHA for revision %d in %s", revision, repo)
	}
	return payload.GitSHA, nil
}

// PdfiumSHA reads the pdfium_revision pin out of the Chromium DEPS file at
// the given Chromium SHA. Gitiles serves the file base64-encoded.
func (r *RevisionResolver) PdfiumSHA(ctx context.Context, chromiumSHA string) (string, error) {
	body, err := r.get(ctx, fmt.Sprintf("%s/+/%s/DEPS?format=TEXT", r.gitilesURL, chromiumSHA))
	if err != nil {
		return "", err
	}

	deps, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return "", fmt.Errorf("decoding DEPS for %s: %w", chromiumSHA, err)
	}

	match := pdfiumRevisionPattern.FindSubmatch(deps)
	if match == nil {
		return "", fmt.Errorf("no pdfium_revision pin in DEPS for %s", chromiumSHA)
	}
	return string(match[1]), nil
}

func (r *RevisionResolver) get(ctx context.Context, url string) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s returned %d", url, resp.StatusCode)
	}
	return body, nil
}
