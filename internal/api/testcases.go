package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-retryablehttp"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// TestcaseInfo fetches the raw testcase detail document for an id. The
// caller owns decoding; the JSON layout belongs to the testcase package.
func (c *Client) TestcaseInfo(ctx context.Context, testcaseID string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"testcaseId": testcaseID})
	if err != nil {
		return nil, err
	}
	return c.post(ctx, c.endpoint("/v2/testcase-detail/refresh"), body)
}

// Summary is one row of the testcase listing used by the watch daemon.
type Summary struct {
	ID      int64  `json:"id"`
	JobType string `json:"jobType"`
}

// ListTestcases returns one page of reproducible testcases.
func (c *Client) ListTestcases(ctx context.Context, page int) ([]Summary, error) {
	body, err := json.Marshal(map[string]any{
		"page":         page,
		"reproducible": "yes",
	})
	if err != nil {
		return nil, err
	}

	data, err := c.post(ctx, c.endpoint("/v2/testcases/load"), body)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Items []Summary `json:"items"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return payload.Items, nil
}

// DownloadTestcase streams the testcase file into destDir and returns the
// saved path. The server names the file through Content-Disposition.
func (c *Client) DownloadTestcase(ctx context.Context, testcaseID, destDir string) (string, error) {
	url := fmt.Sprintf("%s/v2/testcase-detail/download-testcase?id=%s",
		c.baseURL, testcaseID)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", c.StoredAuthHeader())
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", reproerrors.NewAuthError(resp.StatusCode, string(body), nil)
	}

	name := attachmentName(resp.Header.Get("Content-Disposition"))
	if name == "" {
		name = "testcase_" + testcaseID
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(destDir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", err
	}
	return path, nil
}

// attachmentName extracts the filename from a Content-Disposition header.
// Path separators are stripped so the server cannot steer the write outside
// destDir.
func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return ""
	}
	return filepath.Base(params["filename"])
}
