package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	reproerrors "github.com/fuzzkit/repro/pkg/errors"
)

// authHeaderFile is where the service token lives between runs. The watch
// daemon refreshes this file out of band.
const authHeaderFile = "auth_header"

// StoredAuthHeader returns the persisted authorization header, or "" when
// none has been stored yet.
func (c *Client) StoredAuthHeader() string {
	data, err := os.ReadFile(filepath.Join(c.cacheDir, authHeaderFile))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// StoreAuthHeader persists the authorization header with owner-only access.
func (c *Client) StoreAuthHeader(header string) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.cacheDir, authHeaderFile), []byte(header), 0o600)
}

// verificationHeader walks the user through the OAuth page and turns the
// pasted code into an authorization header.
func (c *Client) verificationHeader() (string, error) {
	c.log.Info("We need to authenticate you in order to get information from FuzzKit.")
	c.log.Infof("Open: %s", OAuthURL)

	if err := c.openBrowser(OAuthURL); err != nil {
		// The URL was printed, so a failed launch is not fatal.
		c.log.Debugf("could not open browser: %v", err)
	}

	code, err := c.readCode()
	if err != nil {
		return "", err
	}
	return "VerificationCode " + code, nil
}

// post sends an authenticated POST and returns the response body. A 401
// triggers the verification flow once; any refreshed token the service
// hands back is persisted for the next run.
func (c *Client) post(ctx context.Context, url string, body []byte) ([]byte, error) {
	header := c.StoredAuthHeader()

	var (
		status   int
		respBody []byte
	)

	for attempt := 0; attempt < 2; attempt++ {
		if header == "" || status == http.StatusUnauthorized {
			refreshed, err := c.verificationHeader()
			if err != nil {
				return nil, err
			}
			header = refreshed
		}

		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", header)
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}

		respBody, err = io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, err
		}
		status = resp.StatusCode

		if status == http.StatusOK {
			if refreshed := resp.Header.Get(authHeaderKey); refreshed != "" {
				if err := c.StoreAuthHeader(refreshed); err != nil {
					return nil, err
				}
			}
			return respBody, nil
		}
	}

	return nil, reproerrors.NewAuthError(status, string(respBody), nil)
}
