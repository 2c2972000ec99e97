package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"
)

// Transport is the HTTP collaborator the session is built on.
type Transport interface {
	// Get fetches path and decodes the JSON response into out.
	Get(ctx context.Context, path string, out any) error
	// PostVoid posts body as JSON and discards the response.
	PostVoid(ctx context.Context, path string, body any) error
	// PutVoid puts body as JSON and discards the response.
	PutVoid(ctx context.Context, path string, body any) error
}

// Client handles communication with the Jira REST API.
type Client struct {
	APIURL *url.URL     // Base API URL (must include /rest/api/X)
	Client *http.Client // Underlying HTTP client
	auth   AuthFunc
}

// errorResponse is the error body Jira sends with 4xx responses.
type errorResponse struct {
	ErrorMessages []string          `json:"errorMessages"`
	Errors        map[string]string `json:"errors"`
}

// NewClient returns a Jira client with the given base URL and authentication function.
func NewClient(apiURL *url.URL, auth AuthFunc, skipVerify bool, timeout time.Duration) *Client {
	return &Client{
		APIURL: apiURL,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: newHTTPTransport(skipVerify),
		},
		auth: auth,
	}
}

// newHTTPTransport returns a pooled Transport with optional TLS skipping.
func newHTTPTransport(skipVerify bool) *http.Transport {
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 60 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: skipVerify, // NOTE: intended for dev only
		},
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Get performs a GET request and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	body, _, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", path, err)
	}
	return nil
}

// PostVoid performs a POST request with a JSON body.
func (c *Client) PostVoid(ctx context.Context, path string, body any) error {
	_, _, err := c.doRequest(ctx, http.MethodPost, path, body)
	return err
}

// PutVoid performs a PUT request with a JSON body.
func (c *Client) PutVoid(ctx context.Context, path string, body any) error {
	_, _, err := c.doRequest(ctx, http.MethodPut, path, body)
	return err
}

// resolve turns path into a full URL. Absolute URLs are used as they are,
// everything else is appended to the API base.
func (c *Client) resolve(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if c.APIURL == nil {
		return "", fmt.Errorf("parse path: no API URL configured")
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.APIURL.String(), "/") + path, nil
}

// doRequest performs an authenticated HTTP request and returns response body, status, and error.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (response []byte, statusCode int, err error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	fullURL, err := c.resolve(path)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, http.StatusBadRequest, fmt.Errorf("create request: %w", err)
	}

	if c.auth != nil {
		c.auth(req)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, http.StatusBadGateway, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return respBody, resp.StatusCode, newStatusError(method, fullURL, resp.StatusCode, respBody)
	}
	return respBody, resp.StatusCode, nil
}

// newStatusError builds a StatusError, extracting Jira error messages when the body has them.
func newStatusError(method, fullURL string, status int, body []byte) *StatusError {
	se := &StatusError{
		Method:     method,
		URL:        fullURL,
		StatusCode: status,
		Body:       string(trim(body, 2048)),
	}

	var jerr errorResponse
	if json.Unmarshal(body, &jerr) == nil {
		se.Messages = append(se.Messages, jerr.ErrorMessages...)
		keys := make([]string, 0, len(jerr.Errors))
		for k := range jerr.Errors {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			se.Messages = append(se.Messages, k+": "+jerr.Errors[k])
		}
	}
	return se
}

// trim caps b at n bytes.
func trim(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
