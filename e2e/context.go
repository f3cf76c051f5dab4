// Package e2e drives a running cardforge server through godog scenarios.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext carries HTTP state between the steps of one scenario.
type TestContext struct {
	BaseURL    string
	AdminToken string

	client     *http.Client
	token      string
	lastStatus int
	lastHeader http.Header
	lastBody   []byte
	saved      map[string]string
}

// NewTestContext returns a context pointed at baseURL.
func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		client:     &http.Client{Timeout: 10 * time.Second},
		saved:      map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.token = ""
	tc.lastStatus = 0
	tc.lastHeader = nil
	tc.lastBody = nil
	tc.saved = map[string]string{}
}

// Do sends a request. "{name}" segments in path are replaced with saved
// values, and the access token is attached when one is held.
func (tc *TestContext) Do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, tc.BaseURL+tc.expand(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastHeader = resp.Header
	return nil
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.Do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) PUT(path string, body any) error {
	return tc.Do(http.MethodPut, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.Do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.Do(http.MethodDelete, path, nil, nil)
}

// GetResponseField resolves a dotted path such as "card.id" in the last JSON
// response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %s", tc.lastBody)
	}
	cur := doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		cur, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in %s", field, tc.lastBody)
		}
	}
	return cur, nil
}

func (tc *TestContext) GetLastResponseStatus() int { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string {
	if tc.lastHeader == nil {
		return ""
	}
	return tc.lastHeader.Get(k)
}

func (tc *TestContext) GetAccessToken() string { return tc.token }
func (tc *TestContext) SetAccessToken(token string) { tc.token = token }
func (tc *TestContext) GetAdminToken() string { return tc.AdminToken }

func (tc *TestContext) Save(name, value string) { tc.saved[name] = value }
func (tc *TestContext) Recall(name string) string { return tc.saved[name] }

func (tc *TestContext) expand(path string) string {
	for name, value := range tc.saved {
		path = strings.ReplaceAll(path, "{"+name+"}", value)
	}
	return path
}
