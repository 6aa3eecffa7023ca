// Package e2e drives the trust layer API end to end with godog features.
//
// The suite is black box: it speaks HTTP to a server that is already running
// at HUSHMCP_E2E_URL and owns no process lifecycle. Scenarios that need a
// session log in with the account from HUSHMCP_E2E_EMAIL and
// HUSHMCP_E2E_PASSWORD, which must exist in the server's SESSION_ACCOUNTS.
// Run the server with DEV_MODE=true so the per-class request budgets do not
// throttle the suite itself; the login lockout stays active either way, and
// the ratelimit feature leans on that.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// TestContext carries the per-scenario state every step package works
// against: the HTTP client, the current session, the most recent response,
// and the consent token scenarios thread between surfaces. Each step package
// declares its own interface over the subset it needs.
type TestContext struct {
	baseURL  string
	email    string
	password string

	client *http.Client

	sessionToken   string
	consentToken   string
	consentTokenID string

	lastStatus int
	lastBody   []byte
}

// NewTestContext builds a context from the environment. The base URL must be
// set by the caller's guard before the suite runs; credentials fall back to
// the dev-compose defaults.
func NewTestContext() *TestContext {
	email := os.Getenv("HUSHMCP_E2E_EMAIL")
	if email == "" {
		email = "ops@example.com"
	}
	password := os.Getenv("HUSHMCP_E2E_PASSWORD")
	if password == "" {
		password = "hushmcp-dev"
	}
	return &TestContext{
		baseURL:  strings.TrimRight(os.Getenv("HUSHMCP_E2E_URL"), "/"),
		email:    email,
		password: password,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears everything a scenario may have left behind.
func (tc *TestContext) Reset() {
	tc.sessionToken = ""
	tc.consentToken = ""
	tc.consentTokenID = ""
	tc.lastStatus = 0
	tc.lastBody = nil
}

func (tc *TestContext) do(method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tc.sessionToken != "" {
		req.Header.Set("Authorization", "Bearer "+tc.sessionToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}
	tc.lastStatus = resp.StatusCode
	tc.lastBody = data
	return nil
}

// POST sends a JSON body; the current session token rides along when one is
// held.
func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil)
}

func (tc *TestContext) DELETE(path string) error {
	return tc.do(http.MethodDelete, path, nil)
}

// Login authenticates and, on success, holds the session token for every
// later request in the scenario. A rejected login is not an error here; the
// scenario asserts on the recorded status.
func (tc *TestContext) Login(email, password string) error {
	tc.sessionToken = ""
	if err := tc.POST("/api/session", map[string]string{
		"email":    email,
		"password": password,
	}); err != nil {
		return err
	}
	if tc.lastStatus != http.StatusOK {
		return nil
	}
	token, err := tc.StringField("token")
	if err != nil {
		return fmt.Errorf("login succeeded but returned no token: %w", err)
	}
	tc.sessionToken = token
	return nil
}

// LoginDefault logs in with the configured account.
func (tc *TestContext) LoginDefault() error {
	return tc.Login(tc.email, tc.password)
}

func (tc *TestContext) ClearSession() {
	tc.sessionToken = ""
}

func (tc *TestContext) AccountEmail() string {
	return tc.email
}

func (tc *TestContext) StatusCode() int {
	return tc.lastStatus
}

func (tc *TestContext) Body() []byte {
	return tc.lastBody
}

// SetConsentToken stores the grant the scenario is working with so the trust
// and vault steps can present it.
func (tc *TestContext) SetConsentToken(token, tokenID string) {
	tc.consentToken = token
	tc.consentTokenID = tokenID
}

func (tc *TestContext) ConsentToken() string {
	return tc.consentToken
}

func (tc *TestContext) ConsentTokenID() string {
	return tc.consentTokenID
}

// Field resolves a dotted path such as "token.scope" in the last JSON
// response.
func (tc *TestContext) Field(path string) (any, error) {
	if len(tc.lastBody) == 0 {
		return nil, fmt.Errorf("no response body to inspect")
	}
	var doc any
	if err := json.Unmarshal(tc.lastBody, &doc); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}

	current := doc
	for _, part := range strings.Split(path, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", path, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q missing from response %s", path, tc.lastBody)
		}
	}
	return current, nil
}

// StringField is Field for the common case of a string value.
func (tc *TestContext) StringField(path string) (string, error) {
	value, err := tc.Field(path)
	if err != nil {
		return "", err
	}
	s, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("field %q is %T, not a string", path, value)
	}
	return s, nil
}

func (tc *TestContext) HasField(path string) bool {
	_, err := tc.Field(path)
	return err == nil
}
