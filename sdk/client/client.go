// Package client is a Go client for the assessly HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config represents the configuration for the assessly client
type Config struct {
	// BaseURL is the base URL of the assessly API
	BaseURL string
	// HTTPClient is an optional custom HTTP client
	HTTPClient *http.Client
	// Timeout is the default request timeout
	Timeout time.Duration
	// Token is an existing session token. Login replaces it.
	Token string
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:    "http://localhost:8080",
		HTTPClient: http.DefaultClient,
		Timeout:    10 * time.Second,
	}
}

// Client talks to one assessly deployment on behalf of one session.
type Client struct {
	config *Config
	client *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a new client with the given configuration
func NewClient(config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	client := config.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Client{
		config: config,
		client: client,
		token:  config.Token,
	}
}

// Token returns the session token currently in use.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Code       string `json:"error_code,omitempty"`
	// Redirect is set when the server wants the user elsewhere first, such
	// as team selection.
	Redirect string `json:"redirect,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s] %s (Status: %d)", e.Code, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s (Status: %d)", e.Message, e.StatusCode)
}

// IsUnauthenticated reports whether err means the session is missing or no
// longer valid.
func IsUnauthenticated(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404. The API answers 404 for both
// missing resources and resources the session may not see.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NeedsTeamSelection reports whether err asks the user to pick a team first.
func NeedsTeamSelection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict && apiErr.Redirect != ""
}

// Session is the answer to login and registration.
type Session struct {
	Ok        bool           `json:"ok"`
	User      map[string]any `json:"user"`
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Redirect  string         `json:"redirect"`
}

type LoginRequest struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationCode string `json:"organization_code,omitempty"`
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, req *LoginRequest) (*Session, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if req.Email == "" || req.Password == "" {
		return nil, errors.New("email and password are required")
	}

	var resp Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", req, &resp); err != nil {
		return nil, err
	}
	c.setToken(resp.Token)
	return &resp, nil
}

type RegisterRequest struct {
	Name             string `json:"name"`
	Email            string `json:"email"`
	Password         string `json:"password"`
	OrganizationCode string `json:"organization_code"`
}

// Register creates an employee account and keeps the returned token.
func (c *Client) Register(ctx context.Context, req *RegisterRequest) (*Session, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if req.Email == "" || req.Password == "" || req.OrganizationCode == "" {
		return nil, errors.New("email, password, and organization_code are required")
	}

	var resp Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	c.setToken(resp.Token)
	return &resp, nil
}

// Logout ends the session and forgets the token. It reports whether the
// server revoked the token.
func (c *Client) Logout(ctx context.Context) (bool, error) {
	var resp struct {
		Revoked bool `json:"revoked"`
	}
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, &resp)
	c.setToken("")
	if err != nil {
		return false, err
	}
	return resp.Revoked, nil
}

type CurrentRole struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// CurrentRole returns the role the directory holds for the session's user
// right now, which may differ from the role at login.
func (c *Client) CurrentRole(ctx context.Context) (*CurrentRole, error) {
	var resp CurrentRole
	if err := c.do(ctx, http.MethodGet, "/api/auth/current-role", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type OnboardingStatus struct {
	State          string `json:"state"`
	OrganizationID string `json:"organization_id,omitempty"`
	TeamID         string `json:"team_id,omitempty"`
}

func (c *Client) OnboardingStatus(ctx context.Context) (*OnboardingStatus, error) {
	var resp OnboardingStatus
	if err := c.do(ctx, http.MethodGet, "/api/onboarding/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type Team struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	ManagerID      string `json:"manager_id,omitempty"`
}

// Teams lists the teams of the session's own organization.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp struct {
		Teams []Team `json:"teams"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/onboarding/teams", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams, nil
}

type Membership struct {
	ID             string `json:"id"`
	UserID         string `json:"user_id"`
	OrganizationID string `json:"organization_id"`
	TeamID         string `json:"team_id,omitempty"`
}

// SelectTeam binds the session's user to teamID.
func (c *Client) SelectTeam(ctx context.Context, teamID string) (*Membership, error) {
	if teamID == "" {
		return nil, errors.New("team_id is required")
	}

	var resp struct {
		Membership Membership `json:"membership"`
	}
	if err := c.do(ctx, http.MethodPut, "/api/onboarding/team", map[string]string{"team_id": teamID}, &resp); err != nil {
		return nil, err
	}
	return &resp.Membership, nil
}

type TestResult struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	TestType  string         `json:"test_type"`
	Answers   map[string]any `json:"answers"`
	CreatedAt time.Time      `json:"created_at"`
}

func (c *Client) SaveResult(ctx context.Context, testType string, answers map[string]any) (*TestResult, error) {
	if testType == "" {
		return nil, errors.New("test_type is required")
	}

	var resp TestResult
	body := map[string]any{"test_type": testType, "answers": answers}
	if err := c.do(ctx, http.MethodPost, "/api/results", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type Report struct {
	ID           string         `json:"id"`
	OwnerID      string         `json:"owner_id"`
	TestResultID string         `json:"test_result_id,omitempty"`
	Content      map[string]any `json:"content"`
	CreatedAt    time.Time      `json:"created_at"`
}

func (c *Client) Report(ctx context.Context, reportID string) (*Report, error) {
	if reportID == "" {
		return nil, errors.New("report id is required")
	}

	var resp Report
	if err := c.do(ctx, http.MethodGet, "/api/reports/"+url.PathEscape(reportID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateOrganization requires an ADMIN session. An empty code lets the
// server generate one.
func (c *Client) CreateOrganization(ctx context.Context, name, code string) (*Organization, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}

	var resp Organization
	if err := c.do(ctx, http.MethodPost, "/api/admin/organizations", map[string]string{"name": name, "code": code}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteOrganization(ctx context.Context, orgID string) error {
	if orgID == "" {
		return errors.New("organization id is required")
	}
	return c.do(ctx, http.MethodDelete, "/api/admin/organizations/"+url.PathEscape(orgID), nil, nil)
}

type RoleChange struct {
	Previous string `json:"previous"`
	Role     string `json:"role"`
}

// ChangeRole requires an ADMIN session.
func (c *Client) ChangeRole(ctx context.Context, userID, role string) (*RoleChange, error) {
	if userID == "" || role == "" {
		return nil, errors.New("user id and role are required")
	}

	var resp RoleChange
	path := "/api/admin/users/" + url.PathEscape(userID) + "/role"
	if err := c.do(ctx, http.MethodPut, path, map[string]string{"role": role}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request and decodes a 2xx body into resp when resp is not
// nil. Non-2xx answers become *APIError.
func (c *Client) do(ctx context.Context, method, path string, req, resp any) error {
	// Set up context with timeout
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req != nil {
		reqBody, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(reqBody)
	}

	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path
	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var apiErr APIError
		if err := json.NewDecoder(httpResp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return &APIError{
				StatusCode: httpResp.StatusCode,
				Message:    fmt.Sprintf("request failed with status code %d", httpResp.StatusCode),
			}
		}
		apiErr.StatusCode = httpResp.StatusCode
		return &apiErr
	}

	if resp == nil {
		return nil
	}
	if err := json.NewDecoder(httpResp.Body).Decode(resp); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
