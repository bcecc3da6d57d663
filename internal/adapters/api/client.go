package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/metrics"
)

// TokenSource возвращает активный bearer-токен или пустую строку.
// Клиент не хранит токен сам: подпись запросов внедряется извне.
type TokenSource func() string

type Client struct {
	baseURL       *url.URL
	httpClient    *http.Client
	token         TokenSource
	onAuthFailure func()
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithTokenSource задаёт источник bearer-токена.
func WithTokenSource(source TokenSource) Option {
	return func(c *Client) {
		if source != nil {
			c.token = source
		}
	}
}

// WithAuthFailureHook задаёт обработчик ответа 401. Вызывается до того,
// как ошибка будет возвращена инициатору запроса.
func WithAuthFailureHook(hook func()) Option {
	return func(c *Client) {
		if hook != nil {
			c.onAuthFailure = hook
		}
	}
}

type apiError struct {
	Detail string `json:"detail"`
}

func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("baseURL is required")
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if parsed.Scheme == "" {
		parsed.Scheme = "http"
	}
	client := &Client{
		baseURL:    parsed,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		token:      func() string { return "" },
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var user domain.User
	if err := c.get(ctx, "auth_me", "/auth/me", &user); err != nil {
		return domain.User{}, err
	}
	return user, nil
}

func (c *Client) Login(ctx context.Context, email, password string, rememberMe bool) (domain.AuthResult, error) {
	payload := map[string]any{"email": email, "password": password, "remember_me": rememberMe}
	var result domain.AuthResult
	if err := c.post(ctx, "auth_login", "/auth/login", payload, &result); err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, email, password string) error {
	payload := map[string]any{"email": email, "password": password}
	return c.post(ctx, "auth_register", "/auth/register", payload, nil)
}

func (c *Client) VerifyEmail(ctx context.Context, email, code string) (domain.AuthResult, error) {
	payload := map[string]any{"email": email, "code": code}
	var result domain.AuthResult
	if err := c.post(ctx, "auth_verify_email", "/auth/verify-email", payload, &result); err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

func (c *Client) ResendVerification(ctx context.Context, email string) error {
	payload := map[string]any{"email": email}
	return c.post(ctx, "auth_resend_verification", "/auth/resend-verification", payload, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	payload := map[string]any{"email": email}
	return c.post(ctx, "auth_forgot_password", "/auth/forgot-password", payload, nil)
}

func (c *Client) ResetPassword(ctx context.Context, email, code, newPassword string) (domain.AuthResult, error) {
	payload := map[string]any{"email": email, "code": code, "new_password": newPassword}
	var result domain.AuthResult
	if err := c.post(ctx, "auth_reset_password", "/auth/reset-password", payload, &result); err != nil {
		return domain.AuthResult{}, err
	}
	return result, nil
}

func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	payload := map[string]any{"old_password": oldPassword, "new_password": newPassword}
	return c.post(ctx, "auth_change_password", "/auth/change-password", payload, nil)
}

func (c *Client) ListJobs(ctx context.Context) ([]domain.Job, error) {
	var jobs []domain.Job
	if err := c.get(ctx, "jobs_list", "/jobs/", &jobs); err != nil {
		return nil, err
	}
	return jobs, nil
}

func (c *Client) CreateJob(ctx context.Context, draft domain.JobDraft) (domain.Job, error) {
	var job domain.Job
	if err := c.post(ctx, "jobs_create", "/jobs/", draft, &job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (c *Client) UpdateJob(ctx context.Context, jobID int64, patch domain.JobPatch) (domain.Job, error) {
	var job domain.Job
	endpoint := fmt.Sprintf("/jobs/%d", jobID)
	if err := c.patch(ctx, "jobs_update", endpoint, patch, &job); err != nil {
		return domain.Job{}, err
	}
	return job, nil
}

func (c *Client) DeleteJob(ctx context.Context, jobID int64) error {
	endpoint := fmt.Sprintf("/jobs/%d", jobID)
	return c.delete(ctx, "jobs_delete", endpoint)
}

func (c *Client) ListExecutions(ctx context.Context, jobID int64) ([]domain.Execution, error) {
	var executions []domain.Execution
	endpoint := fmt.Sprintf("/jobs/%d/executions", jobID)
	if err := c.get(ctx, "jobs_executions", endpoint, &executions); err != nil {
		return nil, err
	}
	return executions, nil
}

func (c *Client) ListSummaries(ctx context.Context, jobID int64) ([]domain.Summary, error) {
	var summaries []domain.Summary
	endpoint := fmt.Sprintf("/jobs/%d/summaries", jobID)
	if err := c.get(ctx, "jobs_summaries", endpoint, &summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

func (c *Client) RunJob(ctx context.Context, jobID int64) (domain.Summary, error) {
	var summary domain.Summary
	endpoint := fmt.Sprintf("/monitoring/jobs/%d/run", jobID)
	if err := c.post(ctx, "monitoring_run", endpoint, nil, &summary); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

func (c *Client) RunTest(ctx context.Context, req domain.TestRequest) (domain.TestResult, error) {
	var result domain.TestResult
	if err := c.post(ctx, "monitoring_test", "/monitoring/test", req, &result); err != nil {
		return domain.TestResult{}, err
	}
	return result, nil
}

func (c *Client) SendSummaryEmail(ctx context.Context, jobID int64, email, summaryID string) (bool, error) {
	payload := map[string]any{"email": email}
	if summaryID != "" {
		payload["summary_id"] = summaryID
	}
	var result struct {
		EmailSent bool `json:"email_sent"`
	}
	endpoint := fmt.Sprintf("/monitoring/jobs/%d/summaries/send-email", jobID)
	if err := c.post(ctx, "monitoring_send_email", endpoint, payload, &result); err != nil {
		return false, err
	}
	return result.EmailSent, nil
}

func (c *Client) ListTargets(ctx context.Context) ([]domain.NotificationTarget, error) {
	var targets []domain.NotificationTarget
	if err := c.get(ctx, "notifications_targets", "/notifications/targets", &targets); err != nil {
		return nil, err
	}
	return targets, nil
}

func (c *Client) CreateBindToken(ctx context.Context) (domain.BindToken, error) {
	var token domain.BindToken
	if err := c.post(ctx, "notifications_bind_token", "/notifications/telegram/bind-token", nil, &token); err != nil {
		return domain.BindToken{}, err
	}
	return token, nil
}

func (c *Client) SetDefaultTarget(ctx context.Context, targetID int64) error {
	endpoint := fmt.Sprintf("/notifications/targets/%d/default", targetID)
	return c.patch(ctx, "notifications_set_default", endpoint, nil, nil)
}

func (c *Client) get(ctx context.Context, op, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) post(ctx context.Context, op, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) patch(ctx context.Context, op, endpoint string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPatch, endpoint, body)
	if err != nil {
		return err
	}
	return c.do(op, req, out)
}

func (c *Client) delete(ctx context.Context, op, endpoint string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(op, req, nil)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body any) (*http.Request, error) {
	resolved := *c.baseURL
	basePath := strings.TrimSuffix(c.baseURL.Path, "/")
	resolved.Path = path.Clean(basePath + endpoint)
	if strings.HasSuffix(endpoint, "/") && !strings.HasSuffix(resolved.Path, "/") {
		resolved.Path += "/"
	}
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		buf = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, resolved.String(), buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) do(op string, req *http.Request, out any) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveAPIRequest(op, start, err) }()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("xtrack api request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var apiErr apiError
		data, readErr := io.ReadAll(resp.Body)
		if readErr == nil && len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Detail == "" {
			apiErr.Detail = strings.TrimSpace(string(data))
		}
		err = c.mapAPIError(resp.StatusCode, apiErr)
		return err
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapAPIError переводит ответ бэкенда в доменную ошибку. Ответ 401
// инвалидирует сессию до того, как ошибка вернётся вызывающему.
func (c *Client) mapAPIError(status int, apiErr apiError) error {
	switch status {
	case http.StatusUnauthorized:
		if c.onAuthFailure != nil {
			c.onAuthFailure()
		}
		if apiErr.Detail != "" {
			return fmt.Errorf("%w: %s", domain.ErrUnauthorized, apiErr.Detail)
		}
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		if apiErr.Detail != "" {
			return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Detail)
		}
		return domain.ErrNotFound
	case http.StatusTooManyRequests:
		return domain.ErrUpstreamRateLimit
	default:
		if apiErr.Detail != "" {
			return fmt.Errorf("xtrack api error: status=%d message=%s", status, apiErr.Detail)
		}
		return fmt.Errorf("xtrack api error: status=%d", status)
	}
}

var _ domain.AuthAPI = (*Client)(nil)
var _ domain.JobsAPI = (*Client)(nil)
var _ domain.MonitoringAPI = (*Client)(nil)
var _ domain.NotificationsAPI = (*Client)(nil)
