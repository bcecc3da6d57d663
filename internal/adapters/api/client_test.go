package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"xtrack-client/internal/domain"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(server.URL+"/api", opts...)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	return client
}

func TestBearerHeaderFromTokenSource(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(domain.User{ID: 1, Email: "user@example.com"})
	}), WithTokenSource(func() string { return "token-1" }))

	if _, err := client.Me(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotAuth != "Bearer token-1" {
		t.Fatalf("ожидали Bearer token-1, получили %q", gotAuth)
	}
}

func TestNoHeaderWithoutToken(t *testing.T) {
	var gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("[]"))
	}))

	if _, err := client.ListJobs(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotAuth != "" {
		t.Fatalf("запрос без токена не подписывается, получили %q", gotAuth)
	}
}

func TestListJobsKeepsTrailingSlash(t *testing.T) {
	var gotPath string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte("[]"))
	}))

	if _, err := client.ListJobs(context.Background()); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if gotPath != "/api/jobs/" {
		t.Fatalf("ожидали /api/jobs/, получили %q", gotPath)
	}
}

func TestUnauthorizedCallsHookBeforeReturn(t *testing.T) {
	hookCalled := false
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Invalid token"})
	}), WithAuthFailureHook(func() { hookCalled = true }))

	_, err := client.Me(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("ожидали ErrUnauthorized, получили %v", err)
	}
	if !hookCalled {
		t.Fatalf("обработчик 401 обязан вызываться до возврата ошибки")
	}
}

func TestNotFoundMapsToDomainError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"detail": "Job not found"})
	}))

	err := client.DeleteJob(context.Background(), 42)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали ErrNotFound, получили %v", err)
	}
}

func TestTooManyRequestsMapsToRateLimit(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.RunJob(context.Background(), 1)
	if !errors.Is(err, domain.ErrUpstreamRateLimit) {
		t.Fatalf("ожидали ErrUpstreamRateLimit, получили %v", err)
	}
}

func TestServerDetailSurfacesInError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"detail": "x_username is required"})
	}))

	_, err := client.CreateJob(context.Background(), domain.JobDraft{})
	if err == nil {
		t.Fatalf("ожидали ошибку")
	}
	want := "xtrack api error: status=400 message=x_username is required"
	if err.Error() != want {
		t.Fatalf("ожидали %q, получили %q", want, err.Error())
	}
}

func TestLoginSendsRememberMe(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(domain.AuthResult{Token: "token-1", User: domain.User{ID: 1}})
	}))

	result, err := client.Login(context.Background(), "user@example.com", "secret", true)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if result.Token != "token-1" {
		t.Fatalf("ожидали token-1, получили %q", result.Token)
	}
	if got["remember_me"] != true {
		t.Fatalf("флаг remember_me обязан уходить в теле запроса: %v", got)
	}
}

func TestUpdateJobSendsOnlySetFields(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("ожидали PATCH, получили %s", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(domain.Job{ID: 7})
	}))

	active := false
	if _, err := client.UpdateJob(context.Background(), 7, domain.JobPatch{IsActive: &active}); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if got["is_active"] != false {
		t.Fatalf("ожидали is_active=false: %v", got)
	}
	if _, ok := got["frequency"]; ok {
		t.Fatalf("незаполненные поля патча не отправляются: %v", got)
	}
}

func TestSendSummaryEmailParsesFlag(t *testing.T) {
	var gotPath string
	var got map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]bool{"email_sent": true})
	}))

	sent, err := client.SendSummaryEmail(context.Background(), 3, "user@example.com", "s-1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if !sent {
		t.Fatalf("ожидали email_sent=true")
	}
	if gotPath != "/api/monitoring/jobs/3/summaries/send-email" {
		t.Fatalf("неверный путь запроса: %q", gotPath)
	}
	if got["summary_id"] != "s-1" {
		t.Fatalf("идентификатор дайджеста обязан уходить в теле: %v", got)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("ожидали ошибку для пустого адреса")
	}
}
