package domain

import (
	"context"
	"errors"
)

var (
	// ErrUnauthorized возвращается, когда бэкенд отверг учётные данные.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound возвращается, когда запрошенный объект не существует.
	ErrNotFound = errors.New("not found")

	// ErrUpstreamRateLimit возвращается при HTTP 429 от источника данных.
	ErrUpstreamRateLimit = errors.New("upstream rate limit exceeded")
)

// AuthResult — ответ бэкенда на успешную аутентификацию.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// AuthAPI описывает операции аутентификации бэкенда.
type AuthAPI interface {
	Me(ctx context.Context) (User, error)
	Login(ctx context.Context, email, password string, rememberMe bool) (AuthResult, error)
	Register(ctx context.Context, email, password string) error
	VerifyEmail(ctx context.Context, email, code string) (AuthResult, error)
	ResendVerification(ctx context.Context, email string) error
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, code, newPassword string) (AuthResult, error)
	ChangePassword(ctx context.Context, oldPassword, newPassword string) error
}

// JobDraft — нормализованные поля новой задачи, готовые к отправке.
type JobDraft struct {
	XUsername             string    `json:"x_username"`
	Frequency             Frequency `json:"frequency"`
	Topics                []string  `json:"topics"`
	Language              string    `json:"language,omitempty"`
	Email                 *string   `json:"email,omitempty"`
	NotificationTargetIDs []int64   `json:"notification_target_ids,omitempty"`
}

// JobPatch — частичное обновление задачи. Нулевые указатели не отправляются.
type JobPatch struct {
	Frequency *Frequency `json:"frequency,omitempty"`
	Topics    []string   `json:"topics,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
	Email     *string    `json:"email,omitempty"`
}

// JobsAPI описывает CRUD задач и чтение их коллекций.
type JobsAPI interface {
	ListJobs(ctx context.Context) ([]Job, error)
	CreateJob(ctx context.Context, draft JobDraft) (Job, error)
	UpdateJob(ctx context.Context, jobID int64, patch JobPatch) (Job, error)
	DeleteJob(ctx context.Context, jobID int64) error
	ListExecutions(ctx context.Context, jobID int64) ([]Execution, error)
	ListSummaries(ctx context.Context, jobID int64) ([]Summary, error)
}

// MonitoringAPI описывает запуск мониторинга и пересылку дайджестов.
type MonitoringAPI interface {
	RunJob(ctx context.Context, jobID int64) (Summary, error)
	RunTest(ctx context.Context, req TestRequest) (TestResult, error)
	SendSummaryEmail(ctx context.Context, jobID int64, email, summaryID string) (bool, error)
}

// NotificationsAPI описывает чтение и привязку мест доставки.
type NotificationsAPI interface {
	ListTargets(ctx context.Context) ([]NotificationTarget, error)
	CreateBindToken(ctx context.Context) (BindToken, error)
	SetDefaultTarget(ctx context.Context, targetID int64) error
}

// StateStore — локальное хранилище состояния клиента: ключ → значение.
// Отсутствие ключа не является ошибкой.
type StateStore interface {
	Get(key string) ([]byte, bool, error)
	Set(key string, value []byte) error
	Delete(key string) error
}
