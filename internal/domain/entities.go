package domain

import (
	"encoding/json"
	"time"
)

// Frequency задаёт периодичность запуска задачи мониторинга.
type Frequency string

const (
	FrequencyHourly       Frequency = "hourly"
	FrequencyEvery6Hours  Frequency = "every_6_hours"
	FrequencyEvery12Hours Frequency = "every_12_hours"
	FrequencyDaily        Frequency = "daily"
)

// Valid сообщает, известна ли периодичность бэкенду.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyHourly, FrequencyEvery6Hours, FrequencyEvery12Hours, FrequencyDaily:
		return true
	}
	return false
}

// Label возвращает человекочитаемое название периодичности.
func (f Frequency) Label() string {
	switch f {
	case FrequencyHourly:
		return "Hourly"
	case FrequencyEvery6Hours:
		return "Every 6 Hours"
	case FrequencyEvery12Hours:
		return "Every 12 Hours"
	case FrequencyDaily:
		return "Daily"
	}
	return string(f)
}

// User описывает учётную запись XTrack.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	Name        string     `json:"name,omitempty"`
	Status      string     `json:"status,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// Job описывает сохранённую задачу отслеживания аккаунта X.
type Job struct {
	ID                    int64      `json:"id"`
	UserID                int64      `json:"user_id,omitempty"`
	XUsername             string     `json:"x_username"`
	Frequency             Frequency  `json:"frequency"`
	Topics                []string   `json:"topics"`
	Language              string     `json:"language,omitempty"`
	Email                 *string    `json:"email,omitempty"`
	NotificationTargetIDs []int64    `json:"notification_target_ids,omitempty"`
	IsActive              bool       `json:"is_active"`
	CreatedAt             time.Time  `json:"created_at"`
	LastRun               *time.Time `json:"last_run,omitempty"`
}

// Execution описывает один конкретный запуск задачи.
type Execution struct {
	ID            int64      `json:"id"`
	JobID         int64      `json:"job_id"`
	Status        string     `json:"status"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	TweetsFetched int        `json:"tweets_fetched"`
	Error         string     `json:"error,omitempty"`
}

// Summary содержит сгенерированный дайджест и метаданные использования токенов.
// ExecutionID пустой для запусков из песочницы, которые не привязаны к запуску задачи.
type Summary struct {
	ID           string          `json:"id"`
	JobID        int64           `json:"job_id"`
	ExecutionID  *int64          `json:"execution_id,omitempty"`
	Content      string          `json:"content"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
	TweetsCount  int             `json:"tweets_count"`
	RawData      json.RawMessage `json:"raw_data,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ChannelTelegram — единственный внешний канал доставки, который клиент
// различает по имени.
const ChannelTelegram = "telegram"

// NotificationTarget описывает привязанное место доставки уведомлений.
type NotificationTarget struct {
	ID          int64          `json:"id"`
	Channel     string         `json:"channel"`
	Destination string         `json:"destination"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	IsDefault   bool           `json:"is_default"`
	CreatedAt   time.Time      `json:"created_at"`
}

// BindToken — одноразовый токен привязки Telegram-чата.
type BindToken struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// TweetPreview — короткий срез твита для предпросмотра результата теста.
type TweetPreview struct {
	Text      string    `json:"text"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	Timestamp time.Time `json:"timestamp"`
}

// TestRequest описывает разовый запуск мониторинга из песочницы.
type TestRequest struct {
	XUsername string   `json:"x_username"`
	HoursBack int      `json:"hours_back"`
	Topics    []string `json:"topics"`
	Language  string   `json:"language,omitempty"`
	Email     *string  `json:"email,omitempty"`
}

// TestResult — результат разового запуска мониторинга.
type TestResult struct {
	XUsername   string         `json:"x_username"`
	Topics      []string       `json:"topics"`
	HoursBack   int            `json:"hours_back"`
	Language    string         `json:"language,omitempty"`
	TweetsFound int            `json:"tweets_found"`
	Summary     string         `json:"summary"`
	SummaryID   string         `json:"summary_id,omitempty"`
	Tweets      []TweetPreview `json:"tweets,omitempty"`
	SinceTime   string         `json:"since_time,omitempty"`
	UntilTime   string         `json:"until_time,omitempty"`
	EmailSent   bool           `json:"email_sent"`
}

// JobStats — производная статистика задачи, свёрнутая из её запусков и дайджестов.
type JobStats struct {
	InputTokens    int `json:"input_tokens"`
	OutputTokens   int `json:"output_tokens"`
	TweetsAnalyzed int `json:"tweets_analyzed"`
	RunCount       int `json:"run_count"`
}
