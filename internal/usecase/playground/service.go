package playground

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"xtrack-client/internal/domain"
)

var (
	// ErrQuotaExceeded возвращается, когда квота запусков песочницы
	// в текущем окне исчерпана.
	ErrQuotaExceeded = errors.New("исчерпана квота запусков песочницы")

	// ErrEmptyUsername возвращается при пустом имени аккаунта.
	ErrEmptyUsername = errors.New("не указан аккаунт X")
)

const (
	defaultHoursBack = 24
	maxHoursBack     = 168
)

// Service выполняет разовые запуски мониторинга в обход модели задач.
// Работает и без аутентификации, поэтому единственная защита от
// злоупотребления — локальный ограничитель.
type Service struct {
	monitoring domain.MonitoringAPI
	limiter    *Limiter
	logger     zerolog.Logger
}

// NewService создаёт сервис песочницы.
func NewService(monitoring domain.MonitoringAPI, limiter *Limiter, logger zerolog.Logger) *Service {
	return &Service{monitoring: monitoring, limiter: limiter, logger: logger}
}

// Limiter открывает ограничитель для чтения остатка квоты.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Run проверяет квоту и выполняет разовый запуск. Отметка квоты ставится
// до сетевого вызова, а ответ 429 от источника данных переписывается в
// понятное сообщение о темпе запросов.
func (s *Service) Run(ctx context.Context, req domain.TestRequest) (domain.TestResult, error) {
	req.XUsername = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(req.XUsername), "@"))
	if req.XUsername == "" {
		return domain.TestResult{}, ErrEmptyUsername
	}
	if req.HoursBack <= 0 {
		req.HoursBack = defaultHoursBack
	}
	if req.HoursBack > maxHoursBack {
		req.HoursBack = maxHoursBack
	}

	if !s.limiter.Allow() {
		return domain.TestResult{}, ErrQuotaExceeded
	}
	s.limiter.Record()

	result, err := s.monitoring.RunTest(ctx, req)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamRateLimit) {
			return domain.TestResult{}, fmt.Errorf(
				"%w: the data source allows 1 request every 5 seconds, please wait a moment and try again",
				domain.ErrUpstreamRateLimit)
		}
		return domain.TestResult{}, fmt.Errorf("запуск теста: %w", err)
	}

	s.logger.Debug().
		Str("device_id", s.limiter.DeviceID()).
		Str("x_username", result.XUsername).
		Int("tweets_found", result.TweetsFound).
		Msg("playground: тест выполнен")
	return result, nil
}
