package playground

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/metrics"
)

const (
	// runsKey — фиксированный ключ, под которым хранится JSON-массив
	// отметок времени запусков песочницы.
	runsKey = "playground_runs"

	// deviceKey хранит идентификатор устройства, к которому привязана квота.
	deviceKey = "device_id"
)

// Limiter — клиентский ограничитель запусков песочницы со скользящим
// окном. Мягкая защита от злоупотребления, не контроль безопасности:
// пользователь может стереть локальное состояние.
type Limiter struct {
	store  domain.StateStore
	limit  int
	window time.Duration
	now    func() time.Time
	logger zerolog.Logger
}

// NewLimiter создаёт ограничитель. limit и window по умолчанию — 10
// запусков за 24 часа.
func NewLimiter(store domain.StateStore, limit int, window time.Duration, logger zerolog.Logger) *Limiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 24 * time.Hour
	}
	return &Limiter{store: store, limit: limit, window: window, now: time.Now, logger: logger}
}

// Remaining возвращает остаток квоты в текущем окне. Никогда не
// отрицателен и не превышает лимит.
func (l *Limiter) Remaining() int {
	recent := l.recentRuns()
	remaining := l.limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	metrics.PlaygroundRunsRemaining.Set(float64(remaining))
	return remaining
}

// Allow сообщает, разрешён ли запуск прямо сейчас.
func (l *Limiter) Allow() bool {
	return l.Remaining() > 0
}

// Record добавляет отметку времени текущего запуска. Вызывается до
// отправки запроса: зависший или упавший запрос всё равно тратит квоту.
// Ошибка записи проглатывается — проверка в памяти уже прошла.
func (l *Limiter) Record() {
	runs := append(l.readRuns(), l.now().UTC())
	raw, err := json.Marshal(runs)
	if err != nil {
		l.logger.Warn().Err(err).Msg("playground: не удалось сериализовать отметки запусков")
		return
	}
	if err := l.store.Set(runsKey, raw); err != nil {
		l.logger.Warn().Err(err).Msg("playground: не удалось сохранить отметку запуска")
	}
}

// DeviceID возвращает устойчивый идентификатор устройства, создавая его
// при первом обращении.
func (l *Limiter) DeviceID() string {
	value, ok, err := l.store.Get(deviceKey)
	if err == nil && ok && len(value) > 0 {
		return string(value)
	}
	id := uuid.NewString()
	if err := l.store.Set(deviceKey, []byte(id)); err != nil {
		l.logger.Warn().Err(err).Msg("playground: не удалось сохранить идентификатор устройства")
	}
	return id
}

// readRuns читает сохранённую последовательность. Повреждённое или
// нечитаемое состояние трактуется как пустое, никогда не как ошибка.
func (l *Limiter) readRuns() []time.Time {
	value, ok, err := l.store.Get(runsKey)
	if err != nil || !ok || len(value) == 0 {
		return nil
	}
	var runs []time.Time
	if err := json.Unmarshal(value, &runs); err != nil {
		l.logger.Debug().Err(err).Msg("playground: состояние повреждено, считаем квоту нетронутой")
		return nil
	}
	return runs
}

// recentRuns возвращает отметки внутри скользящего окна.
func (l *Limiter) recentRuns() []time.Time {
	cutoff := l.now().Add(-l.window)
	var recent []time.Time
	for _, run := range l.readRuns() {
		if run.After(cutoff) {
			recent = append(recent, run)
		}
	}
	return recent
}
