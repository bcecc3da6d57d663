package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/metrics"
	"xtrack-client/internal/usecase/notify"
	"xtrack-client/internal/usecase/stats"
)

var (
	// ErrJobLimit возвращается при попытке создать задачу сверх лимита.
	ErrJobLimit = errors.New("достигнут лимит задач")

	// ErrEmptyUsername возвращается при пустом имени аккаунта.
	ErrEmptyUsername = errors.New("не указан аккаунт X")

	// ErrBadFrequency возвращается при неизвестной периодичности.
	ErrBadFrequency = errors.New("неизвестная периодичность")

	// ErrNotAuthenticated возвращается, когда операции нужна сессия.
	ErrNotAuthenticated = errors.New("требуется вход в систему")

	// ErrRunInProgress возвращается при повторном запуске задачи,
	// которая ещё выполняется.
	ErrRunInProgress = errors.New("задача уже выполняется")
)

// MaxJobs — лимит задач на пользователя. Проверяется локально как быстрый
// путь; бэкенд остаётся последней инстанцией.
const MaxJobs = 5

// Session — минимальный срез контроллера сессии, нужный реестру.
type Session interface {
	User() (domain.User, bool)
}

// CreateSpec — сырые поля новой задачи до нормализации.
type CreateSpec struct {
	XUsername string
	Frequency domain.Frequency
	// TopicsRaw — темы одной строкой через запятую, как их вводит
	// пользователь. Пустые элементы отбрасываются.
	TopicsRaw string
	Language  string

	EmailEnabled      bool
	TelegramEnabled   bool
	TelegramTargetIDs []int64
}

// Service зеркалит список задач бэкенда и держит по задаче кэш её
// запусков и дайджестов. Кэш заменяется снимком целиком, поэтому
// конкурентные читатели всегда видят согласованное прежнее состояние.
type Service struct {
	jobsAPI    domain.JobsAPI
	monitoring domain.MonitoringAPI
	targetsAPI domain.NotificationsAPI
	session    Session
	logger     zerolog.Logger

	mu         sync.RWMutex
	jobs       []domain.Job
	executions map[int64][]domain.Execution
	summaries  map[int64][]domain.Summary
	running    map[int64]bool
}

// NewService создаёт реестр задач.
func NewService(jobsAPI domain.JobsAPI, monitoring domain.MonitoringAPI, targetsAPI domain.NotificationsAPI, session Session, logger zerolog.Logger) *Service {
	return &Service{
		jobsAPI:    jobsAPI,
		monitoring: monitoring,
		targetsAPI: targetsAPI,
		session:    session,
		logger:     logger,
		executions: make(map[int64][]domain.Execution),
		summaries:  make(map[int64][]domain.Summary),
		running:    make(map[int64]bool),
	}
}

// List обновляет снимок задач с бэкенда. Падает закрыто: при ошибке
// пишет в лог и возвращает прежний снимок, не пробрасывая ошибку наверх.
func (s *Service) List(ctx context.Context) []domain.Job {
	jobs, err := s.jobsAPI.ListJobs(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("registry: не удалось загрузить задачи")
		return s.Jobs()
	}
	s.mu.Lock()
	s.jobs = jobs
	s.mu.Unlock()
	return s.Jobs()
}

// Jobs возвращает копию текущего снимка задач.
func (s *Service) Jobs() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	jobs := make([]domain.Job, len(s.jobs))
	copy(jobs, s.jobs)
	return jobs
}

// Create нормализует поля, проверяет лимиты и каналы доставки и создаёт
// задачу. Все проверки выполняются до сетевого вызова создания. Почтовый
// адрес в задачу попадает только собственный адрес пользователя.
func (s *Service) Create(ctx context.Context, spec CreateSpec) (domain.Job, error) {
	user, ok := s.session.User()
	if !ok {
		return domain.Job{}, ErrNotAuthenticated
	}

	s.mu.RLock()
	count := len(s.jobs)
	s.mu.RUnlock()
	if count >= MaxJobs {
		return domain.Job{}, fmt.Errorf("%w: не больше %d", ErrJobLimit, MaxJobs)
	}

	username := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(spec.XUsername), "@"))
	if username == "" {
		return domain.Job{}, ErrEmptyUsername
	}
	if !spec.Frequency.Valid() {
		return domain.Job{}, fmt.Errorf("%w: %q", ErrBadFrequency, spec.Frequency)
	}

	prefs := notify.Preferences{Email: spec.EmailEnabled, Telegram: spec.TelegramEnabled}
	var targets []domain.NotificationTarget
	if spec.TelegramEnabled {
		var err error
		targets, err = s.targetsAPI.ListTargets(ctx)
		if err != nil {
			return domain.Job{}, fmt.Errorf("получение мест доставки: %w", err)
		}
	}
	resolution, err := notify.Resolve(prefs, spec.TelegramTargetIDs, targets, user.Email)
	if err != nil {
		return domain.Job{}, err
	}

	draft := domain.JobDraft{
		XUsername:             username,
		Frequency:             spec.Frequency,
		Topics:                ParseTopics(spec.TopicsRaw),
		Language:              strings.TrimSpace(spec.Language),
		Email:                 resolution.Email,
		NotificationTargetIDs: resolution.TargetIDs,
	}
	job, err := s.jobsAPI.CreateJob(ctx, draft)
	if err != nil {
		return domain.Job{}, fmt.Errorf("создание задачи: %w", err)
	}

	s.mu.Lock()
	snapshot := make([]domain.Job, 0, len(s.jobs)+1)
	snapshot = append(snapshot, s.jobs...)
	s.jobs = append(snapshot, job)
	s.mu.Unlock()
	return job, nil
}

// ToggleActive отправляет отрицание текущего флага активности и заменяет
// запись задачи ответом сервера.
func (s *Service) ToggleActive(ctx context.Context, job domain.Job) (domain.Job, error) {
	next := !job.IsActive
	updated, err := s.jobsAPI.UpdateJob(ctx, job.ID, domain.JobPatch{IsActive: &next})
	if err != nil {
		return domain.Job{}, fmt.Errorf("переключение задачи: %w", err)
	}
	s.replaceJob(updated)
	return updated, nil
}

// replaceJob заменяет запись задачи в снимке ответом сервера.
func (s *Service) replaceJob(updated domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := make([]domain.Job, len(s.jobs))
	copy(snapshot, s.jobs)
	for i, job := range snapshot {
		if job.ID == updated.ID {
			snapshot[i] = updated
		}
	}
	s.jobs = snapshot
}

// Remove удаляет задачу. Локальный снимок меняется только после
// успешного удаления на бэкенде.
func (s *Service) Remove(ctx context.Context, jobID int64) error {
	if err := s.jobsAPI.DeleteJob(ctx, jobID); err != nil {
		return fmt.Errorf("удаление задачи: %w", err)
	}
	s.mu.Lock()
	kept := s.jobs[:0:0]
	for _, job := range s.jobs {
		if job.ID != jobID {
			kept = append(kept, job)
		}
	}
	s.jobs = kept
	delete(s.executions, jobID)
	delete(s.summaries, jobID)
	s.mu.Unlock()
	return nil
}

// Run запускает задачу немедленно. Повторный запуск той же задачи до
// завершения предыдущего отклоняется busy-флагом: отмены нет, есть только
// защита от дублей. После успеха коллекции задачи перечитываются.
func (s *Service) Run(ctx context.Context, jobID int64) (domain.Summary, error) {
	s.mu.Lock()
	if s.running[jobID] {
		s.mu.Unlock()
		return domain.Summary{}, ErrRunInProgress
	}
	s.running[jobID] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, jobID)
		s.mu.Unlock()
	}()

	metrics.JobRunsTotal.Inc()
	summary, err := s.monitoring.RunJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrUpstreamRateLimit) {
			return domain.Summary{}, fmt.Errorf(
				"%w: the data source allows 1 request every 5 seconds, please wait a moment and try again",
				domain.ErrUpstreamRateLimit)
		}
		return domain.Summary{}, fmt.Errorf("запуск задачи: %w", err)
	}

	if err := s.Refresh(ctx, jobID); err != nil {
		s.logger.Warn().Err(err).Int64("job_id", jobID).Msg("registry: коллекции задачи не обновлены после запуска")
	}
	return summary, nil
}

// IsRunning сообщает, выполняется ли задача прямо сейчас.
func (s *Service) IsRunning(jobID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running[jobID]
}

// FetchExecutions перечитывает запуски задачи.
func (s *Service) FetchExecutions(ctx context.Context, jobID int64) ([]domain.Execution, error) {
	executions, err := s.jobsAPI.ListExecutions(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("получение запусков: %w", err)
	}
	s.mu.Lock()
	s.executions[jobID] = executions
	s.mu.Unlock()
	return executions, nil
}

// FetchSummaries перечитывает дайджесты задачи.
func (s *Service) FetchSummaries(ctx context.Context, jobID int64) ([]domain.Summary, error) {
	summaries, err := s.jobsAPI.ListSummaries(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("получение дайджестов: %w", err)
	}
	s.mu.Lock()
	s.summaries[jobID] = summaries
	s.mu.Unlock()
	return summaries, nil
}

// Refresh перечитывает обе коллекции задачи параллельно и сливает их в
// кэш после завершения обеих загрузок.
func (s *Service) Refresh(ctx context.Context, jobID int64) error {
	pair := s.fetchPair(ctx, jobID)
	s.mergePairs([]jobPair{pair})
	return errors.Join(pair.execErr, pair.sumErr)
}

// Preload загружает коллекции пакета задач параллельно. Результаты
// сливаются в кэш одним снимком после завершения всех пар: неудача одной
// задачи не трогает ранее закэшированные данные других.
func (s *Service) Preload(ctx context.Context, jobIDs []int64) {
	if len(jobIDs) == 0 {
		return
	}
	pairs := make([]jobPair, len(jobIDs))
	var wg sync.WaitGroup
	for i, jobID := range jobIDs {
		wg.Add(1)
		go func(i int, jobID int64) {
			defer wg.Done()
			pairs[i] = s.fetchPair(ctx, jobID)
		}(i, jobID)
	}
	wg.Wait()
	s.mergePairs(pairs)
}

// Executions возвращает закэшированные запуски задачи.
func (s *Service) Executions(jobID int64) []domain.Execution {
	s.mu.RLock()
	defer s.mu.RUnlock()
	executions := make([]domain.Execution, len(s.executions[jobID]))
	copy(executions, s.executions[jobID])
	return executions
}

// Summaries возвращает закэшированные дайджесты задачи.
func (s *Service) Summaries(jobID int64) []domain.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	summaries := make([]domain.Summary, len(s.summaries[jobID]))
	copy(summaries, s.summaries[jobID])
	return summaries
}

// Stats агрегирует статистику задачи из закэшированных коллекций.
func (s *Service) Stats(jobID int64) domain.JobStats {
	s.mu.RLock()
	executions := s.executions[jobID]
	summaries := s.summaries[jobID]
	s.mu.RUnlock()
	return stats.Aggregate(executions, summaries)
}

// SendSummaryEmail пересылает существующий дайджест на адрес
// аутентифицированного пользователя.
func (s *Service) SendSummaryEmail(ctx context.Context, jobID int64, summaryID string) (bool, error) {
	user, ok := s.session.User()
	if !ok {
		return false, ErrNotAuthenticated
	}
	sent, err := s.monitoring.SendSummaryEmail(ctx, jobID, user.Email, summaryID)
	if err != nil {
		return false, fmt.Errorf("отправка дайджеста: %w", err)
	}
	return sent, nil
}

type jobPair struct {
	jobID      int64
	executions []domain.Execution
	summaries  []domain.Summary
	execErr    error
	sumErr     error
}

// fetchPair загружает обе коллекции задачи параллельно, без записи в кэш.
func (s *Service) fetchPair(ctx context.Context, jobID int64) jobPair {
	pair := jobPair{jobID: jobID}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pair.executions, pair.execErr = s.jobsAPI.ListExecutions(ctx, jobID)
	}()
	go func() {
		defer wg.Done()
		pair.summaries, pair.sumErr = s.jobsAPI.ListSummaries(ctx, jobID)
	}()
	wg.Wait()
	return pair
}

// mergePairs записывает успешные результаты в кэш одним снимком.
// Коллекция с ошибкой оставляет прежнее закэшированное значение.
func (s *Service) mergePairs(pairs []jobPair) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, pair := range pairs {
		if pair.execErr == nil {
			s.executions[pair.jobID] = pair.executions
		} else {
			s.logger.Warn().Err(pair.execErr).Int64("job_id", pair.jobID).Msg("registry: запуски не загружены")
		}
		if pair.sumErr == nil {
			s.summaries[pair.jobID] = pair.summaries
		} else {
			s.logger.Warn().Err(pair.sumErr).Int64("job_id", pair.jobID).Msg("registry: дайджесты не загружены")
		}
	}
}

// ParseTopics разбирает темы из строки через запятую: пробелы обрезаются,
// пустые элементы отбрасываются.
func ParseTopics(raw string) []string {
	var topics []string
	for _, topic := range strings.Split(raw, ",") {
		trimmed := strings.TrimSpace(topic)
		if trimmed == "" {
			continue
		}
		topics = append(topics, trimmed)
	}
	return topics
}
