package session

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"xtrack-client/internal/domain"
)

// State — состояние сессии клиента.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateResolving     State = "resolving"
	StateAuthenticated State = "authenticated"
	StateAnonymous     State = "anonymous"
)

// Controller владеет текущей личностью пользователя и является единственным
// источником истины для "аутентифицирован ли клиент". Токен попадает в
// исходящие запросы только через Token, поэтому после Logout ни один
// последующий вызов не уйдёт с устаревшим токеном.
type Controller struct {
	mu     sync.RWMutex
	creds  *CredentialStore
	logger zerolog.Logger

	state State
	token string
	user  *domain.User
}

// NewController создаёт контроллер в состоянии uninitialized.
func NewController(creds *CredentialStore, logger zerolog.Logger) *Controller {
	return &Controller{creds: creds, logger: logger, state: StateUninitialized}
}

// Token возвращает активный bearer-токен или пустую строку.
// Передаётся в API-клиент как источник подписи запросов.
func (c *Controller) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// State возвращает текущее состояние сессии.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// User возвращает пользователя текущей сессии.
func (c *Controller) User() (domain.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return domain.User{}, false
	}
	return *c.user, true
}

// IsAuthenticated сообщает, установлена ли аутентифицированная сессия.
func (c *Controller) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// Start восстанавливает сессию из сохранённого токена. Любая неудача —
// просроченный токен, сеть, повреждённое хранилище — приводит к очистке
// учётных данных и анонимному состоянию, а не к ошибке.
func (c *Controller) Start(ctx context.Context, auth domain.AuthAPI) {
	token, err := c.creds.Get()
	if err != nil {
		c.logger.Warn().Err(err).Msg("session: не удалось прочитать токен")
		token = ""
	}
	if token == "" {
		c.mu.Lock()
		c.state = StateAnonymous
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.state = StateResolving
	c.token = token
	c.mu.Unlock()

	user, err := auth.Me(ctx)
	if err != nil {
		c.logger.Info().Err(err).Msg("session: токен не принят, переход в анонимный режим")
		c.Logout()
		return
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.user = &user
	c.mu.Unlock()
}

// Login устанавливает аутентифицированную сессию. Durability токена
// выбирается флагом remember: true — долговременный уровень, false —
// только до конца процесса.
func (c *Controller) Login(token string, user domain.User, remember bool) error {
	c.mu.Lock()
	c.state = StateAuthenticated
	c.token = token
	c.user = &user
	c.mu.Unlock()

	if err := c.creds.Set(token, remember); err != nil {
		c.logger.Warn().Err(err).Msg("session: токен не сохранён, сессия только в памяти")
		return err
	}
	return nil
}

// Logout вычищает учётные данные и пользователя. Токен обнуляется под
// блокировкой до возврата, так что запросы после Logout уходят без подписи.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.state = StateAnonymous
	c.token = ""
	c.user = nil
	c.mu.Unlock()

	if err := c.creds.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("session: не удалось очистить хранилище токена")
	}
}

// Invalidate — обработчик ответа 401 от любого вызова бэкенда.
func (c *Controller) Invalidate() {
	if c.State() == StateAnonymous {
		return
	}
	c.logger.Info().Msg("session: сессия отвергнута бэкендом")
	c.Logout()
}

// UpdateUser заменяет закэшированную запись пользователя без сетевого
// вызова. Используется после успешных мутаций профиля.
func (c *Controller) UpdateUser(user domain.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return
	}
	c.user = &user
}
