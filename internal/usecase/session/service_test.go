package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"xtrack-client/internal/domain"
	"xtrack-client/internal/infra/store"
)

type stubAuth struct {
	user    domain.User
	err     error
	meCalls int
}

func (s *stubAuth) Me(context.Context) (domain.User, error) {
	s.meCalls++
	return s.user, s.err
}

func (s *stubAuth) Login(context.Context, string, string, bool) (domain.AuthResult, error) {
	return domain.AuthResult{}, nil
}
func (s *stubAuth) Register(context.Context, string, string) error { return nil }
func (s *stubAuth) VerifyEmail(context.Context, string, string) (domain.AuthResult, error) {
	return domain.AuthResult{}, nil
}
func (s *stubAuth) ResendVerification(context.Context, string) error { return nil }
func (s *stubAuth) ForgotPassword(context.Context, string) error     { return nil }
func (s *stubAuth) ResetPassword(context.Context, string, string, string) (domain.AuthResult, error) {
	return domain.AuthResult{}, nil
}
func (s *stubAuth) ChangePassword(context.Context, string, string) error { return nil }

func TestStartWithoutTokenIsAnonymous(t *testing.T) {
	creds := NewCredentialStore(store.NewMemory(), store.NewMemory())
	controller := NewController(creds, zerolog.Nop())
	auth := &stubAuth{}

	controller.Start(context.Background(), auth)
	if controller.State() != StateAnonymous {
		t.Fatalf("ожидали anonymous, получили %s", controller.State())
	}
	if auth.meCalls != 0 {
		t.Fatalf("без токена не должно быть сетевого вызова")
	}
}

func TestRememberedLoginSurvivesRestart(t *testing.T) {
	durable := store.NewMemory()
	user := domain.User{ID: 1, Email: "user@example.com"}

	creds := NewCredentialStore(store.NewMemory(), durable)
	controller := NewController(creds, zerolog.Nop())
	if err := controller.Login("token-1", user, true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	// Перезапуск: новый процесс, тот же долговременный уровень.
	restarted := NewController(NewCredentialStore(store.NewMemory(), durable), zerolog.Nop())
	auth := &stubAuth{user: user}
	restarted.Start(context.Background(), auth)

	if restarted.State() != StateAuthenticated {
		t.Fatalf("ожидали authenticated после перезапуска, получили %s", restarted.State())
	}
	if got, _ := restarted.User(); got.Email != user.Email {
		t.Fatalf("ожидали пользователя %s, получили %s", user.Email, got.Email)
	}
	if restarted.Token() != "token-1" {
		t.Fatalf("ожидали восстановленный токен")
	}
}

func TestEphemeralLoginDoesNotSurviveRestart(t *testing.T) {
	durable := store.NewMemory()
	creds := NewCredentialStore(store.NewMemory(), durable)
	controller := NewController(creds, zerolog.Nop())
	if err := controller.Login("token-1", domain.User{ID: 1}, false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if controller.Token() != "token-1" {
		t.Fatalf("сессия в текущем процессе должна жить")
	}

	// «Закрытие вкладки»: эфемерный уровень пропадает вместе с процессом.
	restarted := NewController(NewCredentialStore(store.NewMemory(), durable), zerolog.Nop())
	auth := &stubAuth{}
	restarted.Start(context.Background(), auth)

	if restarted.State() != StateAnonymous {
		t.Fatalf("ожидали anonymous, получили %s", restarted.State())
	}
	if auth.meCalls != 0 {
		t.Fatalf("без сохранённого токена не должно быть сетевого вызова")
	}
}

func TestNewLoginReplacesOtherTier(t *testing.T) {
	ephemeral := store.NewMemory()
	durable := store.NewMemory()
	creds := NewCredentialStore(ephemeral, durable)

	if err := creds.Set("durable-token", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := creds.Set("ephemeral-token", false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	token, err := creds.Get()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token != "ephemeral-token" {
		t.Fatalf("активен может быть только последний токен, получили %q", token)
	}
	if _, ok, _ := durable.Get(credentialKey); ok {
		t.Fatalf("запись в эфемерный уровень обязана вычистить долговременный")
	}
}

func TestStartRejectedTokenClearsCredential(t *testing.T) {
	durable := store.NewMemory()
	creds := NewCredentialStore(store.NewMemory(), durable)
	if err := creds.Set("expired", true); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	controller := NewController(creds, zerolog.Nop())
	controller.Start(context.Background(), &stubAuth{err: domain.ErrUnauthorized})

	if controller.State() != StateAnonymous {
		t.Fatalf("ожидали anonymous, получили %s", controller.State())
	}
	if token, _ := creds.Get(); token != "" {
		t.Fatalf("просроченный токен обязан быть вычищен, получили %q", token)
	}
}

func TestInvalidateClearsTokenBeforeNextCall(t *testing.T) {
	creds := NewCredentialStore(store.NewMemory(), store.NewMemory())
	controller := NewController(creds, zerolog.Nop())
	if err := controller.Login("token-1", domain.User{ID: 1}, false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	controller.Invalidate()
	if controller.Token() != "" {
		t.Fatalf("после инвалидации подпись запросов обязана исчезнуть")
	}
	if controller.State() != StateAnonymous {
		t.Fatalf("ожидали anonymous, получили %s", controller.State())
	}
	if _, ok := controller.User(); ok {
		t.Fatalf("пользователь обязан быть сброшен")
	}
}

func TestUpdateUserReplacesRecordWithoutNetwork(t *testing.T) {
	creds := NewCredentialStore(store.NewMemory(), store.NewMemory())
	controller := NewController(creds, zerolog.Nop())
	if err := controller.Login("token-1", domain.User{ID: 1, Email: "user@example.com"}, false); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	controller.UpdateUser(domain.User{ID: 1, Email: "user@example.com", Name: "Анна"})
	user, ok := controller.User()
	if !ok || user.Name != "Анна" {
		t.Fatalf("ожидали обновлённое имя, получили %+v", user)
	}
}

func TestUpdateUserIgnoredWhenAnonymous(t *testing.T) {
	creds := NewCredentialStore(store.NewMemory(), store.NewMemory())
	controller := NewController(creds, zerolog.Nop())
	controller.Logout()

	controller.UpdateUser(domain.User{ID: 7})
	if _, ok := controller.User(); ok {
		t.Fatalf("анонимная сессия не может получить пользователя")
	}
}

func TestCredentialStoreSafeBeforeAnySession(t *testing.T) {
	creds := NewCredentialStore(store.NewMemory(), store.NewMemory())
	token, err := creds.Get()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if token != "" {
		t.Fatalf("до первого входа токена нет, получили %q", token)
	}
	if err := creds.Clear(); err != nil {
		t.Fatalf("очистка пустого хранилища безопасна: %v", err)
	}
}
