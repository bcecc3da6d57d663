package session

import (
	"fmt"

	"xtrack-client/internal/domain"
)

// credentialKey — единственный ключ токена в обоих уровнях хранилища.
const credentialKey = "auth_token"

// CredentialStore хранит bearer-токен в одном из двух уровней:
// эфемерном (живёт до конца процесса) или долговременном. Запись в один
// уровень всегда вычищает другой, поэтому активный токен не больше одного.
type CredentialStore struct {
	ephemeral domain.StateStore
	durable   domain.StateStore
}

// NewCredentialStore создаёт хранилище поверх двух уровней состояния.
func NewCredentialStore(ephemeral, durable domain.StateStore) *CredentialStore {
	return &CredentialStore{ephemeral: ephemeral, durable: durable}
}

// Set записывает токен в выбранный уровень и вычищает другой.
func (s *CredentialStore) Set(token string, durable bool) error {
	if durable {
		if err := s.durable.Set(credentialKey, []byte(token)); err != nil {
			return fmt.Errorf("запись токена: %w", err)
		}
		if err := s.ephemeral.Delete(credentialKey); err != nil {
			return fmt.Errorf("очистка эфемерного уровня: %w", err)
		}
		return nil
	}
	if err := s.ephemeral.Set(credentialKey, []byte(token)); err != nil {
		return fmt.Errorf("запись токена: %w", err)
	}
	if err := s.durable.Delete(credentialKey); err != nil {
		return fmt.Errorf("очистка долговременного уровня: %w", err)
	}
	return nil
}

// Get возвращает активный токен: сначала эфемерный уровень, затем
// долговременный. Пустая строка означает отсутствие токена.
func (s *CredentialStore) Get() (string, error) {
	value, ok, err := s.ephemeral.Get(credentialKey)
	if err != nil {
		return "", fmt.Errorf("чтение эфемерного уровня: %w", err)
	}
	if ok {
		return string(value), nil
	}
	value, ok, err = s.durable.Get(credentialKey)
	if err != nil {
		return "", fmt.Errorf("чтение долговременного уровня: %w", err)
	}
	if !ok {
		return "", nil
	}
	return string(value), nil
}

// Clear вычищает оба уровня.
func (s *CredentialStore) Clear() error {
	if err := s.ephemeral.Delete(credentialKey); err != nil {
		return fmt.Errorf("очистка эфемерного уровня: %w", err)
	}
	if err := s.durable.Delete(credentialKey); err != nil {
		return fmt.Errorf("очистка долговременного уровня: %w", err)
	}
	return nil
}
