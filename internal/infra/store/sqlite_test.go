package store

import (
	"bytes"
	"path/filepath"
	"testing"
)

func TestSQLiteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get("auth_token"); err != nil || ok {
		t.Fatalf("пустое хранилище: ok=%v err=%v", ok, err)
	}

	if err := s.Set("auth_token", []byte("token-1")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	value, ok, err := s.Get("auth_token")
	if err != nil || !ok {
		t.Fatalf("ожидали значение: ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(value, []byte("token-1")) {
		t.Fatalf("ожидали token-1, получили %q", value)
	}

	if err := s.Set("auth_token", []byte("token-2")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	value, _, _ = s.Get("auth_token")
	if !bytes.Equal(value, []byte("token-2")) {
		t.Fatalf("запись обязана затирать предыдущее значение, получили %q", value)
	}

	if err := s.Delete("auth_token"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, ok, _ := s.Get("auth_token"); ok {
		t.Fatalf("ключ обязан быть удалён")
	}
	if err := s.Delete("auth_token"); err != nil {
		t.Fatalf("удаление отсутствующего ключа безопасно: %v", err)
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := s.Set("device_id", []byte("d-1")); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}

	reopened, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	defer reopened.Close()
	value, ok, err := reopened.Get("device_id")
	if err != nil || !ok {
		t.Fatalf("значение обязано пережить переоткрытие: ok=%v err=%v", ok, err)
	}
	if string(value) != "d-1" {
		t.Fatalf("ожидали d-1, получили %q", value)
	}
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	m := NewMemory()
	original := []byte("token-1")
	if err := m.Set("auth_token", original); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	original[0] = 'X'

	value, ok, err := m.Get("auth_token")
	if err != nil || !ok {
		t.Fatalf("ожидали значение: ok=%v err=%v", ok, err)
	}
	if string(value) != "token-1" {
		t.Fatalf("хранилище не должно делить буфер с вызывающим, получили %q", value)
	}
}
