package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"xtrack-client/internal/domain"
)

var _ domain.StateStore = (*SQLiteStore)(nil)

// SQLiteStore — долговременный уровень локального состояния клиента.
// Хранит пары ключ-значение в одном файле.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite открывает файл состояния и создаёт схему при необходимости.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("открытие файла состояния: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS client_state (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("создание схемы состояния: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Get возвращает значение по ключу. Отсутствие ключа не является ошибкой.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("чтение состояния %q: %w", key, err)
	}
	return value, true, nil
}

// Set записывает значение, затирая предыдущее.
func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO client_state (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("запись состояния %q: %w", key, err)
	}
	return nil
}

// Delete удаляет ключ. Отсутствующий ключ не считается ошибкой.
func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("удаление состояния %q: %w", key, err)
	}
	return nil
}

// Close закрывает файл состояния.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
