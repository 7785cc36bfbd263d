package stub

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned for ids that have no reward row.
var ErrNotFound = errors.New("reward not found")

// Reward is a stored row. The discount itself only exists encrypted.
type Reward struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	EncryptedValue string `json:"encryptedValue"`
}

// Store keeps rewards in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (creating if needed) the database at path. ":memory:" gives a private
// in-memory database.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers anyway, and every pooled connection to ":memory:" would see
	// its own empty database.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS rewards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			encrypted_value TEXT NOT NULL
		);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create rewards table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Create(ctx context.Context, name, encrypted string) (Reward, error) {
	res, err := s.db.ExecContext(ctx, "INSERT INTO rewards (name, encrypted_value) VALUES (?, ?)", name, encrypted)
	if err != nil {
		return Reward{}, fmt.Errorf("insert reward: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Reward{}, fmt.Errorf("insert reward: %w", err)
	}
	return Reward{ID: id, Name: name, EncryptedValue: encrypted}, nil
}

func (s *Store) Get(ctx context.Context, id int64) (Reward, error) {
	r := Reward{}
	err := s.db.QueryRowContext(ctx, "SELECT id, name, encrypted_value FROM rewards WHERE id = ?", id).
		Scan(&r.ID, &r.Name, &r.EncryptedValue)
	if errors.Is(err, sql.ErrNoRows) {
		return Reward{}, ErrNotFound
	}
	if err != nil {
		return Reward{}, fmt.Errorf("select reward %d: %w", id, err)
	}
	return r, nil
}

func (s *Store) List(ctx context.Context) ([]Reward, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name, encrypted_value FROM rewards ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	rewards := []Reward{}
	for rows.Next() {
		var r Reward
		if err := rows.Scan(&r.ID, &r.Name, &r.EncryptedValue); err != nil {
			return nil, fmt.Errorf("list rewards: %w", err)
		}
		rewards = append(rewards, r)
	}
	return rewards, rows.Err()
}

func (s *Store) Update(ctx context.Context, id int64, name, encrypted string) (Reward, error) {
	res, err := s.db.ExecContext(ctx, "UPDATE rewards SET name = ?, encrypted_value = ? WHERE id = ?", name, encrypted, id)
	if err != nil {
		return Reward{}, fmt.Errorf("update reward %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return Reward{}, ErrNotFound
	}
	return Reward{ID: id, Name: name, EncryptedValue: encrypted}, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM rewards WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete reward %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
