// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package store

import (
	"database/sql"

	"patronus.dev/core/internal/model"
	"patronus.dev/core/internal/perrs"
)

// UpsertUser inserts or updates a User by id. PasswordHash is opaque
// to the Store; it is produced and verified by the external auth
// subsystem per spec.md §1.
func (s *Store) UpsertUser(u model.User) error {
	return s.writeTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO users (id, username, password_hash, role, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				username = excluded.username,
				password_hash = excluded.password_hash,
				role = excluded.role
		`, u.ID, u.Username, u.PasswordHash, string(u.Role), u.CreatedAt.Unix())
		if err != nil {
			return perrs.Wrap(err, perrs.KindConflict, "upsert user")
		}
		return nil
	})
}

// GetUser returns the User with the given id.
func (s *Store) GetUser(id string) (model.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, role, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// GetUserByUsername looks up a User by its unique username.
func (s *Store) GetUserByUsername(username string) (model.User, error) {
	row := s.db.QueryRow(`SELECT id, username, password_hash, role, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

// ListUsers returns every User ordered by username.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(`SELECT id, username, password_hash, role, created_at FROM users ORDER BY username`)
	if err != nil {
		return nil, perrs.Wrap(err, perrs.KindTransientIO, "list users")
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes a User by id.
func (s *Store) DeleteUser(id string) error {
	return s.writeTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return perrs.Wrap(err, perrs.KindTransientIO, "delete user")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return perrs.Errorf(perrs.KindNotFound, "user %s not found", id)
		}
		return nil
	})
}

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var role string
	var createdAt int64
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &createdAt)
	if err != nil {
		if isNoRows(err) {
			return model.User{}, perrs.New(perrs.KindNotFound, "user not found")
		}
		return model.User{}, perrs.Wrap(err, perrs.KindTransientIO, "scan user")
	}
	u.Role = model.Role(role)
	u.CreatedAt = unixTime(createdAt)
	return u, nil
}
