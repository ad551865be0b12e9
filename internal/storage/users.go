package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

const userColumns = `id, display_name, linked_channel_identity, linked_at, created_at, updated_at`

// CreateUser stores a new user. An empty ID gets a generated one.
func (s *SQLiteStorage) CreateUser(ctx context.Context, user *model.User) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("%w: user", ErrNilParameter)
	}

	now := time.Now().UTC()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.LinkedChannelIdentity != "" && user.LinkedAt == nil {
		user.LinkedAt = &now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
	`, user.ID, user.DisplayName, nullString(user.LinkedChannelIdentity), nullTime(user.LinkedAt),
		user.CreatedAt.UTC(), user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %s", common.ErrDuplicateEntry, user.ID)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUser loads a user by ID.
func (s *SQLiteStorage) GetUser(ctx context.Context, id string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}
	return s.getUserWhere(ctx, "id = ?", id)
}

// GetUserByChannelIdentity finds the user linked to identity.
func (s *SQLiteStorage) GetUserByChannelIdentity(ctx context.Context, identity string) (*model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(identity, "identity"); err != nil {
		return nil, err
	}
	return s.getUserWhere(ctx, "linked_channel_identity = ?", identity)
}

func (s *SQLiteStorage) getUserWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user", common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns every user ordered by creation.
func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// LinkChannelIdentity attaches identity to a user. An identity already held
// by another user yields common.ErrDuplicateEntry.
func (s *SQLiteStorage) LinkChannelIdentity(ctx context.Context, userID, identity string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}
	if err := validateString(identity, "identity"); err != nil {
		return err
	}

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET linked_channel_identity = ?, linked_at = ?, updated_at = ?
		WHERE id = ?
	`, identity, now, now, userID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: identity %s is linked to another user", common.ErrDuplicateEntry, identity)
		}
		return fmt.Errorf("failed to link identity: %w", err)
	}
	return requireAffected(result, "user "+userID)
}

// UnlinkChannelIdentity clears a user's channel identity.
func (s *SQLiteStorage) UnlinkChannelIdentity(ctx context.Context, userID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(userID, "userID"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET linked_channel_identity = NULL, linked_at = NULL, updated_at = ?
		WHERE id = ?
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("failed to unlink identity: %w", err)
	}
	return requireAffected(result, "user "+userID)
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		user     model.User
		identity sql.NullString
		linkedAt sql.NullTime
	)
	if err := row.Scan(&user.ID, &user.DisplayName, &identity, &linkedAt, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.LinkedChannelIdentity = identity.String
	if linkedAt.Valid {
		t := linkedAt.Time
		user.LinkedAt = &t
	}
	return &user, nil
}

func requireAffected(result sql.Result, what string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", common.ErrNotFound, what)
	}
	return nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
