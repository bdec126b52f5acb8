package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jobstream-labs/jobstream/internal/model"
	apperrors "github.com/jobstream-labs/jobstream/pkg/errors"
)

const userColumns = `user_id, created_at, username, first_name, last_name, email, password,
	skills, work_history, preferences`

// CreateUser inserts a new user after a direct username-existence check.
// A taken username surfaces as a conflict, never as a swallowed exception.
func (s *Store) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	var existingID string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT user_id FROM users WHERE username = $1`, u.Username).Scan(&existingID)
	if err == nil {
		s.logger.Info("signup rejected, username taken", "username", u.Username, "existing_id", existingID)
		return model.User{}, apperrors.Newf(apperrors.ErrUserExists, 409,
			"username %s is already registered", u.Username)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return model.User{}, fmt.Errorf("checking username %s: %w", u.Username, err)
	}

	u.UserID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()
	skills, workHistory, preferences, err := marshalUserFields(u)
	if err != nil {
		return model.User{}, err
	}
	_, err = s.db.DB.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.UserID, u.CreatedAt, u.Username, u.FirstName, u.LastName, u.Email,
		u.Password, skills, workHistory, preferences,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("inserting user %s: %w", u.Username, err)
	}
	s.logger.Info("user created", "user_id", u.UserID, "username", u.Username)
	return u, nil
}

// GetUser fetches a user by identifier.
func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE user_id = $1`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperrors.Newf(apperrors.ErrUserNotFound, 404, "user %s", userID)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("querying user %s: %w", userID, err)
	}
	return u, nil
}

// GetUserByUsername fetches a user by their unique username. Serves the
// upstream login flow; password verification happens there, not here.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, error) {
	row := s.db.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, apperrors.Newf(apperrors.ErrUserNotFound, 404, "username %s", username)
	}
	if err != nil {
		return model.User{}, fmt.Errorf("querying username %s: %w", username, err)
	}
	return u, nil
}

// ListUsers returns every user on file.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.db.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateUser replaces the profile fields of an existing user. Username and
// creation time are immutable.
func (s *Store) UpdateUser(ctx context.Context, u model.User) (model.User, error) {
	skills, workHistory, preferences, err := marshalUserFields(u)
	if err != nil {
		return model.User{}, err
	}
	tag, err := s.db.DB.ExecContext(ctx,
		`UPDATE users SET first_name=$2, last_name=$3, email=$4, password=$5,
		 skills=$6, work_history=$7, preferences=$8
		 WHERE user_id=$1`,
		u.UserID, u.FirstName, u.LastName, u.Email, u.Password,
		skills, workHistory, preferences,
	)
	if err != nil {
		return model.User{}, fmt.Errorf("updating user %s: %w", u.UserID, err)
	}
	if affected, _ := tag.RowsAffected(); affected == 0 {
		return model.User{}, apperrors.Newf(apperrors.ErrUserNotFound, 404, "user %s", u.UserID)
	}
	return s.GetUser(ctx, u.UserID)
}

// DeleteUser removes a user by identifier.
func (s *Store) DeleteUser(ctx context.Context, userID string) error {
	tag, err := s.db.DB.ExecContext(ctx, `DELETE FROM users WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user %s: %w", userID, err)
	}
	if affected, _ := tag.RowsAffected(); affected == 0 {
		return apperrors.Newf(apperrors.ErrUserNotFound, 404, "user %s", userID)
	}
	s.logger.Info("user deleted", "user_id", userID)
	return nil
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func marshalUserFields(u model.User) (skills, workHistory, preferences []byte, err error) {
	if skills, err = json.Marshal(u.Skills); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling skills: %w", err)
	}
	if workHistory, err = json.Marshal(u.WorkHistory); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling work history: %w", err)
	}
	if preferences, err = json.Marshal(u.Preferences); err != nil {
		return nil, nil, nil, fmt.Errorf("marshaling preferences: %w", err)
	}
	return skills, workHistory, preferences, nil
}

func scanUser(row scanTarget) (model.User, error) {
	var u model.User
	var skills, workHistory, preferences []byte
	err := row.Scan(
		&u.UserID, &u.CreatedAt, &u.Username, &u.FirstName, &u.LastName,
		&u.Email, &u.Password, &skills, &workHistory, &preferences,
	)
	if err != nil {
		return model.User{}, err
	}
	if err := json.Unmarshal(skills, &u.Skills); err != nil {
		return model.User{}, fmt.Errorf("unmarshaling skills: %w", err)
	}
	if err := json.Unmarshal(workHistory, &u.WorkHistory); err != nil {
		return model.User{}, fmt.Errorf("unmarshaling work history: %w", err)
	}
	if err := json.Unmarshal(preferences, &u.Preferences); err != nil {
		return model.User{}, fmt.Errorf("unmarshaling preferences: %w", err)
	}
	return u, nil
}
