package identity

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to PostgreSQL and verifies connectivity.
func NewPostgresStore(postgresURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", postgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreWithDB wraps an existing connection, used by tests.
func NewPostgresStoreWithDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// FindByEmail looks up a user by email, case-insensitively.
func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, username, email, first_name, last_name,
		       is_active, is_staff, is_superuser, date_joined, last_login
		FROM users
		WHERE LOWER(email) = LOWER($1)
	`

	var user User
	var lastLogin sql.NullTime
	err := s.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.FirstName,
		&user.LastName,
		&user.IsActive,
		&user.IsStaff,
		&user.IsSuperuser,
		&user.DateJoined,
		&lastLogin,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if lastLogin.Valid {
		user.LastLogin = &lastLogin.Time
	}

	groups, err := s.userGroups(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Groups = groups

	return &user, nil
}

func (s *PostgresStore) userGroups(ctx context.Context, userID int64) ([]string, error) {
	query := `
		SELECT g.name
		FROM groups g
		JOIN user_groups ug ON ug.group_id = g.id
		WHERE ug.user_id = $1
		ORDER BY g.name
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user groups: %w", err)
	}
	defer rows.Close()

	var groups []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, name)
	}
	return groups, rows.Err()
}

// Create inserts a new user and fills in ID and DateJoined.
func (s *PostgresStore) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (username, email, first_name, last_name,
		                   is_active, is_staff, is_superuser)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, date_joined
	`

	err := s.db.QueryRowContext(ctx, query,
		user.Username,
		user.Email,
		user.FirstName,
		user.LastName,
		user.IsActive,
		user.IsStaff,
		user.IsSuperuser,
	).Scan(&user.ID, &user.DateJoined)

	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// AssignGroups adds the user to the named groups, creating any that do
// not exist yet.
func (s *PostgresStore) AssignGroups(ctx context.Context, userID int64, groups []string) error {
	if len(groups) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range groups {
		var groupID int64
		err := tx.QueryRowContext(ctx, `
			INSERT INTO groups (name)
			VALUES ($1)
			ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			RETURNING id
		`, name).Scan(&groupID)
		if err != nil {
			return fmt.Errorf("failed to upsert group %s: %w", name, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_groups (user_id, group_id)
			VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, groupID)
		if err != nil {
			return fmt.Errorf("failed to assign group %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group assignment: %w", err)
	}
	return nil
}

// RecordLogin updates the user's last login timestamp.
func (s *PostgresStore) RecordLogin(ctx context.Context, userID int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET last_login = $1 WHERE id = $2", at, userID)
	if err != nil {
		return fmt.Errorf("failed to record login: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
