package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/miamirp/cityrecords/pkg/auth"
	"github.com/miamirp/cityrecords/pkg/rbac"
	"github.com/miamirp/cityrecords/pkg/records"
)

const userColumns = "id, username, password_hash, role, department, is_active, created_at, created_by"

const userKind = string(rbac.KindUser)

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u          auth.User
		role       string
		department sql.NullString
		createdAt  nullTime
		createdBy  sql.NullInt64
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &role, &department, &u.IsActive, &createdAt, &createdBy); err != nil {
		return nil, err
	}

	// Rows written outside the API may carry unknown roles; they keep the raw
	// value and never match a policy entry.
	u.Role = auth.Role(role)
	if department.Valid {
		u.Department = &department.String
	}
	u.CreatedAt = createdAt.Time
	if createdBy.Valid {
		u.CreatedBy = &createdBy.Int64
	}
	return &u, nil
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...interface{}) ([]*auth.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(ctx, "list users", err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, wrapErr(ctx, "scan users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(ctx, "list users", err)
	}
	return users, nil
}

func notFoundUser(err error) error {
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, auth.ErrUserNotFound)
	}
	return err
}

// GetUser returns a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (u *auth.User, err error) {
	defer s.observe(userKind, "get", time.Now(), &err)

	b := &binder{dialect: s.dialect}
	query := "SELECT " + userColumns + " FROM users WHERE id = " + b.bind(id)
	u, err = scanUser(s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return nil, notFoundUser(wrapErr(ctx, "get user", err))
	}
	return u, nil
}

// GetUserByUsername returns a user by exact username
func (s *Store) GetUserByUsername(ctx context.Context, username string) (u *auth.User, err error) {
	defer s.observe(userKind, "get_by_username", time.Now(), &err)

	b := &binder{dialect: s.dialect}
	query := "SELECT " + userColumns + " FROM users WHERE username = " + b.bind(username)
	u, err = scanUser(s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return nil, notFoundUser(wrapErr(ctx, "get user", err))
	}
	return u, nil
}

// ListUsers returns all users, newest first
func (s *Store) ListUsers(ctx context.Context) (users []*auth.User, err error) {
	defer s.observe(userKind, "list", time.Now(), &err)
	return s.queryUsers(ctx, "SELECT "+userColumns+" FROM users"+newestFirst)
}

// SearchUsers matches query against username and department
func (s *Store) SearchUsers(ctx context.Context, query string) (users []*auth.User, err error) {
	defer s.observe(userKind, "search", time.Now(), &err)

	b := &binder{dialect: s.dialect}
	where := searchClause(b, []string{"username", "department"}, query)
	return s.queryUsers(ctx, "SELECT "+userColumns+" FROM users WHERE "+where+newestFirst, b.args...)
}

// CreateUser inserts user and fills in its id and createdAt
func (s *Store) CreateUser(ctx context.Context, user *auth.User) (err error) {
	defer s.observe(userKind, "create", time.Now(), &err)

	user.CreatedAt = s.timestamp()

	b := &binder{dialect: s.dialect}
	query := fmt.Sprintf(`INSERT INTO users (username, password_hash, role, department, is_active, created_at, created_by)
		VALUES (%s, %s, %s, %s, %s, %s, %s) RETURNING id`,
		b.bind(user.Username),
		b.bind(user.PasswordHash),
		b.bind(string(user.Role)),
		b.bind(user.Department),
		b.bind(user.IsActive),
		b.bind(user.CreatedAt),
		b.bind(user.CreatedBy),
	)

	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&user.ID); err != nil {
		return wrapErr(ctx, "create user", err)
	}
	return nil
}

// UpdateUser applies patch and returns the updated user
func (s *Store) UpdateUser(ctx context.Context, id int64, patch UserPatch) (u *auth.User, err error) {
	defer s.observe(userKind, "update", time.Now(), &err)

	if patch.Empty() {
		return s.GetUser(ctx, id)
	}

	b := &binder{dialect: s.dialect}
	var sets []string
	if patch.Username != nil {
		sets = append(sets, "username = "+b.bind(*patch.Username))
	}
	if patch.PasswordHash != nil {
		sets = append(sets, "password_hash = "+b.bind(*patch.PasswordHash))
	}
	if patch.Role != nil {
		sets = append(sets, "role = "+b.bind(string(*patch.Role)))
	}
	if patch.SetDepartment {
		sets = append(sets, "department = "+b.bind(patch.Department))
	}
	if patch.IsActive != nil {
		sets = append(sets, "is_active = "+b.bind(*patch.IsActive))
	}

	query := fmt.Sprintf("UPDATE users SET %s WHERE id = %s RETURNING %s",
		strings.Join(sets, ", "), b.bind(id), userColumns)

	u, err = scanUser(s.db.QueryRowContext(ctx, query, b.args...))
	if err != nil {
		return nil, notFoundUser(wrapErr(ctx, "update user", err))
	}
	return u, nil
}

// UserReferenced reports whether any record or other account names the user
// as its creator or updater.
func (s *Store) UserReferenced(ctx context.Context, id int64) (referenced bool, err error) {
	defer s.observe(userKind, "referenced", time.Now(), &err)

	b := &binder{dialect: s.dialect}
	checks := make([]string, 0, len(records.RecordKinds())+1)
	for _, kind := range records.RecordKinds() {
		table := records.MustSchema(kind).Table
		checks = append(checks, fmt.Sprintf("SELECT 1 FROM %s WHERE created_by = %s OR updated_by = %s",
			table, b.bind(id), b.bind(id)))
	}
	checks = append(checks, fmt.Sprintf("SELECT 1 FROM users WHERE created_by = %s AND id <> %s", b.bind(id), b.bind(id)))

	query := "SELECT EXISTS (" + strings.Join(checks, " UNION ALL ") + ")"

	if err := s.db.QueryRowContext(ctx, query, b.args...).Scan(&referenced); err != nil {
		return false, wrapErr(ctx, "check user references", err)
	}
	return referenced, nil
}

// DeleteUser removes an account that nothing references. Referenced accounts
// yield ErrConflict; they should be deactivated instead.
func (s *Store) DeleteUser(ctx context.Context, id int64) (deleted bool, err error) {
	defer s.observe(userKind, "delete", time.Now(), &err)

	referenced, err := s.UserReferenced(ctx, id)
	if err != nil {
		return false, err
	}
	if referenced {
		return false, fmt.Errorf("user %d is referenced by existing records: %w", id, ErrConflict)
	}

	b := &binder{dialect: s.dialect}
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = "+b.bind(id), b.args...)
	if err != nil {
		return false, wrapErr(ctx, "delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n > 0, nil
}

// CountUsers returns the number of accounts
func (s *Store) CountUsers(ctx context.Context) (n int, err error) {
	defer s.observe(userKind, "count", time.Now(), &err)

	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, wrapErr(ctx, "count users", err)
	}
	return n, nil
}
