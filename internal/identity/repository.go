package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gol-logistics/gol-portal/internal/shared"
)

// ErrDuplicateAccount indicates a unique email/username collision.
var ErrDuplicateAccount = errors.New("identity: account already exists")

// NewAccount carries the fields needed to create an account.
type NewAccount struct {
	Email         string
	Username      string
	PasswordHash  string
	Role          Role
	Status        Status
	Profile       Profile
	OAuthProvider string
	OAuthSubject  string
}

// AccountFilter narrows account listings.
type AccountFilter struct {
	Role   *Role
	Status *Status
	Search string
	Limit  int
	Offset int
}

// Repository defines persistence operations for accounts.
type Repository interface {
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)
	FindByID(ctx context.Context, id string) (*Account, error)
	FindByOAuth(ctx context.Context, provider, subject string) (*Account, error)
	Create(ctx context.Context, acct NewAccount) (*Account, error)
	UpdateRoleStatus(ctx context.Context, id string, role Role, status Status) (*Account, error)
	UpdateProfile(ctx context.Context, id string, profile Profile) (*Account, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	List(ctx context.Context, filter AccountFilter) ([]Account, int, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id::text, email, username, COALESCE(password_hash, ''), role, status,
	COALESCE(name, ''), COALESCE(phone, ''), COALESCE(company, ''),
	COALESCE(oauth_provider, ''), COALESCE(oauth_subject, ''), created_at, updated_at`

// FindByIdentifier fetches an account by email or username, case-insensitively.
func (r *PGRepository) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE lower(email) = lower($1) OR lower(username) = lower($1) LIMIT 1`, strings.TrimSpace(identifier))
	return scanAccount(row, "find account")
}

// accountID canonicalises an account id taken from a path or session.
func accountID(id string) (string, bool) {
	parsed, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", false
	}
	return parsed.String(), true
}

// FindByID fetches an account by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (*Account, error) {
	id, ok := accountID(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1::uuid`, id)
	return scanAccount(row, "find account by id")
}

// FindByOAuth fetches an account linked to an external identity.
func (r *PGRepository) FindByOAuth(ctx context.Context, provider, subject string) (*Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts
WHERE oauth_provider = $1 AND oauth_subject = $2`, provider, subject)
	return scanAccount(row, "find oauth account")
}

// Create inserts a new account.
func (r *PGRepository) Create(ctx context.Context, acct NewAccount) (*Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts
	(email, username, password_hash, role, status, name, phone, company, oauth_provider, oauth_subject)
VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''), NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''))
RETURNING `+accountColumns,
		acct.Email, acct.Username, acct.PasswordHash, acct.Role.String(), string(acct.Status),
		acct.Profile.Name, acct.Profile.Phone, acct.Profile.Company, acct.OAuthProvider, acct.OAuthSubject)
	created, err := scanAccount(row, "create account")
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateAccount
		}
		return nil, err
	}
	return created, nil
}

// UpdateRoleStatus patches role and status in one statement.
func (r *PGRepository) UpdateRoleStatus(ctx context.Context, id string, role Role, status Status) (*Account, error) {
	id, ok := accountID(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `UPDATE accounts SET role = $2, status = $3, updated_at = now()
WHERE id = $1::uuid RETURNING `+accountColumns, id, role.String(), string(status))
	return scanAccount(row, "update account role")
}

// UpdateProfile replaces the profile fields.
func (r *PGRepository) UpdateProfile(ctx context.Context, id string, profile Profile) (*Account, error) {
	id, ok := accountID(id)
	if !ok {
		return nil, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `UPDATE accounts SET name = NULLIF($2, ''), phone = NULLIF($3, ''), company = NULLIF($4, ''), updated_at = now()
WHERE id = $1::uuid RETURNING `+accountColumns, id, profile.Name, profile.Phone, profile.Company)
	return scanAccount(row, "update profile")
}

// UpdatePassword stores a new password hash.
func (r *PGRepository) UpdatePassword(ctx context.Context, id, hash string) error {
	id, ok := accountID(id)
	if !ok {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET password_hash = $2, updated_at = now() WHERE id = $1::uuid`, id, hash)
	if err != nil {
		return shared.Unavailable("update password", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// List returns a page of accounts and the total matching count.
func (r *PGRepository) List(ctx context.Context, filter AccountFilter) ([]Account, int, error) {
	var (
		where []string
		args  []any
	)
	if filter.Role != nil {
		args = append(args, filter.Role.String())
		where = append(where, fmt.Sprintf("role = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if s := strings.TrimSpace(filter.Search); s != "" {
		args = append(args, "%"+strings.ToLower(s)+"%")
		where = append(where, fmt.Sprintf("(lower(email) LIKE $%d OR lower(username) LIKE $%d OR lower(COALESCE(name, '')) LIKE $%d)", len(args), len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM accounts`+clause, args...).Scan(&total); err != nil {
		return nil, 0, shared.Unavailable("count accounts", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit, filter.Offset)
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts`+clause+
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args...)
	if err != nil {
		return nil, 0, shared.Unavailable("list accounts", err)
	}
	defer rows.Close()

	accounts := make([]Account, 0, limit)
	for rows.Next() {
		acct, err := scanAccount(rows, "scan account")
		if err != nil {
			return nil, 0, err
		}
		accounts = append(accounts, *acct)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, shared.Unavailable("list accounts", err)
	}
	return accounts, total, nil
}

func scanAccount(row pgx.Row, op string) (*Account, error) {
	var (
		acct    Account
		role    string
		status  string
		created time.Time
		updated time.Time
	)
	err := row.Scan(&acct.ID, &acct.Email, &acct.Username, &acct.PasswordHash, &role, &status,
		&acct.Profile.Name, &acct.Profile.Phone, &acct.Profile.Company,
		&acct.OAuthProvider, &acct.OAuthSubject, &created, &updated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return nil, shared.Unavailable(op, err)
	}
	parsedRole, err := ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	parsedStatus, err := ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	acct.Role = parsedRole
	acct.Status = parsedStatus
	acct.CreatedAt = created
	acct.UpdatedAt = updated
	return &acct, nil
}

var _ Repository = (*PGRepository)(nil)
