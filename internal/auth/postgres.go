package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const userColumns = `id, username, email, password_hash, role_fk`

func (s *PGStore) FindUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username=$1 or email=lower($1)`, identifier)
	return scanUser(row)
}

func (s *PGStore) FindUserByID(ctx context.Context, id int64) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id)
	return scanUser(row)
}

func (s *PGStore) CreateUser(ctx context.Context, u *User) error {
	err := s.db.QueryRowContext(ctx,
		`insert into users(username, email, password_hash, role_fk) values($1,lower($2),$3,$4) returning id`,
		u.Username, u.Email, u.PasswordHash, u.RoleID,
	).Scan(&u.ID)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) RoleOf(ctx context.Context, userID int64) (int, error) {
	var roleID int
	err := s.db.QueryRowContext(ctx,
		`select role_fk from users where id=$1`, userID).Scan(&roleID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return roleID, nil
}

func (s *PGStore) TwoFactor(ctx context.Context, userID int64) (*TwoFactorSecret, error) {
	var sec TwoFactorSecret
	err := s.db.QueryRowContext(ctx,
		`select user_fk, secret_base32, verified from user_2fa where user_fk=$1`, userID,
	).Scan(&sec.UserID, &sec.SecretBase32, &sec.Verified)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sec, nil
}

func (s *PGStore) UpsertTwoFactor(ctx context.Context, sec *TwoFactorSecret) error {
	_, err := s.db.ExecContext(ctx,
		`insert into user_2fa(user_fk, secret_base32, verified) values($1,$2,$3)
		 on conflict (user_fk) do update set secret_base32=excluded.secret_base32, verified=excluded.verified`,
		sec.UserID, sec.SecretBase32, sec.Verified,
	)
	return err
}

func (s *PGStore) MarkTwoFactorVerified(ctx context.Context, userID int64) error {
	res, err := s.db.ExecContext(ctx,
		`update user_2fa set verified=true where user_fk=$1`, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.RoleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
