// Package persistence stores users and profiles through database.Connection.
package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/billora/internal/identity/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
)

const userColumns = `u.id, u.email, u.password_hash, u.active, u.email_verified, u.last_login_at,
	u.created_at, u.updated_at,
	COALESCE(p.first_name, ''), COALESCE(p.last_name, ''), COALESCE(p.phone, ''),
	COALESCE(p.address, ''), COALESCE(p.city, ''), COALESCE(p.postal_code, ''),
	COALESCE(p.country, ''), COALESCE(p.tax_id, ''), COALESCE(p.company, '')`

const userFrom = ` FROM users u LEFT JOIN profiles p ON p.user_id = u.id`

// UserRepository implements domain.UserRepository.
type UserRepository struct {
	conn database.Connection
}

// NewUserRepository creates a user repository.
func NewUserRepository(conn database.Connection) *UserRepository {
	return &UserRepository{conn: conn}
}

func (r *UserRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save upserts the user row and its profile. A clash on email maps to
// domain.ErrEmailTaken.
func (r *UserRepository) Save(ctx context.Context, u *domain.User) error {
	exec := r.exec(ctx)
	_, err := exec.Exec(ctx, `INSERT INTO users
		(id, email, password_hash, active, email_verified, last_login_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			password_hash = excluded.password_hash,
			active = excluded.active,
			email_verified = excluded.email_verified,
			last_login_at = excluded.last_login_at,
			updated_at = excluded.updated_at`,
		u.ID().String(), u.Email().String(), u.PasswordHash(), u.IsActive(), u.EmailVerified(),
		database.NullableTimestamp(u.LastLoginAt()),
		database.FormatTimestamp(u.CreatedAt()), database.FormatTimestamp(u.UpdatedAt()),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("failed to save user: %w", err)
	}

	p := u.Profile()
	_, err = exec.Exec(ctx, `INSERT INTO profiles
		(user_id, first_name, last_name, phone, address, city, postal_code, country, tax_id, company)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			phone = excluded.phone,
			address = excluded.address,
			city = excluded.city,
			postal_code = excluded.postal_code,
			country = excluded.country,
			tax_id = excluded.tax_id,
			company = excluded.company`,
		u.ID().String(), p.FirstName, p.LastName, p.Phone, p.Address, p.City,
		p.PostalCode, p.Country, p.TaxID, p.Company,
	)
	if err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+userFrom+` WHERE u.id = ?`, id.String())
}

func (r *UserRepository) FindByEmail(ctx context.Context, email domain.Email) (*domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+userFrom+` WHERE u.email = ?`, email.String())
}

func (r *UserRepository) FindAll(ctx context.Context) ([]*domain.User, error) {
	rows, err := r.exec(ctx).Query(ctx, `SELECT `+userColumns+userFrom+` ORDER BY u.created_at, u.email`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email domain.Email) (bool, error) {
	var count int
	err := r.exec(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE email = ?`, email.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return count > 0, nil
}

// Delete removes the user. Profiles, subscriptions and payment methods cascade.
func (r *UserRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM users WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return database.RequireAffected(result, domain.ErrUserNotFound)
}

func (r *UserRepository) one(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u, err := scanUser(r.exec(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

func scanUser(row database.Row) (*domain.User, error) {
	var (
		id, email            string
		st                   domain.UserState
		lastLogin            database.Time
		createdAt, updatedAt database.Time
		p                    = &st.Profile
	)
	if err := row.Scan(&id, &email, &st.PasswordHash, &st.Active, &st.EmailVerified, &lastLogin,
		&createdAt, &updatedAt,
		&p.FirstName, &p.LastName, &p.Phone, &p.Address, &p.City, &p.PostalCode,
		&p.Country, &p.TaxID, &p.Company); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid user id %q: %w", id, err)
	}
	st.ID = parsed
	st.Email, err = domain.NewEmail(email)
	if err != nil {
		return nil, fmt.Errorf("invalid stored email %q: %w", email, err)
	}
	st.LastLoginAt = lastLogin.Ptr()
	st.CreatedAt = createdAt.Time
	st.UpdatedAt = updatedAt.Time
	return domain.RehydrateUser(st), nil
}
