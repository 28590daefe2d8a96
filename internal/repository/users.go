package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mmeshcher/ink-panels/internal/model"
)

const userColumns = `id, email, username, password_hash, role, email_verified, created_at, updated_at`

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return &u, nil
}

// userConflict переводит нарушение уникальности в ошибку домена.
func userConflict(err error) error {
	pgErr, ok := isUniqueViolation(err)
	if !ok {
		return nil
	}
	if pgErr.ConstraintName == "users_username_key" {
		return ErrUsernameTaken
	}
	return ErrUserExists
}

// CreateUser создаёт нового пользователя и возвращает его с присвоенным идентификатором.
func (r *PostgresRepository) CreateUser(ctx context.Context, u *model.User) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, username, password_hash, role, email_verified)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+userColumns,
		u.Email, u.Username, u.PasswordHash, string(u.Role), u.EmailVerified,
	)

	created, err := scanUser(row)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return nil, fmt.Errorf("%w: %s", conflict, u.Email)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return u, nil
}

// UpdateUserProfile обновляет email и имя пользователя.
func (r *PostgresRepository) UpdateUserProfile(ctx context.Context, id, email, username string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET email_verified = email_verified AND email = $2,
		     email = $2, username = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, email, username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return u, nil
}

// MarkUserVerified отмечает email подтверждённым и, если передано, меняет имя пользователя.
func (r *PostgresRepository) MarkUserVerified(ctx context.Context, id, username string) (*model.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users
		 SET email_verified = TRUE,
		     username = COALESCE(NULLIF($2, ''), username),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, username,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		if conflict := userConflict(err); conflict != nil {
			return nil, conflict
		}
		return nil, fmt.Errorf("mark user verified: %w", err)
	}
	return u, nil
}

// UsernameTaken сообщает, занято ли имя пользователя кем-то, кроме exceptID.
func (r *PostgresRepository) UsernameTaken(ctx context.Context, username, exceptID string) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 AND id::text <> $2)`,
		username, exceptID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check username: %w", err)
	}
	return taken, nil
}

// AddToWishlist добавляет позицию в список желаемого. Повторное добавление ничего не меняет.
func (r *PostgresRepository) AddToWishlist(ctx context.Context, userID, mangaID string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO wishlist_items (user_id, manga_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, manga_id) DO NOTHING`,
		userID, mangaID,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrMangaNotFound
		}
		return fmt.Errorf("add to wishlist: %w", err)
	}
	return nil
}

// RemoveFromWishlist удаляет позицию из списка желаемого.
func (r *PostgresRepository) RemoveFromWishlist(ctx context.Context, userID, mangaID string) error {
	if _, err := r.pool.Exec(ctx,
		`DELETE FROM wishlist_items WHERE user_id = $1 AND manga_id = $2`,
		userID, mangaID,
	); err != nil {
		return fmt.Errorf("remove from wishlist: %w", err)
	}
	return nil
}

// GetWishlist возвращает идентификаторы позиций списка желаемого в порядке добавления.
func (r *PostgresRepository) GetWishlist(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT manga_id FROM wishlist_items WHERE user_id = $1 ORDER BY added_at, manga_id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select wishlist: %w", err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan wishlist: %w", err)
	}
	return ids, nil
}
