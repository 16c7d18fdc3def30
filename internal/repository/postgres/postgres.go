package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skovert/feedwall/internal/domain"
	"github.com/skovert/feedwall/internal/repository"
)

// Repository implements persistence interfaces on PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New constructs a Repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ensure Repository satisfies interfaces.
var (
	_ repository.UserRepository = (*Repository)(nil)
	_ repository.PostRepository = (*Repository)(nil)
)

// CreateUser inserts a user.
func (r *Repository) CreateUser(ctx context.Context, user *domain.User) error {
	const query = `INSERT INTO users (id, email, name, status, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, user.ID, user.Email, user.Name, user.Status, user.PasswordHash, user.CreatedAt)
	return err
}

// GetUserByEmail fetches a user by email.
func (r *Repository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `SELECT id, email, name, status, password_hash, created_at FROM users WHERE email = $1`
	row := r.pool.QueryRow(ctx, query, email)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Status, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetUserByID retrieves a user by identifier.
func (r *Repository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT id, email, name, status, password_hash, created_at FROM users WHERE id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Status, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateUserStatus sets the user's status text.
func (r *Repository) UpdateUserStatus(ctx context.Context, id, status string) error {
	const query = `UPDATE users SET status = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// AppendUserPost records a post reference on the owning user.
func (r *Repository) AppendUserPost(ctx context.Context, userID, postID string) error {
	const query = `INSERT INTO user_posts (user_id, post_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, post_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, query, userID, postID)
	return err
}

// RemoveUserPost drops a post reference from the owning user.
func (r *Repository) RemoveUserPost(ctx context.Context, userID, postID string) error {
	const query = `DELETE FROM user_posts WHERE user_id = $1 AND post_id = $2`
	_, err := r.pool.Exec(ctx, query, userID, postID)
	return err
}

// ListUserPostIDs returns the user's post ids in insertion order.
func (r *Repository) ListUserPostIDs(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT post_id FROM user_posts WHERE user_id = $1 ORDER BY position`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreatePost inserts a post.
func (r *Repository) CreatePost(ctx context.Context, post *domain.Post) error {
	const query = `INSERT INTO posts (id, title, content, image_url, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.pool.Exec(ctx, query, post.ID, post.Title, post.Content, post.ImageURL, post.Creator.ID, post.CreatedAt)
	return err
}

// GetPostByID fetches a post with its creator projection.
func (r *Repository) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	const query = `SELECT p.id, p.title, p.content, p.image_url, p.creator_id, u.name, p.created_at
		FROM posts p
		INNER JOIN users u ON u.id = p.creator_id
		WHERE p.id = $1`
	row := r.pool.QueryRow(ctx, query, id)
	var p domain.Post
	if err := row.Scan(&p.ID, &p.Title, &p.Content, &p.ImageURL, &p.Creator.ID, &p.Creator.Name, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// UpdatePost persists mutable post fields.
func (r *Repository) UpdatePost(ctx context.Context, post *domain.Post) error {
	const query = `UPDATE posts SET title = $2, content = $3, image_url = $4 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, post.ID, post.Title, post.Content, post.ImageURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// DeletePost removes a post record.
func (r *Repository) DeletePost(ctx context.Context, id string) error {
	const query = `DELETE FROM posts WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// ListPosts returns posts ordered by creation time descending.
func (r *Repository) ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	const query = `SELECT p.id, p.title, p.content, p.image_url, p.creator_id, u.name, p.created_at
		FROM posts p
		INNER JOIN users u ON u.id = p.creator_id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]domain.Post, 0, limit)
	for rows.Next() {
		var p domain.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.ImageURL, &p.Creator.ID, &p.Creator.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// CountPosts counts stored posts.
func (r *Repository) CountPosts(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(1) FROM posts`
	row := r.pool.QueryRow(ctx, query)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
