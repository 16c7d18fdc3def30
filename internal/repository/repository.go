package repository

import (
	"context"

	"github.com/skovert/feedwall/internal/domain"
)

// UserRepository persists users and the user-side post references.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	UpdateUserStatus(ctx context.Context, id, status string) error
	AppendUserPost(ctx context.Context, userID, postID string) error
	RemoveUserPost(ctx context.Context, userID, postID string) error
	ListUserPostIDs(ctx context.Context, userID string) ([]string, error)
}

// PostRepository persists posts with their denormalized creator name.
type PostRepository interface {
	CreatePost(ctx context.Context, post *domain.Post) error
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	UpdatePost(ctx context.Context, post *domain.Post) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, error)
	CountPosts(ctx context.Context) (int, error)
}
