// Package feed sequences repository writes, image lifecycle, and broadcast
// notification for each post mutation. Secondary-step failures (user
// back-reference, image cleanup, broadcast) are logged, never surfaced: the
// primary write decides success.
package feed

import (
	"context"
	"errors"
	"strings"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"github.com/skovert/feedwall/internal/apperr"
	"github.com/skovert/feedwall/internal/broadcast"
	"github.com/skovert/feedwall/internal/domain"
	"github.com/skovert/feedwall/internal/repository"
)

// ImageStore is the image lifecycle surface the feed needs.
type ImageStore interface {
	Exists(path string) bool
	Remove(path string)
}

// Publisher emits feed events to connected subscribers.
type Publisher interface {
	Publish(event broadcast.Event) error
}

// Service is the feed synchronizer.
type Service struct {
	posts    repository.PostRepository
	users    repository.UserRepository
	images   ImageStore
	events   Publisher
	logger   *slog.Logger
	pageSize int
}

// New constructs a Service. The publisher must exist before any mutation
// handler runs.
func New(posts repository.PostRepository, users repository.UserRepository, images ImageStore, events Publisher, logger *slog.Logger, pageSize int) (Service, error) {
	if posts == nil || users == nil {
		return Service{}, errors.New("feed: repositories required")
	}
	if images == nil {
		return Service{}, errors.New("feed: image store required")
	}
	if events == nil {
		return Service{}, errors.New("feed: broadcast publisher required")
	}
	if pageSize <= 0 {
		pageSize = 2
	}
	return Service{posts: posts, users: users, images: images, events: events, logger: logger, pageSize: pageSize}, nil
}

// PostInput carries mutable post attributes. ImagePath is required on
// create; on update an empty value keeps the current image.
type PostInput struct {
	Title     string
	Content   string
	ImagePath string
}

func validatePostInput(input PostInput) []string {
	var problems []string
	if strings.TrimSpace(input.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(input.Content) == "" {
		problems = append(problems, "content is required")
	}
	return problems
}

// List returns one feed page, newest first, plus the total post count.
// Pages below 1 clamp to the first page.
func (s Service) List(ctx context.Context, page int) (*domain.FeedPage, error) {
	if page < 1 {
		page = 1
	}
	total, err := s.posts.CountPosts(ctx)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	posts, err := s.posts.ListPosts(ctx, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &domain.FeedPage{Posts: posts, TotalItems: total}, nil
}

// Get returns a single post.
func (s Service) Get(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.posts.GetPostByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("could not find post")
		}
		return nil, apperr.Storage(err)
	}
	return post, nil
}

// Create persists a new post for the authenticated identity, appends the
// owner's back-reference, and publishes a create event. The post must exist
// before it can be referenced or broadcast; a failing back-reference append
// after a committed insert is an accepted partial failure and is only
// logged. The uploaded image is never deleted on failure so the caller can
// retry with the same file.
func (s Service) Create(ctx context.Context, identity string, input PostInput) (*domain.Post, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	problems := validatePostInput(input)
	if strings.TrimSpace(input.ImagePath) == "" {
		problems = append(problems, "no image provided")
	} else if !s.images.Exists(input.ImagePath) {
		problems = append(problems, "image not found at provided path")
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("validation failed", problems...)
	}

	user, err := s.users.GetUserByID(ctx, identity)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Unauthenticated("unknown user")
		}
		return nil, apperr.Storage(err)
	}

	post := &domain.Post{
		ID:        uuid.NewString(),
		Title:     strings.TrimSpace(input.Title),
		Content:   strings.TrimSpace(input.Content),
		ImageURL:  input.ImagePath,
		Creator:   domain.Creator{ID: user.ID, Name: user.Name},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.posts.CreatePost(ctx, post); err != nil {
		return nil, apperr.Storage(err)
	}
	if err := s.users.AppendUserPost(ctx, user.ID, post.ID); err != nil {
		s.logger.Warn("partial_failure: user back-reference append failed",
			"post_id", post.ID, "user_id", user.ID, "error", err)
	}
	s.publish(broadcast.Event{Action: broadcast.ActionCreate, Post: post})
	s.logger.Info("post created", "post_id", post.ID, "user_id", user.ID)
	return post, nil
}

// Update mutates a post owned by the identity and publishes an update
// event. When the resolved image differs from the stored one, the old file
// is removed best-effort after the decision to replace it.
func (s Service) Update(ctx context.Context, identity, id string, input PostInput) (*domain.Post, error) {
	if strings.TrimSpace(identity) == "" {
		return nil, apperr.Unauthenticated("not authenticated")
	}
	post, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Creator.ID != identity {
		return nil, apperr.Forbidden("not authorized")
	}

	problems := validatePostInput(input)
	imageURL := strings.TrimSpace(input.ImagePath)
	if imageURL == "" {
		imageURL = post.ImageURL
	}
	if imageURL == "" {
		problems = append(problems, "no image remains on post")
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("validation failed", problems...)
	}

	oldImage := post.ImageURL
	post.Title = strings.TrimSpace(input.Title)
	post.Content = strings.TrimSpace(input.Content)
	post.ImageURL = imageURL
	if err := s.posts.UpdatePost(ctx, post); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("could not find post")
		}
		return nil, apperr.Storage(err)
	}
	if imageURL != oldImage {
		s.images.Remove(oldImage)
	}
	s.publish(broadcast.Event{Action: broadcast.ActionUpdate, Post: post})
	s.logger.Info("post updated", "post_id", post.ID, "user_id", identity)
	return post, nil
}

// Delete removes a post owned by the identity: best-effort image removal,
// post record delete, back-reference removal (logged on failure), then a
// delete event carrying only the id.
func (s Service) Delete(ctx context.Context, identity, id string) error {
	if strings.TrimSpace(identity) == "" {
		return apperr.Unauthenticated("not authenticated")
	}
	post, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if post.Creator.ID != identity {
		return apperr.Forbidden("not authorized")
	}

	s.images.Remove(post.ImageURL)
	if err := s.posts.DeletePost(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("could not find post")
		}
		return apperr.Storage(err)
	}
	if err := s.users.RemoveUserPost(ctx, post.Creator.ID, id); err != nil {
		s.logger.Warn("partial_failure: user back-reference removal failed",
			"post_id", id, "user_id", post.Creator.ID, "error", err)
	}
	s.publish(broadcast.Event{Action: broadcast.ActionDelete, Post: id})
	s.logger.Info("post deleted", "post_id", id, "user_id", identity)
	return nil
}

// publish emits exactly one event per successful mutation. Failures never
// reach the caller.
func (s Service) publish(event broadcast.Event) {
	if err := s.events.Publish(event); err != nil {
		s.logger.Warn("feed broadcast failed", "action", event.Action, "error", err)
	}
}
