package graph

import (
	"context"
	"errors"
	"time"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/skovert/feedwall/internal/apperr"
	"github.com/skovert/feedwall/internal/auth"
	"github.com/skovert/feedwall/internal/domain"
	authsvc "github.com/skovert/feedwall/internal/service/auth"
	"github.com/skovert/feedwall/internal/service/feed"
)

// Resolver is the root resolver holding service dependencies.
type Resolver struct {
	Auth authsvc.Service
	Feed feed.Service
}

func identityFrom(ctx context.Context) (auth.Identity, error) {
	identity, ok := auth.FromContext(ctx)
	if !ok {
		return auth.Identity{}, apperr.Unauthenticated("not authenticated")
	}
	return identity, nil
}

// PostInputData mirrors the postInput argument shape.
type PostInputData struct {
	Title    string
	Content  string
	ImageURL *string
}

func (in PostInputData) toInput() feed.PostInput {
	input := feed.PostInput{Title: in.Title, Content: in.Content}
	if in.ImageURL != nil {
		input.ImagePath = *in.ImageURL
	}
	return input
}

// UserInputData mirrors the userInput argument shape.
type UserInputData struct {
	Email    string
	Name     string
	Password string
}

// Login authenticates and returns a token payload.
func (r *Resolver) Login(ctx context.Context, args struct{ Email, Password string }) (*authDataResolver, error) {
	user, token, err := r.Auth.Login(ctx, args.Email, args.Password)
	if err != nil {
		return nil, err
	}
	return &authDataResolver{token: token, userID: user.ID}, nil
}

// Posts returns one page of the feed.
func (r *Resolver) Posts(ctx context.Context, args struct{ Page *int32 }) (*postDataResolver, error) {
	page := 1
	if args.Page != nil {
		page = int(*args.Page)
	}
	result, err := r.Feed.List(ctx, page)
	if err != nil {
		return nil, err
	}
	return &postDataResolver{page: result}, nil
}

// Post returns a single post by id.
func (r *Resolver) Post(ctx context.Context, args struct{ ID graphql.ID }) (*postResolver, error) {
	post, err := r.Feed.Get(ctx, string(args.ID))
	if err != nil {
		return nil, err
	}
	return &postResolver{post: *post}, nil
}

// User returns the authenticated user's profile.
func (r *Resolver) User(ctx context.Context) (*userResolver, error) {
	identity, err := identityFrom(ctx)
	if err != nil {
		return nil, err
	}
	user, err := r.Auth.Profile(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	return &userResolver{user: *user, feed: r.Feed}, nil
}

// CreateUser registers a new account.
func (r *Resolver) CreateUser(ctx context.Context, args struct{ UserInput UserInputData }) (*userResolver, error) {
	user, err := r.Auth.Signup(ctx, authsvc.SignupInput{
		Email:    args.UserInput.Email,
		Name:     args.UserInput.Name,
		Password: args.UserInput.Password,
	})
	if err != nil {
		return nil, err
	}
	return &userResolver{user: *user, feed: r.Feed}, nil
}

// CreatePost persists a new post for the authenticated identity.
func (r *Resolver) CreatePost(ctx context.Context, args struct{ PostInput PostInputData }) (*postResolver, error) {
	identity, err := identityFrom(ctx)
	if err != nil {
		return nil, err
	}
	post, err := r.Feed.Create(ctx, identity.UserID, args.PostInput.toInput())
	if err != nil {
		return nil, err
	}
	return &postResolver{post: *post}, nil
}

// UpdatePost mutates an owned post.
func (r *Resolver) UpdatePost(ctx context.Context, args struct {
	ID        graphql.ID
	PostInput PostInputData
}) (*postResolver, error) {
	identity, err := identityFrom(ctx)
	if err != nil {
		return nil, err
	}
	post, err := r.Feed.Update(ctx, identity.UserID, string(args.ID), args.PostInput.toInput())
	if err != nil {
		return nil, err
	}
	return &postResolver{post: *post}, nil
}

// DeletePost removes an owned post.
func (r *Resolver) DeletePost(ctx context.Context, args struct{ ID graphql.ID }) (bool, error) {
	identity, err := identityFrom(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Feed.Delete(ctx, identity.UserID, string(args.ID)); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatus replaces the authenticated user's status text.
func (r *Resolver) UpdateStatus(ctx context.Context, args struct{ Status string }) (*userResolver, error) {
	identity, err := identityFrom(ctx)
	if err != nil {
		return nil, err
	}
	user, err := r.Auth.UpdateStatus(ctx, identity.UserID, args.Status)
	if err != nil {
		return nil, err
	}
	return &userResolver{user: *user, feed: r.Feed}, nil
}

type postResolver struct {
	post domain.Post
}

func (p *postResolver) ID() graphql.ID    { return graphql.ID(p.post.ID) }
func (p *postResolver) Title() string     { return p.post.Title }
func (p *postResolver) Content() string   { return p.post.Content }
func (p *postResolver) ImageURL() string  { return p.post.ImageURL }
func (p *postResolver) CreatedAt() string { return p.post.CreatedAt.Format(time.RFC3339Nano) }

func (p *postResolver) Creator() *creatorResolver {
	return &creatorResolver{creator: p.post.Creator}
}

type creatorResolver struct {
	creator domain.Creator
}

func (c *creatorResolver) ID() graphql.ID { return graphql.ID(c.creator.ID) }
func (c *creatorResolver) Name() string   { return c.creator.Name }

type userResolver struct {
	user domain.User
	feed feed.Service
}

func (u *userResolver) ID() graphql.ID { return graphql.ID(u.user.ID) }
func (u *userResolver) Name() string   { return u.user.Name }
func (u *userResolver) Email() string  { return u.user.Email }
func (u *userResolver) Status() string { return u.user.Status }

// Posts resolves the user's owned posts. Ids whose post no longer resolves
// (a logged partial-failure state) are skipped rather than failing the
// whole query.
func (u *userResolver) Posts(ctx context.Context) ([]*postResolver, error) {
	resolvers := make([]*postResolver, 0, len(u.user.Posts))
	for _, id := range u.user.Posts {
		post, err := u.feed.Get(ctx, id)
		if err != nil {
			var appErr *apperr.Error
			if errors.As(err, &appErr) && appErr.Status == 404 {
				continue
			}
			return nil, err
		}
		resolvers = append(resolvers, &postResolver{post: *post})
	}
	return resolvers, nil
}

type authDataResolver struct {
	token  string
	userID string
}

func (a *authDataResolver) Token() string  { return a.token }
func (a *authDataResolver) UserID() string { return a.userID }

type postDataResolver struct {
	page *domain.FeedPage
}

func (p *postDataResolver) Posts() []*postResolver {
	resolvers := make([]*postResolver, 0, len(p.page.Posts))
	for _, post := range p.page.Posts {
		resolvers = append(resolvers, &postResolver{post: post})
	}
	return resolvers
}

func (p *postDataResolver) TotalPosts() int32 { return int32(p.page.TotalItems) }
