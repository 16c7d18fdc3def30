package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/skovert/feedwall/internal/apperr"
	"github.com/skovert/feedwall/internal/broadcast"
	"github.com/skovert/feedwall/internal/domain"
	"github.com/skovert/feedwall/internal/repository"
)

type stubPostRepository struct {
	posts     map[string]domain.Post
	failWrite bool
}

func newStubPostRepository() *stubPostRepository {
	return &stubPostRepository{posts: make(map[string]domain.Post)}
}

func (s *stubPostRepository) CreatePost(ctx context.Context, post *domain.Post) error {
	if s.failWrite {
		return errors.New("insert failed")
	}
	s.posts[post.ID] = *post
	return nil
}

func (s *stubPostRepository) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	post, ok := s.posts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &post, nil
}

func (s *stubPostRepository) UpdatePost(ctx context.Context, post *domain.Post) error {
	if _, ok := s.posts[post.ID]; !ok {
		return repository.ErrNotFound
	}
	s.posts[post.ID] = *post
	return nil
}

func (s *stubPostRepository) DeletePost(ctx context.Context, id string) error {
	if _, ok := s.posts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.posts, id)
	return nil
}

func (s *stubPostRepository) ListPosts(ctx context.Context, limit, offset int) ([]domain.Post, error) {
	all := make([]domain.Post, 0, len(s.posts))
	for _, post := range s.posts {
		all = append(all, post)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	all = all[offset:]
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *stubPostRepository) CountPosts(ctx context.Context) (int, error) {
	return len(s.posts), nil
}

type stubUserRepository struct {
	users      map[string]domain.User
	userPosts  map[string][]string
	failAppend bool
}

func newStubUserRepository(users ...domain.User) *stubUserRepository {
	s := &stubUserRepository{users: make(map[string]domain.User), userPosts: make(map[string][]string)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	s.users[user.ID] = *user
	return nil
}

func (s *stubUserRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

func (s *stubUserRepository) UpdateUserStatus(ctx context.Context, id, status string) error {
	user, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	user.Status = status
	s.users[id] = user
	return nil
}

func (s *stubUserRepository) AppendUserPost(ctx context.Context, userID, postID string) error {
	if s.failAppend {
		return errors.New("append failed")
	}
	s.userPosts[userID] = append(s.userPosts[userID], postID)
	return nil
}

func (s *stubUserRepository) RemoveUserPost(ctx context.Context, userID, postID string) error {
	ids := s.userPosts[userID]
	for i, id := range ids {
		if id == postID {
			s.userPosts[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (s *stubUserRepository) ListUserPostIDs(ctx context.Context, userID string) ([]string, error) {
	return append([]string(nil), s.userPosts[userID]...), nil
}

type stubImageStore struct {
	files map[string]bool
}

func newStubImageStore(paths ...string) *stubImageStore {
	s := &stubImageStore{files: make(map[string]bool)}
	for _, p := range paths {
		s.files[p] = true
	}
	return s
}

func (s *stubImageStore) Exists(path string) bool { return s.files[path] }
func (s *stubImageStore) Remove(path string)      { delete(s.files, path) }

type recordingPublisher struct {
	events []broadcast.Event
	err    error
}

func (p *recordingPublisher) Publish(event broadcast.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, posts *stubPostRepository, users *stubUserRepository, images *stubImageStore, pub Publisher) Service {
	t.Helper()
	svc, err := New(posts, users, images, pub, discardLogger(), 2)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return svc
}

func TestNewRequiresPublisher(t *testing.T) {
	_, err := New(newStubPostRepository(), newStubUserRepository(), newStubImageStore(), nil, discardLogger(), 2)
	if err == nil {
		t.Fatal("expected constructor error without publisher")
	}
}

func TestCreateSetsCreatorAndBackReference(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	images := newStubImageStore("images/1.png")
	pub := &recordingPublisher{}
	svc := newTestService(t, posts, users, images, pub)

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if post.Creator.ID != "u1" || post.Creator.Name != "Ada" {
		t.Fatalf("unexpected creator: %+v", post.Creator)
	}
	ids, _ := users.ListUserPostIDs(context.Background(), "u1")
	if len(ids) != 1 || ids[0] != post.ID {
		t.Fatalf("back-reference not recorded: %v", ids)
	}
	if len(pub.events) != 1 || pub.events[0].Action != broadcast.ActionCreate {
		t.Fatalf("expected one create event, got %+v", pub.events)
	}
}

func TestCreateValidation(t *testing.T) {
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	svc := newTestService(t, newStubPostRepository(), users, newStubImageStore(), &recordingPublisher{})

	_, err := svc.Create(context.Background(), "u1", PostInput{Title: " ", Content: "B", ImagePath: "images/1.png"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 422 {
		t.Fatalf("expected validation error, got %v", err)
	}

	_, err = svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B"})
	if !errors.As(err, &appErr) || appErr.Status != 422 {
		t.Fatalf("expected validation error for missing image, got %v", err)
	}

	_, err = svc.Create(context.Background(), "", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if !errors.As(err, &appErr) || appErr.Status != 401 {
		t.Fatalf("expected auth error for missing identity, got %v", err)
	}
}

func TestCreateToleratesBackReferenceFailure(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	users.failAppend = true
	images := newStubImageStore("images/1.png")
	pub := &recordingPublisher{}
	svc := newTestService(t, posts, users, images, pub)

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create should tolerate back-reference failure, got %v", err)
	}
	if _, err := svc.Get(context.Background(), post.ID); err != nil {
		t.Fatalf("post should be persisted: %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("create event should still publish, got %d events", len(pub.events))
	}
	if images.Exists("images/1.png") != true {
		t.Fatal("uploaded image must never be deleted by create")
	}
}

func TestCreateSurvivesPublisherFailure(t *testing.T) {
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	pub := &recordingPublisher{err: broadcast.ErrClosed}
	svc := newTestService(t, newStubPostRepository(), users, newStubImageStore("images/1.png"), pub)

	if _, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"}); err != nil {
		t.Fatalf("broadcast failure must not surface: %v", err)
	}
}

func TestListPagination(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	images := newStubImageStore()
	svc := newTestService(t, posts, users, images, &recordingPublisher{})

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("p%d", i)
		posts.posts[id] = domain.Post{
			ID:        id,
			Title:     id,
			Creator:   domain.Creator{ID: "u1", Name: "Ada"},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}

	expected := map[int]int{1: 2, 2: 2, 3: 1, 4: 0}
	for page, want := range expected {
		result, err := svc.List(context.Background(), page)
		if err != nil {
			t.Fatalf("List(%d) returned error: %v", page, err)
		}
		if len(result.Posts) != want {
			t.Fatalf("page %d: expected %d posts, got %d", page, want, len(result.Posts))
		}
		if result.TotalItems != 5 {
			t.Fatalf("page %d: expected total 5, got %d", page, result.TotalItems)
		}
	}

	first, err := svc.List(context.Background(), 0)
	if err != nil {
		t.Fatalf("List(0) returned error: %v", err)
	}
	if len(first.Posts) != 2 || first.Posts[0].ID != "p4" || first.Posts[1].ID != "p3" {
		t.Fatalf("expected newest-first clamped page, got %+v", first.Posts)
	}
}

func TestUpdateByNonOwnerLeavesPostUnchanged(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"}, domain.User{ID: "u2", Name: "Eve"})
	images := newStubImageStore("images/1.png")
	svc := newTestService(t, posts, users, images, &recordingPublisher{})

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err = svc.Update(context.Background(), "u2", post.ID, PostInput{Title: "X", Content: "Y"})
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 403 {
		t.Fatalf("expected forbidden, got %v", err)
	}
	stored, _ := svc.Get(context.Background(), post.ID)
	if stored.Title != "A" || stored.Content != "B" {
		t.Fatalf("post mutated by non-owner: %+v", stored)
	}
}

func TestUpdateReplacesImage(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	images := newStubImageStore("images/old.png", "images/new.png")
	pub := &recordingPublisher{}
	svc := newTestService(t, posts, users, images, pub)

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/old.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	updated, err := svc.Update(context.Background(), "u1", post.ID, PostInput{Title: "A2", Content: "B2", ImagePath: "images/new.png"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.ImageURL != "images/new.png" {
		t.Fatalf("image not replaced: %q", updated.ImageURL)
	}
	if images.Exists("images/old.png") {
		t.Fatal("old image should be removed after replacement")
	}

	// Keeping the image passes an empty path.
	kept, err := svc.Update(context.Background(), "u1", post.ID, PostInput{Title: "A3", Content: "B3"})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if kept.ImageURL != "images/new.png" {
		t.Fatalf("image should be kept: %q", kept.ImageURL)
	}
	if !images.Exists("images/new.png") {
		t.Fatal("current image must not be deleted on keep")
	}
	if len(pub.events) != 3 || pub.events[1].Action != broadcast.ActionUpdate {
		t.Fatalf("expected create+update+update events, got %+v", pub.events)
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	images := newStubImageStore("images/1.png")
	pub := &recordingPublisher{}
	svc := newTestService(t, posts, users, images, pub)

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := svc.Delete(context.Background(), "u1", post.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	_, err = svc.Get(context.Background(), post.ID)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 404 {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if ids, _ := users.ListUserPostIDs(context.Background(), "u1"); len(ids) != 0 {
		t.Fatalf("back-reference not removed: %v", ids)
	}
	if images.Exists("images/1.png") {
		t.Fatal("image should be removed on delete")
	}
	last := pub.events[len(pub.events)-1]
	if last.Action != broadcast.ActionDelete {
		t.Fatalf("expected delete event, got %+v", last)
	}
	if id, ok := last.Post.(string); !ok || id != post.ID {
		t.Fatalf("delete event must carry only the id, got %+v", last.Post)
	}
}

func TestDeleteByNonOwner(t *testing.T) {
	posts := newStubPostRepository()
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"}, domain.User{ID: "u2", Name: "Eve"})
	images := newStubImageStore("images/1.png")
	svc := newTestService(t, posts, users, images, &recordingPublisher{})

	post, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	err = svc.Delete(context.Background(), "u2", post.ID)
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 403 {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if !images.Exists("images/1.png") {
		t.Fatal("image must survive a rejected delete")
	}
}

func TestCreateGetRoundTrip(t *testing.T) {
	users := newStubUserRepository(domain.User{ID: "u1", Name: "Ada"})
	svc := newTestService(t, newStubPostRepository(), users, newStubImageStore("images/1.png"), &recordingPublisher{})

	created, err := svc.Create(context.Background(), "u1", PostInput{Title: "A", Content: "B", ImagePath: "images/1.png"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	fetched, err := svc.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if fetched.Title != created.Title || fetched.Content != created.Content ||
		fetched.ImageURL != created.ImageURL || fetched.Creator != created.Creator {
		t.Fatalf("round trip mismatch: %+v vs %+v", fetched, created)
	}
}

func TestGetUnknownPost(t *testing.T) {
	users := newStubUserRepository()
	svc := newTestService(t, newStubPostRepository(), users, newStubImageStore(), &recordingPublisher{})

	_, err := svc.Get(context.Background(), "missing")
	var appErr *apperr.Error
	if !errors.As(err, &appErr) || appErr.Status != 404 {
		t.Fatalf("expected not found, got %v", err)
	}
}
