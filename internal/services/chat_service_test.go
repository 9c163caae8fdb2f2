package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/linkify/go-social-backend/internal/domain"
	"github.com/linkify/go-social-backend/internal/repo"
)

// fakeConversationRepo implements ConversationRepo with canned behavior so
// service logic can be exercised without a database.
type fakeConversationRepo struct {
	findErr    error
	createErr  error
	found      *domain.Chat
	created    *domain.Chat
	findCalls  int
	createCall int
}

func (f *fakeConversationRepo) FindDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.found, nil
}

func (f *fakeConversationRepo) CreateDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	f.createCall++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeConversationRepo) CreateGroup(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error) {
	return &domain.Chat{ID: "g1", IsGroup: true, GroupName: name}, nil
}

func (f *fakeConversationRepo) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return nil, nil
}

func (f *fakeConversationRepo) Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error) {
	return nil, nil
}

func TestGetOrCreateDirect_SelfReference(t *testing.T) {
	svc := NewChatService(nil, &fakeConversationRepo{})
	if _, err := svc.GetOrCreateDirect(context.Background(), "u1", "u1"); !errors.Is(err, ErrSelfReference) {
		t.Fatalf("err = %v, want ErrSelfReference", err)
	}
}

func TestGetOrCreateDirect_ReturnsExisting(t *testing.T) {
	existing := &domain.Chat{ID: "c1"}
	fake := &fakeConversationRepo{found: existing}
	svc := NewChatService(nil, fake)

	got, err := svc.GetOrCreateDirect(context.Background(), "u1", "u2")
	if err != nil || got.ID != "c1" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if fake.createCall != 0 {
		t.Fatal("create must not run when the chat exists")
	}
}

func TestGetOrCreateDirect_CreatesWhenAbsent(t *testing.T) {
	fake := &fakeConversationRepo{findErr: repo.ErrNotFound, created: &domain.Chat{ID: "c-new"}}
	svc := NewChatService(nil, fake)

	got, err := svc.GetOrCreateDirect(context.Background(), "u1", "u2")
	if err != nil || got.ID != "c-new" {
		t.Fatalf("got %+v, %v", got, err)
	}
	if fake.createCall != 1 {
		t.Fatalf("create calls = %d, want 1", fake.createCall)
	}
}

func TestGetOrCreateDirect_LostRaceRetriesLookup(t *testing.T) {
	winner := &domain.Chat{ID: "c-winner"}

	// First lookup misses, create loses the race, second lookup finds the
	// winner's chat.
	finds := 0
	wrapped := &sequencedRepo{
		inner: &fakeConversationRepo{createErr: repo.ErrDuplicate},
		onFind: func() (*domain.Chat, error) {
			finds++
			if finds == 1 {
				return nil, repo.ErrNotFound
			}
			return winner, nil
		},
	}
	svc := NewChatService(nil, wrapped)

	got, err := svc.GetOrCreateDirect(context.Background(), "u1", "u2")
	if err != nil || got.ID != "c-winner" {
		t.Fatalf("got %+v, %v", got, err)
	}
}

// sequencedRepo overrides FindDirect with a scripted response sequence.
type sequencedRepo struct {
	inner  ConversationRepo
	onFind func() (*domain.Chat, error)
}

func (s *sequencedRepo) FindDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	return s.onFind()
}

func (s *sequencedRepo) CreateDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	return s.inner.CreateDirect(ctx, db, a, b)
}

func (s *sequencedRepo) CreateGroup(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error) {
	return s.inner.CreateGroup(ctx, db, creatorID, memberIDs, name)
}

func (s *sequencedRepo) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return s.inner.ListForUser(ctx, db, userID)
}

func (s *sequencedRepo) Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error) {
	return s.inner.Participants(ctx, db, chatID)
}

func TestCreateGroup_Validation(t *testing.T) {
	svc := NewChatService(nil, &fakeConversationRepo{})
	ctx := context.Background()

	if _, err := svc.CreateGroup(ctx, "creator", nil, "g"); !errors.Is(err, ErrNoParticipants) {
		t.Fatalf("empty participants: err = %v, want ErrNoParticipants", err)
	}
	got, err := svc.CreateGroup(ctx, "creator", []string{"u2"}, "  weekend  ")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if got.GroupName != "weekend" {
		t.Fatalf("group name not trimmed: %q", got.GroupName)
	}
}

func TestDedupeWith(t *testing.T) {
	got := dedupeWith([]string{"a", "b", "a", "", "c"}, "b")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("dedupeWith = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dedupeWith = %v, want %v", got, want)
		}
	}
}

//
// Integration against SQLite via the real repository shim.
//

type realConversationRepo struct{}

func (realConversationRepo) FindDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	return repo.FindDirectChat(ctx, db, a, b)
}

func (realConversationRepo) CreateDirect(ctx context.Context, db *gorm.DB, a, b string) (*domain.Chat, error) {
	return repo.CreateDirectChat(ctx, db, a, b)
}

func (realConversationRepo) CreateGroup(ctx context.Context, db *gorm.DB, creatorID string, memberIDs []string, name string) (*domain.Chat, error) {
	return repo.CreateGroupChat(ctx, db, creatorID, memberIDs, name)
}

func (realConversationRepo) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Chat, error) {
	return repo.ListChatsForUser(ctx, db, userID)
}

func (realConversationRepo) Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.UserRef, error) {
	return repo.ListParticipants(ctx, db, chatID)
}

func TestGetOrCreateDirect_IdempotentAgainstStorage(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db, realConversationRepo{})
	ctx := context.Background()

	a := seedUser(t, db, "alice", false)
	b := seedUser(t, db, "bob", false)

	first, err := svc.GetOrCreateDirect(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.GetOrCreateDirect(ctx, b.ID, a.ID)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("pair produced two chats: %s vs %s", first.ID, second.ID)
	}

	var n int64
	if err := db.Model(&domain.Chat{}).Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("chat rows = %d, %v; want 1", n, err)
	}
}

func TestListForUser_EnrichesSummaries(t *testing.T) {
	db := newServiceDB(t)
	svc := NewChatService(db, realConversationRepo{})
	msgSvc := &MessageService{DB: db}
	ctx := context.Background()

	a := seedUser(t, db, "alice", false)
	b := seedUser(t, db, "bob", false)

	chat, err := svc.GetOrCreateDirect(ctx, a.ID, b.ID)
	if err != nil {
		t.Fatalf("create chat: %v", err)
	}
	sent, err := msgSvc.Append(ctx, b.ID, chat.ID, "hello alice")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	sums, err := svc.ListForUser(ctx, a.ID)
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(sums) != 1 {
		t.Fatalf("summaries = %d, want 1", len(sums))
	}
	s := sums[0]
	if s.ID != chat.ID || s.IsGroup {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if len(s.Participants) != 2 {
		t.Fatalf("participants = %d, want 2", len(s.Participants))
	}
	if s.LastMessage == nil {
		t.Fatal("last message missing from summary")
	}
	if s.LastMessage.ID != sent.ID || s.LastMessage.Content != "hello alice" {
		t.Fatalf("unexpected last message: %+v", s.LastMessage)
	}
	if s.LastMessage.Sender.Username != "bob" {
		t.Fatalf("sender projection = %+v", s.LastMessage.Sender)
	}

	// A chat with no messages lists with a nil last message.
	c := seedUser(t, db, "carol", false)
	if _, err := svc.GetOrCreateDirect(ctx, a.ID, c.ID); err != nil {
		t.Fatalf("second chat: %v", err)
	}
	sums, err = svc.ListForUser(ctx, a.ID)
	if err != nil || len(sums) != 2 {
		t.Fatalf("summaries after second chat: %d, %v", len(sums), err)
	}
	for _, s := range sums {
		if s.ID != chat.ID && s.LastMessage != nil {
			t.Fatalf("empty chat has last message: %+v", s.LastMessage)
		}
	}
}
