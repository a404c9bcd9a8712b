package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"corecrm/backend/internal/security"
	"corecrm/backend/internal/session/domain"
)

type fakeSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*domain.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: make(map[string]*domain.Session)}
}

func (f *fakeSessionRepo) GetByID(_ context.Context, id string) (*domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessionRepo) Create(_ context.Context, s *domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *s
	f.sessions[s.ID] = &cp
	return nil
}

func (f *fakeSessionRepo) Rotate(_ context.Context, oldID, newID string, now, expiresAt time.Time, client domain.Client) (*domain.Session, *domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.sessions[oldID]
	if !ok {
		return nil, nil, nil
	}
	delete(f.sessions, oldID)
	oldCp := *old
	if oldCp.ExpiredAt(now) {
		return &oldCp, nil, nil
	}
	created := &domain.Session{
		ID:            newID,
		UserID:        old.UserID,
		TokenFamilyID: old.TokenFamilyID,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		IPAddress:     client.IPAddress,
		UserAgent:     client.UserAgent,
	}
	f.sessions[newID] = created
	cp := *created
	return &oldCp, &cp, nil
}

func (f *fakeSessionRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepo) DeleteAllForUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.UserID == userID {
			delete(f.sessions, id)
		}
	}
	return nil
}

func (f *fakeSessionRepo) UpdateRefreshHash(_ context.Context, id, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[id]; ok {
		s.RefreshTokenHash = hash
	}
	return nil
}

func (f *fakeSessionRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sessions)
}

func testClient() domain.Client {
	return domain.Client{IPAddress: "203.0.113.10", UserAgent: "go-test"}
}

func TestManager_CreateAndRotate(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", testClient())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" || s.TokenFamilyID == "" {
		t.Fatalf("session missing ids: %+v", s)
	}
	if err := m.BindRefreshToken(ctx, s.ID, "refresh-1"); err != nil {
		t.Fatalf("BindRefreshToken: %v", err)
	}

	next, err := m.Rotate(ctx, s.ID, "refresh-1", testClient())
	if err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if next.ID == s.ID {
		t.Error("rotation kept the same session id")
	}
	if next.TokenFamilyID != s.TokenFamilyID {
		t.Errorf("family changed on rotation: %q -> %q", s.TokenFamilyID, next.TokenFamilyID)
	}
	if live, _ := m.IsLive(ctx, s.ID); live {
		t.Error("consumed session still live")
	}
	if live, _ := m.IsLive(ctx, next.ID); !live {
		t.Error("replacement session not live")
	}
}

func TestManager_RotateReplay(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", testClient())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := m.Rotate(ctx, s.ID, "refresh-1", testClient()); err != nil {
		t.Fatalf("first Rotate: %v", err)
	}
	if _, err := m.Rotate(ctx, s.ID, "refresh-1", testClient()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("replayed rotate: want ErrSessionNotFound, got %v", err)
	}
}

func TestManager_RotateExpired(t *testing.T) {
	repo := newFakeSessionRepo()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := NewManager(repo, time.Hour).WithNow(func() time.Time { return now })
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", testClient())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	now = now.Add(2 * time.Hour)
	if _, err := m.Rotate(ctx, s.ID, "refresh-1", testClient()); !errors.Is(err, ErrSessionExpired) {
		t.Errorf("expired rotate: want ErrSessionExpired, got %v", err)
	}
	// The expired row was consumed; a retry now misses entirely.
	if _, err := m.Rotate(ctx, s.ID, "refresh-1", testClient()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("retry after expiry: want ErrSessionNotFound, got %v", err)
	}
}

func TestManager_RotateWrongRefreshToken(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", testClient())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.BindRefreshToken(ctx, s.ID, "refresh-1"); err != nil {
		t.Fatalf("BindRefreshToken: %v", err)
	}
	if _, err := m.Rotate(ctx, s.ID, "some-other-token", testClient()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("mismatched token: want ErrSessionNotFound, got %v", err)
	}
	if repo.count() != 0 {
		t.Errorf("replacement row survived a rejected rotation, %d rows left", repo.count())
	}
}

// Concurrent rotations of the same session must have exactly one winner.
func TestManager_RotateConcurrentExclusive(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	s, err := m.Create(ctx, "u1", testClient())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := m.BindRefreshToken(ctx, s.ID, "refresh-1"); err != nil {
		t.Fatalf("BindRefreshToken: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Rotate(ctx, s.ID, "refresh-1", testClient())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins, replays := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSessionNotFound):
			replays++
		default:
			t.Errorf("unexpected rotate error: %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("winners = %d, want exactly 1", wins)
	}
	if replays != workers-1 {
		t.Errorf("replay rejections = %d, want %d", replays, workers-1)
	}
}

func TestManager_RevokeAllForUser(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	a, _ := m.Create(ctx, "u1", testClient())
	b, _ := m.Create(ctx, "u1", testClient())
	other, _ := m.Create(ctx, "u2", testClient())

	if err := m.RevokeAllForUser(ctx, "u1"); err != nil {
		t.Fatalf("RevokeAllForUser: %v", err)
	}
	for _, id := range []string{a.ID, b.ID} {
		if live, _ := m.IsLive(ctx, id); live {
			t.Errorf("session %s still live after user-wide revocation", id)
		}
	}
	if live, _ := m.IsLive(ctx, other.ID); !live {
		t.Error("unrelated user's session was revoked")
	}
}

func TestManager_BindRefreshTokenHash(t *testing.T) {
	repo := newFakeSessionRepo()
	m := NewManager(repo, time.Hour)
	ctx := context.Background()

	s, _ := m.Create(ctx, "u1", testClient())
	if err := m.BindRefreshToken(ctx, s.ID, "refresh-1"); err != nil {
		t.Fatalf("BindRefreshToken: %v", err)
	}
	stored, _ := repo.GetByID(ctx, s.ID)
	if stored.RefreshTokenHash == "refresh-1" {
		t.Error("refresh token stored in the clear")
	}
	if !security.RefreshTokenHashEqual("refresh-1", stored.RefreshTokenHash) {
		t.Error("stored hash does not match the bound token")
	}
}
