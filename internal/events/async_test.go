package events

import (
	"context"
	"sync"
	"testing"
	"time"

	auditdomain "corecrm/backend/internal/audit/domain"
)

// mockEmitter implements Emitter for tests.
type mockEmitter struct {
	mu      sync.Mutex
	entries []*auditdomain.AuditLog
	emitErr error
}

func (m *mockEmitter) Emit(_ context.Context, entry *auditdomain.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return m.emitErr
}

func (m *mockEmitter) getEntries() []*auditdomain.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries
}

func testEntry() *auditdomain.AuditLog {
	return &auditdomain.AuditLog{
		ID:     "e1",
		OrgID:  "org-1",
		Action: "login_success",
	}
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Should not panic
	EmitAsync(nil, testEntry())
}

func TestEmitAsync_NilEntry(t *testing.T) {
	emitter := &mockEmitter{}

	EmitAsync(emitter, nil)
	time.Sleep(10 * time.Millisecond)

	if got := len(emitter.getEntries()); got != 0 {
		t.Errorf("expected 0 entries, got %d", got)
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEmitter{}

	EmitAsync(emitter, testEntry())
	time.Sleep(100 * time.Millisecond)

	entries := emitter.getEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].OrgID != "org-1" || entries[0].Action != "login_success" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestEmitAsync_ErrorHandling(t *testing.T) {
	emitter := &mockEmitter{emitErr: context.DeadlineExceeded}

	// Error is logged, never surfaced; must not panic.
	EmitAsync(emitter, testEntry())
	time.Sleep(100 * time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEmitter{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, testEntry())
		}()
	}
	wg.Wait()
	time.Sleep(200 * time.Millisecond)

	if got := len(emitter.getEntries()); got != 10 {
		t.Errorf("expected 10 entries, got %d", got)
	}
}
