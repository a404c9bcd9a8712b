package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"corecrm/backend/internal/audit/domain"
	auditrepo "corecrm/backend/internal/audit/repository"
	"corecrm/backend/internal/events"
)

// SentinelOrgID is the org_id used for audit events that have no org
// (e.g. login_failure for an unknown email).
const SentinelOrgID = "_system"

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository and an optional IP extractor.
// When an emitter is set, each event is also fanned out to the event stream.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	emitter     events.Emitter
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor may be nil; then IP is recorded as "unknown".
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor) *Logger {
	return &Logger{repo: repo, ipExtractor: ipExtractor}
}

// WithEmitter adds stream fan-out on top of database persistence.
func (l *Logger) WithEmitter(e events.Emitter) *Logger {
	l.emitter = e
	return l
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, orgID, userID, action, resource, metadata string) {
	if l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		ip = l.ipExtractor(ctx)
	}
	if orgID == "" {
		orgID = SentinelOrgID
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		OrgID:     orgID,
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to log event %s/%s: %v", action, resource, err)
	}
	if l.emitter != nil {
		events.EmitAsync(l.emitter, entry)
	}
}
