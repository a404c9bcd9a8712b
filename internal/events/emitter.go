// Package events fans audit entries out to an external stream.
package events

import (
	"context"

	auditdomain "corecrm/backend/internal/audit/domain"
)

// Emitter emits audit events to a stream (e.g. Kafka). Best-effort; callers log and ignore errors.
type Emitter interface {
	Emit(ctx context.Context, entry *auditdomain.AuditLog) error
}
