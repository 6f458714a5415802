// Package secevent is the audit sink for credential and abuse events.
// Recording is a pure side effect: it never blocks, never fails the caller,
// and dropped events are acceptable loss.
package secevent

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Kind is the closed vocabulary of auditable events.
type Kind string

const (
	KindLoginSuccess           Kind = "login_success"
	KindLoginFailure           Kind = "login_failure"
	KindRegistrationSuccess    Kind = "registration_success"
	KindRegistrationFailure    Kind = "registration_failure"
	KindPasswordResetRequested Kind = "password_reset_requested"
	KindPasswordResetSucceeded Kind = "password_reset_succeeded"
	KindPasswordChangeSuccess  Kind = "password_change_success"
	KindPasswordChangeFailure  Kind = "password_change_failure"
	KindRateLimitExceeded      Kind = "rate_limit_exceeded"
	KindInvalidToken           Kind = "invalid_token"
	KindTokenExpired           Kind = "token_expired"
	KindTokenRefreshed         Kind = "token_refreshed"
	KindUnauthorizedAccess     Kind = "unauthorized_access"
	KindSuspiciousActivity     Kind = "suspicious_activity"
)

// Event is one immutable audit record.
type Event struct {
	Kind      Kind
	Actor     string // caller address
	SubjectID string
	TenantID  string
	Outcome   string
}

// Logger writes events to the process log and, when redis is configured,
// appends them to a capped stream for out-of-process consumers.
type Logger struct {
	log    *zap.SugaredLogger
	rdb    *redis.Client
	stream string
}

// New constructs a Logger. rdb may be nil; the stream sink is then skipped.
func New(log *zap.SugaredLogger, rdb *redis.Client, stream string) *Logger {
	return &Logger{log: log, rdb: rdb, stream: stream}
}

// Record emits one event. Failures of either sink are swallowed; the stream
// append runs detached so a slow redis cannot stall request handling.
func (l *Logger) Record(ctx context.Context, ev Event) {
	if l == nil || l.log == nil {
		return
	}
	fields := []any{
		"kind", string(ev.Kind),
		"actor", ev.Actor,
		"subject", ev.SubjectID,
		"tenant", ev.TenantID,
		"outcome", ev.Outcome,
	}
	switch Severity(ev.Kind) {
	case SeverityError:
		l.log.Errorw("security event", fields...)
	case SeverityWarn:
		l.log.Warnw("security event", fields...)
	default:
		l.log.Infow("security event", fields...)
	}

	if l.rdb == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = l.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: l.stream,
			MaxLen: 100000,
			Approx: true,
			Values: map[string]any{
				"ts":      time.Now().UTC().Format(time.RFC3339Nano),
				"kind":    string(ev.Kind),
				"actor":   ev.Actor,
				"subject": ev.SubjectID,
				"tenant":  ev.TenantID,
				"outcome": ev.Outcome,
			},
		}).Err()
	}()
}

// SeverityLevel orders event importance.
type SeverityLevel int

const (
	SeverityInfo SeverityLevel = iota
	SeverityWarn
	SeverityError
)

// Severity maps each kind to its fixed level. Unlisted kinds default to info.
func Severity(k Kind) SeverityLevel {
	switch k {
	case KindLoginFailure, KindRegistrationFailure, KindPasswordChangeFailure,
		KindRateLimitExceeded, KindInvalidToken, KindTokenExpired:
		return SeverityWarn
	case KindUnauthorizedAccess, KindSuspiciousActivity:
		return SeverityError
	default:
		return SeverityInfo
	}
}
