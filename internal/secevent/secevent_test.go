package secevent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"go.uber.org/zap/zapcore"
)

func TestSeverityIsFixedPerKind(t *testing.T) {
	tests := []struct {
		kind Kind
		want SeverityLevel
	}{
		{KindLoginSuccess, SeverityInfo},
		{KindRegistrationSuccess, SeverityInfo},
		{KindPasswordResetRequested, SeverityInfo},
		{KindPasswordResetSucceeded, SeverityInfo},
		{KindPasswordChangeSuccess, SeverityInfo},
		{KindTokenRefreshed, SeverityInfo},
		{KindLoginFailure, SeverityWarn},
		{KindRegistrationFailure, SeverityWarn},
		{KindPasswordChangeFailure, SeverityWarn},
		{KindRateLimitExceeded, SeverityWarn},
		{KindInvalidToken, SeverityWarn},
		{KindTokenExpired, SeverityWarn},
		{KindUnauthorizedAccess, SeverityError},
		{KindSuspiciousActivity, SeverityError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Severity(tt.kind), string(tt.kind))
	}
}

func TestRecordWritesAtMappedLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := New(zap.New(core).Sugar(), nil, "")

	l.Record(context.Background(), Event{Kind: KindLoginSuccess, Actor: "203.0.113.7", SubjectID: "u-1", TenantID: "t-shop9", Outcome: "ok"})
	l.Record(context.Background(), Event{Kind: KindRateLimitExceeded, Actor: "203.0.113.7", Outcome: "login throttled"})
	l.Record(context.Background(), Event{Kind: KindSuspiciousActivity, SubjectID: "u-1", Outcome: "refresh token replayed"})

	entries := logs.All()
	assert.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestRecordNeverFailsCaller(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() {
		l.Record(context.Background(), Event{Kind: KindLoginFailure})
	})

	empty := New(nil, nil, "")
	assert.NotPanics(t, func() {
		empty.Record(context.Background(), Event{Kind: KindLoginFailure})
	})
}
