package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/cookbook/internal/auth"
	"github.com/MarcoPoloResearchLab/cookbook/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const (
	testSigningSecret = "test-signing-secret"
	testCookieName    = "cookbook_session"
)

func newTestValidator(t *testing.T) *auth.SessionValidator {
	t.Helper()
	validator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to construct validator: %v", err)
	}
	return validator
}

func sessionTestContext(cookieValue string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/recipes", http.NoBody)
	if cookieValue != "" {
		request.AddCookie(&http.Cookie{Name: testCookieName, Value: cookieValue})
	}
	ctx.Request = request
	return ctx, recorder
}

func TestAttachSessionLogsExpiredTokenAtInfoLevel(t *testing.T) {
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{
		SigningSecret: []byte(testSigningSecret),
		TokenTTL:      time.Minute,
		Clock: func() time.Time {
			return time.Now().Add(-time.Hour)
		},
	})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	token, _, err := issuer.Issue(context.Background(), "alice", nil, users.SessionContext{})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	ctx, _ := sessionTestContext(token)

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{validator: newTestValidator(t), logger: zap.New(core)}

	handler.attachSession(ctx)

	if actorFrom(ctx).Authenticated() {
		t.Fatalf("expected expired session to leave the caller anonymous")
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAttachSessionLogsInvalidTokenAtWarnLevel(t *testing.T) {
	ctx, _ := sessionTestContext("not-a-token")

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{validator: newTestValidator(t), logger: zap.New(core)}

	handler.attachSession(ctx)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for invalid token, got %s", entries[0].Level)
	}
	if entries[0].Message != "session validation failed" {
		t.Fatalf("unexpected log message: %q", entries[0].Message)
	}
}

func TestAttachSessionIgnoresMissingCookie(t *testing.T) {
	ctx, _ := sessionTestContext("")

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{validator: newTestValidator(t), logger: zap.New(core)}

	handler.attachSession(ctx)

	if logs.Len() != 0 {
		t.Fatalf("expected no log entries for anonymous callers, got %d", logs.Len())
	}
	if actorFrom(ctx).Authenticated() {
		t.Fatalf("expected anonymous caller")
	}
}

func TestAttachSessionInstallsClaims(t *testing.T) {
	issuer, err := auth.NewSessionIssuer(auth.SessionIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to construct issuer: %v", err)
	}
	session := users.SessionContext{Preferences: "Vegan", Exclusions: "Nuts"}
	token, _, err := issuer.Issue(context.Background(), "Admin", []string{auth.RoleAdmin}, session)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	ctx, _ := sessionTestContext(token)
	handler := &httpHandler{validator: newTestValidator(t), logger: zap.NewNop()}

	handler.attachSession(ctx)

	actor := actorFrom(ctx)
	if actor.Username != "Admin" || !actor.IsAdmin() {
		t.Fatalf("unexpected actor: %+v", actor)
	}
	if got := sessionFrom(ctx); got != session {
		t.Fatalf("unexpected session context: %+v", got)
	}
}

func TestRequireSessionRejectsAnonymous(t *testing.T) {
	ctx, recorder := sessionTestContext("")
	handler := &httpHandler{logger: zap.NewNop()}

	handler.requireSession(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	if !ctx.IsAborted() {
		t.Fatalf("expected the request to be aborted")
	}
}
