package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"

	"github.com/ndolgov/bankcards/internal/errs"
	"github.com/ndolgov/bankcards/internal/model"
	"github.com/ndolgov/bankcards/internal/service"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func mintToken(t *testing.T, userID uuid.UUID, role model.Role, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	claims := service.AccessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testKey)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestWriteError_StatusMapping(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want int
	}{
		{errs.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("source card: %w", errs.ErrNotFound), http.StatusNotFound},
		{errs.ErrForbidden, http.StatusForbidden},
		{errs.ErrUnauthenticated, http.StatusUnauthorized},
		{errs.ErrRateLimited, http.StatusTooManyRequests},
		{errs.ErrAlreadyExists, http.StatusConflict},
		{errs.ErrConflict, http.StatusConflict},
		{errs.ErrInvalidState, http.StatusBadRequest},
		{errs.ErrInvalidAmount, http.StatusBadRequest},
		{errs.ErrInsufficientFunds, http.StatusBadRequest},
		{errs.ErrInvalidOperation, http.StatusBadRequest},
		{errors.New("database on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%v: status = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestWriteError_InternalErrorIsOpaque(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	writeError(rec, errors.New("pq: connection refused host=10.1.2.3"))
	if rec.Body.String() != `{"error":"internal error"}`+"\n" {
		t.Fatalf("internal details leaked: %s", rec.Body.String())
	}
}

func TestAuthenticate(t *testing.T) {
	t.Parallel()
	s := &Server{signKey: testKey}
	userID := uuid.Must(uuid.NewV4())

	var gotActor model.Actor
	h := s.authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor, _ = ActorFromCtx(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// valid token
	req := httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, userID, model.RoleAdmin, 10*time.Minute))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("valid token: status = %d", rec.Code)
	}
	if gotActor.ID != userID || !gotActor.IsAdmin() {
		t.Fatalf("actor = %+v", gotActor)
	}

	// missing header
	req = httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing header: status = %d", rec.Code)
	}

	// expired beyond leeway
	req = httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.Header.Set("Authorization", "Bearer "+mintToken(t, userID, model.RoleUser, -5*time.Minute))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token: status = %d", rec.Code)
	}

	// signed with another key
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("another-key-another-key-another!"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("forged token: status = %d", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer abc.def.ghi")
	tok, err := bearerToken(req)
	if err != nil || tok != "abc.def.ghi" {
		t.Fatalf("tok=%q err=%v", tok, err)
	}

	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	if _, err := bearerToken(req); err == nil {
		t.Fatalf("basic auth must be rejected")
	}

	req.Header.Set("Authorization", "Bearer ")
	if _, err := bearerToken(req); err == nil {
		t.Fatalf("empty token must be rejected")
	}
}

func TestPageFromQuery(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/api/cards?page=2&size=50", nil)
	p := pageFromQuery(req)
	if p.Number != 2 || p.Size != 50 {
		t.Fatalf("p = %+v", p)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/cards", nil)
	p = pageFromQuery(req)
	if p.Number != 0 || p.Size != model.DefaultPageSize {
		t.Fatalf("defaults: p = %+v", p)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/cards?size=100000", nil)
	if p = pageFromQuery(req); p.Size != model.MaxPageSize {
		t.Fatalf("size not clamped: %+v", p)
	}
}

func TestRemoteIP(t *testing.T) {
	t.Parallel()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	if ip := remoteIP(req); ip != "10.1.2.3" {
		t.Fatalf("ip = %q", ip)
	}
	req.RemoteAddr = "10.1.2.3"
	if ip := remoteIP(req); ip != "10.1.2.3" {
		t.Fatalf("portless ip = %q", ip)
	}
}
