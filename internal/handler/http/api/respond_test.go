package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/policy"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.NotFound("order not found"), http.StatusNotFound},
		{domain.Validation("bad"), http.StatusBadRequest},
		{domain.NewError(domain.ErrProductUnavailable, "inactive"), http.StatusConflict},
		{domain.NewError(domain.ErrOutOfStock, "gone"), http.StatusConflict},
		{domain.NewError(domain.ErrPaymentFailed, "declined"), http.StatusPaymentRequired},
		{domain.Transient("down", errors.New("eof")), http.StatusServiceUnavailable},
		{domain.NewError(domain.ErrPermissionDenied, "admins only"), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", domain.ErrNotFound), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, zap.NewNop(), domain.NewError(domain.ErrOutOfStock, "Livro is out of stock"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.JSONEq(t, `{"error":"Livro is out of stock"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	WriteError(rec, zap.NewNop(), errors.New("pq: relation does not exist"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestWithActorAndRequireUser(t *testing.T) {
	var seen policy.Actor
	h := WithActor(RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = policy.ActorFrom(r.Context())
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	req.Header.Set(HeaderUserID, "user-1")
	req.Header.Set(HeaderUserEmail, "ana@example.com")
	req.Header.Set(HeaderUserRole, "ADMIN")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, policy.Actor{UserID: "user-1", Email: "ana@example.com", Role: policy.RoleAdmin}, seen)
}
