package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hstoff/storefront/internal/models"
)

type stubAuthService struct {
	login func(ctx context.Context, username, password string) (string, error)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, error) {
	return s.login(ctx, username, password)
}

func TestLoginHandler(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		login      func(ctx context.Context, username, password string) (string, error)
		wantStatus int
		wantInBody string
	}{
		{
			name: "authenticated",
			body: `{"username": "admin", "password": "s3cret"}`,
			login: func(ctx context.Context, username, password string) (string, error) {
				return "signed-token", nil
			},
			wantStatus: http.StatusOK,
			wantInBody: `"token":"signed-token"`,
		},
		{
			name: "invalid_credentials",
			body: `{"username": "admin", "password": "wrong"}`,
			login: func(ctx context.Context, username, password string) (string, error) {
				return "", models.ErrInvalidCredentials
			},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "malformed_json",
			body:       `{"username":`,
			login:      nil,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ah := NewAuthHandler(&stubAuthService{login: tt.login})

			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			ah.Login()(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantInBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantInBody)
			}
		})
	}
}
