package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name   string
		cfg    Config
		path   string
		header string
		want   int
	}{
		{"disabled passes through", Config{Enabled: false}, "/delete-data", "", http.StatusOK},
		{"read route never guarded", Config{Enabled: true, Token: "s3cret"}, "/epochs", "", http.StatusOK},
		{"guarded without token", Config{Enabled: true, Token: "s3cret"}, "/delete-data", "", http.StatusUnauthorized},
		{"guarded with wrong token", Config{Enabled: true, Token: "s3cret"}, "/post-data", "Bearer nope", http.StatusUnauthorized},
		{"guarded without bearer prefix", Config{Enabled: true, Token: "s3cret"}, "/delete-data", "s3cret", http.StatusUnauthorized},
		{"guarded with valid token", Config{Enabled: true, Token: "s3cret"}, "/delete-data", "Bearer s3cret", http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := Middleware(tc.cfg)(ok)
			req := httptest.NewRequest(http.MethodDelete, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.want {
				t.Errorf("%s %s: got status %d, want %d", tc.path, tc.header, rec.Code, tc.want)
			}
		})
	}
}
