package credential

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func newTokenServer(t *testing.T, handler func(w http.ResponseWriter, form url.Values)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm() error: %v", err)
		}
		handler(w, r.PostForm)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func testProvider(tokenURL string) *OAuthProvider {
	return NewOAuthProvider(ProviderOptions{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:5000/oauth2callback",
		Endpoint: oauth2.Endpoint{
			AuthURL:   "https://accounts.example.com/o/oauth2/auth",
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		Timeout: 5 * time.Second,
	})
}

func TestOAuthProviderAuthCodeURL(t *testing.T) {
	p := testProvider("https://accounts.example.com/token")
	raw := p.AuthCodeURL("state-123")

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("AuthCodeURL() not a URL: %v", err)
	}
	q := u.Query()
	checks := map[string]string{
		"state":         "state-123",
		"access_type":   "offline",
		"prompt":        "consent",
		"client_id":     "client-id",
		"scope":         UploadScope,
		"redirect_uri":  "http://localhost:5000/oauth2callback",
		"response_type": "code",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("%s = %q, want %q", key, got, want)
		}
	}
}

func TestOAuthProviderExchange(t *testing.T) {
	server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
		if form.Get("grant_type") != "authorization_code" || form.Get("code") != "good-code" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "access-1",
			"refresh_token": "refresh-1",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"scope":         UploadScope,
		})
	})

	m := NewManager(ManagerOptions{Store: &memStore{}, Provider: testProvider(server.URL)})

	cred, err := m.Exchange(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("Exchange() error: %v", err)
	}
	if cred.AccessToken != "access-1" || cred.RefreshToken != "refresh-1" {
		t.Errorf("tokens = %q/%q, want access-1/refresh-1", cred.AccessToken, cred.RefreshToken)
	}
	if len(cred.Scopes) != 1 || cred.Scopes[0] != UploadScope {
		t.Errorf("Scopes = %v, want [%s]", cred.Scopes, UploadScope)
	}
	if time.Until(cred.Expiry) < 50*time.Minute {
		t.Errorf("Expiry = %v, want about an hour from now", cred.Expiry)
	}

	if _, err := m.Exchange(context.Background(), "bad-code"); err == nil {
		t.Error("Exchange() with bad code should fail")
	}
}

func TestOAuthProviderRefresh(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        map[string]any
		wantExpired bool
		wantErr     bool
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: map[string]any{
				"access_token": "access-2",
				"token_type":   "Bearer",
				"expires_in":   3600,
			},
		},
		{
			name:        "invalidGrant",
			status:      http.StatusBadRequest,
			body:        map[string]any{"error": "invalid_grant", "error_description": "Token has been expired or revoked."},
			wantExpired: true,
			wantErr:     true,
		},
		{
			name:    "serverError",
			status:  http.StatusInternalServerError,
			body:    map[string]any{"error": "internal_failure"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := newTokenServer(t, func(w http.ResponseWriter, form url.Values) {
				calls.Add(1)
				if form.Get("grant_type") != "refresh_token" {
					t.Errorf("grant_type = %q, want refresh_token", form.Get("grant_type"))
				}
				if form.Get("refresh_token") != "refresh-1" {
					t.Errorf("refresh_token = %q, want refresh-1", form.Get("refresh_token"))
				}
				writeJSON(w, tt.status, tt.body)
			})

			tok, err := testProvider(server.URL).RefreshToken(context.Background(), "refresh-1")
			if calls.Load() != 1 {
				t.Errorf("token endpoint calls = %d, want 1", calls.Load())
			}
			if tt.wantErr {
				if err == nil {
					t.Fatal("RefreshToken() should fail")
				}
				if got := refreshRejected(err); got != tt.wantExpired {
					t.Errorf("refreshRejected() = %v, want %v (err: %v)", got, tt.wantExpired, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("RefreshToken() error: %v", err)
			}
			if tok.AccessToken != "access-2" {
				t.Errorf("AccessToken = %q, want access-2", tok.AccessToken)
			}
			if tok.RefreshToken != "refresh-1" {
				t.Errorf("RefreshToken = %q, want the original to be kept", tok.RefreshToken)
			}
		})
	}
}

func TestRefreshRejectedIgnoresOtherErrors(t *testing.T) {
	if refreshRejected(context.DeadlineExceeded) {
		t.Error("deadline should not count as a rejected refresh token")
	}
	if !refreshRejected(&oauth2.RetrieveError{ErrorCode: "invalid_grant"}) {
		t.Error("invalid_grant without response should count as rejected")
	}
	if refreshRejected(&oauth2.RetrieveError{ErrorCode: "temporarily_unavailable"}) {
		t.Error("unknown error code without response should not count as rejected")
	}
}
