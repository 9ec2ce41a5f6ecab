package oauth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"
)

const testClientID = "client-123.apps.googleusercontent.com"

func newTestKeys(t *testing.T) (*rsa.PrivateKey, *keyfunc.JWKS) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	raw, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "test-key",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	jwks, err := keyfunc.NewJSON(raw)
	if err != nil {
		t.Fatalf("keyfunc.NewJSON: %v", err)
	}
	return key, jwks
}

func signIDToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"iss":            "https://accounts.google.com",
		"aud":            testClientID,
		"sub":            "google-sub-1",
		"email":          "Avery@Example.com",
		"email_verified": true,
		"name":           "Avery Quinn",
		"picture":        "https://lh3.googleusercontent.com/a/avatar",
		"iat":            time.Now().Unix(),
		"exp":            time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifyIDToken(t *testing.T) {
	key, jwks := newTestKeys(t)
	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret"}, jwks)

	identity, err := p.VerifyIDToken(context.Background(), signIDToken(t, key, validClaims()))
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}
	if identity.Subject != "google-sub-1" || identity.Email != "avery@example.com" || !identity.EmailVerified {
		t.Fatalf("unexpected identity: %+v", identity)
	}
	if identity.Name != "Avery Quinn" || identity.Picture == "" {
		t.Fatalf("profile fields missing: %+v", identity)
	}
}

func TestVerifyIDTokenRejects(t *testing.T) {
	key, jwks := newTestKeys(t)
	otherKey, _ := newTestKeys(t)
	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret"}, jwks)

	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		signer *rsa.PrivateKey
	}{
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() }},
		{name: "wrong audience", mutate: func(c jwt.MapClaims) { c["aud"] = "someone-else" }},
		{name: "wrong issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil.example.com" }},
		{name: "missing subject", mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
		{name: "foreign signature", mutate: func(jwt.MapClaims) {}, signer: otherKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			signer := key
			if tt.signer != nil {
				signer = tt.signer
			}
			_, err := p.VerifyIDToken(context.Background(), signIDToken(t, signer, claims))
			if !errors.Is(err, ErrInvalidIDToken) {
				t.Fatalf("expected ErrInvalidIDToken, got %v", err)
			}
		})
	}
}

func TestStringEmailVerifiedClaim(t *testing.T) {
	key, jwks := newTestKeys(t)
	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret"}, jwks)
	claims := validClaims()
	claims["iss"] = "accounts.google.com"
	claims["email_verified"] = "true"

	identity, err := p.VerifyIDToken(context.Background(), signIDToken(t, key, claims))
	if err != nil {
		t.Fatalf("VerifyIDToken() error = %v", err)
	}
	if !identity.EmailVerified {
		t.Fatal("string email_verified should count as verified")
	}
}

func TestAuthURLCarriesStateAndScopes(t *testing.T) {
	_, jwks := newTestKeys(t)
	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret", RedirectURL: "http://localhost:5173/auth/google/callback"}, jwks)

	u, err := url.Parse(p.AuthURL("state-abc"))
	if err != nil {
		t.Fatalf("parse auth url: %v", err)
	}
	q := u.Query()
	if u.Host != "accounts.google.com" {
		t.Fatalf("host = %q", u.Host)
	}
	if q.Get("state") != "state-abc" || q.Get("client_id") != testClientID {
		t.Fatalf("unexpected query: %v", q)
	}
	if q.Get("scope") != "openid email profile" {
		t.Fatalf("scope = %q", q.Get("scope"))
	}
	if q.Get("response_type") != "code" {
		t.Fatalf("response_type = %q", q.Get("response_type"))
	}
}

func TestExchange(t *testing.T) {
	key, jwks := newTestKeys(t)
	idToken := signIDToken(t, key, validClaims())

	var gotCode string
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotCode = r.PostForm.Get("code")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "ya29.test",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     idToken,
		})
	}))
	defer tokenServer.Close()

	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret", TokenURL: tokenServer.URL}, jwks)
	identity, err := p.Exchange(context.Background(), "auth-code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if gotCode != "auth-code-1" {
		t.Fatalf("token endpoint received code %q", gotCode)
	}
	if identity.Subject != "google-sub-1" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestExchangeWithoutIDToken(t *testing.T) {
	_, jwks := newTestKeys(t)
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"ya29.test","token_type":"Bearer"}`))
	}))
	defer tokenServer.Close()

	p := NewProvider(Config{ClientID: testClientID, ClientSecret: "secret", TokenURL: tokenServer.URL}, jwks)
	if _, err := p.Exchange(context.Background(), "code"); !errors.Is(err, ErrMissingIDToken) {
		t.Fatalf("expected ErrMissingIDToken, got %v", err)
	}
}

func TestNewGoogleProviderRequiresCredentials(t *testing.T) {
	if _, err := NewGoogleProvider(context.Background(), Config{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
