package passhash

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func testManager(t *testing.T, ttl time.Duration) *JWTManager {
	t.Helper()
	return NewJWTManager(&JWTConfig{
		SecretKey:          "unit-test-secret",
		AccessTokenExpiry:  ttl,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "routeopt-auth",
	})
}

func TestJWTManager_IssueAndValidate(t *testing.T) {
	m := testManager(t, time.Hour)

	token, err := m.GenerateAccessToken("user-7", "dispatcher", "admin")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if strings.Count(token, ".") != 2 {
		t.Fatalf("token is not a JWT: %s", token)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "user-7" {
		t.Errorf("user id = %q", claims.UserID)
	}
	if claims.Username != "dispatcher" {
		t.Errorf("username = %q", claims.Username)
	}
	if claims.Role != "admin" {
		t.Errorf("role = %q", claims.Role)
	}
	if claims.Issuer != "routeopt-auth" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
	if claims.Subject != "user-7" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestJWTManager_RejectsGarbage(t *testing.T) {
	m := NewJWTManager(nil)

	if _, err := m.ValidateToken("not-a-token"); err == nil {
		t.Error("garbage token must be rejected")
	}
	if _, err := m.ValidateToken(""); err == nil {
		t.Error("empty token must be rejected")
	}
}

func TestJWTManager_RejectsExpired(t *testing.T) {
	m := testManager(t, -time.Minute)

	token, err := m.GenerateAccessToken("user-7", "dispatcher", "user")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := m.ValidateToken(token); err == nil {
		t.Error("expired token must be rejected")
	}
}

func TestJWTManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewJWTManager(&JWTConfig{SecretKey: "secret-a", AccessTokenExpiry: time.Hour})
	verifier := NewJWTManager(&JWTConfig{SecretKey: "secret-b", AccessTokenExpiry: time.Hour})

	token, err := issuer.GenerateAccessToken("u", "n", "r")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("token signed with a different secret must be rejected")
	}
}

func TestJWTManager_RejectsWrongIssuer(t *testing.T) {
	issuer := NewJWTManager(&JWTConfig{
		SecretKey:         "unit-test-secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "someone-else",
	})
	verifier := testManager(t, time.Hour)

	token, err := issuer.GenerateAccessToken("u", "n", "r")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}

	if _, err := verifier.ValidateToken(token); err == nil {
		t.Error("token with a foreign issuer must be rejected")
	}
}

func TestJWTManager_RejectsUnsignedAlgorithm(t *testing.T) {
	m := testManager(t, time.Hour)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: "u"})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}

	if _, err := m.ValidateToken(token); err == nil {
		t.Error("alg=none token must be rejected")
	}
}

func TestJWTManager_RefreshFlow(t *testing.T) {
	m := testManager(t, time.Hour)

	refresh, err := m.GenerateRefreshToken("user-9", "planner", "user")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	access, claims, err := m.RefreshAccessToken(refresh)
	if err != nil {
		t.Fatalf("RefreshAccessToken: %v", err)
	}
	if claims.UserID != "user-9" || claims.Role != "user" {
		t.Errorf("refreshed claims = %+v", claims)
	}

	got, err := m.ValidateToken(access)
	if err != nil {
		t.Fatalf("new access token must validate: %v", err)
	}
	if got.Username != "planner" {
		t.Errorf("username = %q", got.Username)
	}
}

func TestJWTManager_RefreshRejectsInvalidToken(t *testing.T) {
	m := NewJWTManager(nil)

	if _, _, err := m.RefreshAccessToken("broken"); err == nil {
		t.Error("refresh with an invalid token must fail")
	}
}

func TestNewJWTManager_NilConfigUsesDefaults(t *testing.T) {
	m := NewJWTManager(nil)

	token, err := m.GenerateAccessToken("u", "n", "r")
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Issuer != "routeopt-auth" {
		t.Errorf("default issuer = %q", claims.Issuer)
	}
}
