package tokens

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestGenerateAccessToken_VerifiesAndExposesClaims(t *testing.T) {
	secret := "test-secret-32-bytes-should-be-long-enough"
	tokenStr, err := GenerateAccessToken(secret, Subject{ID: "driver-123", Roles: []string{"compliance-reviewer"}}, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}

	tok, err := NewVerifier(secret).Verify(context.Background(), tokenStr)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		t.Fatalf("claims: %v", err)
	}
	if claims["sub"] != "driver-123" {
		t.Fatalf("unexpected sub claim: got=%v", claims["sub"])
	}
	roles, _ := claims["roles"].([]interface{})
	if len(roles) != 1 || roles[0] != "compliance-reviewer" {
		t.Fatalf("unexpected roles: %v", claims["roles"])
	}
}

func TestGenerateAccessToken_EmptySecret(t *testing.T) {
	if _, err := GenerateAccessToken("", Subject{ID: "x"}, time.Minute); err == nil {
		t.Fatalf("expected error for empty secret")
	}
}

func TestVerify_Expired(t *testing.T) {
	secret := "another-secret-32-bytes-longgggg"
	tokenStr, err := GenerateAccessToken(secret, Subject{ID: "u2"}, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if _, err := NewVerifier(secret).Verify(context.Background(), tokenStr); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}

func TestVerify_WrongSecretFails(t *testing.T) {
	tokenStr, err := GenerateAccessToken("secret-one-32-bytes-xxxxxxxxxxxxxxxx", Subject{ID: "u3"}, 2*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	if _, err := NewVerifier("different-secret-xxxxxxxxxxxxxxxx").Verify(context.Background(), tokenStr); err == nil {
		t.Fatalf("expected verify to fail with wrong secret")
	}
}

func TestVerify_Malformed(t *testing.T) {
	if _, err := NewVerifier("x").Verify(context.Background(), "not.a.jwt"); err == nil {
		t.Fatalf("expected verify to fail for malformed token")
	}
}

func seg(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

// Rejected when alg=none (unsigned token)
func TestVerify_AlgNoneRejected(t *testing.T) {
	tok := seg(`{"alg":"none"}`) + "." + seg(`{"sub":"u-none","exp":9999999999}`) + "."
	if _, err := NewVerifier("x").Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected verify to reject alg=none token")
	}
}

// Tokens without exp never pass.
func TestVerify_MissingExpiry(t *testing.T) {
	secret := "no-exp-secret-32-bytes-xxxxxxxxxx"
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u"}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := NewVerifier(secret).Verify(context.Background(), tok); err == nil {
		t.Fatalf("expected token without exp to be rejected")
	}
}

// Tampering with payload must fail signature verification
func TestVerify_TamperedPayload(t *testing.T) {
	secret := "tamper-test-secret-32-bytes-xxxxxxx"
	tokenStr, err := GenerateAccessToken(secret, Subject{ID: "user-t"}, 5*time.Minute)
	if err != nil {
		t.Fatalf("GenerateAccessToken error: %v", err)
	}
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token parts")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	parts[1] = seg(strings.Replace(string(payload), "user-t", "attacker", 1))
	if _, err := NewVerifier(secret).Verify(context.Background(), strings.Join(parts, ".")); err == nil {
		t.Fatalf("expected signature verification to fail for tampered token")
	}
}
