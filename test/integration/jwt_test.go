package integration

import (
	"net/http"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// token signs a JWT for subject with the test identity provider's key.
func token(t *testing.T, subject string, extra jwtlib.MapClaims) string {
	t.Helper()
	claims := jwtlib.MapClaims{
		"iss": jwtIssuer,
		"aud": jwtAudience,
		"sub": subject,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	tok := jwtlib.NewWithClaims(jwtlib.SigningMethodRS256, claims)
	tok.Header["kid"] = jwtKeyID
	signed, err := tok.SignedString(testEnv.SigningKey)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestJWTProtectedFolder(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"no permissions", token(t, "carol", nil), http.StatusForbidden},
		{"permissions claim", token(t, "dave", jwtlib.MapClaims{"permissions": []string{"staff"}}), http.StatusOK},
		{"scope claim", token(t, "erin", jwtlib.MapClaims{"scope": "openid staff"}), http.StatusOK},
		{"editor role", token(t, "frank", jwtlib.MapClaims{"roles": []string{"editor"}}), http.StatusOK},
		{"unknown role", token(t, "grace", jwtlib.MapClaims{"roles": []string{"auditor"}}), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := do(t, http.MethodGet, "/private", tt.token, "", nil)
			readBody(t, resp)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestJWTEditorRolePublishes(t *testing.T) {
	editor := token(t, "frank", jwtlib.MapClaims{"roles": []string{"editor"}})
	viewer := token(t, "dave", jwtlib.MapClaims{"permissions": []string{"staff"}})

	resp := do(t, http.MethodPut, "/docs/jwt-note", viewer, "text/plain", []byte("draft"))
	readBody(t, resp)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("viewer PUT: expected 403, got %d", resp.StatusCode)
	}

	resp = do(t, http.MethodPut, "/docs/jwt-note", editor, "text/plain", []byte("draft"))
	readBody(t, resp)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("editor PUT: expected 201, got %d", resp.StatusCode)
	}

	resp = getURL(t, "/docs/jwt-note")
	if body := readBody(t, resp); body != "draft" {
		t.Errorf("published body = %q, want draft", body)
	}
}

func TestJWTRejectedTokens(t *testing.T) {
	expired := token(t, "dave", jwtlib.MapClaims{"exp": time.Now().Add(-time.Hour).Unix()})
	wrongAudience := token(t, "dave", jwtlib.MapClaims{"aud": "someone-else"})

	for name, tok := range map[string]string{"expired": expired, "wrong audience": wrongAudience} {
		t.Run(name, func(t *testing.T) {
			resp := do(t, http.MethodGet, "/docs", tok, "", nil)
			readBody(t, resp)
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", resp.StatusCode)
			}
		})
	}
}

func TestAPIKeysStillAcceptedNextToJWT(t *testing.T) {
	resp := do(t, http.MethodGet, "/private", editorKey, "", nil)
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("api key: expected 200, got %d", resp.StatusCode)
	}
}
