// Package auth provides JWT verification for operator endpoints.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ModeOff  = "off"
	ModeHMAC = "hmac"
)

var (
	ErrMissingToken = errors.New("auth: missing bearer token")
	ErrForbidden    = errors.New("auth: admin role required")
)

// Verifier validates HS256 JWTs and extracts the subject and role claims.
// In ModeOff every caller is treated as an admin.
type Verifier struct {
	Mode       string
	HMACSecret []byte
	RoleClaim  string
	now        func() time.Time
}

type Principal struct {
	Subject string
	Role    string
}

func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// NewVerifier returns a verifier for mode ("" means off). hmac mode needs a
// secret.
func NewVerifier(mode, secret string) (*Verifier, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = ModeOff
	}
	switch mode {
	case ModeOff:
	case ModeHMAC:
		if secret == "" {
			return nil, errors.New("auth: hmac mode needs a secret")
		}
	default:
		return nil, fmt.Errorf("auth: unsupported mode %q", mode)
	}
	return &Verifier{Mode: mode, HMACSecret: []byte(secret), RoleClaim: "role", now: time.Now}, nil
}

// Authorize checks an Authorization header value and requires the admin role.
func (v *Verifier) Authorize(header string) (Principal, error) {
	if v == nil || v.Mode == ModeOff {
		return Principal{Subject: "anonymous", Role: "admin"}, nil
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return Principal{}, ErrMissingToken
	}
	p, err := v.Verify(strings.TrimSpace(token))
	if err != nil {
		return Principal{}, err
	}
	if !p.IsAdmin() {
		return p, ErrForbidden
	}
	return p, nil
}

func (v *Verifier) Verify(token string) (Principal, error) {
	// split token
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("auth: invalid JWT")
	}
	headerJSON, err := b64urlDecode(segs[0])
	if err != nil {
		return Principal{}, err
	}
	payloadJSON, err := b64urlDecode(segs[1])
	if err != nil {
		return Principal{}, err
	}
	sig, err := b64urlDecode(segs[2])
	if err != nil {
		return Principal{}, err
	}
	var hdr map[string]any
	if err := json.Unmarshal(headerJSON, &hdr); err != nil {
		return Principal{}, err
	}
	var claims map[string]any
	if err := json.Unmarshal(payloadJSON, &claims); err != nil {
		return Principal{}, err
	}
	if alg, _ := hdr["alg"].(string); alg != "HS256" {
		return Principal{}, errors.New("auth: unsupported alg")
	}
	if !hmac.Equal(Sign(v.HMACSecret, segs[0]+"."+segs[1]), sig) {
		return Principal{}, errors.New("auth: bad signature")
	}
	if exp, ok := claims["exp"].(float64); ok && v.now().Unix() >= int64(exp) {
		return Principal{}, errors.New("auth: token expired")
	}
	sub, _ := claims["sub"].(string)
	role, _ := claims[v.RoleClaim].(string)
	if role == "" {
		role = "user"
	}
	return Principal{Subject: sub, Role: strings.ToLower(role)}, nil
}

// Sign returns the HS256 signature of signingInput.
func Sign(secret []byte, signingInput string) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(signingInput))
	return mac.Sum(nil)
}

// NewToken mints an HS256 token carrying claims; used by operators and tests.
func NewToken(secret []byte, claims map[string]any) (string, error) {
	hdr := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))
	body, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	input := hdr + "." + base64.RawURLEncoding.EncodeToString(body)
	return input + "." + base64.RawURLEncoding.EncodeToString(Sign(secret, input)), nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
