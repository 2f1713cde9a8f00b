// Package auth provides JWT verification helpers.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// Roles recognized by the API. Admin can do everything; dispatchers run
// allocation and routing; drivers only read their own routes.
const (
	RoleAdmin      = "admin"
	RoleDispatcher = "dispatcher"
	RoleDriver     = "driver"
)

// Verifier validates bearer tokens and extracts role/operator claims.
// Supports modes: dev (no verify) and hmac (HS256).
type Verifier struct {
	Mode          string
	HMACSecret    []byte
	RoleClaim     string
	OperatorClaim string
}

type Principal struct {
	Role       string
	OperatorID string
}

func NewVerifierFromEnv() *Verifier {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv("AUTH_MODE")))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:          mode,
		HMACSecret:    []byte(os.Getenv("AUTH_HMAC_SECRET")),
		RoleClaim:     envOr("AUTH_ROLE_CLAIM", "role"),
		OperatorClaim: envOr("AUTH_OPERATOR_CLAIM", "sub"),
	}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func (v *Verifier) Verify(token string) (Principal, error) {
	if v.Mode == "dev" {
		// token format: role or role:operatorId
		parts := strings.Split(token, ":")
		switch {
		case len(parts) >= 2 && parts[0] != "":
			return Principal{Role: strings.ToLower(parts[0]), OperatorID: parts[1]}, nil
		case len(parts) == 1 && parts[0] != "":
			return Principal{Role: strings.ToLower(parts[0])}, nil
		}
		return Principal{}, errors.New("invalid dev token; expected role[:operatorId]")
	}
	segs := strings.Split(token, ".")
	if len(segs) != 3 {
		return Principal{}, errors.New("invalid JWT")
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
	alg, _ := hdr["alg"].(string)
	signingInput := []byte(segs[0] + "." + segs[1])
	switch v.Mode {
	case "hmac":
		if alg != "HS256" {
			return Principal{}, errors.New("unsupported alg for hmac")
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(signingInput)
		if !hmac.Equal(mac.Sum(nil), sig) {
			return Principal{}, errors.New("bad signature")
		}
	default:
		return Principal{}, errors.New("unsupported auth mode")
	}
	role, _ := claims[v.RoleClaim].(string)
	operator, _ := claims[v.OperatorClaim].(string)
	if role == "" {
		role = RoleDispatcher
	}
	return Principal{Role: strings.ToLower(role), OperatorID: operator}, nil
}

func b64urlDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
