// Package api implements HTTP handlers and helpers for the planning service.
package api

import (
	"net/http"
	"strings"

	"fleetplan/internal/auth"
)

type Principal struct {
	Role       string // admin, dispatcher, driver
	OperatorID string
}

// getPrincipal extracts the caller's role from the JWT or dev headers.
// - If Authorization: Bearer is present, uses the configured verifier.
// - Else falls back to X-Role / X-Operator-Id headers for dev.
func (s *Server) getPrincipal(r *http.Request) Principal {
	authz := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") && s.Auth != nil {
		tok := strings.TrimSpace(authz[len("Bearer "):])
		if pr, err := s.Auth.Verify(tok); err == nil {
			return Principal{Role: pr.Role, OperatorID: pr.OperatorID}
		}
	}
	role := r.Header.Get("X-Role")
	operator := r.Header.Get("X-Operator-Id")
	if role == "" {
		role = auth.RoleAdmin
	}
	return Principal{Role: strings.ToLower(role), OperatorID: operator}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == auth.RoleAdmin }

// CanPlan reports whether the principal may run allocation and routing.
func (p Principal) CanPlan() bool { return p.Role == auth.RoleAdmin || p.Role == auth.RoleDispatcher }
