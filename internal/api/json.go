package api

import (
	"encoding/json"
	"net/http"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// Problem type URIs clients can branch on without parsing titles.
const (
	problemGeneric        = "about:blank"
	problemNoCandidates   = "problem/no-candidates"
	problemPlanNotPending = "problem/plan-not-pending"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemKind(w, status, problemGeneric, title, detail, instance)
}

func writeProblemKind(w http.ResponseWriter, status int, typ, title, detail, instance string) {
	writeJSON(w, status, Problem{
		Type:     typ,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: instance,
	})
}
