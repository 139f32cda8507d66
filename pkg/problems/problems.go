package problems

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
)

var publicURL atomic.Value // string

// SetPublicURL records the public URL of the serving process; problem types
// then live under <url>/problems.
func SetPublicURL(u string) { publicURL.Store(strings.TrimRight(u, "/")) }

// Base returns the base URL for problem type identifiers.
// Order of precedence:
// 1. PROBLEM_BASE_URL (exact base, e.g. https://mydomain.com/problems)
// 2. the URL given to SetPublicURL + "/problems"
// 3. https://example.com/problems (fallback)
func Base() string {
	if b := os.Getenv("PROBLEM_BASE_URL"); b != "" {
		return strings.TrimRight(b, "/")
	}
	if u, _ := publicURL.Load().(string); u != "" {
		return u + "/problems"
	}
	return "https://example.com/problems"
}

// Type builds a full problem type URL for the given slug.
func Type(slug string) string { return Base() + "/" + slug }

// Body is the error document returned by the sandbox. Clients read the
// human-readable text from "error".
type Body struct {
	Error string `json:"error"`
	Type  string `json:"type"`
}

// Write sends an error document with the given status.
func Write(w http.ResponseWriter, status int, slug, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Body{Error: msg, Type: Type(slug)})
}
