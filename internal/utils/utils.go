package utils

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gi8lino/relbot/internal/jira"
)

// ObfuscateHeader masks an Authorization header value for logging. The scheme and
// the first and last two characters of the credential stay visible, the rest is
// replaced with '*' so the length is preserved.
// Example: "Basic cm*********Q=" or "Bearer ab******yz"
func ObfuscateHeader(auth string) string {
	if auth == "" {
		return ""
	}

	scheme, token, ok := strings.Cut(auth, " ")
	if !ok {
		return "[invalid header]"
	}
	token = strings.TrimSpace(token)

	n := len(token)
	if n <= 4 {
		return scheme + " " + strings.Repeat("*", n)
	}
	return scheme + " " + token[:2] + strings.Repeat("*", n-4) + token[n-2:]
}

// GetAuthorizationHeader returns the Authorization header authFunc would send.
func GetAuthorizationHeader(authFunc jira.AuthFunc) string {
	req, _ := http.NewRequest(http.MethodGet, "https://jira.invalid", nil)
	authFunc(req)
	return req.Header.Get("Authorization")
}

// NormalizeRoutePrefix returns "" or "/prefix" from input, accepting raw paths or full URLs.
func NormalizeRoutePrefix(input string) string {
	s := strings.TrimSpace(input)
	if strings.Contains(s, "://") {
		if u, err := url.Parse(s); err == nil {
			s = u.Path
		}
	}
	s = strings.Trim(strings.TrimSpace(s), "/")
	if s == "" {
		return ""
	}
	return "/" + s
}
