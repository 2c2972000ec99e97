package server

import "net/http"

// mountUnderPrefix mounts h under the given route prefix, adding a redirect from bare prefix → prefix/.
// prefix must already be normalized to "" or "/path".
func mountUnderPrefix(h http.Handler, prefix string) http.Handler {
	if prefix == "" {
		return h
	}
	mux := http.NewServeMux()

	// The pattern ends with a slash, so ServeMux redirects the bare prefix to prefix/.
	// Paths outside the prefix are not served.
	mux.Handle(prefix+"/", http.StripPrefix(prefix, h))
	return mux
}
