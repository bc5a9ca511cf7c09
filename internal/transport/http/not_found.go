package http

import "net/http"

// NotFoundHandler returns a JSON 404 naming the unmatched route. A known path
// requested with the wrong method also lands here.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loggerFrom(r.Context()).DebugContext(r.Context(), "no route", "method", r.Method, "path", r.URL.Path)
		writeError(w, http.StatusNotFound, codeNotFound, "no route for "+r.Method+" "+r.URL.Path)
	})
}
