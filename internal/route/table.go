package route

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

// Entry binds a method and compiled pattern to a handler.
type Entry struct {
	Method  string
	Pattern *Pattern
	Handler http.HandlerFunc
}

// Table is an ordered, read-only list of entries. The first entry whose
// pattern and method both match serves the request.
type Table []Entry

type paramsKey struct{}

func (t Table) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()

	var allowed []string
	for _, e := range t {
		params, ok := e.Pattern.Match(path)
		if !ok {
			continue
		}
		if e.Method != r.Method {
			allowed = append(allowed, e.Method)
			continue
		}
		e.Handler(w, withParams(r, params))
		return
	}

	if len(allowed) > 0 {
		sort.Strings(allowed)
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	http.NotFound(w, r)
}

// Param returns a captured path parameter, or "" when absent.
func Param(r *http.Request, name string) string {
	params, _ := r.Context().Value(paramsKey{}).(map[string]string)
	return params[name]
}

func withParams(r *http.Request, params map[string]string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), paramsKey{}, params))
}
