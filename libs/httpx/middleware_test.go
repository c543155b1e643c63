package httpx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var seen []string
	tag := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		seen = append(seen, "handler")
	}), tag("outer"), tag("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	want := "outer inner handler"
	if got := strings.Join(seen, " "); got != want {
		t.Fatalf("execution order %q, want %q", got, want)
	}
}

func TestWithBodyLimit(t *testing.T) {
	var readErr error
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}), WithBodyLimit(4))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("over the limit"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := readErr.(*http.MaxBytesError); !ok {
		t.Fatalf("got %v, want MaxBytesError", readErr)
	}
}
