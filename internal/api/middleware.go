package api

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"timesheet/internal/logging"

	"golang.org/x/text/language"
)

type localeKey struct{}

// LocaleFromContext returns the language negotiated for the request.
func LocaleFromContext(ctx context.Context) language.Tag {
	if tag, ok := ctx.Value(localeKey{}).(language.Tag); ok {
		return tag
	}
	return language.AmericanEnglish
}

// withLocale matches Accept-Language against the supported tags. The first
// tag is the fallback.
func withLocale(tags []language.Tag) func(http.Handler) http.Handler {
	matcher := language.NewMatcher(tags)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tag := tags[0]
			if accept, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language")); err == nil && len(accept) > 0 {
				_, index, confidence := matcher.Match(accept...)
				if confidence != language.No {
					tag = tags[index]
				}
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), localeKey{}, tag)))
		})
	}
}

// cors allows the configured origins. A single "*" allows any origin.
func cors(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowed["*"] || allowed[origin]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, Accept-Language")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Logger.Infof("Event ID: HTTP_REQUEST, Description: %s %s -> %d in %s", r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

// recoverPanics turns a panicking handler into a 500 response.
func recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logging.Logger.Errorf("Event ID: HTTP_PANIC, Description: Panic serving %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				http.Error(w, "Internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
