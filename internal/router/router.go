package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/personality"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/prediction"
	"github.com/ovaphlow/pitchfork/service-persona-ai/internal/user"
	"github.com/ovaphlow/pitchfork/service-persona-ai/pkg/utilities"
)

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// LoggingMiddleware logs every request at debug level, or at warn for 5xx,
// tagged with a request id echoed back in X-Request-ID.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = utilities.NewSnowflakeID()
			}
			w.Header().Set("X-Request-ID", reqID)

			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			log := logger.Debugw
			if status >= http.StatusInternalServerError {
				log = logger.Warnw
			}
			log("http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware sets common HTTP security headers. The camera
// stays available to our own pages for the capture screen.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(self), microphone=(), geolocation=()")

			// captured stills are shown back as data: URLs
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; img-src 'self' data: blob:; object-src 'none'; base-uri 'self';")
			}

			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Auth serves the login round trip.
type Auth interface {
	Login(w http.ResponseWriter, r *http.Request)
	Callback(w http.ResponseWriter, r *http.Request)
	Logout(w http.ResponseWriter, r *http.Request)
}

// Guard wraps handlers that need a session.
type Guard interface {
	API(next http.Handler) http.Handler
	Page(next http.Handler) http.Handler
}

type Deps struct {
	Auth        Auth
	Guard       Guard
	Users       *user.Handler
	Predictions *prediction.Handler
	Analyses    *personality.Handler
	// StaticDir holds the browser client served under /app/. Empty disables it.
	StaticDir string
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/login", d.Auth.Login)
	mux.HandleFunc("GET /api/callback", d.Auth.Callback)
	mux.HandleFunc("GET /api/logout", d.Auth.Logout)

	api := func(h http.HandlerFunc) http.Handler { return d.Guard.API(h) }
	mux.Handle("GET /api/auth/user", api(d.Users.Current))

	mux.Handle("POST /api/predict-age", api(d.Predictions.Create))
	mux.Handle("GET /api/predictions", api(d.Predictions.Index))
	mux.Handle("GET /api/predictions/{id}", api(d.Predictions.Show))

	mux.Handle("POST /api/analyze-personality", api(d.Analyses.Create))
	mux.Handle("GET /api/analyses", api(d.Analyses.Index))
	mux.Handle("GET /api/analyses/{id}", api(d.Analyses.Show))

	// the login callback lands on /
	home := "/api/auth/user"
	if d.StaticDir != "" {
		files := http.StripPrefix("/app", http.FileServer(http.Dir(d.StaticDir)))
		mux.Handle("GET /app/", d.Guard.Page(files))
		home = "/app/"
	}
	mux.Handle("GET /{$}", http.RedirectHandler(home, http.StatusFound))

	// wrap with security headers middleware then logging middleware
	return LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux))
}
