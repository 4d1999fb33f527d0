package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Routes groups the handlers mounted by NewRouter
type Routes struct {
	App   *AppHandler
	Users *UserHandler
	Files *FileHandler
	Write *WriteHandler
	Read  *ReadHandler
}

// NewRouter mounts every endpoint; each one except /health is traced
func NewRouter(rt Routes, log logrus.FieldLogger) *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogger(log))

	// Health check endpoint (no tracing needed)
	router.HandleFunc("/health", Health).Methods(http.MethodGet)

	handle := func(method, path string, h http.Handler) {
		router.Handle(path, otelhttp.NewHandler(h, method+" "+path)).Methods(method)
	}

	handle(http.MethodGet, "/status", http.HandlerFunc(rt.App.Status))
	handle(http.MethodGet, "/stats", http.HandlerFunc(rt.App.Stats))

	handle(http.MethodPost, "/users", http.HandlerFunc(rt.Users.SignUp))
	handle(http.MethodGet, "/users/me", http.HandlerFunc(rt.Users.Me))
	handle(http.MethodGet, "/connect", http.HandlerFunc(rt.Users.Connect))
	handle(http.MethodGet, "/disconnect", http.HandlerFunc(rt.Users.Disconnect))

	handle(http.MethodPost, "/files", rt.Write)
	handle(http.MethodGet, "/files", http.HandlerFunc(rt.Files.List))
	handle(http.MethodGet, "/files/{id}", http.HandlerFunc(rt.Files.Get))
	handle(http.MethodPut, "/files/{id}/publish", http.HandlerFunc(rt.Files.Publish))
	handle(http.MethodPut, "/files/{id}/unpublish", http.HandlerFunc(rt.Files.Unpublish))
	handle(http.MethodGet, "/files/{id}/data", rt.Read)

	return router
}

// statusRecorder remembers the status and forwards only the first
// WriteHeader, since instrumentation wrappers may call it again
type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.wroteHeader {
		return
	}
	sr.wroteHeader = true
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wroteHeader {
		sr.WriteHeader(http.StatusOK)
	}
	return sr.ResponseWriter.Write(b)
}

func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rec.status,
				"duration_ms": time.Since(start).Milliseconds(),
			}).Debug("Request handled")
		})
	}
}
