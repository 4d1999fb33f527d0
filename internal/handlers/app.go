package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/maneesh/filesmanager/internal/queue"
	"github.com/sirupsen/logrus"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Counter reports record totals
type Counter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountFiles(ctx context.Context) (int64, error)
}

// QueueStats reports job queue depths
type QueueStats interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

// AppHandler serves status and stats
type AppHandler struct {
	redis Pinger
	db    Pinger
	stats Counter
	jobs  QueueStats
	log   logrus.FieldLogger
}

// NewAppHandler creates a new app handler
func NewAppHandler(redis, db Pinger, stats Counter, jobs QueueStats, log logrus.FieldLogger) *AppHandler {
	return &AppHandler{redis: redis, db: db, stats: stats, jobs: jobs, log: log}
}

type statsResponse struct {
	Users int64       `json:"users"`
	Files int64       `json:"files"`
	Queue queue.Stats `json:"queue"`
}

// Status handles GET /status
func (ah *AppHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeJSON(w, http.StatusOK, map[string]bool{
		"redis": ah.redis.Ping(ctx) == nil,
		"db":    ah.db.Ping(ctx) == nil,
	})
}

// Stats handles GET /stats
func (ah *AppHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "stats")
	defer span.End()

	usersTotal, err := ah.stats.CountUsers(ctx)
	if err != nil {
		writeError(w, ah.log, err)
		return
	}
	filesTotal, err := ah.stats.CountFiles(ctx)
	if err != nil {
		writeError(w, ah.log, err)
		return
	}
	depths, err := ah.jobs.Stats(ctx)
	if err != nil {
		writeError(w, ah.log, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Users: usersTotal, Files: filesTotal, Queue: depths})
}

// Health handles GET /health
func Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
