package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"taskbroker/internal/domain"
	"taskbroker/internal/ports"
	"taskbroker/internal/usecase"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

const recentLimit = 20

// WorkerMetrics exposes the in-process worker counters; nil when the API
// runs without an embedded worker.
type WorkerMetrics interface {
	ProcessedCount() int64
	FailedCount() int64
}

type Deps struct {
	Producer usecase.Producer
	Store    ports.TaskStore
	Selector ports.BrokerSelector
	Metrics  WorkerMetrics
	Capture  ports.MessageCapture
	List     ports.ListSource
	Queue    string
	Kafka    ports.KafkaInspector
	Redis    ports.RedisInspector
}

type Server struct {
	router   *chi.Mux
	deps     Deps
	validate *validator.Validate

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type submitReq struct {
	Payload string `json:"payload" validate:"notblank,max=4096"`
}

type taskResp struct {
	ID      *int64 `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type statsResp struct {
	usecase.Stats
	ProcessedByWorker int64 `json:"processedByWorker"`
	FailedByWorker    int64 `json:"failedByWorker"`
}

type configReq struct {
	BrokerType *string `json:"brokerType"`
}

func NewServer(deps Deps) *Server {
	v := validator.New()
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})

	s := &Server{
		router:          chi.NewRouter(),
		deps:            deps,
		validate:        v,
		ReadTimeout:     60 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}

	r := s.router
	r.Route("/api/tasks", func(r chi.Router) {
		r.Post("/", s.submitTask)
		r.Get("/stats", s.stats)
		r.Get("/recent", s.recent)
		r.Get("/health", s.health)
		r.Get("/config", s.getConfig)
		r.Post("/config", s.updateConfig)
		r.Get("/{id}", s.getTask)
	})
	r.Route("/api/inspector", func(r chi.Router) {
		r.Get("/messages", s.messages)
		r.Delete("/messages", s.clearMessages)
		r.Get("/stats", s.captureStats)
		r.Get("/redis", s.redisQueue)
	})
	r.Route("/api/kafka", func(r chi.Router) {
		r.Get("/cluster", s.kafkaCluster)
		r.Get("/topic", s.kafkaTopic)
		r.Get("/topic/{name}", s.kafkaTopic)
		r.Get("/consumer-group", s.kafkaGroup)
		r.Get("/consumer-group/{groupID}", s.kafkaGroup)
		r.Get("/messages/recent", s.recentMessages)
		r.Delete("/messages", s.clearMessages)
		r.Get("/overview", s.kafkaOverview)
	})
	r.Route("/api/redis", func(r chi.Router) {
		r.Get("/info", s.redisInfo)
		r.Get("/queue", s.redisQueue)
		r.Get("/messages/recent", s.recentMessages)
		r.Get("/overview", s.redisOverview)
	})

	return s
}

// Handler returns the router wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		middleware.Recoverer,
		middleware.RealIP,
		uuidRequestID,
		middleware.RequestID,
		requestLogger,
		accessLogger(func(r *http.Request) bool { return r.URL.Path == "/api/tasks/health" }),
		corsHandler,
	)
}

// Run serves on port until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, port int) error {
	httpServer := http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.Handler(),
		ReadTimeout:  s.ReadTimeout,
		WriteTimeout: s.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("server serving on port %d", port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen and serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("Server is shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, taskResp{Status: "REJECTED", Message: "Invalid request body"})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		msg := "Payload cannot be empty"
		if strings.TrimSpace(req.Payload) != "" {
			msg = fmt.Sprintf("Payload cannot exceed %d characters", domain.MaxPayloadLen)
		}
		writeJSON(w, http.StatusBadRequest, taskResp{Status: "REJECTED", Message: msg})
		return
	}

	t, err := s.deps.Producer.Submit(r.Context(), req.Payload)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidPayload) {
			writeJSON(w, http.StatusBadRequest, taskResp{Status: "REJECTED", Message: err.Error()})
			return
		}
		resp := taskResp{Status: "ERROR", Message: err.Error()}
		if t.ID > 0 {
			// persisted but not handed to a broker
			resp.ID = &t.ID
			resp.Status = string(t.Status)
		}
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	writeJSON(w, http.StatusCreated, taskResp{ID: &t.ID, Status: string(t.Status), Message: "Task submitted successfully"})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := s.deps.Store.FindByID(r.Context(), id)
	if errors.Is(err, domain.ErrTaskNotFound) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Int64("task_id", id).Msg("failed to load task")
		writeError(w, http.StatusInternalServerError, "failed to load task")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Producer.Stats(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to collect stats")
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}

	resp := statsResp{Stats: st}
	if s.deps.Metrics != nil {
		resp.ProcessedByWorker = s.deps.Metrics.ProcessedCount()
		resp.FailedByWorker = s.deps.Metrics.FailedCount()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recent(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.deps.Store.Recent(r.Context(), recentLimit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to list recent tasks")
		writeError(w, http.StatusInternalServerError, "failed to list recent tasks")
		return
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "UP", "service": "taskbroker"})
}

func (s *Server) getConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"brokerType": s.deps.Selector.Get()})
}

func (s *Server) updateConfig(w http.ResponseWriter, r *http.Request) {
	var req configReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BrokerType == nil {
		writeError(w, http.StatusBadRequest, "brokerType is required")
		return
	}
	if err := s.deps.Selector.Set(*req.BrokerType); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	current := s.deps.Selector.Get()
	log.Ctx(r.Context()).Info().Str("broker", current).Msg("active broker switched")
	writeJSON(w, http.StatusOK, map[string]string{"brokerType": current, "message": "Configuration updated"})
}

func (s *Server) messages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Capture == nil {
		writeJSON(w, http.StatusOK, []ports.CapturedMessage{})
		return
	}
	msgs, err := s.deps.Capture.Recent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if msgs == nil {
		msgs = []ports.CapturedMessage{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) clearMessages(w http.ResponseWriter, r *http.Request) {
	if s.deps.Capture != nil {
		if err := s.deps.Capture.Clear(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) captureStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Capture == nil {
		writeJSON(w, http.StatusOK, ports.CaptureStats{})
		return
	}
	st, err := s.deps.Capture.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) redisQueue(w http.ResponseWriter, r *http.Request) {
	if s.deps.List == nil {
		writeError(w, http.StatusServiceUnavailable, "redis queue not configured")
		return
	}
	n, err := s.deps.List.Len(r.Context())
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"queueName": s.deps.Queue, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"queueName": s.deps.Queue, "size": n})
}
