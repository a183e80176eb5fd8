package api

import (
	"context"
	"net/http"
	"taskbroker/internal/ports"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func sectionOrError[T any](v T, err error) any {
	if err != nil {
		return map[string]string{"status": "ERROR", "error": err.Error()}
	}
	return v
}

func (s *Server) captureStatsOrError(ctx context.Context) any {
	if s.deps.Capture == nil {
		return ports.CaptureStats{}
	}
	return sectionOrError(s.deps.Capture.Stats(ctx))
}

func (s *Server) kafkaInspector(w http.ResponseWriter) ports.KafkaInspector {
	if s.deps.Kafka == nil {
		writeError(w, http.StatusServiceUnavailable, "kafka not configured")
	}
	return s.deps.Kafka
}

func (s *Server) kafkaCluster(w http.ResponseWriter, r *http.Request) {
	k := s.kafkaInspector(w)
	if k == nil {
		return
	}
	c, err := k.Cluster(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to describe kafka cluster")
		writeJSON(w, http.StatusBadGateway, sectionOrError(c, err))
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) kafkaTopic(w http.ResponseWriter, r *http.Request) {
	k := s.kafkaInspector(w)
	if k == nil {
		return
	}
	name := chi.URLParam(r, "name")
	if name == "" {
		name = k.DefaultTopic()
	}
	info, err := k.Topic(r.Context(), name)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("topic", name).Msg("failed to describe topic")
		writeJSON(w, http.StatusBadGateway, sectionOrError(info, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) kafkaGroup(w http.ResponseWriter, r *http.Request) {
	k := s.kafkaInspector(w)
	if k == nil {
		return
	}
	id := chi.URLParam(r, "groupID")
	if id == "" {
		id = k.DefaultGroup()
	}
	info, err := k.ConsumerGroup(r.Context(), id)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("group", id).Msg("failed to describe consumer group")
		writeJSON(w, http.StatusBadGateway, sectionOrError(info, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// kafkaOverview reports every section; a failing section carries its error.
func (s *Server) kafkaOverview(w http.ResponseWriter, r *http.Request) {
	k := s.kafkaInspector(w)
	if k == nil {
		return
	}
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"cluster":       sectionOrError(k.Cluster(ctx)),
		"topic":         sectionOrError(k.Topic(ctx, k.DefaultTopic())),
		"consumerGroup": sectionOrError(k.ConsumerGroup(ctx, k.DefaultGroup())),
		"messages":      s.captureStatsOrError(ctx),
	})
}

func (s *Server) redisInfo(w http.ResponseWriter, r *http.Request) {
	if s.deps.Redis == nil {
		writeError(w, http.StatusServiceUnavailable, "redis not configured")
		return
	}
	info, err := s.deps.Redis.ServerInfo(r.Context())
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to read redis info")
		writeJSON(w, http.StatusBadGateway, sectionOrError(info, err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) redisOverview(w http.ResponseWriter, r *http.Request) {
	if s.deps.Redis == nil || s.deps.List == nil {
		writeError(w, http.StatusServiceUnavailable, "redis not configured")
		return
	}
	ctx := r.Context()

	queue := map[string]any{"queueName": s.deps.Queue}
	if n, err := s.deps.List.Len(ctx); err != nil {
		queue["error"] = err.Error()
	} else {
		queue["size"] = n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"server":   sectionOrError(s.deps.Redis.ServerInfo(ctx)),
		"queue":    queue,
		"messages": s.captureStatsOrError(ctx),
	})
}

// recentMessages returns the captured feed together with its counters.
func (s *Server) recentMessages(w http.ResponseWriter, r *http.Request) {
	msgs := []ports.CapturedMessage{}
	var stats ports.CaptureStats
	if s.deps.Capture != nil {
		got, err := s.deps.Capture.Recent(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if got != nil {
			msgs = got
		}
		if stats, err = s.deps.Capture.Stats(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "stats": stats})
}
