package server

import (
	"encoding/json"
	"net/http"

	"github.com/hyperjump/tansaku/internal/models"
	"go.uber.org/zap"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req models.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, models.KindCompile, "invalid request body")
		return
	}
	s.logger.Debug("query request",
		zap.String("sql", req.SQL),
		zap.Bool("vector", req.Vector != nil),
	)
	page, err := s.engine.Run(r.Context(), &req)
	if err != nil {
		s.respondQueryError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

// respondQueryError maps the query error taxonomy onto HTTP statuses. Caller
// mistakes are 400s; a cluster with no usable member is 503; retries
// exhausted against a live cluster is 502; the engine rejecting a plan this
// gateway compiled is our bug, so 500.
func (s *Server) respondQueryError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	var status int
	switch kind {
	case models.KindSyntax, models.KindUnsupported, models.KindCompile:
		status = http.StatusBadRequest
	case models.KindClusterUnavailable:
		status = http.StatusServiceUnavailable
	case models.KindExecution:
		status = http.StatusBadGateway
	case models.KindCancelled:
		status = http.StatusRequestTimeout
	default:
		status = http.StatusInternalServerError
	}
	if status >= 500 {
		s.logger.Error("query failed", zap.String("kind", string(kind)), zap.Error(err))
	} else {
		s.logger.Debug("query rejected", zap.String("kind", string(kind)), zap.Error(err))
	}
	s.respondError(w, status, kind, err.Error())
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	names, err := s.collections.Collections(r.Context())
	if err != nil {
		s.logger.Error("list collections failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, models.KindClusterUnavailable, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"collections": names})
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	fields := s.schema.Fields()
	out := make([]map[string]interface{}, 0, len(fields))
	for _, f := range fields {
		entry := map[string]interface{}{
			"name":         f.Name,
			"type":         f.Type,
			"indexed":      f.Indexed,
			"stored":       f.Stored,
			"multi_valued": f.MultiValued,
		}
		if f.Dimension > 0 {
			entry["dimension"] = f.Dimension
			entry["similarity"] = f.Similarity
		}
		out = append(out, entry)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"collection": s.schema.Collection(),
		"fields":     out,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, kind models.ErrorKind, message string) {
	s.respondJSON(w, status, map[string]string{"error": message, "kind": string(kind)})
}
