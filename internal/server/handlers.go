package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/faqindex"
	"github.com/warunglabs/tanya/internal/models"
)

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var input models.QueryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	qcfg := &s.config.Query
	if err := input.Validate(qcfg.DefaultTopK, qcfg.MaxTopK, qcfg.Threshold); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("query request", zap.String("query", input.Query), zap.Int("top_k", input.TopK))
	result, err := s.manager.Query(r.Context(), input.Query, input.TopK, input.Threshold)
	if err != nil {
		s.logger.Error("query failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreateFAQ(w http.ResponseWriter, r *http.Request) {
	var item models.FAQItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	pos, err := s.manager.CreateOrUpdate(r.Context(), item.ID, item.Question, item.Answer)
	if err != nil {
		s.logger.Error("create faq failed", zap.Int64("faq_id", item.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]interface{}{"id": item.ID, "position": pos})
}

func (s *Server) handleUpdateFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var item models.FAQItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.ID != id {
		s.respondError(w, http.StatusBadRequest, "faq id in path does not match body")
		return
	}
	if item.Question == "" {
		s.respondError(w, http.StatusBadRequest, "question cannot be empty")
		return
	}
	pos, err := s.manager.CreateOrUpdate(r.Context(), item.ID, item.Question, item.Answer)
	if err != nil {
		s.logger.Error("update faq failed", zap.Int64("faq_id", item.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": item.ID, "position": pos})
}

func (s *Server) handleDeleteFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	found, err := s.manager.Delete(r.Context(), id)
	if err != nil {
		s.logger.Error("delete faq failed", zap.Int64("faq_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		s.respondError(w, http.StatusNotFound, "faq not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": "deleted"})
}

func (s *Server) handleGetFAQ(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	rec, pos, err := s.manager.Get(id)
	if err != nil {
		s.respondError(w, http.StatusNotFound, "faq not found")
		return
	}
	s.respondJSON(w, http.StatusOK, models.ListEntry{
		Position: pos,
		ID:       rec.ID,
		Question: rec.Question,
		Answer:   rec.Answer,
	})
}

func (s *Server) handleSimilarQuestions(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	qcfg := &s.config.Query
	topK := queryInt(r, "top_k", qcfg.SimilarTopK)
	threshold := queryFloat(r, "threshold", qcfg.SimilarThreshold)
	results, err := s.manager.SimilarQuestions(r.Context(), id, topK, threshold)
	if err != nil {
		if errors.Is(err, faqindex.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "faq not found")
			return
		}
		s.logger.Error("similar questions failed", zap.Int64("faq_id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleBulkIndex(w http.ResponseWriter, r *http.Request) {
	var items []models.FAQItem
	if err := json.NewDecoder(r.Body).Decode(&items); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// Applied in the background; large batches must not block the request.
	job := s.runner.Submit("bulk_index", func(ctx context.Context) error {
		_, err := s.manager.BulkIndex(ctx, items)
		return err
	})
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"count":  len(items),
		"status": "processing",
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.runner.Get(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, http.StatusNotFound, "job not found")
		return
	}
	s.respondJSON(w, http.StatusOK, job)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.manager.Stats())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 100)
	if skip < 0 || limit < 1 {
		s.respondError(w, http.StatusBadRequest, "skip must be >= 0 and limit >= 1")
		return
	}
	s.respondJSON(w, http.StatusOK, s.manager.List(skip, limit))
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.logger.Info("resetting index")
	if err := s.manager.Reset(r.Context()); err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	vecPath, recPath, err := s.manager.Export(r.Context())
	if err != nil {
		s.logger.Error("export failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"files": map[string]string{"index": vecPath, "records": recPath},
	})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	vecPath, recPath, err := s.manager.Backup(r.Context())
	if err != nil {
		s.logger.Error("backup failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"files": map[string]string{"index": vecPath, "records": recPath},
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	job := s.runner.Submit("reconcile", func(ctx context.Context) error {
		_, err := s.reconciler.Run(ctx)
		return err
	})
	s.respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": "processing",
	})
}

func (s *Server) handleReconcileStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.reconciler.LastReport(r.Context()))
}

func (s *Server) handleKeywordSearch(w http.ResponseWriter, r *http.Request) {
	if s.keywords == nil {
		s.respondError(w, http.StatusServiceUnavailable, "keyword search not enabled")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q cannot be empty")
		return
	}
	limit := queryInt(r, "limit", 10)
	results, err := s.keywords.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.manager.Stats()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":       "online",
		"faqs_count":   stats.TotalVectors,
		"dimensions":   stats.Dimensions,
		"last_updated": stats.LastUpdated,
	})
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid faq id")
		return 0, false
	}
	return id, true
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response failed", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, detail string) {
	s.respondJSON(w, status, map[string]string{"detail": detail})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func queryFloat(r *http.Request, key string, def float64) float64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}
