package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Melvud/ChessAnalysis-sub000"
	"github.com/Melvud/ChessAnalysis-sub000/internal/oracle"
)

// AnalysisRequest is the body of POST /v1/analyses.
type AnalysisRequest struct {
	PGN     string `json:"pgn"`
	Depth   int    `json:"depth,omitempty"`
	MultiPV int    `json:"multiPv,omitempty"`
}

// AnalysisResponse acknowledges a started analysis.
type AnalysisResponse struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// EvaluateRequest is the body of POST /v1/evaluate.
type EvaluateRequest struct {
	FEN     string `json:"fen"`
	Depth   int    `json:"depth,omitempty"`
	MultiPV int    `json:"multiPv,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
	var req AnalysisRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Depth < 0 || req.Depth > oracle.MaxDepth || req.MultiPV < 0 || req.MultiPV > oracle.MaxMultiPV {
		writeError(w, http.StatusBadRequest, "depth or multiPv out of range")
		return
	}
	key, err := s.analyzer.Key(req.PGN)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if !s.admit() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	id := uuid.NewString()
	now := time.Now()
	s.analyzer.Track(chessanalysis.AnalysisSnapshot{
		ID:        id,
		Key:       key,
		Stage:     chessanalysis.StageQueued,
		StartedAt: now,
		UpdatedAt: now,
	})

	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(s.base, s.analysisTimeout)
		defer cancel()
		_, err := s.analyzer.AnalyzeGame(ctx, req.PGN, chessanalysis.AnalyzeParams{
			ID:      id,
			Depth:   req.Depth,
			MultiPV: req.MultiPV,
		})
		switch {
		case err == nil:
		case chessanalysis.IsCancelled(err):
			s.logger.Debug("analysis cancelled", zap.String("id", id), zap.Error(err))
		default:
			s.logger.Error("analysis failed", zap.String("id", id), zap.Error(err))
		}
	}()

	w.Header().Set("Location", "/v1/analyses/"+id)
	writeJSON(w, http.StatusAccepted, AnalysisResponse{ID: id, Key: key})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, ok := s.analyzer.Progress(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown analysis "+id)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	report, err := s.analyzer.Report(r.Context(), key)
	switch {
	case errors.Is(err, chessanalysis.ErrCacheMiss):
		writeError(w, http.StatusNotFound, "no report for "+key)
	case err != nil:
		s.logger.Error("reading report", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reading report failed")
	default:
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	pe, err := s.analyzer.AnalyzePosition(ctx, req.FEN, req.Depth, req.MultiPV)
	var oe *chessanalysis.OracleError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, pe)
	case errors.Is(err, oracle.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case chessanalysis.IsCancelled(err):
		writeError(w, http.StatusGatewayTimeout, "evaluation did not finish in time")
	case errors.As(err, &oe):
		s.logger.Warn("evaluation failed", zap.String("fen", req.FEN), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("evaluation failed", zap.String("fen", req.FEN), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
