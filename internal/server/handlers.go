package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/tracker"
)

type errorResponse struct {
	Error string `json:"error"`
}

// failureResponse is returned when a generation was accepted for processing
// but could not be completed.
type failureResponse struct {
	Success    bool                `json:"success"`
	Error      string              `json:"error"`
	CostStatus *model.BudgetStatus `json:"cost_status,omitempty"`
}

type generateResponse struct {
	Success bool `json:"success"`
	model.GenerateResult
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":            "healthy",
		"service":           serviceName,
		"dall_e_deployment": s.gen.Deployment(),
	})
}

func (s *Server) handleCostStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.gen.Status(r.Context()))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req model.GenerateRequest
	if err := s.decodeBody(w, r, &req); err != nil {
		// An exhausted budget is reported ahead of any request problem.
		if status := s.gen.Status(r.Context()); status.IsLimited {
			s.writeBudgetError(w, &tracker.BudgetExceededError{Status: status})
			return
		}
		writeDecodeError(w, err)
		return
	}

	result, err := s.gen.Generate(r.Context(), req)
	if err != nil {
		var verr *model.ValidationError
		var budgetErr *tracker.BudgetExceededError
		switch {
		case errors.As(err, &budgetErr):
			s.writeBudgetError(w, budgetErr)
		case errors.As(err, &verr):
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
		default:
			s.logger.Error("generate image", "request_id", RequestIDFromContext(r.Context()), "error", err)
			writeJSON(w, http.StatusInternalServerError, failureResponse{Error: err.Error()})
		}
		return
	}

	s.logger.Info("generation served",
		"request_id", RequestIDFromContext(r.Context()),
		"quality", result.Image.Parameters.Quality,
		"size", result.Image.Parameters.Size,
		"cost_usd", result.Image.Cost,
		"month_spent", result.CostStatus.Spent,
	)
	writeJSON(w, http.StatusOK, generateResponse{Success: true, GenerateResult: *result})
}

func (s *Server) handleCalculateCost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quality string `json:"quality"`
	}
	if err := s.decodeBody(w, r, &req); err != nil {
		writeDecodeError(w, err)
		return
	}

	est, err := s.gen.Estimate(req.Quality)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: verr.Error()})
			return
		}
		s.logger.Error("estimate cost", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, est)
}

func (s *Server) writeBudgetError(w http.ResponseWriter, err *tracker.BudgetExceededError) {
	status := err.Status
	writeJSON(w, http.StatusTooManyRequests, failureResponse{
		Error:      err.Error(),
		CostStatus: &status,
	})
}

// decodeBody reads a JSON body of at most MaxBodySize bytes. An empty body
// decodes to the zero value.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func writeDecodeError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
			Error: fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid JSON body"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
