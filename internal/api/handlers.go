package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"

	apperrors "github.com/price-oracle/internal/errors"
	"github.com/price-oracle/internal/models"
	"github.com/price-oracle/internal/service"
)

// parseTokenAndNetwork validates the token address and network shared by
// every oracle endpoint.
func parseTokenAndNetwork(token, network string) (string, models.Network, error) {
	if !common.IsHexAddress(token) {
		return "", "", apperrors.NewValidationError("token", "must be a valid hex address")
	}

	n := models.Network(strings.ToLower(network))
	if !n.IsValid() {
		return "", "", apperrors.NewValidationError("network", "must be one of: ethereum, polygon")
	}

	return strings.ToLower(token), n, nil
}

// handleGetPrice resolves a token price at a point in time.
// GET /price-oracle/price?token=0x...&network=ethereum&timestamp=1710028800
func (s *Server) handleGetPrice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	token, network, err := parseTokenAndNetwork(query.Get("token"), query.Get("network"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	ts, err := strconv.ParseInt(query.Get("timestamp"), 10, 64)
	if err != nil || ts <= 0 {
		respondServiceError(w, apperrors.NewValidationError("timestamp", "must be a positive unix timestamp in seconds"))
		return
	}

	result, err := s.resolver.Resolve(r.Context(), token, network, ts)
	if err != nil {
		if errors.Is(err, service.ErrPriceNotFound) {
			respondServiceError(w, apperrors.NewNotFoundError("price", fmt.Sprintf("%s at %d", token, ts)))
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

type scheduleRequest struct {
	Token   string `json:"token"`
	Network string `json:"network"`
}

type scheduleResponse struct {
	JobID        string           `json:"jobId"`
	Status       models.JobStatus `json:"status"`
	CreationDate string           `json:"creationDate"`
}

// handleSchedule starts an asynchronous price-history backfill.
// POST /price-oracle/schedule {"token": "0x...", "network": "ethereum"}
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "invalid JSON body")
		return
	}

	token, network, err := parseTokenAndNetwork(req.Token, req.Network)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	job, err := s.backfill.Schedule(r.Context(), token, network)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, scheduleResponse{
		JobID:        job.JobID,
		Status:       job.Status,
		CreationDate: job.CreationDate.Format("2006-01-02"),
	})
}

// handleGetJob returns the progress view of a backfill job.
// GET /price-oracle/jobs/{jobId}
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	view, err := s.backfill.GetStatus(r.Context(), jobID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if view == nil {
		respondServiceError(w, apperrors.NewNotFoundError("job", jobID))
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleGetStats summarizes the stored price history for a token.
// GET /price-oracle/stats?token=0x...&network=ethereum
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	token, network, err := parseTokenAndNetwork(query.Get("token"), query.Get("network"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	stats, err := s.store.PriceStats(r.Context(), token, network)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
