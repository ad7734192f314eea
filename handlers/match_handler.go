package handlers

import (
	"log/slog"
	"net/http"

	"github.com/padelops/bracket-engine/middleware"
	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/services"
)

type MatchHandler struct {
	progression services.ProgressionService
	logger      *slog.Logger
}

func NewMatchHandler(progression services.ProgressionService, logger *slog.Logger) *MatchHandler {
	return &MatchHandler{progression: progression, logger: logger}
}

type scoreRequest struct {
	Sets            []models.SetScore `json:"sets"`
	ExpectedVersion *int              `json:"expected_version,omitempty"`
}

// UpdateScore records a final score on behalf of the organizer.
//
//	@Summary  Submit a match score
//	@Tags     matches
//	@Accept   json
//	@Produce  json
//	@Success  200 {object} models.Match
//	@Router   /matches/{matchID}/score [put]
func (h *MatchHandler) UpdateScore(w http.ResponseWriter, r *http.Request) {
	h.submitScore(w, r, nil)
}

// SubmitScoreAsPlayer records a score on behalf of the authenticated player.
// The service checks the tournament policy and the rosters.
func (h *MatchHandler) SubmitScoreAsPlayer(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		errorResponse(w, http.StatusUnauthorized, "authentication required")
		return
	}
	h.submitScore(w, r, &claims.UID)
}

func (h *MatchHandler) submitScore(w http.ResponseWriter, r *http.Request, submitterUID *string) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req scoreRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	match, err := h.progression.UpdateScore(r.Context(), matchID, services.ScoreSubmission{
		Sets:            req.Sets,
		ExpectedVersion: req.ExpectedVersion,
		SubmittedByUID:  submitterUID,
	})
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// ResetScore clears a recorded score and reverses the advancement, as long
// as the downstream match has no result.
func (h *MatchHandler) ResetScore(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	match, err := h.progression.ResetScore(r.Context(), matchID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, match, nil)
}

// AdvanceWinner re-pushes a decided match's winner into the next round.
func (h *MatchHandler) AdvanceWinner(w http.ResponseWriter, r *http.Request) {
	matchID, err := urlParamInt(r, "matchID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	advanced, err := h.progression.AdvanceWinner(r.Context(), matchID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"next_match": advanced}, nil)
}
