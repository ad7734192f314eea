package handlers

import (
	"log/slog"
	"net/http"

	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/services"
)

type BracketHandler struct {
	generation  services.GenerationService
	progression services.ProgressionService
	views       services.ViewService
	logger      *slog.Logger
}

func NewBracketHandler(
	generation services.GenerationService,
	progression services.ProgressionService,
	views services.ViewService,
	logger *slog.Logger,
) *BracketHandler {
	return &BracketHandler{generation: generation, progression: progression, views: views, logger: logger}
}

type generateKnockoutRequest struct {
	TournamentID  int                  `json:"tournament_id"`
	CategoryID    int                  `json:"category_id"`
	SeedingMethod models.SeedingMethod `json:"seeding_method"`
	TeamIDs       []int                `json:"team_ids"`
}

// GenerateKnockout creates (or regenerates) a pure knockout bracket. The
// team list is taken as seed order.
//
//	@Summary  Generate a knockout bracket
//	@Tags     brackets
//	@Accept   json
//	@Produce  json
//	@Success  201 {object} models.Bracket
//	@Router   /brackets/knockout [post]
func (h *BracketHandler) GenerateKnockout(w http.ResponseWriter, r *http.Request) {
	var req generateKnockoutRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}
	if req.SeedingMethod == "" {
		req.SeedingMethod = models.SeedingManual
	}

	bracket, err := h.generation.GenerateKnockout(r.Context(), req.TournamentID, req.CategoryID, req.SeedingMethod, req.TeamIDs)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bracket, nil)
}

type generateGroupsRequest struct {
	TournamentID int                  `json:"tournament_id"`
	CategoryID   int                  `json:"category_id"`
	Groups       [][]int              `json:"groups,omitempty"`
	TeamIDs      []int                `json:"team_ids,omitempty"`
	Config       models.BracketConfig `json:"config"`
}

// GenerateGroups creates a group stage. With explicit groups the layout is
// used as-is; with a flat team list groups are formed automatically and
// filled snake-style.
//
//	@Summary  Generate a group stage
//	@Tags     brackets
//	@Accept   json
//	@Produce  json
//	@Success  201 {object} models.Bracket
//	@Router   /brackets/groups [post]
func (h *BracketHandler) GenerateGroups(w http.ResponseWriter, r *http.Request) {
	var req generateGroupsRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	var (
		bracket *models.Bracket
		err     error
	)
	if len(req.Groups) > 0 {
		bracket, err = h.generation.GenerateGroupStage(r.Context(), req.TournamentID, req.CategoryID, req.Groups, req.Config)
	} else {
		bracket, err = h.generation.GenerateGroupStageAuto(r.Context(), req.TournamentID, req.CategoryID, req.TeamIDs, req.Config)
	}
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bracket, nil)
}

// GenerateKnockoutFromGroups promotes the finished group stage into a
// knockout phase.
//
//	@Summary  Promote groups to knockout
//	@Tags     brackets
//	@Produce  json
//	@Success  201 {object} models.Bracket
//	@Router   /tournaments/{tournamentID}/categories/{categoryID}/knockout [post]
func (h *BracketHandler) GenerateKnockoutFromGroups(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	categoryID, err := urlParamInt(r, "categoryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	bracket, err := h.generation.GenerateKnockoutFromGroups(r.Context(), tournamentID, categoryID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, bracket, nil)
}

// DeleteKnockoutPhase removes an unstarted knockout phase so the promotion
// can be redone.
func (h *BracketHandler) DeleteKnockoutPhase(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	categoryID, err := urlParamInt(r, "categoryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.generation.DeleteKnockoutPhase(r.Context(), tournamentID, categoryID); err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBracket returns the full bracket view with matches and standings.
//
//	@Summary  Get a bracket
//	@Tags     brackets
//	@Produce  json
//	@Success  200 {object} services.BracketView
//	@Router   /brackets/{bracketID} [get]
func (h *BracketHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	bracketID, err := urlParamInt(r, "bracketID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	view, err := h.views.GetBracketView(r.Context(), bracketID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view, nil)
}

// GetBracketByCategory resolves the unique bracket of a (tournament,
// category) pair.
func (h *BracketHandler) GetBracketByCategory(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	categoryID, err := urlParamInt(r, "categoryID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	view, err := h.views.GetBracketViewByTournament(r.Context(), tournamentID, categoryID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view, nil)
}

// ListTournamentBrackets lists every bracket of a tournament.
func (h *BracketHandler) ListTournamentBrackets(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := urlParamInt(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}

	bracketList, err := h.views.ListTournamentBrackets(r.Context(), tournamentID)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, jsonResponse{"brackets": bracketList}, nil)
}

type updateStatusRequest struct {
	Status models.BracketStatus `json:"status"`
}

// UpdateStatus moves the bracket through its lifecycle.
func (h *BracketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	bracketID, err := urlParamInt(r, "bracketID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req updateStatusRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	bracket, err := h.progression.UpdateBracketStatus(r.Context(), bracketID, req.Status)
	if err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, bracket, nil)
}

type withdrawRequest struct {
	TeamID int `json:"team_id"`
}

// WithdrawTeam forfeits every open match of the team.
func (h *BracketHandler) WithdrawTeam(w http.ResponseWriter, r *http.Request) {
	bracketID, err := urlParamInt(r, "bracketID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req withdrawRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.progression.WithdrawTeam(r.Context(), bracketID, req.TeamID); err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type swapRequest struct {
	Team1ID int `json:"team1_id"`
	Team2ID int `json:"team2_id"`
}

// SwapTeams exchanges two teams across group matches before any of their
// matches started.
func (h *BracketHandler) SwapTeams(w http.ResponseWriter, r *http.Request) {
	bracketID, err := urlParamInt(r, "bracketID")
	if err != nil {
		badRequestResponse(w, err)
		return
	}
	var req swapRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, err)
		return
	}

	if err := h.progression.SwapTeamsInGroups(r.Context(), bracketID, req.Team1ID, req.Team2ID); err != nil {
		mapServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
