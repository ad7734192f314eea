package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/padelops/bracket-engine/brackets"
	"github.com/padelops/bracket-engine/models"
	"github.com/padelops/bracket-engine/repositories"
)

// Phase of a groups-and-knockout bracket as derived from its matches.
const (
	PhaseGroups   = "groups"
	PhaseKnockout = "knockout"
	PhaseComplete = "complete"
)

// GroupView is one group with its matches and table.
type GroupView struct {
	GroupNumber int                `json:"group_number"`
	Name        string             `json:"name"`
	Matches     []*models.Match    `json:"matches"`
	Standings   []*models.Standing `json:"standings"`
	Complete    bool               `json:"complete"`
}

// BracketView is the full read model served to clients: the bracket with its
// matches split into groups and knockout, plus standings.
type BracketView struct {
	Bracket   *models.Bracket    `json:"bracket"`
	Phase     string             `json:"phase"`
	Groups    []GroupView        `json:"groups,omitempty"`
	Knockout  []*models.Match    `json:"knockout,omitempty"`
	Standings []*models.Standing `json:"standings"`
}

type ViewService interface {
	GetBracketView(ctx context.Context, bracketID int) (*BracketView, error)
	GetBracketViewByTournament(ctx context.Context, tournamentID, categoryID int) (*BracketView, error)
	ListTournamentBrackets(ctx context.Context, tournamentID int) ([]*models.Bracket, error)
}

type viewService struct {
	bracketRepo  repositories.BracketRepository
	matchRepo    repositories.MatchRepository
	standingRepo repositories.StandingRepository
}

func NewViewService(
	bracketRepo repositories.BracketRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.StandingRepository,
) ViewService {
	return &viewService{bracketRepo: bracketRepo, matchRepo: matchRepo, standingRepo: standingRepo}
}

func (s *viewService) GetBracketView(ctx context.Context, bracketID int) (*BracketView, error) {
	bracket, err := s.bracketRepo.GetByID(ctx, bracketID)
	if err != nil {
		return nil, mapViewError(err)
	}
	return s.assemble(ctx, bracket)
}

func (s *viewService) GetBracketViewByTournament(ctx context.Context, tournamentID, categoryID int) (*BracketView, error) {
	bracket, err := s.bracketRepo.GetByTournamentAndCategory(ctx, tournamentID, categoryID)
	if err != nil {
		return nil, mapViewError(err)
	}
	return s.assemble(ctx, bracket)
}

func (s *viewService) ListTournamentBrackets(ctx context.Context, tournamentID int) ([]*models.Bracket, error) {
	bracketList, err := s.bracketRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, mapViewError(err)
	}
	return bracketList, nil
}

// assemble loads matches and standings concurrently and folds them into the
// view shape.
func (s *viewService) assemble(ctx context.Context, bracket *models.Bracket) (*BracketView, error) {
	var (
		matches   []*models.Match
		standings []*models.Standing
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByBracket(gctx, bracket.ID)
		return err
	})
	g.Go(func() error {
		var err error
		standings, err = s.standingRepo.ListByBracket(gctx, bracket.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, mapViewError(err)
	}

	view := &BracketView{Bracket: bracket, Standings: standings}

	groupMatches := make(map[int][]*models.Match)
	for _, m := range matches {
		if m.IsKnockout() {
			view.Knockout = append(view.Knockout, m)
		} else {
			groupMatches[*m.GroupNumber] = append(groupMatches[*m.GroupNumber], m)
		}
	}

	standingsByGroup := make(map[int][]*models.Standing)
	for _, st := range standings {
		standingsByGroup[st.GroupNumber] = append(standingsByGroup[st.GroupNumber], st)
	}

	groupNumbers := make([]int, 0, len(groupMatches))
	for n := range groupMatches {
		groupNumbers = append(groupNumbers, n)
	}
	sort.Ints(groupNumbers)

	for _, n := range groupNumbers {
		gm := groupMatches[n]
		complete := true
		for _, m := range gm {
			if !m.IsTerminal() {
				complete = false
				break
			}
		}
		view.Groups = append(view.Groups, GroupView{
			GroupNumber: n,
			Name:        brackets.GroupName(n),
			Matches:     gm,
			Standings:   standingsByGroup[n],
			Complete:    complete,
		})
	}

	view.Phase = derivePhase(view)
	return view, nil
}

func derivePhase(view *BracketView) string {
	if view.Bracket.Status == models.BracketCompleted {
		return PhaseComplete
	}
	if len(view.Knockout) > 0 || len(view.Groups) == 0 {
		return PhaseKnockout
	}
	return PhaseGroups
}

func mapViewError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrBracketNotFound):
		return ErrBracketNotFound
	default:
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
}
