package handlers

import (
	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/gofiber/fiber/v2"
)

type ActionHandler struct {
	Service *services.GovernanceService
}

func NewActionHandler(service *services.GovernanceService) *ActionHandler {
	return &ActionHandler{Service: service}
}

func (h *ActionHandler) GetActions(c *fiber.Ctx) error {
	page, err := h.Service.GetGovernanceActionsPage(c.UserContext(), c.QueryInt("page", 1), c.QueryInt("count", 0))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, page)
}

func (h *ActionHandler) GetAction(c *fiber.Ctx) error {
	id := pathParam(c, "id")
	action, err := h.Service.GetGovernanceAction(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if action == nil {
		return respondNotFound(c, "action", id)
	}
	return respondData(c, action)
}

func (h *ActionHandler) GetActionVotes(c *fiber.Ctx) error {
	id := pathParam(c, "id")
	tally, err := h.Service.GetActionVotingResults(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if tally == nil {
		return respondNotFound(c, "action_votes", id)
	}
	return respondData(c, tally)
}

// GetActionParticipation reports which DReps, pools and committee members
// voted on the action.
func (h *ActionHandler) GetActionParticipation(c *fiber.Ctx) error {
	participation, err := h.Service.GetVoterParticipation(c.UserContext(), pathParam(c, "id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, participation)
}
