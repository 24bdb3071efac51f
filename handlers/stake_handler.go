package handlers

import (
	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/gofiber/fiber/v2"
)

type StakeHandler struct {
	Service *services.GovernanceService
}

func NewStakeHandler(service *services.GovernanceService) *StakeHandler {
	return &StakeHandler{Service: service}
}

func (h *StakeHandler) GetStakeDelegation(c *fiber.Ctx) error {
	address := pathParam(c, "address")
	delegation, err := h.Service.GetStakeDelegation(c.UserContext(), address)
	if err != nil {
		return respondError(c, err)
	}
	if delegation == nil {
		return respondNotFound(c, "stake_address", address)
	}
	return respondData(c, delegation)
}
