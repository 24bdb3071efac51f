package handlers

import (
	"strings"

	"github.com/fenilmodi00/govdash-backend/models"
	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/gofiber/fiber/v2"
)

type DRepHandler struct {
	Service *services.GovernanceService
}

func NewDRepHandler(service *services.GovernanceService) *DRepHandler {
	return &DRepHandler{Service: service}
}

// parseDRepsQuery reads list parameters. count may also be given as
// pageSize, and status as a comma list or repeated status[] values.
func parseDRepsQuery(c *fiber.Ctx) models.DRepsQuery {
	count := c.QueryInt("count", 0)
	if count == 0 {
		count = c.QueryInt("pageSize", 0)
	}

	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = append(statuses, strings.Split(raw, ",")...)
	}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		if string(key) == "status[]" {
			statuses = append(statuses, string(value))
		}
	})

	return models.DRepsQuery{
		Page:      c.QueryInt("page", 1),
		Count:     count,
		Statuses:  statuses,
		Search:    c.Query("search"),
		Sort:      c.Query("sort"),
		Direction: c.Query("direction"),
		Enrich:    c.QueryBool("enrich", true),
	}
}

func (h *DRepHandler) GetDReps(c *fiber.Ctx) error {
	page, err := h.Service.GetDRepsPage(c.UserContext(), parseDRepsQuery(c))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, page)
}

func (h *DRepHandler) GetDRepStats(c *fiber.Ctx) error {
	stats, err := h.Service.GetDRepStats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, stats)
}

func (h *DRepHandler) GetDRep(c *fiber.Ctx) error {
	id := pathParam(c, "id")
	drep, err := h.Service.GetDRep(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if drep == nil {
		return respondNotFound(c, "drep", id)
	}
	return respondData(c, drep)
}

func (h *DRepHandler) GetDRepDelegators(c *fiber.Ctx) error {
	delegators, err := h.Service.GetDRepDelegators(c.UserContext(), pathParam(c, "id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, delegators)
}

func (h *DRepHandler) GetDRepVotingHistory(c *fiber.Ctx) error {
	votes, err := h.Service.GetDRepVotingHistory(c.UserContext(), pathParam(c, "id"))
	if err != nil {
		return respondError(c, err)
	}
	return respondData(c, votes)
}

func (h *DRepHandler) GetDRepMetadata(c *fiber.Ctx) error {
	id := pathParam(c, "id")
	meta, err := h.Service.GetDRepMetadata(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	if meta == nil {
		return respondNotFound(c, "drep_metadata", id)
	}
	return respondData(c, meta)
}
