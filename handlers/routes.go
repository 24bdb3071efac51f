package handlers

import (
	"github.com/fenilmodi00/govdash-backend/services"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes mounts the read API under /api/v1 plus a root /health.
func RegisterRoutes(app *fiber.App, service *services.GovernanceService) {
	drepHandler := NewDRepHandler(service)
	actionHandler := NewActionHandler(service)
	stakeHandler := NewStakeHandler(service)
	healthHandler := NewHealthHandler(service)

	app.Get("/health", healthHandler.GetHealth)

	api := app.Group("/api/v1")
	api.Get("/health", healthHandler.GetHealth)
	api.Get("/cache/stats", healthHandler.GetCacheStats)

	// DRep Routes
	api.Get("/dreps", drepHandler.GetDReps)
	api.Get("/dreps/stats", drepHandler.GetDRepStats)
	api.Get("/dreps/:id/delegators", drepHandler.GetDRepDelegators)
	api.Get("/dreps/:id/votes", drepHandler.GetDRepVotingHistory)
	api.Get("/dreps/:id/metadata", drepHandler.GetDRepMetadata)
	api.Get("/dreps/:id", drepHandler.GetDRep)

	// Governance Action Routes
	api.Get("/actions", actionHandler.GetActions)
	api.Get("/actions/:id/votes", actionHandler.GetActionVotes)
	api.Get("/actions/:id/participation", actionHandler.GetActionParticipation)
	api.Get("/actions/:id", actionHandler.GetAction)

	// Stake Routes
	api.Get("/stake/:address", stakeHandler.GetStakeDelegation)
}
