package handlers

import (
	"errors"

	"scriptony/app"
	"scriptony/middleware"
	"scriptony/models"
	"scriptony/services"

	"github.com/gofiber/fiber/v2"
)

// GetWorlds retrieves all worlds for a user
func GetWorlds(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID := middleware.GetUserID(c)

		worlds, err := a.WorldService.Load(c.Context(), userID)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to fetch worlds", err)
		}

		return success(c, fiber.Map{
			"worlds": worlds,
			"state":  a.WorldService.State(userID),
		})
	}
}

// CreateWorld creates a new world for a user
func CreateWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req models.CreateWorldRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		userID := middleware.GetUserID(c)

		world, err := a.WorldService.Create(c.Context(), &models.World{
			UserID:     userID,
			ProjectID:  req.ProjectID,
			Name:       req.Name,
			Categories: req.Categories,
		})
		if err != nil {
			return serverErrorWithDetails(c, "Failed to create world", err)
		}

		return created(c, fiber.Map{"world": world})
	}
}

// UpdateWorld updates an existing world
func UpdateWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		worldID := c.Params("id")
		if worldID == "" {
			return badRequest(c, "world ID is required")
		}

		var req models.UpdateWorldRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid request body")
		}

		if err := a.Validator.Validate(&req); err != nil {
			return validationError(c, err)
		}

		userID := middleware.GetUserID(c)

		if err := a.WorldService.Update(c.Context(), userID, worldID, req.Name, req.Categories); err != nil {
			if errors.Is(err, services.ErrWorldNotFound) {
				return notFound(c, "World not found")
			}
			return serverErrorWithDetails(c, "Failed to update world", err)
		}

		return success(c, fiber.Map{"success": true})
	}
}

// DeleteWorld deletes a world. A delete or duplicate already in flight
// rejects the request rather than queueing it.
func DeleteWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		worldID := c.Params("id")
		if worldID == "" {
			return badRequest(c, "world ID is required")
		}

		userID := middleware.GetUserID(c)

		if err := a.WorldService.Delete(c.Context(), userID, worldID); err != nil {
			switch {
			case errors.Is(err, services.ErrWorldNotFound):
				return notFound(c, "World not found")
			case errors.Is(err, services.ErrOperationInProgress):
				return conflict(c, "Another world operation is already in progress")
			default:
				return serverErrorWithDetails(c, "Failed to delete world", err)
			}
		}

		return success(c, fiber.Map{"success": true})
	}
}

// DuplicateWorld copies a world server-side and returns the copy
func DuplicateWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		worldID := c.Params("id")
		if worldID == "" {
			return badRequest(c, "world ID is required")
		}

		userID := middleware.GetUserID(c)

		world, err := a.WorldService.Duplicate(c.Context(), userID, worldID)
		if err != nil {
			switch {
			case errors.Is(err, services.ErrWorldNotFound):
				return notFound(c, "World not found")
			case errors.Is(err, services.ErrOperationInProgress):
				return conflict(c, "Another world operation is already in progress")
			default:
				return serverErrorWithDetails(c, "Failed to duplicate world", err)
			}
		}

		return created(c, fiber.Map{"world": world})
	}
}

// SelectWorld marks a world as the active selection for the session
func SelectWorld(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		worldID := c.Params("id")
		if worldID == "" {
			return badRequest(c, "world ID is required")
		}

		userID := middleware.GetUserID(c)
		a.WorldService.Select(userID, worldID)

		return success(c, fiber.Map{
			"success":  true,
			"selected": a.WorldService.Selected(userID),
		})
	}
}
