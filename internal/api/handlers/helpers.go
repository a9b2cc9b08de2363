package handlers

import (
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/maheshrc27/postify/internal/apperr"
)

func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	userID, _ := strconv.ParseInt(raw, 10, 64)
	return userID
}

func errorBody(c *fiber.Ctx, err error) (int, fiber.Map) {
	status := apperr.StatusCode(err)
	if status == fiber.StatusInternalServerError {
		slog.Error(err.Error(), "path", c.Path())
	}

	body := fiber.Map{"error": apperr.Message(err)}
	if fields := apperr.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	return status, body
}

// respondError writes err as {"error": ...}, adding "fields" for validation
// failures. Unclassified errors are logged and reported as 500.
func respondError(c *fiber.Ctx, err error) error {
	status, body := errorBody(c, err)
	return c.Status(status).JSON(body)
}

// respondStateError also reports the workflow state the request left behind.
func respondStateError(c *fiber.Ctx, err error, state any) error {
	status, body := errorBody(c, err)
	body["state"] = state
	return c.Status(status).JSON(body)
}
