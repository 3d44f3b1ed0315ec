package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// GetUserID reads the user id the auth middleware stored in the request
// locals. Routes registered behind the middleware can rely on it; an
// unauthenticated request never reaches them, so a missing value maps
// to id 0 rather than a panic.
func GetUserID(c *fiber.Ctx) int64 {
	raw, _ := c.Locals("user_id").(string)
	id, _ := strconv.ParseInt(raw, 10, 64)
	return id
}
