package utils

import "github.com/gofiber/fiber/v2"

// Success writes {"ok": true, ...payload}.
func Success(c *fiber.Ctx, status int, payload fiber.Map) error {
	body := fiber.Map{"ok": true}
	for key, value := range payload {
		body[key] = value
	}
	return c.Status(status).JSON(body)
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"ok":    false,
		"error": message,
	})
}

func Paginated(c *fiber.Ctx, key string, data interface{}, page Page, total int64) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok": true,
		key:  data,
		"pagination": fiber.Map{
			"page":       page.Number,
			"limit":      page.Limit,
			"total":      total,
			"totalPages": page.TotalPages(total),
		},
	})
}
