package controller

import (
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IWebhookController interface {
	RegisterRoutes(r fiber.Router)
	Receive(ctx *fiber.Ctx) error
}

type webhookController struct {
	webhookService service.IWebhookService
}

func NewWebhookController(webhookService service.IWebhookService) IWebhookController {
	return &webhookController{webhookService: webhookService}
}

func (c *webhookController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/webhooks")
	h.Post("/:provider/:publicKey", c.Receive)
}

// Receive verifies against the raw body, so nothing may parse it first.
func (c *webhookController) Receive(ctx *fiber.Ctx) error {
	body := append([]byte(nil), ctx.Body()...)

	res, err := c.webhookService.Ingest(ctx.UserContext(), ctx.Params("provider"), ctx.Params("publicKey"), body, func(key string) string {
		return ctx.Get(key)
	})
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Webhook "+res.Status, res))
}
