package controller

import (
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITrackingController interface {
	RegisterRoutes(r fiber.Router)
	Open(ctx *fiber.Ctx) error
	Click(ctx *fiber.Ctx) error
}

type trackingController struct {
	sendPolicy service.ISendPolicy
}

func NewTrackingController(sendPolicy service.ISendPolicy) ITrackingController {
	return &trackingController{sendPolicy: sendPolicy}
}

func (c *trackingController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/track/variants")
	h.Post("/:id/open", c.Open)
	h.Post("/:id/click", c.Click)
}

func (c *trackingController) Open(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := c.sendPolicy.TrackOpen(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Open tracked", res))
}

func (c *trackingController) Click(ctx *fiber.Ctx) error {
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}
	res, err := c.sendPolicy.TrackClick(ctx.UserContext(), id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Click tracked", res))
}
