package controller

import (
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IDunningController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	MarkRecovered(ctx *fiber.Ctx) error
	GetConfig(ctx *fiber.Ctx) error
	UpdateConfig(ctx *fiber.Ctx) error
}

type dunningController struct {
	projectService service.IProjectService
	dunningService service.IDunningService
}

func NewDunningController(projectService service.IProjectService, dunningService service.IDunningService) IDunningController {
	return &dunningController{
		projectService: projectService,
		dunningService: dunningService,
	}
}

func (c *dunningController) RegisterRoutes(r fiber.Router) {
	r.Get("/:slug/payment-failures", c.List)
	r.Get("/:slug/payment-failures/:id", c.Show)
	r.Post("/:slug/payment-failures/:id/recovered", c.MarkRecovered)
	r.Get("/:slug/dunning-config", c.GetConfig)
	r.Put("/:slug/dunning-config", c.UpdateConfig)
}

func (c *dunningController) List(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	var req dto.ListPaymentFailuresRequest
	if err := ctx.QueryParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.dunningService.List(ctx.UserContext(), project.Id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list payment failures", res))
}

func (c *dunningController) Show(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.dunningService.Get(ctx.UserContext(), project.Id, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get payment failure", res))
}

func (c *dunningController) MarkRecovered(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.dunningService.MarkRecovered(ctx.UserContext(), project.Id, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Payment failure recovered", res))
}

func (c *dunningController) GetConfig(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	res, err := c.dunningService.GetConfig(ctx.UserContext(), project.Id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get dunning config", res))
}

func (c *dunningController) UpdateConfig(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	var req dto.DunningConfigRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.dunningService.UpdateConfig(ctx.UserContext(), project.Id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Dunning config saved", res))
}
