package controller

import (
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IChurnController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	Generate(ctx *fiber.Ctx) error
	MarkRecovered(ctx *fiber.Ctx) error
	MarkLost(ctx *fiber.Ctx) error
	UpdateVariant(ctx *fiber.Ctx) error
	SendVariant(ctx *fiber.Ctx) error
}

type churnController struct {
	projectService service.IProjectService
	churnService   service.IChurnService
	generator      service.IVariantGenerator
	sendPolicy     service.ISendPolicy
}

func NewChurnController(
	projectService service.IProjectService,
	churnService service.IChurnService,
	generator service.IVariantGenerator,
	sendPolicy service.ISendPolicy,
) IChurnController {
	return &churnController{
		projectService: projectService,
		churnService:   churnService,
		generator:      generator,
		sendPolicy:     sendPolicy,
	}
}

func (c *churnController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/:slug/churn-events")
	h.Get("", c.List)
	h.Get("/:id", c.Show)
	h.Post("/:id/generate", c.Generate)
	h.Post("/:id/recovered", c.MarkRecovered)
	h.Post("/:id/lost", c.MarkLost)
	h.Patch("/:id/variants/:variantId", c.UpdateVariant)
	h.Post("/:id/variants/:variantId/send", c.SendVariant)
}

func (c *churnController) List(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	var req dto.ListChurnEventsRequest
	if err := ctx.QueryParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.churnService.List(ctx.UserContext(), project.Id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list churn events", res))
}

func (c *churnController) Show(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.churnService.Get(ctx.UserContext(), project.Id, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get churn event", res))
}

func (c *churnController) Generate(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.generator.Generate(ctx.UserContext(), project, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Variants generated", res))
}

func (c *churnController) MarkRecovered(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.churnService.MarkRecovered(ctx.UserContext(), project.Id, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Churn event recovered", res))
}

func (c *churnController) MarkLost(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	res, err := c.churnService.MarkLost(ctx.UserContext(), project.Id, id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Churn event lost", res))
}

func (c *churnController) UpdateVariant(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}
	variantId, err := paramUUID(ctx, "variantId")
	if err != nil {
		return err
	}

	var req dto.UpdateVariantRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.sendPolicy.UpdateVariant(ctx.UserContext(), project.Id, id, variantId, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Variant updated", res))
}

func (c *churnController) SendVariant(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}
	variantId, err := paramUUID(ctx, "variantId")
	if err != nil {
		return err
	}

	res, err := c.sendPolicy.Send(ctx.UserContext(), project, id, variantId)
	if err != nil {
		return err
	}

	message := "Variant sent"
	if res.AlreadySent {
		message = "Variant already sent"
	}
	return ctx.JSON(serverutils.SuccessResponse(message, res))
}
