package controller

import (
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ITemplateController interface {
	RegisterRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Create(ctx *fiber.Ctx) error
	Update(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
}

type templateController struct {
	projectService  service.IProjectService
	templateService service.ITemplateService
}

func NewTemplateController(projectService service.IProjectService, templateService service.ITemplateService) ITemplateController {
	return &templateController{
		projectService:  projectService,
		templateService: templateService,
	}
}

func (c *templateController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/:slug/templates")
	h.Get("", c.List)
	h.Post("", c.Create)
	h.Put("/:id", c.Update)
	h.Delete("/:id", c.Delete)
}

func (c *templateController) List(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	res, err := c.templateService.List(ctx.UserContext(), project.Id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list templates", res))
}

func (c *templateController) Create(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	var req dto.TemplateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.templateService.Create(ctx.UserContext(), project.Id, &req)
	if err != nil {
		return err
	}
	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Template created", res))
}

func (c *templateController) Update(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	var req dto.TemplateRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.templateService.Update(ctx.UserContext(), project.Id, id, &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Template updated", res))
}

func (c *templateController) Delete(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}
	id, err := paramUUID(ctx, "id")
	if err != nil {
		return err
	}

	if err := c.templateService.Delete(ctx.UserContext(), project.Id, id); err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse[any]("Template deleted", nil))
}
