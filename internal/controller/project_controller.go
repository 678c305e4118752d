package controller

import (
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IProjectController interface {
	RegisterRoutes(r fiber.Router)
	Create(ctx *fiber.Ctx) error
	Show(ctx *fiber.Ctx) error
	UpdateSettings(ctx *fiber.Ctx) error
}

type projectController struct {
	projectService service.IProjectService
}

func NewProjectController(projectService service.IProjectService) IProjectController {
	return &projectController{projectService: projectService}
}

func (c *projectController) RegisterRoutes(r fiber.Router) {
	r.Post("", c.Create)
	r.Get("/:slug", c.Show)
	r.Patch("/:slug/settings", c.UpdateSettings)
}

func (c *projectController) Create(ctx *fiber.Ctx) error {
	var req dto.CreateProjectRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.projectService.Create(ctx.UserContext(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusCreated).JSON(serverutils.SuccessResponse("Project created", res))
}

func (c *projectController) Show(ctx *fiber.Ctx) error {
	res, err := c.projectService.Get(ctx.UserContext(), ctx.Params("slug"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get project", res))
}

func (c *projectController) UpdateSettings(ctx *fiber.Ctx) error {
	var req dto.UpdateProjectSettingsRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.projectService.UpdateSettings(ctx.UserContext(), ctx.Params("slug"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Project settings updated", res))
}
