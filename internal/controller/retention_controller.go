package controller

import (
	"windback-be/internal/dto"
	"windback-be/internal/pkg/serverutils"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IRetentionController interface {
	RegisterRoutes(r fiber.Router)
	RegisterPublicRoutes(r fiber.Router)
	List(ctx *fiber.Ctx) error
	Upsert(ctx *fiber.Ctx) error
	PublicOffer(ctx *fiber.Ctx) error
}

type retentionController struct {
	projectService   service.IProjectService
	retentionService service.IRetentionService
}

func NewRetentionController(projectService service.IProjectService, retentionService service.IRetentionService) IRetentionController {
	return &retentionController{
		projectService:   projectService,
		retentionService: retentionService,
	}
}

func (c *retentionController) RegisterRoutes(r fiber.Router) {
	r.Get("/:slug/retention-offers", c.List)
	r.Put("/:slug/retention-offers/:reason", c.Upsert)
}

// RegisterPublicRoutes serves the embeddable cancel flow, keyed by public key.
func (c *retentionController) RegisterPublicRoutes(r fiber.Router) {
	h := r.Group("/public")
	h.Get("/:publicKey/retention-offer", c.PublicOffer)
}

func (c *retentionController) List(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	res, err := c.retentionService.List(ctx.UserContext(), project.Id)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success list retention offers", res))
}

func (c *retentionController) Upsert(ctx *fiber.Ctx) error {
	project, err := resolveProject(ctx, c.projectService)
	if err != nil {
		return err
	}

	var req dto.RetentionOfferRequest
	if err := ctx.BodyParser(&req); err != nil {
		return bodyParseError(err)
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.retentionService.Upsert(ctx.UserContext(), project.Id, ctx.Params("reason"), &req)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Retention offer saved", res))
}

func (c *retentionController) PublicOffer(ctx *fiber.Ctx) error {
	project, err := c.projectService.ResolveByPublicKey(ctx.UserContext(), ctx.Params("publicKey"))
	if err != nil {
		return err
	}

	res, err := c.retentionService.ResolvePublic(ctx.UserContext(), project.Id, ctx.Query("reason", "other"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get retention offer", res))
}
