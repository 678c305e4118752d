package controller

import (
	"windback-be/internal/entity"
	"windback-be/internal/pkg/apperror"
	"windback-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// resolveProject loads the project named by the :slug route param.
func resolveProject(ctx *fiber.Ctx, projects service.IProjectService) (*entity.Project, error) {
	return projects.Resolve(ctx.UserContext(), ctx.Params("slug"))
}

func paramUUID(ctx *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(ctx.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid %s", name)
	}
	return id, nil
}

func bodyParseError(err error) error {
	return apperror.Validation("invalid request body: %s", err.Error())
}
