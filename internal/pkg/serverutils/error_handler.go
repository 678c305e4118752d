package serverutils

import (
	"errors"

	"windback-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler writes any handler error as a BaseResponse envelope.
func ErrorHandler(ctx *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return ctx.Status(fe.Code).JSON(ErrorResponse(fe.Code, fe.Message))
	}
	code := apperror.StatusCode(err)
	return ctx.Status(code).JSON(ErrorResponse(code, apperror.PublicMessage(err)))
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if err := ctx.Next(); err != nil {
			return ErrorHandler(ctx, err)
		}
		return nil
	}
}
