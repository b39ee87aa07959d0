package handler

import (
	"errors"
	"strconv"

	"go-pos-api/internal/service"
	"go-pos-api/pkg/apperror"
	"go-pos-api/pkg/jwt"
	"go-pos-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// success writes {success:true, data}.
func success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

// fail maps err to a status code and the {success:false, message} body.
// Storage details never leave the process; unknown errors are logged and
// reported as a generic 500.
func fail(c *fiber.Ctx, err error) error {
	var (
		ve *apperror.ValidationError
		nf *apperror.NotFoundError
		ce *apperror.ConflictError
		ip *apperror.InsufficientPaymentError
		de *apperror.DomainError
		fe *fiber.Error
	)
	switch {
	case errors.As(err, &ve):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "validation failed",
			"errors":  ve.Fields,
		})
	case errors.As(err, &nf):
		return message(c, fiber.StatusNotFound, nf.Error())
	case errors.As(err, &ce):
		return message(c, fiber.StatusConflict, ce.Error())
	case errors.As(err, &ip):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success":         false,
			"message":         ip.Error(),
			"minimumRequired": ip.MinimumRequired,
		})
	case errors.As(err, &de):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": de.Error(),
			"code":    de.Code,
		})
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrUserInactive),
		errors.Is(err, service.ErrTenantInactive),
		errors.Is(err, service.ErrSessionTimeout),
		errors.Is(err, service.ErrSessionReplaced),
		errors.Is(err, jwt.ErrInvalidToken),
		errors.Is(err, jwt.ErrMissingToken):
		return message(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, service.ErrWrongPassword):
		return message(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUserNotFound):
		return message(c, fiber.StatusNotFound, err.Error())
	case errors.As(err, &fe):
		return message(c, fe.Code, fe.Message)
	}

	logger.FromFiber(c, zap.L()).Error("request failed",
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.Error(err),
	)
	return message(c, fiber.StatusInternalServerError, "internal server error")
}

func message(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"success": false, "message": msg})
}

// ErrorHandler is the fiber fallback for errors returned by handlers and middleware.
func ErrorHandler(c *fiber.Ctx, err error) error {
	return fail(c, err)
}

// actor builds the service caller from the claims stored by RequireAuth.
func actor(c *fiber.Ctx) service.Actor {
	claims, ok := c.Locals("claims").(*jwt.Claims)
	if !ok || claims == nil {
		return service.Actor{}
	}
	return service.Actor{
		UserID:     claims.UserID,
		TenantID:   claims.TenantID,
		Name:       claims.Name,
		Email:      claims.Email,
		Privileges: claims.Privileges,
	}
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperror.Validation(name, "must be a valid UUID")
	}
	return id, nil
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return apperror.Validation("body", "invalid JSON")
	}
	return nil
}

func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, apperror.Validation(name, "must be true or false")
	}
	return &v, nil
}

func queryUUID(c *fiber.Ctx, name string) (*uuid.UUID, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperror.Validation(name, "must be a valid UUID")
	}
	return &id, nil
}

func queryInt(c *fiber.Ctx, name string, def int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Validation(name, "must be a number")
	}
	return v, nil
}
