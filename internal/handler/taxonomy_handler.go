package handler

import (
	"go-pos-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

// TaxonomyHandler serves brands and categories.
type TaxonomyHandler struct {
	service service.CatalogService
}

func NewTaxonomyHandler(s service.CatalogService) *TaxonomyHandler {
	return &TaxonomyHandler{service: s}
}

func (h *TaxonomyHandler) GetBrands(c *fiber.Ctx) error {
	brands, err := h.service.ListBrands(c.UserContext(), actor(c).TenantID, c.Query("search"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, brands)
}

func (h *TaxonomyHandler) CreateBrand(c *fiber.Ctx) error {
	var req service.TaxonomyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	brand, err := h.service.CreateBrand(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, brand)
}

func (h *TaxonomyHandler) UpdateBrand(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.TaxonomyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	brand, err := h.service.UpdateBrand(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, brand)
}

func (h *TaxonomyHandler) DeleteBrand(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.service.DeleteBrand(c.UserContext(), actor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Brand deleted"})
}

func (h *TaxonomyHandler) GetCategories(c *fiber.Ctx) error {
	categories, err := h.service.ListCategories(c.UserContext(), actor(c).TenantID, c.Query("search"))
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, categories)
}

func (h *TaxonomyHandler) CreateCategory(c *fiber.Ctx) error {
	var req service.TaxonomyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	category, err := h.service.CreateCategory(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, category)
}

func (h *TaxonomyHandler) UpdateCategory(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.TaxonomyRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	category, err := h.service.UpdateCategory(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, category)
}

func (h *TaxonomyHandler) DeleteCategory(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.service.DeleteCategory(c.UserContext(), actor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Category deleted"})
}
