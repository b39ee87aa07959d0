package handler

import (
	"go-pos-api/internal/repository"
	"go-pos-api/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ProductHandler struct {
	service service.CatalogService
}

func NewProductHandler(s service.CatalogService) *ProductHandler {
	return &ProductHandler{service: s}
}

func productFilter(c *fiber.Ctx) (repository.ProductFilter, error) {
	f := repository.ProductFilter{
		TenantID:  actor(c).TenantID,
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	}
	var err error
	if f.BrandID, err = queryUUID(c, "brand_id"); err != nil {
		return f, err
	}
	if f.CategoryID, err = queryUUID(c, "category_id"); err != nil {
		return f, err
	}
	if f.IsActive, err = queryBool(c, "is_active"); err != nil {
		return f, err
	}
	if f.IsSellable, err = queryBool(c, "is_sellable"); err != nil {
		return f, err
	}
	if f.IsTrackStock, err = queryBool(c, "is_track_stock"); err != nil {
		return f, err
	}
	low, err := queryBool(c, "low_stock")
	if err != nil {
		return f, err
	}
	f.LowStock = low != nil && *low
	return f, nil
}

func pagination(c *fiber.Ctx) (repository.Pagination, error) {
	page, err := queryInt(c, "page", 1)
	if err != nil {
		return repository.Pagination{}, err
	}
	limit, err := queryInt(c, "limit", repository.DefaultPageLimit)
	if err != nil {
		return repository.Pagination{}, err
	}
	return repository.Pagination{Page: page, Limit: limit}.Normalize(), nil
}

// GetProducts lists products
// GET /api/v1/products
func (h *ProductHandler) GetProducts(c *fiber.Ctx) error {
	filter, err := productFilter(c)
	if err != nil {
		return fail(c, err)
	}
	page, err := pagination(c)
	if err != nil {
		return fail(c, err)
	}
	result, err := h.service.ListProducts(c.UserContext(), filter, page)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// CountProducts
// GET /api/v1/products/count
func (h *ProductHandler) CountProducts(c *fiber.Ctx) error {
	filter, err := productFilter(c)
	if err != nil {
		return fail(c, err)
	}
	n, err := h.service.CountProducts(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"totalCount": n})
}

func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	product, err := h.service.GetProduct(c.UserContext(), actor(c).TenantID, id)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, product)
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.CreateProductRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	product, err := h.service.CreateProduct(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, product)
}

func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.UpdateProductRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	product, err := h.service.UpdateProduct(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, product)
}

func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	if err := h.service.DeleteProduct(c.UserContext(), actor(c), id); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Product deleted"})
}

// UpdateStock applies a set/add/subtract adjustment
// POST /api/v1/products/:id/stock
func (h *ProductHandler) UpdateStock(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.StockRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	product, err := h.service.UpdateStock(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, product)
}

func (h *ProductHandler) BulkCreate(c *fiber.Ctx) error {
	var req service.BulkCreateRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	products, err := h.service.BulkCreate(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, products)
}

func (h *ProductHandler) BulkUpdate(c *fiber.Ctx) error {
	var req service.BulkUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	products, err := h.service.BulkUpdate(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, products)
}

func (h *ProductHandler) BulkDelete(c *fiber.Ctx) error {
	var req service.BulkDeleteRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	if err := h.service.BulkDelete(c.UserContext(), actor(c), req); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "Products deleted"})
}
