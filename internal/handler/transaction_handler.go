package handler

import (
	"strconv"
	"time"

	"go-pos-api/internal/model"
	"go-pos-api/internal/repository"
	"go-pos-api/internal/service"
	"go-pos-api/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

type TransactionHandler struct {
	service service.TransactionService
}

func NewTransactionHandler(s service.TransactionService) *TransactionHandler {
	return &TransactionHandler{service: s}
}

// CreateTransaction opens a PENDING order
// POST /api/v1/transactions
func (h *TransactionHandler) CreateTransaction(c *fiber.Ctx) error {
	var req service.CreateOrderRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	txn, err := h.service.CreateOrder(c.UserContext(), actor(c), req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusCreated, txn)
}

func queryDate(c *fiber.Ctx, name string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperror.Validation(name, "must use the YYYY-MM-DD format")
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// GetTransactions lists orders
// GET /api/v1/transactions?status=&from=&to=&page=&limit=
func (h *TransactionHandler) GetTransactions(c *fiber.Ctx) error {
	page, err := pagination(c)
	if err != nil {
		return fail(c, err)
	}
	filter := repository.TransactionFilter{Status: model.TransactionStatus(c.Query("status"))}
	if filter.From, err = queryDate(c, "from", false); err != nil {
		return fail(c, err)
	}
	if filter.To, err = queryDate(c, "to", true); err != nil {
		return fail(c, err)
	}
	result, err := h.service.ListTransactions(c.UserContext(), actor(c), filter, page)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	txn, err := h.service.GetTransaction(c.UserContext(), actor(c), id)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, txn)
}

// CompletePayment
// POST /api/v1/transactions/:id/complete {paymentAmount, paymentMethod}
func (h *TransactionHandler) CompletePayment(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}
	var req service.CompletePaymentRequest
	if err := parseBody(c, &req); err != nil {
		return fail(c, err)
	}
	result, err := h.service.CompletePayment(c.UserContext(), actor(c), id, req)
	if err != nil {
		return fail(c, err)
	}
	return success(c, fiber.StatusOK, result)
}

// GetReceipt returns the receipt payload, or a rendered file with ?format=
// GET /api/v1/transactions/:id/receipt
func (h *TransactionHandler) GetReceipt(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return fail(c, err)
	}

	format := c.Query("format")
	if format == "" || format == "json" {
		data, err := h.service.GetReceipt(c.UserContext(), actor(c), id)
		if err != nil {
			return fail(c, err)
		}
		return success(c, fiber.StatusOK, data)
	}

	artifact, err := h.service.RenderReceipt(c.UserContext(), actor(c), id, format)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, artifact.ContentType)
	c.Set(fiber.HeaderContentDisposition, `attachment; filename=`+strconv.Quote(artifact.Filename))
	return c.Send(artifact.Body)
}
