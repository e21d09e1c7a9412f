package account

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pdabank/pdabank/internal/identity"
)

// CallerFunc resolves the authenticated identity of a request.
type CallerFunc func(c *fiber.Ctx) (identity.Identity, bool)

// Handler exposes account HTTP endpoints.
type Handler struct {
	service *Service
	caller  CallerFunc
}

// NewHandler builds an account HTTP handler.
func NewHandler(service *Service, caller CallerFunc) *Handler {
	return &Handler{service: service, caller: caller}
}

type createRequest struct {
	Name string `json:"name"`
}

type amountRequest struct {
	Amount uint64 `json:"amount"`
}

type recordResponse struct {
	Address     identity.Address  `json:"address"`
	DisplayName string            `json:"display_name"`
	Balance     uint64            `json:"balance"`
	Owner       identity.Identity `json:"owner"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type statementResponse struct {
	recordResponse
	RealValue    uint64    `json:"real_value"`
	Reserve      uint64    `json:"reserve"`
	Withdrawable uint64    `json:"withdrawable"`
	AsOf         time.Time `json:"as_of"`
}

// Create initializes the caller's record.
func (h *Handler) Create(c *fiber.Ctx) error {
	caller, ok := h.caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rec, err := h.service.Create(c.UserContext(), caller, req.Name)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(rec))
}

// Deposit moves value from the caller into the record at :address.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.move(c, h.service.Deposit)
}

// Withdraw moves value from the record at :address back to its owner.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.move(c, h.service.Withdraw)
}

func (h *Handler) move(c *fiber.Ctx, op func(ctx context.Context, addr identity.Address, caller identity.Identity, amount uint64) (Record, error)) error {
	caller, ok := h.caller(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	addr, err := identity.ParseAddress(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	rec, err := op(c.UserContext(), addr, caller, req.Amount)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(rec))
}

// Statement returns the record at :address with its ledger figures.
func (h *Handler) Statement(c *fiber.Ctx) error {
	addr, err := identity.ParseAddress(c.Params("address"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return h.statement(c, addr)
}

// ByOwner derives the record address of :identity and returns its statement.
func (h *Handler) ByOwner(c *fiber.Ctx) error {
	owner, err := identity.ParseIdentity(c.Params("identity"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return h.statement(c, h.service.AddressOf(owner))
}

func (h *Handler) statement(c *fiber.Ctx, addr identity.Address) error {
	st, err := h.service.Statement(c.UserContext(), addr)
	if err != nil {
		return toHTTPError(err)
	}
	return c.Status(http.StatusOK).JSON(statementResponse{
		recordResponse: toResponse(st.Record),
		RealValue:      st.RealValue,
		Reserve:        st.Reserve,
		Withdrawable:   st.Withdrawable,
		AsOf:           st.AsOf,
	})
}

func toResponse(rec Record) recordResponse {
	return recordResponse{
		Address:     rec.Address,
		DisplayName: rec.DisplayName,
		Balance:     rec.Balance,
		Owner:       rec.Owner,
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrAlreadyInitialized),
		errors.Is(err, ErrOverflow),
		errors.Is(err, ErrUnderflow),
		errors.Is(err, ErrBalanceConflict):
		return fiber.NewError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrUnauthorized):
		return fiber.NewError(http.StatusForbidden, err.Error())
	case errors.Is(err, ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidName),
		errors.Is(err, ErrTransferFailed):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
