package faucet

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pdabank/pdabank/internal/identity"
	"github.com/pdabank/pdabank/internal/ledger"
)

// Handler exposes faucet and identity balance endpoints.
type Handler struct {
	service *Service
	ledger  ledger.Ledger
}

// NewHandler constructs a faucet handler.
func NewHandler(service *Service, ledgerBackend ledger.Ledger) *Handler {
	return &Handler{service: service, ledger: ledgerBackend}
}

type airdropRequest struct {
	Identity identity.Identity `json:"identity"`
	Amount   uint64            `json:"amount"`
}

type balanceResponse struct {
	Identity identity.Identity `json:"identity"`
	Balance  uint64            `json:"balance"`
}

// Airdrop credits an identity from the system faucet.
func (h *Handler) Airdrop(c *fiber.Ctx) error {
	var req airdropRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	value, err := h.service.Airdrop(c.UserContext(), req.Identity, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ErrFaucetDisabled):
			return fiber.NewError(http.StatusForbidden, err.Error())
		case errors.Is(err, ledger.ErrOverflow):
			return fiber.NewError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrAmountTooLarge),
			errors.Is(err, ErrInvalidAmount),
			errors.Is(err, identity.ErrInvalidIdentity):
			return fiber.NewError(http.StatusBadRequest, err.Error())
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{Identity: req.Identity, Balance: value})
}

// Balance returns the value held by :identity.
func (h *Handler) Balance(c *fiber.Ctx) error {
	id, err := identity.ParseIdentity(c.Params("identity"))
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	value, err := h.ledger.IdentityValue(c.UserContext(), id)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(balanceResponse{Identity: id, Balance: value})
}
