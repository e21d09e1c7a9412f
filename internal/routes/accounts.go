package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pdabank/pdabank/internal/account"
)

// RegisterAccountRoutes wires the signed account mutations behind mw.
func RegisterAccountRoutes(r fiber.Router, h *account.Handler, mw ...fiber.Handler) {
	r.Post("/accounts", chain(mw, h.Create)...)
	r.Post("/accounts/:address/deposit", chain(mw, h.Deposit)...)
	r.Post("/accounts/:address/withdraw", chain(mw, h.Withdraw)...)
}

// RegisterAccountQueryRoutes wires the public account reads.
func RegisterAccountQueryRoutes(r fiber.Router, h *account.Handler) {
	r.Get("/accounts/:address", h.Statement)
	r.Get("/owners/:identity/account", h.ByOwner)
}

func chain(mw []fiber.Handler, h fiber.Handler) []fiber.Handler {
	out := make([]fiber.Handler, 0, len(mw)+1)
	out = append(out, mw...)
	return append(out, h)
}
