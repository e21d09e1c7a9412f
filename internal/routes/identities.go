package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pdabank/pdabank/internal/faucet"
)

// RegisterIdentityRoutes wires identity balance lookups.
func RegisterIdentityRoutes(r fiber.Router, h *faucet.Handler) {
	r.Get("/identities/:identity/balance", h.Balance)
}

// RegisterFaucetRoutes wires the development faucet behind mw.
func RegisterFaucetRoutes(r fiber.Router, h *faucet.Handler, mw ...fiber.Handler) {
	r.Post("/faucet/airdrop", chain(mw, h.Airdrop)...)
}
