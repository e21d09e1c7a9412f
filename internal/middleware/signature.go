package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/pdabank/pdabank/internal/auth"
	"github.com/pdabank/pdabank/internal/identity"
)

const (
	IdentityHeader  = "X-Identity"
	TimestampHeader = "X-Timestamp"
	SignatureHeader = "X-Signature"

	identityLocal = "identity"
)

// SignatureAuth verifies the ed25519 request signature and stores the caller
// identity for downstream handlers.
func SignatureAuth(maxSkew time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rawID := c.Get(IdentityHeader)
		rawTS := c.Get(TimestampHeader)
		sig := c.Get(SignatureHeader)
		if rawID == "" || rawTS == "" || sig == "" {
			return fiber.NewError(http.StatusUnauthorized, auth.ErrMissingSignature.Error())
		}

		id, err := identity.ParseIdentity(rawID)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		ts, err := strconv.ParseInt(rawTS, 10, 64)
		if err != nil {
			return fiber.NewError(http.StatusUnauthorized, "invalid timestamp")
		}
		if err := auth.CheckTimestamp(ts, time.Now(), maxSkew); err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}
		if err := auth.Verify(id, sig, c.Method(), c.Path(), ts, c.Body()); err != nil {
			return fiber.NewError(http.StatusUnauthorized, err.Error())
		}

		c.Locals(identityLocal, id)
		c.Locals(signatureLocal, sig)
		return c.Next()
	}
}

// CallerIdentity returns the identity established by SignatureAuth.
func CallerIdentity(c *fiber.Ctx) (identity.Identity, bool) {
	id, ok := c.Locals(identityLocal).(identity.Identity)
	return id, ok && !id.IsZero()
}
