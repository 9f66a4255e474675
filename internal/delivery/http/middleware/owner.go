package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// Headers set by the authenticating gateway.
const (
	OrgIDHeader         = "X-Org-ID"
	UserIDHeader        = "X-User-ID"
	GatewaySecretHeader = "X-Gateway-Secret"

	ownerKey = "owner"
)

// Owner turns gateway identity headers into a *domain.Owner on the context.
// The headers count only when the request carries gatewaySecret in
// X-Gateway-Secret; an empty gatewaySecret disables owner mode entirely.
// Everything else stays anonymous.
func Owner(gatewaySecret string) gin.HandlerFunc {
	secret := []byte(gatewaySecret)
	return func(c *gin.Context) {
		orgID := strings.TrimSpace(c.GetHeader(OrgIDHeader))
		if orgID != "" && fromGateway(c, secret) {
			c.Set(ownerKey, &domain.Owner{
				OrgID:  orgID,
				UserID: strings.TrimSpace(c.GetHeader(UserIDHeader)),
			})
		}
		c.Next()
	}
}

func fromGateway(c *gin.Context, secret []byte) bool {
	if len(secret) == 0 {
		return false
	}
	presented := []byte(c.GetHeader(GatewaySecretHeader))
	return subtle.ConstantTimeCompare(presented, secret) == 1
}

// GetOwner returns the caller's owner context, or nil for anonymous requests.
func GetOwner(c *gin.Context) *domain.Owner {
	v, ok := c.Get(ownerKey)
	if !ok {
		return nil
	}
	owner, _ := v.(*domain.Owner)
	return owner
}
