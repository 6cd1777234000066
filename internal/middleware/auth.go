package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "github.com/studypay/duebell/pkg/errors"
	"github.com/studypay/duebell/pkg/response"
)

// Header names used by the gateway in front of this service.
const (
	HeaderEngineKey = "X-Engine-Key"
	HeaderAgencyID  = "X-Agency-ID"
	HeaderStaffID   = "X-Staff-ID"
)

// Gin context keys populated by TenantIdentity.
const (
	ContextAgencyID = "agency_id"
	ContextStaffID  = "staff_id"
)

// RequireEngineKey guards machine-to-machine endpoints (pass trigger, event
// ingestion) with a pre-shared key, compared in constant time.
func RequireEngineKey(key string) gin.HandlerFunc {
	expected := []byte(strings.TrimSpace(key))

	return func(c *gin.Context) {
		if len(expected) == 0 {
			response.Error(c, apperrors.New("ENGINE_KEY_UNSET", "Engine trigger key is not configured", 503))
			c.Abort()
			return
		}

		provided := []byte(strings.TrimSpace(c.GetHeader(HeaderEngineKey)))
		if len(provided) != len(expected) || subtle.ConstantTimeCompare(provided, expected) != 1 {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Next()
	}
}

// TenantIdentity extracts the gateway-asserted agency (and optional staff
// member) identity headers. The upstream gateway authenticates the actual
// user; this service only scopes data access by what the gateway forwards.
func TenantIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		agencyID := strings.TrimSpace(c.GetHeader(HeaderAgencyID))
		if agencyID == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			c.Abort()
			return
		}
		c.Set(ContextAgencyID, agencyID)

		if staffID := strings.TrimSpace(c.GetHeader(HeaderStaffID)); staffID != "" {
			c.Set(ContextStaffID, staffID)
		}

		c.Next()
	}
}
