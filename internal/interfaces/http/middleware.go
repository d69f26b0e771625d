package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/ope-approval/internal/application/port"
	"github.com/garyjia/ope-approval/internal/application/service"
	"github.com/garyjia/ope-approval/internal/domain/entity"
	"github.com/garyjia/ope-approval/internal/domain/errs"
)

const (
	principalKey       = "principal"
	employeeCodeHeader = "X-Employee-Code"
)

// identityMiddleware verifies the bearer token, resolves the caller's roles once
// and caches the principal on the request context
func identityMiddleware(identity port.IdentityProvider, roles service.RoleResolver, allowHeader bool, logger Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, ok := callerCode(c, identity, allowHeader)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{Success: false, Error: "missing or invalid credentials"})
			return
		}

		p, err := roles.Resolve(c.Request.Context(), code)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, Response{Success: false, Code: "unauthorized", Error: "unknown employee " + code})
				return
			}
			logger.Error("Failed to resolve caller", "error", err, "employee_code", code)
			writeError(c, err)
			c.Abort()
			return
		}

		c.Set(principalKey, p)
		c.Request = c.Request.WithContext(service.WithPrincipal(c.Request.Context(), p))
		c.Next()
	}
}

func callerCode(c *gin.Context, identity port.IdentityProvider, allowHeader bool) (string, bool) {
	header := c.GetHeader("Authorization")
	if token, found := strings.CutPrefix(header, "Bearer "); found && identity != nil {
		code, err := identity.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			return "", false
		}
		return code, true
	}

	if allowHeader && header == "" {
		if code := strings.TrimSpace(c.GetHeader(employeeCodeHeader)); code != "" {
			return code, true
		}
	}
	return "", false
}

// principal returns the caller resolved by identityMiddleware
func principal(c *gin.Context) *entity.Principal {
	if v, ok := c.Get(principalKey); ok {
		if p, ok := v.(*entity.Principal); ok {
			return p
		}
	}
	return nil
}
