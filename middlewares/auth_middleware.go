package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JerryLinyx/PressGO/state"
)

const adminRecordKey = "admin_record"

// SessionResolver finds the admin session attached to a request.
type SessionResolver interface {
	Resolve(c *gin.Context) (*state.Record, error)
}

// RequireAdmin lets the request through only with a live admin session.
// Browsers are sent back to the login view; script clients get a 401.
func RequireAdmin(resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := resolver.Resolve(c)
		if err != nil || rec == nil {
			if c.GetHeader("Accept") == "application/json" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			} else {
				c.Redirect(http.StatusSeeOther, "/admin")
			}
			c.Abort()
			return
		}

		c.Set(adminRecordKey, rec)
		c.Set("user_id", rec.UserID())
		c.Next()
	}
}

// AdminRecord returns the session stored by RequireAdmin.
func AdminRecord(c *gin.Context) *state.Record {
	if v, ok := c.Get(adminRecordKey); ok {
		if rec, ok := v.(*state.Record); ok {
			return rec
		}
	}
	return nil
}
