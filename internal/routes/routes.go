package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LoginPath is where the SPA sends unauthenticated visitors.
const LoginPath = "/login"

// Route is one entry in the static route table: a method/path pair, the
// handler that serves it, and whether the session guard protects it.
type Route struct {
	Method  string
	Path    string
	Auth    bool
	Handler gin.HandlerFunc
}

type Table []Route

// Mount registers every route in the table on the group. Routes flagged
// Auth get the guard chain in front of the handler; public routes go
// straight to the handler. The table is the only registration mechanism —
// handlers never attach themselves to the router directly.
func (t Table) Mount(rg *gin.RouterGroup, guard ...gin.HandlerFunc) {
	for _, r := range t {
		if r.Auth {
			chain := make([]gin.HandlerFunc, 0, len(guard)+1)
			chain = append(chain, guard...)
			chain = append(chain, r.Handler)
			rg.Handle(r.Method, r.Path, chain...)
			continue
		}
		rg.Handle(r.Method, r.Path, r.Handler)
	}
}

// Deny is the guard's terminal response for requests with no usable
// identity. The SPA treats login_url as a redirect target.
func Deny(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"ok":        false,
		"error":     "authentication required",
		"login_url": LoginPath,
	})
}
