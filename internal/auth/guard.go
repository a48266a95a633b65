package auth

import (
	"net/http"
	"strings"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"

	"github.com/skillhive-app/skillhive-backend/internal/routes"
	"github.com/skillhive-app/skillhive-backend/internal/users"
)

// Guard verifies the session and resolves the caller to a database user.
//
// Normal mode: the Authorization header must carry a Firebase ID token; a
// missing or invalid token ends the request with the login redirect payload.
// Dev mode (authClient == nil): identity is taken from X-User-Id, matching
// what the hosted auth emulator sends.
//
// On success the guard upserts the user row and stores firebase_uid,
// user_db_id and user_email in the gin context.
func Guard(authClient *fbauth.Client, userRepo *users.Repo) gin.HandlerFunc {
	return func(c *gin.Context) {
		var uid, email, name, photo string

		if authClient == nil {
			uid = strings.TrimSpace(c.GetHeader("X-User-Id"))
			email = c.GetHeader("X-User-Email")
			name = c.GetHeader("X-User-Name")
			if uid == "" {
				routes.Deny(c)
				return
			}
		} else {
			token := extractBearer(c)
			if token == "" {
				routes.Deny(c)
				return
			}

			decoded, err := authClient.VerifyIDToken(c.Request.Context(), token)
			if err != nil {
				routes.Deny(c)
				return
			}

			uid = decoded.UID
			if v, ok := decoded.Claims["email"].(string); ok {
				email = v
			}
			if v, ok := decoded.Claims["name"].(string); ok {
				name = v
			}
			if v, ok := decoded.Claims["picture"].(string); ok {
				photo = v
			}
		}

		dbID, err := userRepo.EnsureUser(c.Request.Context(), users.UpsertUser{
			FirebaseUID: uid,
			Email:       email,
			DisplayName: name,
			PhotoURL:    photo,
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "ensure user: " + err.Error()})
			return
		}

		c.Set(CtxFirebaseUID, uid)
		c.Set(CtxUserDBID, dbID)
		c.Set(CtxUserEmail, email)
		c.Next()
	}
}

// extractBearer pulls the token out of "Authorization: Bearer <token>".
func extractBearer(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.HasPrefix(h, "Bearer ") {
		return h[7:]
	}
	return ""
}
