package authmw

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	ctxUserID = "user_id"
	ctxRole   = "role"

	// Guests identify their cart through this header.
	SessionHeader = "X-Session-Id"
)

type JWT struct {
	Secret []byte
}

// Optional attaches the caller's identity when a valid token is present and
// lets the request through either way; the cart endpoints serve guests too.
func (m *JWT) Optional(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if claims, err := m.parse(c); err == nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func (m *JWT) Require(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.parse(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing token")
		}
		setUserContext(c, claims)
		return next(c)
	}
}

func (m *JWT) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return m.Require(func(c echo.Context) error {
		if Role(c) != "admin" {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	})
}

func (m *JWT) parse(c echo.Context) (jwt.MapClaims, error) {
	raw := bearerToken(c)
	if raw == "" {
		return nil, fmt.Errorf("missing token")
	}

	token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func bearerToken(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := c.Cookie("accessToken"); err == nil {
		return cookie.Value
	}
	return ""
}

func setUserContext(c echo.Context, claims jwt.MapClaims) {
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return
	}
	c.Set(ctxUserID, id)
	if role, ok := claims["role"].(string); ok {
		c.Set(ctxRole, role)
	}
}

// UserID reports the authenticated caller, if any.
func UserID(c echo.Context) (uuid.UUID, bool) {
	id, ok := c.Get(ctxUserID).(uuid.UUID)
	return id, ok
}

func Role(c echo.Context) string {
	role, _ := c.Get(ctxRole).(string)
	return role
}

// SessionID returns the guest session identifier, if the client sent one.
func SessionID(c echo.Context) string {
	return c.Request().Header.Get(SessionHeader)
}
