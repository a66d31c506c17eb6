package httpapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const actorKey = "actor"

// authMiddleware verifies the bearer token and stores its subject as the actor.
func (s *Server) authMiddleware(c *fiber.Ctx) error {
	auth := c.Get(fiber.HeaderAuthorization)
	tokenString, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || tokenString == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "no bearer token"})
	}

	actor, err := s.validateToken(tokenString)
	if err != nil {
		s.logger.Debug("", "auth", "rejected token: "+err.Error())
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid token"})
	}
	c.Locals(actorKey, actor)
	return c.Next()
}

// validateToken checks an HS256 token and returns its subject.
func (s *Server) validateToken(tokenString string) (string, error) {
	if len(s.secret) == 0 {
		return "", jwt.ErrInvalidKey
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return claims.Subject, nil
}

// actorOf returns the authenticated actor of the request.
func actorOf(c *fiber.Ctx) string {
	actor, _ := c.Locals(actorKey).(string)
	return actor
}

// IssueToken signs an HS256 token for subject. It is used by 'taskcal token'
// and by tests.
func IssueToken(secret, subject string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: subject})
	return token.SignedString([]byte(secret))
}
