package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/gatherly/gatherly/entity"
)

const (
	CookieName    = "jwt"
	TokenLifetime = 7 * 24 * time.Hour

	userKey = "currentUser"
)

// UserFinder resolves a token subject to a stored account.
type UserFinder interface {
	FindOneByID(ID primitive.ObjectID) (*entity.User, error)
}

// AuthMiddleware turns the signed jwt cookie into a caller identity.
// Requests without a valid cookie stay anonymous; guest accounts past
// their expiry date are treated as unauthenticated.
type AuthMiddleware struct {
	secret []byte
	users  UserFinder
}

func NewAuthMiddleware(secret string, users UserFinder) *AuthMiddleware {
	return &AuthMiddleware{
		secret: []byte(secret),
		users:  users,
	}
}

// IssueToken signs a token for the user, valid for seven days.
func (m *AuthMiddleware) IssueToken(userID primitive.ObjectID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// RequireAuth rejects requests that do not resolve to a live account.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, err := m.resolve(ctx)
		if err != nil {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": err.Error()})
			return
		}

		ctx.Set(userKey, user)
		ctx.Next()
	}
}

func (m *AuthMiddleware) resolve(ctx *gin.Context) (*entity.User, error) {
	tokenString, err := ctx.Cookie(CookieName)
	if err != nil || tokenString == "" {
		return nil, errors.New("Unauthorized - No Token Provided")
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("Invalid or expired token")
	}

	userID, err := primitive.ObjectIDFromHex(claims.Subject)
	if err != nil {
		return nil, errors.New("Invalid or expired token")
	}

	user, err := m.users.FindOneByID(userID)
	if err != nil {
		return nil, errors.New("User not found")
	}

	if user.GuestExpired(time.Now()) {
		return nil, errors.New("Guest session expired")
	}

	return user, nil
}

// CurrentUser returns the identity RequireAuth resolved, or nil on routes
// that did not pass through it.
func CurrentUser(ctx *gin.Context) *entity.User {
	value, ok := ctx.Get(userKey)
	if !ok {
		return nil
	}

	user, _ := value.(*entity.User)
	return user
}
