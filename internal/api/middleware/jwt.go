package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
)

// JWTClaims are the session claims of a signed-in farm user.
type JWTClaims struct {
	UserID   string      `json:"user_id"`
	Username string      `json:"username"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// JWTConfig holds JWT signing configuration.
//
// Tokens are signed with SigningKey. VerificationKeys are extra keys still
// accepted during a secret rotation.
type JWTConfig struct {
	SigningKey       []byte
	VerificationKeys [][]byte
	Issuer           string
	ExpiresIn        time.Duration

	now func() time.Time
}

func (cfg JWTConfig) clock() time.Time {
	if cfg.now != nil {
		return cfg.now()
	}
	return time.Now()
}

// GenerateToken creates a signed JWT for the given user.
func GenerateToken(cfg JWTConfig, userID, username string, role domain.Role) (string, time.Time, error) {
	if len(cfg.SigningKey) == 0 {
		return "", time.Time{}, errors.New("sign token: empty signing key")
	}
	now := cfg.clock()
	expiresAt := now.Add(cfg.ExpiresIn)

	id, err := uuid.NewV7()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token id: %w", err)
	}
	claims := JWTClaims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Issuer:    cfg.Issuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(cfg.SigningKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// ValidateToken parses tokenString and checks its signature, issuer and
// lifetime. The signing key is tried first, then each verification key.
func ValidateToken(cfg JWTConfig, tokenString string) (*JWTClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(cfg.clock),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	keys := append([][]byte{cfg.SigningKey}, cfg.VerificationKeys...)
	var lastErr error
	for _, key := range keys {
		if len(key) == 0 {
			continue
		}
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return key, nil
		}, opts...)
		if err == nil && token.Valid {
			if claims.UserID == "" || !claims.Role.Valid() {
				return nil, errors.New("invalid token claims")
			}
			return claims, nil
		}
		lastErr = err
		// Only a bad signature is worth retrying with the next key.
		if !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			break
		}
	}
	if lastErr == nil {
		lastErr = errors.New("no verification key configured")
	}
	return nil, lastErr
}

// TokenIssuer signs session tokens for the user service.
type TokenIssuer struct {
	cfg JWTConfig
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(cfg JWTConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg}
}

// Issue signs a token for the user.
func (i *TokenIssuer) Issue(userID, username string, role domain.Role) (string, time.Time, error) {
	return GenerateToken(i.cfg, userID, username, role)
}

func abortUnauthorized(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"code":    "UNAUTHORIZED",
		"message": msg,
	})
}

// JWTAuth returns a Gin middleware that validates Bearer tokens and puts the
// caller's principal in the context.
func JWTAuth(cfg JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortUnauthorized(c, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			abortUnauthorized(c, "invalid authorization header format")
			return
		}

		claims, err := ValidateToken(cfg, strings.TrimSpace(parts[1]))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			abortUnauthorized(c, msg)
			return
		}

		p := authz.Principal{UserID: claims.UserID, Role: claims.Role}
		c.Set(string(ctxKeyPrincipal), p)
		c.Set(string(ctxKeyUsername), claims.Username)
		c.Request = c.Request.WithContext(SetPrincipal(c.Request.Context(), p, claims.Username))

		c.Next()
	}
}
