package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartfarm.io/farm/internal/authz"
	"smartfarm.io/farm/internal/domain"
)

func testJWTConfig() JWTConfig {
	return JWTConfig{
		SigningKey: []byte("test-signing-key-1234567890123456"),
		Issuer:     "smartfarm",
		ExpiresIn:  time.Hour,
	}
}

func TestValidateToken_Success(t *testing.T) {
	cfg := testJWTConfig()

	token, expiresAt, err := GenerateToken(cfg, "u-1", "somchai", domain.RoleFarmer)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := ValidateToken(cfg, token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, "somchai", claims.Username)
	assert.Equal(t, domain.RoleFarmer, claims.Role)
	assert.NotEmpty(t, claims.ID)
	require.NotNil(t, claims.NotBefore)
}

func TestValidateToken_RejectsInvalidIssuer(t *testing.T) {
	issuerCfg := testJWTConfig()
	token, _, err := GenerateToken(issuerCfg, "u-1", "somchai", domain.RoleFarmer)
	require.NoError(t, err)

	validatorCfg := JWTConfig{
		SigningKey: issuerCfg.SigningKey,
		Issuer:     "other-issuer",
	}
	_, err = ValidateToken(validatorCfg, token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)
}

func TestValidateToken_SupportsVerificationKeyRotation(t *testing.T) {
	oldKey := []byte("old-key-123456789012345678901234567890")
	newKey := []byte("new-key-123456789012345678901234567890")

	token, _, err := GenerateToken(JWTConfig{
		SigningKey: oldKey,
		Issuer:     "smartfarm",
		ExpiresIn:  time.Hour,
	}, "u-1", "admin", domain.RoleAdmin)
	require.NoError(t, err)

	claims, err := ValidateToken(JWTConfig{
		SigningKey:       newKey,
		VerificationKeys: [][]byte{oldKey},
		Issuer:           "smartfarm",
	}, token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	_, err = ValidateToken(JWTConfig{SigningKey: newKey, Issuer: "smartfarm"}, token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateToken_RejectsNoneSigningMethod(t *testing.T) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{
		UserID: "u-1",
		Role:   domain.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "smartfarm",
			Subject:   "u-1",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ValidateToken(testJWTConfig(), tokenString)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestValidateToken_RejectsExpiredAndUnknownRole(t *testing.T) {
	cfg := testJWTConfig()
	cfg.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _, err := GenerateToken(cfg, "u-1", "somchai", domain.RoleFarmer)
	require.NoError(t, err)

	_, err = ValidateToken(testJWTConfig(), expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	odd, _, err := GenerateToken(testJWTConfig(), "u-1", "somchai", domain.Role("ROOT"))
	require.NoError(t, err)
	_, err = ValidateToken(testJWTConfig(), odd)
	assert.Error(t, err)
}

func TestGenerateToken_EmptyKey(t *testing.T) {
	_, _, err := GenerateToken(JWTConfig{ExpiresIn: time.Hour}, "u-1", "somchai", domain.RoleFarmer)
	assert.Error(t, err)
}

func TestTokenIssuer_Issue(t *testing.T) {
	issuer := NewTokenIssuer(testJWTConfig())
	token, _, err := issuer.Issue("u-9", "malee", domain.RoleFarmer)
	require.NoError(t, err)

	claims, err := ValidateToken(testJWTConfig(), token)
	require.NoError(t, err)
	assert.Equal(t, "u-9", claims.Subject)
}

func TestJWTAuth(t *testing.T) {
	cfg := testJWTConfig()
	valid, _, err := GenerateToken(cfg, "u-1", "somchai", domain.RoleFarmer)
	require.NoError(t, err)

	router := gin.New()
	router.Use(JWTAuth(cfg))
	router.GET("/me", func(c *gin.Context) {
		p := GetPrincipal(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"id": p.UserID, "role": p.Role, "username": GetUsername(c.Request.Context())})
	})

	tests := []struct {
		name    string
		header  string
		status  int
		message string
	}{
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + valid, status: http.StatusOK},
		{name: "missing", header: "", status: http.StatusUnauthorized, message: "missing authorization header"},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, message: "invalid authorization header format"},
		{name: "garbage", header: "Bearer not-a-token", status: http.StatusUnauthorized, message: "invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			require.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusOK {
				assert.JSONEq(t, `{"id":"u-1","role":"FARMER","username":"somchai"}`, w.Body.String())
				return
			}
			assert.JSONEq(t, `{"code":"UNAUTHORIZED","message":"`+tt.message+`"}`, w.Body.String())
		})
	}
}

func TestGetPrincipal_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, authz.Principal{}, GetPrincipal(req.Context()))
	assert.Empty(t, GetUsername(req.Context()))
}
