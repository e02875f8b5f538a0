package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"smartfarm.io/farm/internal/service"
)

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Image *string `json:"image"`
}

type setUsernameRequest struct {
	Username string `json:"username"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type linkAccountRequest struct {
	Provider          string `json:"provider"`
	ProviderAccountID string `json:"providerAccountId"`
	Type              string `json:"type"`
}

// GetProfile handles GET /me.
func (s *Server) GetProfile(c *gin.Context) {
	profile, err := s.users.GetProfile(c.Request.Context(), principal(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateProfile handles PATCH /me.
func (s *Server) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.users.UpdateProfile(c.Request.Context(), principal(c), service.ProfilePatch{Name: req.Name, Image: req.Image})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetUsername handles PUT /me/username.
func (s *Server) SetUsername(c *gin.Context) {
	var req setUsernameRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := s.users.SetUsername(c.Request.Context(), principal(c), req.Username)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// SetPassword handles PUT /me/password.
func (s *Server) SetPassword(c *gin.Context) {
	var req setPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := s.users.SetPassword(c.Request.Context(), principal(c), req.Password); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// LinkAccount handles POST /me/accounts.
func (s *Server) LinkAccount(c *gin.Context) {
	var req linkAccountRequest
	if !bindJSON(c, &req) {
		return
	}
	account, err := s.users.LinkAccount(c.Request.Context(), principal(c), service.LinkAccountInput{
		Provider:          req.Provider,
		ProviderAccountID: req.ProviderAccountID,
		Type:              req.Type,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

// UnlinkAccount handles DELETE /me/accounts/:provider.
func (s *Server) UnlinkAccount(c *gin.Context) {
	provider, ok := pathParam(c, "provider")
	if !ok {
		return
	}
	if err := s.users.UnlinkAccount(c.Request.Context(), principal(c), provider); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
