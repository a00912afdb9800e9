package signup

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/revuhq/revu/pkg/revu/auth"
	"github.com/revuhq/revu/pkg/revu/invitations"
)

// Handler exposes registration over HTTP.
type Handler struct {
	db          *gorm.DB
	provisioner *Provisioner
}

func NewHandler(db *gorm.DB, provisioner *Provisioner) *Handler {
	return &Handler{db: db, provisioner: provisioner}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email            string `json:"email" binding:"required,email"`
	Password         string `json:"password" binding:"required,min=8"`
	Name             string `json:"name" binding:"required"`
	OrganizationName string `json:"organization_name"`
	InviteToken      string `json:"invite_token"`
	AreaID           *uint  `json:"area_id"`
	AreaName         string `json:"area_name"`
	AreaDescription  string `json:"area_description"`
}

// Register godoc
// @Summary Register a new user
// @Description Create an account, either by redeeming an invitation token or by email-domain signup
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration details"
// @Success 201 {object} auth.AuthResponse
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.provisioner.SignUp(Request{
		Email:            req.Email,
		Password:         req.Password,
		Name:             req.Name,
		OrganizationName: req.OrganizationName,
		InviteToken:      req.InviteToken,
		AreaID:           req.AreaID,
		AreaName:         req.AreaName,
		AreaDescription:  req.AreaDescription,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		case errors.Is(err, ErrUninvitedDomain):
			c.JSON(http.StatusForbidden, gin.H{"error": "Signups for this organization require an invitation"})
		case errors.Is(err, invitations.ErrDomainMismatch):
			c.JSON(http.StatusForbidden, gin.H{"error": "This invitation was issued for a different email domain"})
		case errors.Is(err, invitations.ErrAreaRequired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "An area must be chosen to redeem this invitation"})
		case errors.Is(err, invitations.ErrNotFound),
			errors.Is(err, invitations.ErrExpired),
			errors.Is(err, invitations.ErrAlreadyUsed):
			// Deliberately indistinguishable so the endpoint cannot be
			// used to probe token state.
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invitation is invalid or has expired"})
		default:
			log.Error().Err(err).Str("email", req.Email).Msg("Signup failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		}
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Email, string(user.Role), user.OrganizationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	log.Info().Uint("user_id", user.ID).Str("role", string(user.Role)).Msg("User registered")
	c.JSON(http.StatusCreated, auth.AuthResponse{
		Token: token,
		User:  auth.ToUserResponse(user),
	})
}

// RegisterRoutes registers signup routes on the auth route group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.Register)
}
