package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/MacJediWizard/orggraph/internal/orgchart"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// UserService defines the user operations used by the handler.
type UserService interface {
	CreateUserWithStrategy(ctx context.Context, strategy orgchart.Strategy, orgID string, in models.UserInput) (any, error)
	UpdateUser(ctx context.Context, orgID, userID string, in models.UserInput) (*models.UserProjection, error)
	UpdateUserProperties(ctx context.Context, orgID, userID string, in models.UserInput) (*models.User, error)
	FindUser(ctx context.Context, orgID, userID string) (*models.User, error)
	FindProjection(ctx context.Context, orgID, userID string) (*models.UserProjection, error)
	FindProjectionCustomQuery(ctx context.Context, orgID, userID string) (*models.UserProjection, error)
	Chain(ctx context.Context, orgID, userID string) (*models.SupervisionChain, error)
}

// UsersHandler handles user HTTP endpoints scoped to an organization.
type UsersHandler struct {
	service UserService
	logger  zerolog.Logger
}

// NewUsersHandler creates a new UsersHandler.
func NewUsersHandler(service UserService, logger zerolog.Logger) *UsersHandler {
	return &UsersHandler{
		service: service,
		logger:  logger.With().Str("component", "users_handler").Logger(),
	}
}

// RegisterRoutes registers user routes under /organization/:orgId/users.
func (h *UsersHandler) RegisterRoutes(r gin.IRouter) {
	users := r.Group("/organization/:orgId/users")
	{
		users.POST("", h.Create)
		users.POST("/withprojections/:strategy", h.CreateWithStrategy)
		users.PUT("/withprojections/a/:userId", h.Update)

		users.GET("/:userId", h.Get)
		users.PATCH("/:userId", h.Update)
		users.PATCH("/:userId/properties", h.UpdateProperties)
		users.GET("/:userId/projection", h.GetProjection)
		users.GET("/:userId/projection/custom", h.GetProjectionCustom)
		users.GET("/:userId/chain", h.GetChain)
	}
}

// Create creates a user, resolving the full supervisor entity.
//
//	@Summary		Create user
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			orgId	path		string				true	"Organization ID"
//	@Param			request	body		models.UserInput	false	"User"
//	@Success		201		{object}	models.User
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users [post]
func (h *UsersHandler) Create(c *gin.Context) {
	h.create(c, orgchart.StrategyBaseline)
}

// CreateWithStrategy creates a user with one of the projection-based strategies.
//
//	@Summary		Create user with a persistence strategy
//	@Description	Strategy a, b or d returns a projection; c returns a DTO with a detached supervisor reference
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			orgId		path		string				true	"Organization ID"
//	@Param			strategy	path		string				true	"Strategy"	Enums(a, b, c, d)
//	@Param			request		body		models.UserInput	false	"User"
//	@Success		201			{object}	models.UserProjection
//	@Failure		400			{object}	ErrorResponse
//	@Failure		404			{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/withprojections/{strategy} [post]
func (h *UsersHandler) CreateWithStrategy(c *gin.Context) {
	strategy, err := orgchart.ParseStrategy(c.Param("strategy"))
	if err != nil || strategy == orgchart.StrategyBaseline {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "unknown strategy: " + c.Param("strategy")})
		return
	}
	h.create(c, strategy)
}

func (h *UsersHandler) create(c *gin.Context, strategy orgchart.Strategy) {
	var req models.UserInput
	if !bindJSON(c, &req, true) {
		return
	}

	result, err := h.service.CreateUserWithStrategy(c.Request.Context(), strategy, c.Param("orgId"), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to create user")
		return
	}

	c.JSON(http.StatusCreated, result)
}

// Update applies a partial update to a user and its supervisor.
//
//	@Summary		Update user
//	@Description	Absent fields keep their value; a version makes the update conditional
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			orgId	path		string				true	"Organization ID"
//	@Param			userId	path		string				true	"User ID"
//	@Param			request	body		models.UserInput	true	"Changes"
//	@Success		200		{object}	models.UserProjection
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId} [patch]
//	@Router			/organization/{orgId}/users/withprojections/a/{userId} [put]
func (h *UsersHandler) Update(c *gin.Context) {
	var req models.UserInput
	if !bindJSON(c, &req, false) {
		return
	}

	p, err := h.service.UpdateUser(c.Request.Context(), c.Param("orgId"), c.Param("userId"), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to update user")
		return
	}

	c.JSON(http.StatusOK, p)
}

// UpdateProperties updates name properties only, leaving relationships untouched.
//
//	@Summary		Update user properties
//	@Tags			Users
//	@Accept			json
//	@Produce		json
//	@Param			orgId	path		string				true	"Organization ID"
//	@Param			userId	path		string				true	"User ID"
//	@Param			request	body		models.UserInput	true	"Changes"
//	@Success		200		{object}	models.User
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		409		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId}/properties [patch]
func (h *UsersHandler) UpdateProperties(c *gin.Context) {
	var req models.UserInput
	if !bindJSON(c, &req, false) {
		return
	}

	u, err := h.service.UpdateUserProperties(c.Request.Context(), c.Param("orgId"), c.Param("userId"), req)
	if err != nil {
		respondError(c, h.logger, err, "failed to update user properties")
		return
	}

	c.JSON(http.StatusOK, u)
}

// Get returns the full user with its supervisor chain.
//
//	@Summary		Get user
//	@Tags			Users
//	@Produce		json
//	@Param			orgId	path		string	true	"Organization ID"
//	@Param			userId	path		string	true	"User ID"
//	@Success		200		{object}	models.User
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId} [get]
func (h *UsersHandler) Get(c *gin.Context) {
	u, err := h.service.FindUser(c.Request.Context(), c.Param("orgId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get user")
		return
	}
	c.JSON(http.StatusOK, u)
}

// GetProjection returns the user projection derived from the full entity.
//
//	@Summary		Get user projection
//	@Tags			Users
//	@Produce		json
//	@Param			orgId	path		string	true	"Organization ID"
//	@Param			userId	path		string	true	"User ID"
//	@Success		200		{object}	models.UserProjection
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId}/projection [get]
func (h *UsersHandler) GetProjection(c *gin.Context) {
	p, err := h.service.FindProjection(c.Request.Context(), c.Param("orgId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get user projection")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetProjectionCustom returns the user projection read with a single query.
//
//	@Summary		Get user projection (single query)
//	@Tags			Users
//	@Produce		json
//	@Param			orgId	path		string	true	"Organization ID"
//	@Param			userId	path		string	true	"User ID"
//	@Success		200		{object}	models.UserProjection
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId}/projection/custom [get]
func (h *UsersHandler) GetProjectionCustom(c *gin.Context) {
	p, err := h.service.FindProjectionCustomQuery(c.Request.Context(), c.Param("orgId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get user projection")
		return
	}
	c.JSON(http.StatusOK, p)
}

// GetChain returns the user's supervisors from nearest to root.
//
//	@Summary		Get supervision chain
//	@Tags			Users
//	@Produce		json
//	@Param			orgId	path		string	true	"Organization ID"
//	@Param			userId	path		string	true	"User ID"
//	@Success		200		{object}	models.SupervisionChain
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId}/users/{userId}/chain [get]
func (h *UsersHandler) GetChain(c *gin.Context) {
	chain, err := h.service.Chain(c.Request.Context(), c.Param("orgId"), c.Param("userId"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get supervision chain")
		return
	}
	c.JSON(http.StatusOK, chain)
}
