package handlers

import (
	"context"
	"net/http"

	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// OrganizationService defines the organization operations used by the handler.
type OrganizationService interface {
	CreateOrganization(ctx context.Context, name string) (*models.Organization, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
}

// OrganizationsHandler handles organization HTTP endpoints.
type OrganizationsHandler struct {
	service OrganizationService
	logger  zerolog.Logger
}

// NewOrganizationsHandler creates a new OrganizationsHandler.
func NewOrganizationsHandler(service OrganizationService, logger zerolog.Logger) *OrganizationsHandler {
	return &OrganizationsHandler{
		service: service,
		logger:  logger.With().Str("component", "organizations_handler").Logger(),
	}
}

// RegisterRoutes registers organization routes.
func (h *OrganizationsHandler) RegisterRoutes(r gin.IRouter) {
	r.POST("/organization", h.Create)
	r.GET("/organization/:orgId", h.Get)
}

// Create creates a new organization.
//
//	@Summary		Create organization
//	@Tags			Organizations
//	@Accept			json
//	@Produce		json
//	@Param			request	body		models.OrganizationInput	true	"Organization"
//	@Success		201		{object}	models.Organization
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/organization [post]
func (h *OrganizationsHandler) Create(c *gin.Context) {
	var req models.OrganizationInput
	if !bindJSON(c, &req, false) {
		return
	}

	org, err := h.service.CreateOrganization(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, h.logger, err, "failed to create organization")
		return
	}

	c.JSON(http.StatusCreated, org)
}

// Get returns an organization.
//
//	@Summary		Get organization
//	@Tags			Organizations
//	@Produce		json
//	@Param			orgId	path		string	true	"Organization ID"
//	@Success		200		{object}	models.Organization
//	@Failure		404		{object}	ErrorResponse
//	@Router			/organization/{orgId} [get]
func (h *OrganizationsHandler) Get(c *gin.Context) {
	org, err := h.service.GetOrganization(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		respondError(c, h.logger, err, "failed to get organization")
		return
	}

	c.JSON(http.StatusOK, org)
}
