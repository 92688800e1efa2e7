package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type mockOrgService struct {
	orgs      map[string]*models.Organization
	createErr error
	created   []string
}

func (m *mockOrgService) CreateOrganization(_ context.Context, name string) (*models.Organization, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, name)
	return &models.Organization{ID: "org-1", Name: name}, nil
}

func (m *mockOrgService) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	if o, ok := m.orgs[id]; ok {
		return o, nil
	}
	return nil, db.NotFound(db.KindOrganization, id)
}

func setupOrgTestRouter(svc OrganizationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewOrganizationsHandler(svc, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func TestOrganizationsCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := &mockOrgService{}
		r := setupOrgTestRouter(svc)

		w := doRequest(t, r, "POST", "/organization", map[string]string{"name": "MyOrg"})
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
		}

		org := decode[models.Organization](t, w)
		if org.Name != "MyOrg" || org.ID != "org-1" {
			t.Fatalf("unexpected organization: %+v", org)
		}
	})

	t.Run("empty name is accepted", func(t *testing.T) {
		svc := &mockOrgService{}
		r := setupOrgTestRouter(svc)

		w := doRequest(t, r, "POST", "/organization", `{}`)
		if w.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d", w.Code)
		}
		if len(svc.created) != 1 || svc.created[0] != "" {
			t.Fatalf("expected one unnamed organization, got %v", svc.created)
		}
	})

	t.Run("invalid body", func(t *testing.T) {
		r := setupOrgTestRouter(&mockOrgService{})

		w := doRequest(t, r, "POST", "/organization", `{"name":`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("store error", func(t *testing.T) {
		r := setupOrgTestRouter(&mockOrgService{createErr: errors.New("connection reset")})

		w := doRequest(t, r, "POST", "/organization", map[string]string{"name": "MyOrg"})
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status 500, got %d", w.Code)
		}

		resp := decode[ErrorResponse](t, w)
		if resp.Error != "failed to create organization" {
			t.Fatalf("expected generic message, got %q", resp.Error)
		}
	})
}

func TestOrganizationsGet(t *testing.T) {
	svc := &mockOrgService{orgs: map[string]*models.Organization{
		"org-1": {ID: "org-1", Name: "MyOrg"},
	}}
	r := setupOrgTestRouter(svc)

	t.Run("found", func(t *testing.T) {
		w := doRequest(t, r, "GET", "/organization/org-1", nil)
		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}
		if org := decode[models.Organization](t, w); org.Name != "MyOrg" {
			t.Fatalf("expected MyOrg, got %q", org.Name)
		}
	})

	t.Run("not found", func(t *testing.T) {
		w := doRequest(t, r, "GET", "/organization/missing", nil)
		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", w.Code)
		}

		resp := decode[ErrorResponse](t, w)
		if resp.Kind != db.KindOrganization || resp.ID != "missing" {
			t.Fatalf("unexpected error response: %+v", resp)
		}
	})
}
