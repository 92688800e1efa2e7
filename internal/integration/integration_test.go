//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"

	"github.com/MacJediWizard/orggraph/internal/api"
	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/metrics"
	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/MacJediWizard/orggraph/internal/orgchart"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcneo4j "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

const testPassword = "orggraph-integration"

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB starts a Neo4j testcontainer, runs migrations, and returns a connected DB.
func setupTestDB(t *testing.T) *db.DB {
	t.Helper()

	if !dockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	ctr, err := tcneo4j.Run(ctx, "neo4j:5", tcneo4j.WithAdminPassword(testPassword))
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	boltURL, err := ctr.BoltUrl(ctx)
	require.NoError(t, err)

	cfg := db.DefaultConfig(boltURL)
	cfg.Password = testPassword

	database, err := db.New(ctx, cfg, zerolog.New(zerolog.NewTestWriter(t)))
	require.NoError(t, err)
	t.Cleanup(database.Close)

	require.NoError(t, database.Migrate(ctx))
	return database
}

type testServer struct {
	router  *api.Router
	metrics *metrics.Metrics
}

func setupServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	database := setupTestDB(t)

	reg := prometheus.NewRegistry()
	m, err := metrics.NewPrometheusMetrics(reg)
	require.NoError(t, err)
	database.SetRecorder(m)

	cfg := api.DefaultConfig()
	cfg.StoreBackend = "neo4j"
	router, err := api.NewRouter(cfg, orgchart.NewService(database, zerolog.Nop()), database,
		api.Telemetry{Requests: m, Gatherer: reg}, zerolog.Nop())
	require.NoError(t, err)

	return &testServer{router: router, metrics: m}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	s.router.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func strPtr(s string) *string { return &s }

func TestIntegration_OrgChartScenario(t *testing.T) {
	s := setupServer(t)

	w := s.do(t, "POST", "/organization", models.OrganizationInput{Name: "MyOrg"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	org := decode[models.Organization](t, w)

	users := make(map[string]models.User)
	var prev *string
	for _, name := range []string{"Ola", "Kari", "Hans", "Siri"} {
		w := s.do(t, "POST", "/organization/"+org.ID+"/users", models.UserInput{GivenName: strPtr(name), SupervisorID: prev})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		u := decode[models.User](t, w)
		assert.Equal(t, org.ID, u.BelongsTo.ID)
		users[name] = u
		prev = &u.ID
	}

	siriPath := "/organization/" + org.ID + "/users/" + users["Siri"].ID

	t.Run("chain resolves ancestors", func(t *testing.T) {
		w := s.do(t, "GET", siriPath+"/chain", nil)
		require.Equal(t, http.StatusOK, w.Code)
		chain := decode[models.SupervisionChain](t, w)

		var ids []string
		for _, ref := range chain.Chain {
			ids = append(ids, ref.ID)
		}
		assert.Equal(t, []string{users["Hans"].ID, users["Kari"].ID, users["Ola"].ID}, ids)
		assert.False(t, chain.Cycle)
	})

	t.Run("lookup variants agree", func(t *testing.T) {
		user := decode[models.User](t, s.do(t, "GET", siriPath, nil))
		full := user.Projection()
		derived := decode[models.UserProjection](t, s.do(t, "GET", siriPath+"/projection", nil))
		custom := decode[models.UserProjection](t, s.do(t, "GET", siriPath+"/projection/custom", nil))

		for _, p := range []*models.UserProjection{&derived, &custom} {
			assert.Equal(t, full.ID, p.ID)
			assert.Equal(t, full.GivenName, p.GivenName)
			assert.Equal(t, full.FamilyName, p.FamilyName)
			assert.Equal(t, full.OrgID(), p.OrgID())
			assert.Equal(t, full.SupervisorID(), p.SupervisorID())
		}
	})

	t.Run("partial updates", func(t *testing.T) {
		kariID := users["Kari"].ID
		w := s.do(t, "PATCH", siriPath, models.UserInput{SupervisorID: &kariID})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		p := decode[models.UserProjection](t, w)
		assert.Equal(t, "Siri", *p.GivenName)
		assert.Equal(t, kariID, p.SupervisorID())

		w = s.do(t, "PATCH", siriPath+"/properties", models.UserInput{FamilyName: strPtr("Nordmann")})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		u := decode[models.User](t, w)
		assert.Equal(t, "Nordmann", *u.FamilyName)
		assert.Equal(t, kariID, u.SupervisorID())
	})

	t.Run("version conflict", func(t *testing.T) {
		current := decode[models.User](t, s.do(t, "GET", siriPath, nil))
		stale := current.Version - 1

		w := s.do(t, "PATCH", siriPath, models.UserInput{GivenName: strPtr("Stale"), Version: &stale})
		assert.Equal(t, http.StatusConflict, w.Code)

		after := decode[models.User](t, s.do(t, "GET", siriPath, nil))
		assert.Equal(t, current.Version, after.Version)
		assert.Equal(t, "Siri", *after.GivenName)
	})

	t.Run("health reports neo4j", func(t *testing.T) {
		w := s.do(t, "GET", "/health/db", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "Neo4j")
	})
}

func TestIntegration_StrategyRoundTrips(t *testing.T) {
	s := setupServer(t)

	org := decode[models.Organization](t, s.do(t, "POST", "/organization", models.OrganizationInput{Name: "MyOrg"}))
	boss := decode[models.User](t, s.do(t, "POST", "/organization/"+org.ID+"/users", models.UserInput{GivenName: strPtr("Ola")}))

	trips := make(map[string]float64)
	for _, st := range []orgchart.Strategy{orgchart.StrategyA, orgchart.StrategyB, orgchart.StrategyC, orgchart.StrategyD} {
		w := s.do(t, "POST", "/organization/"+org.ID+"/users/withprojections/"+string(st),
			models.UserInput{GivenName: strPtr("Kari"), SupervisorID: &boss.ID})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		trips[string(st)] = testutil.ToFloat64(s.metrics.RoundTrips.WithLabelValues(st.Operation()))
	}

	assert.Less(t, trips["b"], trips["a"])
	assert.Less(t, trips["c"], trips["a"])
	assert.Equal(t, 5.0, trips["a"])
}
