// Package orgchart implements organization and user operations over a graph
// store, including the alternative user creation strategies.
package orgchart

import (
	"context"
	"errors"
	"fmt"

	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/metrics"
	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/rs/zerolog"
)

// Store is the graph store contract. Each method is one round trip.
type Store interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)

	SaveUser(ctx context.Context, u *models.User, expected *int64) (int64, error)
	SaveUserProjection(ctx context.Context, p *models.UserProjection, expected *int64) (int64, error)
	SaveUserDTO(ctx context.Context, d *models.UserDTO, expected *int64) (int64, error)
	UpdateUserProperties(ctx context.Context, orgID, userID string, givenName, familyName *string, expected *int64) (int64, error)

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetUserProjection(ctx context.Context, id string) (*models.UserProjection, error)
	GetUserProjectionCustom(ctx context.Context, id string) (*models.UserProjection, error)
	GetUserRef(ctx context.Context, id string) (*models.UserRef, error)
}

// Strategy selects how a new user and its supervisor are persisted.
type Strategy string

const (
	// StrategyBaseline loads the full supervisor entity and saves the full user.
	StrategyBaseline Strategy = "baseline"
	// StrategyA saves without a supervisor, reads back a projection, then saves again.
	StrategyA Strategy = "a"
	// StrategyB saves a projection built directly from the input.
	StrategyB Strategy = "b"
	// StrategyC saves a DTO holding a detached supervisor reference.
	StrategyC Strategy = "c"
	// StrategyD saves the full entity and returns it as a projection.
	StrategyD Strategy = "d"
)

// ErrUnknownStrategy is returned for a strategy name that is not recognised.
var ErrUnknownStrategy = errors.New("unknown strategy")

// ParseStrategy converts a path variant into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(s); st {
	case StrategyBaseline, StrategyA, StrategyB, StrategyC, StrategyD:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
}

// Operation returns the round-trip label used for creations with this strategy.
func (s Strategy) Operation() string {
	return "create_user/" + string(s)
}

// Service implements organization chart operations.
type Service struct {
	store  Store
	logger zerolog.Logger
}

// NewService creates a new Service.
func NewService(store Store, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger.With().Str("component", "orgchart").Logger(),
	}
}

// CreateOrganization creates and persists an organization.
func (s *Service) CreateOrganization(ctx context.Context, name string) (*models.Organization, error) {
	ctx = metrics.WithOperation(ctx, "create_organization")

	org := models.NewOrganization(name)
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("create organization: %w", err)
	}

	s.logger.Info().Str("org_id", org.ID).Str("name", org.Name).Msg("organization created")
	return org, nil
}

// GetOrganization returns an organization by ID.
func (s *Service) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	ctx = metrics.WithOperation(ctx, "get_organization")
	return s.store.GetOrganization(ctx, id)
}

// CreateUser creates a user with the baseline strategy and returns the full
// entity, supervisor chain included.
func (s *Service) CreateUser(ctx context.Context, orgID string, in models.UserInput) (*models.User, error) {
	ctx = metrics.WithOperation(ctx, StrategyBaseline.Operation())

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(org, in.GivenName, in.FamilyName)
	if in.HasSupervisor() {
		supervisor, err := s.store.GetUser(ctx, *in.SupervisorID)
		if err != nil {
			return nil, supervisorErr(err)
		}
		user.SupervisedBy = supervisor
	}

	if user.Version, err = s.store.SaveUser(ctx, user, nil); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logCreated(StrategyBaseline, user.ID, orgID)
	return user, nil
}

// CreateUserWithStrategy dispatches to the creation path for strategy. The
// result is a *models.User, *models.UserProjection or *models.UserDTO.
func (s *Service) CreateUserWithStrategy(ctx context.Context, strategy Strategy, orgID string, in models.UserInput) (any, error) {
	switch strategy {
	case StrategyBaseline:
		return s.CreateUser(ctx, orgID, in)
	case StrategyA:
		return s.CreateUserA(ctx, orgID, in)
	case StrategyB:
		return s.CreateUserB(ctx, orgID, in)
	case StrategyC:
		return s.CreateUserC(ctx, orgID, in)
	case StrategyD:
		return s.CreateUserD(ctx, orgID, in)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, strategy)
}

// CreateUserA saves the user without a supervisor, reads it back as a
// projection, and saves the projection again with the supervisor attached.
// The supervisor is resolved first so a failed lookup writes nothing.
func (s *Service) CreateUserA(ctx context.Context, orgID string, in models.UserInput) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, StrategyA.Operation())

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ref, err := s.supervisorRef(ctx, in)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(org, in.GivenName, in.FamilyName)
	if _, err := s.store.SaveUserProjection(ctx, user.Projection(), nil); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	p, err := s.store.GetUserProjection(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("read back user: %w", err)
	}

	if ref != nil {
		p.SupervisedBy = ref
		if p.Version, err = s.store.SaveUserProjection(ctx, p, &p.Version); err != nil {
			return nil, fmt.Errorf("attach supervisor: %w", err)
		}
	}

	s.logCreated(StrategyA, p.ID, orgID)
	return p, nil
}

// CreateUserB builds the projection directly from the input and saves it once.
func (s *Service) CreateUserB(ctx context.Context, orgID string, in models.UserInput) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, StrategyB.Operation())

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ref, err := s.supervisorRef(ctx, in)
	if err != nil {
		return nil, err
	}

	p := models.NewUser(org, in.GivenName, in.FamilyName).Projection()
	p.SupervisedBy = ref
	if p.Version, err = s.store.SaveUserProjection(ctx, p, nil); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logCreated(StrategyB, p.ID, orgID)
	return p, nil
}

// CreateUserC builds a DTO with a detached supervisor reference and saves it.
func (s *Service) CreateUserC(ctx context.Context, orgID string, in models.UserInput) (*models.UserDTO, error) {
	ctx = metrics.WithOperation(ctx, StrategyC.Operation())

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ref, err := s.supervisorRef(ctx, in)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(org, in.GivenName, in.FamilyName)
	dto := &models.UserDTO{
		ID:           user.ID,
		GivenName:    user.GivenName,
		FamilyName:   user.FamilyName,
		BelongsTo:    *org,
		SupervisedBy: ref,
	}
	if dto.Version, err = s.store.SaveUserDTO(ctx, dto, nil); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logCreated(StrategyC, dto.ID, orgID)
	return dto, nil
}

// CreateUserD loads the full supervisor, saves the full entity, and returns
// it as a projection.
func (s *Service) CreateUserD(ctx context.Context, orgID string, in models.UserInput) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, StrategyD.Operation())

	org, err := s.store.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	user := models.NewUser(org, in.GivenName, in.FamilyName)
	if in.HasSupervisor() {
		supervisor, err := s.store.GetUser(ctx, *in.SupervisorID)
		if err != nil {
			return nil, supervisorErr(err)
		}
		user.SupervisedBy = supervisor
	}

	if user.Version, err = s.store.SaveUser(ctx, user, nil); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logCreated(StrategyD, user.ID, orgID)
	return user.Projection(), nil
}

// UpdateUser applies a partial update to the user's names and supervisor.
// Absent fields keep their stored values.
func (s *Service) UpdateUser(ctx context.Context, orgID, userID string, in models.UserInput) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, "update_user")

	p, err := s.store.GetUserProjectionCustom(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p.OrgID() != orgID {
		return nil, db.NotFound(db.KindUser, userID)
	}

	in.OverlayNames(p)
	if in.HasSupervisor() {
		ref, err := s.store.GetUserRef(ctx, *in.SupervisorID)
		if err != nil {
			return nil, supervisorErr(err)
		}
		p.SupervisedBy = ref
	}

	if p.Version, err = s.store.SaveUserProjection(ctx, p, in.Version); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	s.logger.Info().Str("user_id", userID).Int64("version", p.Version).Msg("user updated")
	return p, nil
}

// UpdateUserProperties writes only the name properties of a user and returns
// the full entity afterwards.
func (s *Service) UpdateUserProperties(ctx context.Context, orgID, userID string, in models.UserInput) (*models.User, error) {
	ctx = metrics.WithOperation(ctx, "update_user_properties")

	version, err := s.store.UpdateUserProperties(ctx, orgID, userID, in.GivenName, in.FamilyName, in.Version)
	if err != nil {
		return nil, fmt.Errorf("update user properties: %w", err)
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("user_id", userID).Int64("version", version).Msg("user properties updated")
	return user, nil
}

// FindUser returns the full user entity with its supervisor chain.
func (s *Service) FindUser(ctx context.Context, orgID, userID string) (*models.User, error) {
	ctx = metrics.WithOperation(ctx, "get_user")

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OrgID() != orgID {
		return nil, db.NotFound(db.KindUser, userID)
	}
	return user, nil
}

// FindProjection returns the projection derived from the full entity.
func (s *Service) FindProjection(ctx context.Context, orgID, userID string) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, "get_user_projection")
	p, err := s.store.GetUserProjection(ctx, userID)
	return projectionInOrg(p, err, orgID, userID)
}

// FindProjectionCustomQuery returns the projection read by the hand-written query.
func (s *Service) FindProjectionCustomQuery(ctx context.Context, orgID, userID string) (*models.UserProjection, error) {
	ctx = metrics.WithOperation(ctx, "get_user_projection_custom")
	p, err := s.store.GetUserProjectionCustom(ctx, userID)
	return projectionInOrg(p, err, orgID, userID)
}

// Chain walks the user's supervisors from nearest to root.
func (s *Service) Chain(ctx context.Context, orgID, userID string) (*models.SupervisionChain, error) {
	ctx = metrics.WithOperation(ctx, "get_user_chain")

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.OrgID() != orgID {
		return nil, db.NotFound(db.KindUser, userID)
	}

	result := &models.SupervisionChain{UserID: userID, Chain: []models.UserRef{}}
	seen := map[string]bool{user.ID: true}
	for cur := user.SupervisedBy; cur != nil; cur = cur.SupervisedBy {
		if seen[cur.ID] {
			result.Cycle = true
			break
		}
		seen[cur.ID] = true
		result.Chain = append(result.Chain, models.UserRef{ID: cur.ID})
	}

	if result.Cycle {
		s.logger.Warn().Str("user_id", userID).Msg("supervision cycle detected")
	}
	return result, nil
}

// projectionInOrg hides users that belong to a different organization.
func projectionInOrg(p *models.UserProjection, err error, orgID, userID string) (*models.UserProjection, error) {
	if err != nil {
		return nil, err
	}
	if p.OrgID() != orgID {
		return nil, db.NotFound(db.KindUser, userID)
	}
	return p, nil
}

// supervisorRef resolves the input's supervisor as a reference, or nil.
func (s *Service) supervisorRef(ctx context.Context, in models.UserInput) (*models.UserRef, error) {
	if !in.HasSupervisor() {
		return nil, nil
	}
	ref, err := s.store.GetUserRef(ctx, *in.SupervisorID)
	if err != nil {
		return nil, supervisorErr(err)
	}
	return ref, nil
}

func (s *Service) logCreated(strategy Strategy, userID, orgID string) {
	s.logger.Info().
		Str("strategy", string(strategy)).
		Str("user_id", userID).
		Str("org_id", orgID).
		Msg("user created")
}

// supervisorErr reports a missing user as a missing supervisor.
func supervisorErr(err error) error {
	if nf, ok := db.AsNotFound(err); ok && nf.Kind == db.KindUser {
		return db.NotFound(db.KindSupervisor, nf.ID)
	}
	return err
}
