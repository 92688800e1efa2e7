// Package memstore provides an in-memory implementation of the organization
// chart store for development and testing.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/MacJediWizard/orggraph/internal/db"
	"github.com/MacJediWizard/orggraph/internal/models"
)

type userRecord struct {
	id           string
	orgID        string
	givenName    *string
	familyName   *string
	supervisorID string
	version      int64
}

type nopRecorder struct{}

func (nopRecorder) RecordRoundTrip(context.Context) {}

// Store is an in-memory graph of organizations and users. Every exported
// method counts as one round trip, matching the Neo4j store.
type Store struct {
	mu            sync.RWMutex
	orgs          map[string]models.Organization
	users         map[string]*userRecord
	maxChainDepth int
	recorder      db.RoundTripRecorder
}

// New creates an empty store. maxChainDepth bounds supervision traversals.
func New(maxChainDepth int) *Store {
	if maxChainDepth <= 0 {
		maxChainDepth = db.DefaultConfig("").MaxChainDepth
	}
	return &Store{
		orgs:          make(map[string]models.Organization),
		users:         make(map[string]*userRecord),
		maxChainDepth: maxChainDepth,
		recorder:      nopRecorder{},
	}
}

// SetRecorder installs the recorder that is told about every round trip.
func (s *Store) SetRecorder(r db.RoundTripRecorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.recorder = r
}

// MaxChainDepth returns the bound on supervision traversals.
func (s *Store) MaxChainDepth() int {
	return s.maxChainDepth
}

// Ping always succeeds; the store has no connection to lose.
func (s *Store) Ping(context.Context) error {
	return nil
}

// Health reports the size of the in-memory graph.
func (s *Store) Health(context.Context) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]any{
		"backend":       "memory",
		"organizations": len(s.orgs),
		"users":         len(s.users),
	}
}

// CreateOrganization stores a copy of org.
func (s *Store) CreateOrganization(ctx context.Context, org *models.Organization) error {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	s.orgs[org.ID] = *org
	return nil
}

// GetOrganization returns a copy of the organization.
func (s *Store) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	org, ok := s.orgs[id]
	if !ok {
		return nil, db.NotFound(db.KindOrganization, id)
	}
	return &org, nil
}

// SaveUser persists a full user entity.
func (s *Store) SaveUser(ctx context.Context, u *models.User, expected *int64) (int64, error) {
	return s.save(ctx, db.UserWriteFromEntity(u), expected)
}

// SaveUserProjection persists only the fields a UserProjection carries.
func (s *Store) SaveUserProjection(ctx context.Context, p *models.UserProjection, expected *int64) (int64, error) {
	return s.save(ctx, db.UserWriteFromProjection(p), expected)
}

// SaveUserDTO persists a detached UserDTO.
func (s *Store) SaveUserDTO(ctx context.Context, d *models.UserDTO, expected *int64) (int64, error) {
	return s.save(ctx, db.UserWriteFromProjection(d.Projection()), expected)
}

func (s *Store) save(ctx context.Context, w db.UserWrite, expected *int64) (int64, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.orgs[w.OrgID]; !ok {
		return 0, db.NotFound(db.KindOrganization, w.OrgID)
	}
	existing, exists := s.users[w.ID]
	if exists && existing.orgID != w.OrgID {
		return 0, db.NotFound(db.KindUser, w.ID)
	}
	if w.SupervisorID != "" {
		if _, ok := s.users[w.SupervisorID]; !ok {
			return 0, db.NotFound(db.KindSupervisor, w.SupervisorID)
		}
	}

	var version int64
	if exists {
		version = existing.version
	}
	if expected != nil {
		if !exists {
			return 0, db.NotFound(db.KindUser, w.ID)
		}
		if version != *expected {
			return 0, db.ErrVersionConflict
		}
	}

	s.users[w.ID] = &userRecord{
		id:           w.ID,
		orgID:        w.OrgID,
		givenName:    copyString(w.GivenName),
		familyName:   copyString(w.FamilyName),
		supervisorID: w.SupervisorID,
		version:      version + 1,
	}
	return version + 1, nil
}

// UpdateUserProperties writes the present name properties of a user in the
// given organization.
func (s *Store) UpdateUserProperties(ctx context.Context, orgID, userID string, givenName, familyName *string, expected *int64) (int64, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[userID]
	if !ok || rec.orgID != orgID {
		return 0, db.NotFound(db.KindUser, userID)
	}
	if expected != nil && rec.version != *expected {
		return 0, db.ErrVersionConflict
	}

	if givenName != nil {
		rec.givenName = copyString(givenName)
	}
	if familyName != nil {
		rec.familyName = copyString(familyName)
	}
	rec.version++
	return rec.version, nil
}

// GetUser returns the full user entity with its supervisor chain resolved.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadUser(id)
}

// GetUserProjection derives the projection from the full entity.
func (s *Store) GetUserProjection(ctx context.Context, id string) (*models.UserProjection, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, err := s.loadUser(id)
	if err != nil {
		return nil, err
	}
	return u.Projection(), nil
}

// GetUserProjectionCustom reads the projection touching only the direct supervisor.
func (s *Store) GetUserProjectionCustom(ctx context.Context, id string) (*models.UserProjection, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, db.NotFound(db.KindUser, id)
	}
	org := s.orgs[rec.orgID]
	p := &models.UserProjection{
		ID:         rec.id,
		GivenName:  copyString(rec.givenName),
		FamilyName: copyString(rec.familyName),
		BelongsTo:  &org,
		Version:    rec.version,
	}
	if rec.supervisorID != "" {
		p.SupervisedBy = &models.UserRef{ID: rec.supervisorID}
	}
	return p, nil
}

// GetUserRef checks that a user exists and returns its id-only view.
func (s *Store) GetUserRef(ctx context.Context, id string) (*models.UserRef, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[id]; !ok {
		return nil, db.NotFound(db.KindUser, id)
	}
	return &models.UserRef{ID: id}, nil
}

// FindSupervisionCycles returns the sorted IDs of users whose supervision
// chain leads back to themselves within the depth bound.
func (s *Store) FindSupervisionCycles(ctx context.Context) ([]string, error) {
	s.recorder.RecordRoundTrip(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for id := range s.users {
		next := s.users[id].supervisorID
		for depth := 0; depth < s.maxChainDepth && next != ""; depth++ {
			if next == id {
				ids = append(ids, id)
				break
			}
			sup, ok := s.users[next]
			if !ok {
				break
			}
			next = sup.supervisorID
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// loadUser builds the entity graph for id. Caller holds the read lock.
func (s *Store) loadUser(id string) (*models.User, error) {
	rec, ok := s.users[id]
	if !ok {
		return nil, db.NotFound(db.KindUser, id)
	}

	user := s.entity(rec)
	seen := map[string]bool{id: true}
	cur := user
	for depth := 0; depth < s.maxChainDepth && rec.supervisorID != ""; depth++ {
		next, ok := s.users[rec.supervisorID]
		if !ok {
			break
		}
		cur.SupervisedBy = s.entity(next)
		if seen[next.id] {
			break
		}
		seen[next.id] = true
		cur = cur.SupervisedBy
		rec = next
	}
	return user, nil
}

func (s *Store) entity(rec *userRecord) *models.User {
	org := s.orgs[rec.orgID]
	return &models.User{
		ID:         rec.id,
		GivenName:  copyString(rec.givenName),
		FamilyName: copyString(rec.familyName),
		BelongsTo:  &org,
		Version:    rec.version,
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
