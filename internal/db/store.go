package db

import (
	"context"
	"fmt"

	"github.com/MacJediWizard/orggraph/internal/models"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
)

// UserWrite is the flattened state persisted for a user by every save shape.
type UserWrite struct {
	ID           string
	OrgID        string
	GivenName    *string
	FamilyName   *string
	SupervisorID string
}

// UserWriteFromEntity flattens a full user entity.
func UserWriteFromEntity(u *models.User) UserWrite {
	return UserWrite{
		ID:           u.ID,
		OrgID:        u.OrgID(),
		GivenName:    u.GivenName,
		FamilyName:   u.FamilyName,
		SupervisorID: u.SupervisorID(),
	}
}

// UserWriteFromProjection flattens a projection. Only the shape's fields are written.
func UserWriteFromProjection(p *models.UserProjection) UserWrite {
	return UserWrite{
		ID:           p.ID,
		OrgID:        p.OrgID(),
		GivenName:    p.GivenName,
		FamilyName:   p.FamilyName,
		SupervisorID: p.SupervisorID(),
	}
}

// Organization methods

// CreateOrganization persists a new organization.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	query, params, err := gocypher.NewQueryBuilder().
		Merge(gocypher.N("o", "Organization").WithProperties(map[string]interface{}{"id": org.ID})).
		Set(map[string]interface{}{"o.name": org.Name}).
		Return("o").
		Build()
	if err != nil {
		return fmt.Errorf("build create organization query: %w", err)
	}

	if _, err := db.run(ctx, query, params); err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// GetOrganization returns an organization by ID.
func (db *DB) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("o", "Organization").WithProperties(map[string]interface{}{"id": id})).
		Return("o").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build get organization query: %w", err)
	}

	result, err := db.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, NotFound(KindOrganization, id)
	}

	node, _, err := neo4j.GetRecordValue[neo4j.Node](result.Records[0], "o")
	if err != nil {
		return nil, fmt.Errorf("read organization: %w", err)
	}
	return orgFromNode(node), nil
}

// User writes

// SaveUser persists a full user entity, replacing its supervisor relationship.
func (db *DB) SaveUser(ctx context.Context, u *models.User, expected *int64) (int64, error) {
	return db.saveUser(ctx, UserWriteFromEntity(u), expected)
}

// SaveUserProjection persists only the fields a UserProjection carries.
func (db *DB) SaveUserProjection(ctx context.Context, p *models.UserProjection, expected *int64) (int64, error) {
	return db.saveUser(ctx, UserWriteFromProjection(p), expected)
}

// SaveUserDTO persists a detached UserDTO.
func (db *DB) SaveUserDTO(ctx context.Context, d *models.UserDTO, expected *int64) (int64, error) {
	return db.saveUser(ctx, UserWriteFromProjection(d.Projection()), expected)
}

// lockUserQuery takes the user's write lock so the version read that follows
// sees the latest committed value. It matches nothing for a new user.
const lockUserQuery = `
MATCH (u:User {id: $id})
SET u._lock = true
REMOVE u._lock`

const saveUserCheckQuery = `
OPTIONAL MATCH (o:Organization {id: $orgId})
OPTIONAL MATCH (u:User {id: $id})
OPTIONAL MATCH (s:User {id: $supervisorId})
RETURN o IS NOT NULL AS orgExists,
       u IS NOT NULL AS userExists,
       u.version AS version,
       CASE WHEN u IS NULL THEN null
            ELSE head([(u)-[:BELONGS_TO]->(x:Organization) | x.id]) END AS currentOrg,
       s IS NOT NULL AS supervisorExists`

const saveUserQuery = `
MATCH (o:Organization {id: $orgId})
MERGE (u:User {id: $id})
ON CREATE SET u.version = 0
WITH u, o
WHERE $expected IS NULL OR u.version = $expected
SET u.givenName = $givenName,
    u.familyName = $familyName,
    u.version = coalesce(u.version, 0) + 1
MERGE (u)-[:BELONGS_TO]->(o)
WITH u
OPTIONAL MATCH (u)-[old:SUPERVISED_BY]->()
DELETE old
WITH DISTINCT u
OPTIONAL MATCH (s:User {id: $supervisorId})
FOREACH (_ IN CASE WHEN s IS NULL THEN [] ELSE [1] END | MERGE (u)-[:SUPERVISED_BY]->(s))
RETURN u.version AS version`

func (db *DB) saveUser(ctx context.Context, w UserWrite, expected *int64) (int64, error) {
	params := map[string]any{
		"id":           w.ID,
		"orgId":        w.OrgID,
		"givenName":    optString(w.GivenName),
		"familyName":   optString(w.FamilyName),
		"supervisorId": nil,
		"expected":     nil,
	}
	if w.SupervisorID != "" {
		params["supervisorId"] = w.SupervisorID
	}
	if expected != nil {
		params["expected"] = *expected
	}

	var version int64
	err := db.ExecTx(ctx, func(tx neo4j.ManagedTransaction) error {
		if _, err := db.txRun(ctx, tx, lockUserQuery, params); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		records, err := db.txRun(ctx, tx, saveUserCheckQuery, params)
		if err != nil {
			return fmt.Errorf("check user write: %w", err)
		}
		if len(records) == 0 {
			return fmt.Errorf("check user write: no result")
		}
		check := records[0]

		if ok, _, _ := neo4j.GetRecordValue[bool](check, "orgExists"); !ok {
			return NotFound(KindOrganization, w.OrgID)
		}
		userExists, _, _ := neo4j.GetRecordValue[bool](check, "userExists")
		if userExists {
			if current, _, _ := neo4j.GetRecordValue[string](check, "currentOrg"); current != "" && current != w.OrgID {
				return NotFound(KindUser, w.ID)
			}
		}
		if w.SupervisorID != "" {
			if ok, _, _ := neo4j.GetRecordValue[bool](check, "supervisorExists"); !ok {
				return NotFound(KindSupervisor, w.SupervisorID)
			}
		}
		if expected != nil {
			if !userExists {
				return NotFound(KindUser, w.ID)
			}
			if current, _, _ := neo4j.GetRecordValue[int64](check, "version"); current != *expected {
				return ErrVersionConflict
			}
		}

		records, err = db.txRun(ctx, tx, saveUserQuery, params)
		if err != nil {
			return fmt.Errorf("write user: %w", err)
		}
		if len(records) == 0 {
			return ErrVersionConflict
		}
		version, _, err = neo4j.GetRecordValue[int64](records[0], "version")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("save user %s: %w", w.ID, err)
	}
	return version, nil
}

const updatePropertiesQuery = `
OPTIONAL MATCH (u:User {id: $id})-[:BELONGS_TO]->(:Organization {id: $orgId})
WITH u, u IS NOT NULL AND ($expected IS NULL OR u.version = $expected) AS apply
FOREACH (_ IN CASE WHEN apply THEN [1] ELSE [] END |
  SET u.givenName = coalesce($givenName, u.givenName),
      u.familyName = coalesce($familyName, u.familyName),
      u.version = coalesce(u.version, 0) + 1)
RETURN u IS NOT NULL AS found, apply, u.version AS version`

// UpdateUserProperties writes the present name properties of a user in the
// given organization. Relationships are never touched. The user is locked
// before its version is compared.
func (db *DB) UpdateUserProperties(ctx context.Context, orgID, userID string, givenName, familyName *string, expected *int64) (int64, error) {
	params := map[string]any{
		"id":         userID,
		"orgId":      orgID,
		"givenName":  optString(givenName),
		"familyName": optString(familyName),
		"expected":   nil,
	}
	if expected != nil {
		params["expected"] = *expected
	}

	var version int64
	err := db.ExecTx(ctx, func(tx neo4j.ManagedTransaction) error {
		if _, err := db.txRun(ctx, tx, lockUserQuery, params); err != nil {
			return fmt.Errorf("lock user: %w", err)
		}

		records, err := db.txRun(ctx, tx, updatePropertiesQuery, params)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			return NotFound(KindUser, userID)
		}

		record := records[0]
		if found, _, _ := neo4j.GetRecordValue[bool](record, "found"); !found {
			return NotFound(KindUser, userID)
		}
		if apply, _, _ := neo4j.GetRecordValue[bool](record, "apply"); !apply {
			return ErrVersionConflict
		}
		version, _, err = neo4j.GetRecordValue[int64](record, "version")
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("update user properties: %w", err)
	}
	return version, nil
}

// User reads

// GetUser loads the full user entity with its supervisor chain resolved, up to
// the configured maximum depth.
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := fmt.Sprintf(`
MATCH (u:User {id: $id})-[:BELONGS_TO]->(o:Organization)
OPTIONAL MATCH path = (u)-[:SUPERVISED_BY*1..%d]->(:User)
WITH u, o, path
ORDER BY coalesce(length(path), 0) DESC
LIMIT 1
RETURN u, o,
       CASE WHEN path IS NULL THEN []
            ELSE [n IN tail(nodes(path)) | {user: n, org: head([(n)-[:BELONGS_TO]->(so:Organization) | so])}]
       END AS chain`, db.maxChainDepth)

	result, err := db.run(ctx, query, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, NotFound(KindUser, id)
	}

	record := result.Records[0]
	userNode, _, err := neo4j.GetRecordValue[neo4j.Node](record, "u")
	if err != nil {
		return nil, fmt.Errorf("read user: %w", err)
	}
	orgNode, _, err := neo4j.GetRecordValue[neo4j.Node](record, "o")
	if err != nil {
		return nil, fmt.Errorf("read user organization: %w", err)
	}
	chain, _, err := neo4j.GetRecordValue[[]any](record, "chain")
	if err != nil {
		return nil, fmt.Errorf("read supervisor chain: %w", err)
	}

	user := userFromNode(userNode)
	user.BelongsTo = orgFromNode(orgNode)
	linkChain(user, chain)
	return user, nil
}

// linkChain attaches the supervisor chain to user. A user that appears twice
// ends the chain with a copy that has no supervisor, so the result is a tree.
func linkChain(user *models.User, chain []any) {
	seen := map[string]bool{user.ID: true}
	cur := user
	for _, item := range chain {
		entry, ok := item.(map[string]any)
		if !ok {
			return
		}
		node, ok := entry["user"].(neo4j.Node)
		if !ok {
			return
		}
		next := userFromNode(node)
		if org, ok := entry["org"].(neo4j.Node); ok {
			next.BelongsTo = orgFromNode(org)
		}
		cur.SupervisedBy = next
		if seen[next.ID] {
			return
		}
		seen[next.ID] = true
		cur = next
	}
}

// GetUserProjection derives the projection from the full entity load.
func (db *DB) GetUserProjection(ctx context.Context, id string) (*models.UserProjection, error) {
	user, err := db.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Projection(), nil
}

const userProjectionQuery = `
MATCH (u:User {id: $id})-[:BELONGS_TO]->(o:Organization)
OPTIONAL MATCH (u)-[:SUPERVISED_BY]->(s:User)
RETURN u.id AS id,
       u.givenName AS givenName,
       u.familyName AS familyName,
       coalesce(u.version, 0) AS version,
       o.id AS orgId,
       o.name AS orgName,
       s.id AS supervisorId`

// GetUserProjectionCustom reads the projection with a single hand-written query
// that touches only the direct supervisor.
func (db *DB) GetUserProjectionCustom(ctx context.Context, id string) (*models.UserProjection, error) {
	result, err := db.run(ctx, userProjectionQuery, map[string]any{"id": id})
	if err != nil {
		return nil, fmt.Errorf("get user projection: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, NotFound(KindUser, id)
	}

	record := result.Records[0]
	p := &models.UserProjection{
		ID:         recordString(record, "id"),
		GivenName:  recordOptString(record, "givenName"),
		FamilyName: recordOptString(record, "familyName"),
		BelongsTo: &models.Organization{
			ID:   recordString(record, "orgId"),
			Name: recordString(record, "orgName"),
		},
	}
	p.Version, _, _ = neo4j.GetRecordValue[int64](record, "version")
	if sid := recordString(record, "supervisorId"); sid != "" {
		p.SupervisedBy = &models.UserRef{ID: sid}
	}
	return p, nil
}

// GetUserRef checks that a user exists and returns its id-only view.
func (db *DB) GetUserRef(ctx context.Context, id string) (*models.UserRef, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("u", "User").WithProperties(map[string]interface{}{"id": id})).
		Return("u").
		Build()
	if err != nil {
		return nil, fmt.Errorf("build get user ref query: %w", err)
	}

	result, err := db.run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("get user ref: %w", err)
	}
	if len(result.Records) == 0 {
		return nil, NotFound(KindUser, id)
	}
	return &models.UserRef{ID: id}, nil
}

// FindSupervisionCycles returns the IDs of users whose supervision chain leads
// back to themselves within the configured depth.
func (db *DB) FindSupervisionCycles(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(`
MATCH (u:User)-[:SUPERVISED_BY*1..%d]->(u)
RETURN DISTINCT u.id AS id
ORDER BY id`, db.maxChainDepth)

	result, err := db.run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("find supervision cycles: %w", err)
	}

	ids := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		ids = append(ids, recordString(record, "id"))
	}
	return ids, nil
}

// helpers

func orgFromNode(n neo4j.Node) *models.Organization {
	return &models.Organization{
		ID:   propString(n.Props, "id"),
		Name: propString(n.Props, "name"),
	}
}

func userFromNode(n neo4j.Node) *models.User {
	u := &models.User{
		ID:         propString(n.Props, "id"),
		GivenName:  propOptString(n.Props, "givenName"),
		FamilyName: propOptString(n.Props, "familyName"),
	}
	if v, ok := n.Props["version"].(int64); ok {
		u.Version = v
	}
	return u
}

func propString(props map[string]any, key string) string {
	s, _ := props[key].(string)
	return s
}

func propOptString(props map[string]any, key string) *string {
	s, ok := props[key].(string)
	if !ok {
		return nil
	}
	return &s
}

func recordString(record *neo4j.Record, key string) string {
	v, ok := record.Get(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func recordOptString(record *neo4j.Record, key string) *string {
	v, ok := record.Get(key)
	if !ok {
		return nil
	}
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}

func optString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
