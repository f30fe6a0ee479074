package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"ragengine/internal/model"
)

// ResolvedEntity is one name resolution result.
type ResolvedEntity struct {
	ID            string
	Name          string
	Type          string
	Description   string
	MentionCount  int
	RequestedName string
}

// ResolveEntities deduplicates names case-insensitively, resolves exact
// lower-cased matches, then — for at most 10 remaining names — attempts a
// unique-prefix match.
func (s *Store) ResolveEntities(ctx context.Context, names []string) ([]ResolvedEntity, error) {
	type req struct{ requested, lower string }
	seen := map[string]bool{}
	var reqs []req
	for _, n := range names {
		lower := strings.ToLower(n)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		reqs = append(reqs, req{requested: n, lower: lower})
	}
	if len(reqs) == 0 {
		return nil, nil
	}

	lowers := make([]string, len(reqs))
	for i, r := range reqs {
		lowers[i] = r.lower
	}

	rows, err := s.pool.Query(ctx, `
SELECT id, name, type, description, mention_count, lower(name) AS lname
FROM entities WHERE lower(name) = ANY($1)`, lowers)
	if err != nil {
		return nil, err
	}
	type candidate struct {
		id, name, etype, desc string
		mentionCount          int
	}
	byLower := map[string][]candidate{}
	for rows.Next() {
		var c candidate
		var lname string
		var desc *string
		if err := rows.Scan(&c.id, &c.name, &c.etype, &desc, &c.mentionCount, &lname); err != nil {
			rows.Close()
			return nil, err
		}
		if desc != nil {
			c.desc = *desc
		}
		byLower[lname] = append(byLower[lname], c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []ResolvedEntity
	var unresolved []req
	for _, r := range reqs {
		cands := byLower[r.lower]
		switch len(cands) {
		case 0:
			unresolved = append(unresolved, r)
		case 1:
			c := cands[0]
			out = append(out, ResolvedEntity{ID: c.id, Name: c.name, Type: c.etype, Description: c.desc, MentionCount: c.mentionCount, RequestedName: r.requested})
		default:
			matched := false
			for _, c := range cands {
				if c.name == r.requested {
					out = append(out, ResolvedEntity{ID: c.id, Name: c.name, Type: c.etype, Description: c.desc, MentionCount: c.mentionCount, RequestedName: r.requested})
					matched = true
					break
				}
			}
			if !matched {
				unresolved = append(unresolved, r)
			}
		}
	}

	if len(unresolved) == 0 || len(unresolved) > 10 {
		return out, nil
	}

	prefixes := make([]string, len(unresolved))
	for i, r := range unresolved {
		prefixes[i] = r.lower
	}
	prows, err := s.pool.Query(ctx, `
SELECT p.prefix, e.id, e.name, e.type, e.description, e.mention_count
FROM unnest($1::text[]) AS p(prefix)
CROSS JOIN LATERAL (
	SELECT id, name, type, description, mention_count
	FROM entities WHERE lower(name) LIKE p.prefix || '%'
	LIMIT 2
) e`, prefixes)
	if err != nil {
		return nil, err
	}
	defer prows.Close()

	byPrefix := map[string][]candidate{}
	for prows.Next() {
		var prefix string
		var c candidate
		var desc *string
		if err := prows.Scan(&prefix, &c.id, &c.name, &c.etype, &desc, &c.mentionCount); err != nil {
			return nil, err
		}
		if desc != nil {
			c.desc = *desc
		}
		byPrefix[prefix] = append(byPrefix[prefix], c)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	for _, r := range unresolved {
		cands := byPrefix[r.lower]
		if len(cands) == 1 {
			c := cands[0]
			out = append(out, ResolvedEntity{ID: c.id, Name: c.name, Type: c.etype, Description: c.desc, MentionCount: c.mentionCount, RequestedName: r.requested})
		}
	}

	return out, nil
}

// TraversalParams bounds a BFS traversal.
type TraversalParams struct {
	MaxDepth      int
	MaxEntities   int
	TimeLimitMS   int
	RelTypes      []string // empty means no whitelist
}

// TraversedEntity is one node in a traversal result.
type TraversedEntity struct {
	ID       string
	Name     string
	Depth    int
	IsSeed   bool
}

// TraversedEdge is one edge among the resulting entity set.
type TraversedEdge struct {
	SourceName       string
	TargetName       string
	RelationshipType string
}

// TraversalPath is a leaf path (not a strict prefix of any other path).
type TraversalPath struct {
	EntityIDs    []string
	RelTypes     []string
}

// TraversalResult is the outcome of GraphBackend.traverse.
type TraversalResult struct {
	Entities  []TraversedEntity
	Edges     []TraversedEdge
	Paths     []TraversalPath
	Capped    bool
	TimedOut  bool
}

// Traverse runs a bounded, cycle-free BFS from seedIDs within a
// statement-timeout-scoped transaction.
func (s *Store) Traverse(ctx context.Context, seedIDs []string, params TraversalParams) (TraversalResult, error) {
	if len(seedIDs) == 0 {
		return TraversalResult{}, nil
	}
	maxDepth := params.MaxDepth
	if maxDepth <= 0 {
		maxDepth = 3
	}
	maxEntities := params.MaxEntities
	if maxEntities <= 0 {
		maxEntities = 50
	}
	timeLimitMS := params.TimeLimitMS
	if timeLimitMS <= 0 {
		timeLimitMS = 2000
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return TraversalResult{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", timeLimitMS)); err != nil {
		return TraversalResult{}, err
	}

	relFilter := ""
	args := []any{seedIDs, maxDepth}
	if len(params.RelTypes) > 0 {
		relFilter = "AND r.relationship_type = ANY($3)"
		args = append(args, params.RelTypes)
	}

	query := fmt.Sprintf(`
WITH RECURSIVE bfs(id, depth, path, pathrels) AS (
	SELECT id, 0, ARRAY[id], ARRAY[]::text[] FROM entities WHERE id = ANY($1)
	UNION ALL
	SELECT r.target_entity_id, b.depth + 1, b.path || r.target_entity_id, b.pathrels || r.relationship_type
	FROM bfs b
	JOIN entity_relationships r ON r.source_entity_id = b.id
	WHERE b.depth < $2 AND NOT r.target_entity_id = ANY(b.path) %s
)
SELECT id, depth, path, pathrels FROM bfs`, relFilter)

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		if pgErr, ok := asPgError(err); ok && pgErr.Code == "57014" {
			return TraversalResult{TimedOut: true}, nil
		}
		return TraversalResult{}, err
	}

	type pathRow = struct {
		path     []string
		pathRels []string
	}
	minDepth := map[string]int{}
	bestPath := map[string]pathRow{}
	var order []string
	for rows.Next() {
		var id string
		var depth int
		var path, pathRels []string
		if err := rows.Scan(&id, &depth, &path, &pathRels); err != nil {
			rows.Close()
			return TraversalResult{}, err
		}
		if existing, ok := minDepth[id]; !ok || depth < existing {
			minDepth[id] = depth
			bestPath[id] = pathRow{path: path, pathRels: pathRels}
			if !ok {
				order = append(order, id)
			}
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		if pgErr, ok := asPgError(err); ok && pgErr.Code == "57014" {
			return TraversalResult{TimedOut: true}, nil
		}
		return TraversalResult{}, err
	}

	capped := false
	if len(order) > maxEntities {
		order = order[:maxEntities]
		capped = true
	}

	seedSet := map[string]bool{}
	for _, id := range seedIDs {
		seedSet[id] = true
	}

	names, err := s.entityNames(ctx, tx, order)
	if err != nil {
		return TraversalResult{}, err
	}

	var entities []TraversedEntity
	for _, id := range order {
		entities = append(entities, TraversedEntity{ID: id, Name: names[id], Depth: minDepth[id], IsSeed: seedSet[id]})
	}

	edges, err := s.edgesAmong(ctx, tx, order, names, params.RelTypes)
	if err != nil {
		return TraversalResult{}, err
	}

	paths := leafPaths(order, bestPath, names)

	if err := tx.Commit(ctx); err != nil {
		return TraversalResult{}, err
	}

	return TraversalResult{Entities: entities, Edges: edges, Paths: paths, Capped: capped}, nil
}

func asPgError(err error) (*pgconn.PgError, bool) {
	pgErr, ok := err.(*pgconn.PgError)
	return pgErr, ok
}

func (s *Store) entityNames(ctx context.Context, tx pgx.Tx, ids []string) (map[string]string, error) {
	names := map[string]string{}
	if len(ids) == 0 {
		return names, nil
	}
	rows, err := tx.Query(ctx, `SELECT id, name FROM entities WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}
	return names, rows.Err()
}

func (s *Store) edgesAmong(ctx context.Context, tx pgx.Tx, ids []string, names map[string]string, relTypes []string) ([]TraversedEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT source_entity_id, target_entity_id, relationship_type FROM entity_relationships
WHERE source_entity_id = ANY($1) AND target_entity_id = ANY($1)`
	args := []any{ids}
	if len(relTypes) > 0 {
		query += " AND relationship_type = ANY($2)"
		args = append(args, relTypes)
	}
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TraversedEdge
	for rows.Next() {
		var src, dst, rel string
		if err := rows.Scan(&src, &dst, &rel); err != nil {
			return nil, err
		}
		out = append(out, TraversedEdge{SourceName: names[src], TargetName: names[dst], RelationshipType: rel})
	}
	return out, rows.Err()
}

func leafPaths(order []string, bestPath map[string]struct {
	path     []string
	pathRels []string
}, names map[string]string) []TraversalPath {
	var all [][]string
	pathRelsByKey := map[string][]string{}
	for _, id := range order {
		p := bestPath[id]
		all = append(all, p.path)
		pathRelsByKey[strings.Join(p.path, ">")] = p.pathRels
	}

	var leaves []TraversalPath
	for i, p := range all {
		isPrefix := false
		for j, q := range all {
			if i == j || len(q) <= len(p) {
				continue
			}
			if isStrictPrefix(p, q) {
				isPrefix = true
				break
			}
		}
		if !isPrefix {
			leaves = append(leaves, TraversalPath{EntityIDs: p, RelTypes: pathRelsByKey[strings.Join(p, ">")]})
		}
	}
	return leaves
}

func isStrictPrefix(p, q []string) bool {
	if len(p) >= len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// EntityDocument pairs a document with the mentioning entity.
type EntityDocument struct {
	DocumentID   string
	EntityID     string
	MentionCount int
}

// GetEntityDocuments joins mentions -> documents -> entities.
func (s *Store) GetEntityDocuments(ctx context.Context, entityIDs []string, limit int) ([]EntityDocument, error) {
	if len(entityIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT document_id, entity_id, mention_count FROM document_entity_mentions
WHERE entity_id = ANY($1) ORDER BY mention_count DESC LIMIT $2`, entityIDs, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntityDocument
	for rows.Next() {
		var d EntityDocument
		if err := rows.Scan(&d.DocumentID, &d.EntityID, &d.MentionCount); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetEntity looks up a single entity by exact name.
func (s *Store) GetEntity(ctx context.Context, name string) (model.Entity, bool, error) {
	row := s.pool.QueryRow(ctx, `SELECT id, name, type, description, mention_count, last_seen FROM entities WHERE name=$1`, name)
	var e model.Entity
	var desc *string
	if err := row.Scan(&e.ID, &e.Name, &e.Type, &desc, &e.MentionCount, &e.LastSeen); err != nil {
		if err == pgx.ErrNoRows {
			return model.Entity{}, false, nil
		}
		return model.Entity{}, false, err
	}
	if desc != nil {
		e.Description = *desc
	}
	return e, true, nil
}

// RelationshipEdge is a directed relationship with its direction relative
// to the queried entity.
type RelationshipEdge struct {
	model.EntityRelationship
	Direction string // outbound|inbound
}

// GetEntityRelationships returns directed edges for entityID ordered by
// creation time.
func (s *Store) GetEntityRelationships(ctx context.Context, entityID string, limit int) ([]RelationshipEdge, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT id, source_entity_id, target_entity_id, relationship_type, description, created_at,
	CASE WHEN source_entity_id = $1 THEN 'outbound' ELSE 'inbound' END AS direction
FROM entity_relationships
WHERE source_entity_id = $1 OR target_entity_id = $1
ORDER BY created_at
LIMIT $2`, entityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RelationshipEdge
	for rows.Next() {
		var r RelationshipEdge
		var desc *string
		if err := rows.Scan(&r.ID, &r.SourceEntityID, &r.TargetEntityID, &r.RelationshipType, &desc, &r.CreatedAt, &r.Direction); err != nil {
			return nil, err
		}
		if desc != nil {
			r.Description = *desc
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
