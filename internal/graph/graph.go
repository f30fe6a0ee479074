// Package graph defines the GraphBackend contract used by QueryService's
// graph and hybrid strategies, decoupled from the concrete Postgres
// implementation.
package graph

import (
	"context"

	"ragengine/internal/model"
	"ragengine/internal/store/postgres"
)

// Backend is the five-operation graph surface: entity resolution,
// bounded traversal, document attribution, and single-entity lookups.
type Backend interface {
	ResolveEntities(ctx context.Context, names []string) ([]postgres.ResolvedEntity, error)
	Traverse(ctx context.Context, seedIDs []string, params postgres.TraversalParams) (postgres.TraversalResult, error)
	GetEntityDocuments(ctx context.Context, entityIDs []string, limit int) ([]postgres.EntityDocument, error)
	GetEntity(ctx context.Context, name string) (model.Entity, bool, error)
	GetEntityRelationships(ctx context.Context, entityID string, limit int) ([]postgres.RelationshipEdge, error)
}

var _ Backend = (*postgres.Store)(nil)
