package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/identity"
	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

const (
	upsertContactsCypher = `
		UNWIND $contacts AS c
		MERGE (n:Contact {id: c.id})
		SET n.email = c.email,
			n.phone_number = c.phone_number,
			n.link_precedence = c.link_precedence,
			n.created_at = c.created_at,
			n.updated_at = c.updated_at`

	dropLinksCypher = `
		MATCH (n:Contact)-[r:LINKED_TO]->()
		WHERE n.id IN $ids
		DELETE r`

	linkContactsCypher = `
		UNWIND $links AS l
		MATCH (s:Contact {id: l.from}), (p:Contact {id: l.to})
		MERGE (s)-[:LINKED_TO]->(p)`

	dropAllCypher = `MATCH (n:Contact) DETACH DELETE n`
)

// ClusterService mirrors each resolved cluster as (:Contact)-[:LINKED_TO]->(:Contact) edges
type ClusterService struct {
	client *Client
	logger ectologger.Logger
}

func NewClusterService(client *Client, logger ectologger.Logger) *ClusterService {
	return &ClusterService{
		client: client,
		logger: logger,
	}
}

var (
	_ identity.Listener      = (*ClusterService)(nil)
	_ identity.ResetListener = (*ClusterService)(nil)
)

// OnIdentify implements identity.Listener
func (s *ClusterService) OnIdentify(ctx context.Context, outcome *models.IdentifyOutcome) error {
	return s.Project(ctx, outcome.Cluster)
}

// Project replaces the stored links of every contact in cluster with its current link
func (s *ClusterService) Project(ctx context.Context, cluster []models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ClusterService.Project", attribute.Int("clover.cluster_size", len(cluster)))
	defer span.End()

	if len(cluster) == 0 {
		return nil
	}

	params := clusterParams(cluster)
	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, query := range []string{upsertContactsCypher, dropLinksCypher, linkContactsCypher} {
			result, err := tx.Run(ctx, query, params)
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		tracing.Fail(span, err)
		metrics.RecordGraphProjection(metrics.StatusError)
		s.logger.WithContext(ctx).WithError(err).WithField("primary_id", cluster[0].ID).Error("Failed to project cluster to graph")
		return fmt.Errorf("failed to project cluster to graph: %w", err)
	}

	metrics.RecordGraphProjection(metrics.StatusSuccess)
	s.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id": cluster[0].ID,
		"contacts":   len(cluster),
	}).Debug("Projected cluster to graph")
	return nil
}

// OnReset implements identity.ResetListener
func (s *ClusterService) OnReset(ctx context.Context) error {
	return s.Clear(ctx)
}

// Clear removes every contact node
func (s *ClusterService) Clear(ctx context.Context) error {
	ctx, span := tracing.StartSpan(ctx, "graph.ClusterService.Clear")
	defer span.End()

	_, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, dropAllCypher, nil)
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to clear contact graph")
		return fmt.Errorf("failed to clear contact graph: %w", err)
	}
	return nil
}

func clusterParams(cluster []models.Contact) map[string]any {
	contacts := make([]any, 0, len(cluster))
	ids := make([]any, 0, len(cluster))
	links := make([]any, 0, len(cluster))

	for _, c := range cluster {
		contacts = append(contacts, map[string]any{
			"id":              c.ID,
			"email":           optional(c.Email),
			"phone_number":    optional(c.PhoneNumber),
			"link_precedence": string(c.LinkPrecedence),
			"created_at":      c.CreatedAt.UTC().Format(time.RFC3339Nano),
			"updated_at":      c.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		ids = append(ids, c.ID)
		if c.LinkedID != nil {
			links = append(links, map[string]any{"from": c.ID, "to": *c.LinkedID})
		}
	}

	return map[string]any{
		"contacts": contacts,
		"ids":      ids,
		"links":    links,
	}
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
