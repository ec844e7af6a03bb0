package identity

import (
	"context"
	"sort"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Resolution is the result of resolving a set of matched contacts to one cluster
type Resolution struct {
	// Primary is the surviving canonical contact
	Primary models.Contact
	// Demoted holds the former canonical contacts re-parented under Primary
	Demoted []int64
	// Relinked holds every contact whose link changed, Demoted included
	Relinked []int64
}

// Merged reports whether two or more clusters were combined
func (r *Resolution) Merged() bool {
	return len(r.Demoted) > 0
}

// Resolver maps matched contacts to their canonical contacts and merges competing clusters
type Resolver struct {
	store  Store
	logger ectologger.Logger
}

func NewResolver(store Store, logger ectologger.Logger) *Resolver {
	return &Resolver{store: store, logger: logger}
}

// Canonicals returns the distinct canonical contacts of matches, oldest first.
// Ties on createdAt are broken by id.
func (r *Resolver) Canonicals(ctx context.Context, matches []models.Contact) ([]models.Contact, error) {
	seen := make(map[int64]struct{}, len(matches))
	canonicals := make([]models.Contact, 0, len(matches))

	for _, match := range matches {
		canonical, err := r.canonicalOf(ctx, match)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[canonical.ID]; ok {
			continue
		}
		seen[canonical.ID] = struct{}{}
		canonicals = append(canonicals, canonical)
	}

	sort.SliceStable(canonicals, func(i, j int) bool {
		a, b := canonicals[i], canonicals[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return canonicals, nil
}

// canonicalOf follows linkedId to the primary contact. A dangling or cyclic link resolves to the contact itself.
func (r *Resolver) canonicalOf(ctx context.Context, contact models.Contact) (models.Contact, error) {
	current := contact
	visited := map[int64]struct{}{current.ID: {}}

	for !current.IsPrimary() && current.LinkedID != nil {
		parent, err := r.store.FindByID(ctx, *current.LinkedID)
		if IsNotFound(err) {
			r.logger.WithContext(ctx).WithFields(map[string]any{
				"contact_id": contact.ID,
				"linked_id":  *current.LinkedID,
			}).Warn("Linked contact not found; contact resolves to itself")
			return contact, nil
		}
		if err != nil {
			return models.Contact{}, err
		}
		if _, ok := visited[parent.ID]; ok {
			r.logger.WithContext(ctx).WithField("contact_id", contact.ID).Warn("Link cycle detected; contact resolves to itself")
			return contact, nil
		}
		visited[parent.ID] = struct{}{}
		current = parent
	}
	return current, nil
}

// Resolve picks the cluster for matches, merging every younger canonical contact and its dependents
// into the oldest. Returns nil when matches is empty.
func (r *Resolver) Resolve(ctx context.Context, matches []models.Contact) (*Resolution, error) {
	ctx, span := tracing.StartSpan(ctx, "identity.Resolver.Resolve")
	defer span.End()

	if len(matches) == 0 {
		return nil, nil
	}

	canonicals, err := r.Canonicals(ctx, matches)
	if err != nil {
		return nil, err
	}

	resolution := &Resolution{Primary: canonicals[0]}
	if len(canonicals) == 1 {
		return resolution, nil
	}

	survivor := resolution.Primary
	demoted := canonicals[1:]

	// dependents are read before any write so the flatten works from the pre-merge state
	dependents := make(map[int64][]models.Contact, len(demoted))
	for _, canonical := range demoted {
		linked, err := r.store.FindByLinkedID(ctx, canonical.ID)
		if err != nil {
			return nil, err
		}
		dependents[canonical.ID] = linked
	}

	for _, canonical := range demoted {
		if !linksTo(canonical, survivor.ID) {
			if err := r.store.Reparent(ctx, canonical.ID, survivor.ID); err != nil {
				return nil, err
			}
			resolution.Relinked = append(resolution.Relinked, canonical.ID)
		}
		resolution.Demoted = append(resolution.Demoted, canonical.ID)

		for _, dependent := range dependents[canonical.ID] {
			if dependent.ID == survivor.ID || linksTo(dependent, survivor.ID) {
				continue
			}
			if err := r.store.Reparent(ctx, dependent.ID, survivor.ID); err != nil {
				return nil, err
			}
			resolution.Relinked = append(resolution.Relinked, dependent.ID)
		}
	}

	tracing.SetAttributes(ctx,
		attribute.Int64("clover.primary_id", survivor.ID),
		attribute.Int("clover.demoted", len(resolution.Demoted)),
		attribute.Int("clover.relinked", len(resolution.Relinked)),
	)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"primary_id": survivor.ID,
		"demoted":    resolution.Demoted,
		"relinked":   len(resolution.Relinked),
	}).Info("Merged contact clusters")

	return resolution, nil
}

func linksTo(contact models.Contact, primaryID int64) bool {
	return !contact.IsPrimary() && contact.LinkedID != nil && *contact.LinkedID == primaryID
}

// secondaryIDs returns the ids of the non-primary contacts in cluster, ascending
func secondaryIDs(cluster []models.Contact, primaryID int64) []int64 {
	secondaries := ectolinq.Filter(cluster, func(c models.Contact) bool {
		return c.ID != primaryID
	})
	ids := ectolinq.Map(secondaries, func(c models.Contact) int64 {
		return c.ID
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
