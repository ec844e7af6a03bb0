package identity

import (
	"context"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ClusterReader loads a cluster from the store
type ClusterReader struct {
	store Store
}

func NewClusterReader(store Store) *ClusterReader {
	return &ClusterReader{store: store}
}

// Load returns the primary followed by its secondaries in id order, as currently stored
func (r *ClusterReader) Load(ctx context.Context, primary models.Contact) ([]models.Contact, error) {
	current, err := r.store.FindByID(ctx, primary.ID)
	switch {
	case IsNotFound(err):
		current = primary
	case err != nil:
		return nil, err
	}

	secondaries, err := r.store.FindByLinkedID(ctx, primary.ID)
	if err != nil {
		return nil, err
	}

	cluster := make([]models.Contact, 0, len(secondaries)+1)
	cluster = append(cluster, current)
	for _, contact := range secondaries {
		if contact.ID == current.ID {
			continue
		}
		cluster = append(cluster, contact)
	}
	return cluster, nil
}

// BuildResponse aggregates a cluster loaded by ClusterReader. The primary's own values come first
// and every value appears once.
func BuildResponse(cluster []models.Contact) *models.IdentifyResponse {
	response := &models.IdentifyResponse{
		Emails:       []string{},
		PhoneNumbers: []string{},
		SecondaryIDs: []int64{},
	}
	if len(cluster) == 0 {
		return response
	}

	primary := cluster[0]
	response.PrimaryID = primary.ID

	emails := newOrderedSet()
	phones := newOrderedSet()
	for _, contact := range cluster {
		emails.add(contact.Email)
		phones.add(contact.PhoneNumber)
	}

	response.Emails = emails.values
	response.PhoneNumbers = phones.values
	response.SecondaryIDs = secondaryIDs(cluster, primary.ID)
	return response
}

type orderedSet struct {
	seen   map[string]struct{}
	values []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{}), values: []string{}}
}

func (s *orderedSet) add(value *string) {
	if value == nil || *value == "" {
		return
	}
	if _, ok := s.seen[*value]; ok {
		return
	}
	s.seen[*value] = struct{}{}
	s.values = append(s.values, *value)
}
