package service

import (
	"context"
	"fmt"

	"github.com/weiawesome/wes-gig-live/realtime-service/internal/domain"
	"github.com/weiawesome/wes-gig-live/realtime-service/internal/repository"
)

// RoomGate decides thread membership against the store. Results are never
// cached: a task can be reassigned between two joins.
type RoomGate struct {
	stores map[domain.ThreadKind]repository.ThreadStore
}

func NewRoomGate(stores ...repository.ThreadStore) *RoomGate {
	g := &RoomGate{stores: make(map[domain.ThreadKind]repository.ThreadStore, len(stores))}
	for _, s := range stores {
		g.stores[s.Kind()] = s
	}
	return g
}

// Store returns the strategy for the thread's kind.
func (g *RoomGate) Store(ref domain.ThreadRef) (repository.ThreadStore, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	s, ok := g.stores[ref.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: no store for kind %q", domain.ErrInvalidThread, ref.Kind)
	}
	return s, nil
}

// AuthorizeJoin reports whether userID participates in the thread. Unknown
// threads are not an error; they simply have no participants.
func (g *RoomGate) AuthorizeJoin(ctx context.Context, userID string, ref domain.ThreadRef) (bool, error) {
	s, err := g.Store(ref)
	if err != nil {
		return false, err
	}
	if userID == "" {
		return false, nil
	}
	ok, err := s.IsParticipant(ctx, ref.ID, userID)
	if err != nil {
		return false, fmt.Errorf("authorize %s: %w", ref, err)
	}
	return ok, nil
}

// Participants lists the user ids allowed in the thread.
func (g *RoomGate) Participants(ctx context.Context, ref domain.ThreadRef) ([]string, error) {
	s, err := g.Store(ref)
	if err != nil {
		return nil, err
	}
	return s.Participants(ctx, ref.ID)
}
