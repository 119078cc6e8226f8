package queue

import "context"

// Allocator hands out queue positions. Allocate must run inside the event
// lock and a store transaction; a rollback returns the position, so issued
// positions have no gaps.
type Allocator struct {
	store Store
}

func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// Allocate returns the next position for the event, starting at 1.
func (a *Allocator) Allocate(ctx context.Context, eventID string) (int, error) {
	event, err := a.store.GetEventForUpdate(ctx, eventID)
	if err != nil {
		return 0, err
	}
	if !event.IsActive {
		return 0, ErrEventInactive
	}
	next := event.IssuedTokens + 1
	if next > event.MaxTokens {
		return 0, ErrCapacityExceeded
	}
	if err := a.store.SetIssuedTokens(ctx, eventID, next); err != nil {
		return 0, err
	}
	return next, nil
}
