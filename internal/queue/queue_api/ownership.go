package queue_api

import (
	"context"
	"fmt"

	"smartqueue/internal/apperr"
	"smartqueue/internal/auth"
	"smartqueue/internal/models"
)

var ErrNotEventOwner = fmt.Errorf("event belongs to another admin: %w", apperr.ErrForbidden)

// ownedEvent loads the event and checks that the calling admin created it.
func (h *Handler) ownedEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := h.Service.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	subject := auth.Subject(ctx)
	if subject == "" || event.CreatedBy != subject {
		h.Logger.LogSecurity("FORBIDDEN", fmt.Sprintf("admin %q on event %s owned by %q", subject, eventID, event.CreatedBy))
		return nil, ErrNotEventOwner
	}
	return event, nil
}
