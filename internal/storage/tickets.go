package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// openTicketsKey is the set of users with an application in flight.
	openTicketsKey = "applications:open"
	// pendingTicketsKey maps applicants to their submission payloads.
	pendingTicketsKey = "applications:pending"
)

// ErrDuplicateTicket is returned by CreateTicket when the user already has an
// application open.
var ErrDuplicateTicket = errors.New("user already has an open application")

// TicketStore persists open application tickets so the duplicate-submission
// check survives restarts. The review workflow that resolves tickets lives
// outside this process; it closes tickets through CloseTicket.
type TicketStore struct {
	client rueidis.Client
	logger *zap.Logger
}

// NewTicketStore creates a TicketStore.
func NewTicketStore(client rueidis.Client, logger *zap.Logger) *TicketStore {
	return &TicketStore{
		client: client,
		logger: logger.Named("ticket_store"),
	}
}

// HasOpenTicket reports whether the user already has an application open.
func (s *TicketStore) HasOpenTicket(ctx context.Context, userID snowflake.ID) (bool, error) {
	open, err := s.client.Do(ctx, s.client.B().Sismember().
		Key(openTicketsKey).Member(userID.String()).Build()).AsBool()
	if err != nil {
		return false, fmt.Errorf("failed to check open tickets: %w", err)
	}
	return open, nil
}

// CreateTicket opens a ticket holding the submission payload. The open-set add
// doubles as the final duplicate gate: if the user is already a member, the
// ticket is left untouched and ErrDuplicateTicket is returned.
func (s *TicketStore) CreateTicket(ctx context.Context, userID snowflake.ID, submission string) error {
	added, err := s.client.Do(ctx, s.client.B().Sadd().
		Key(openTicketsKey).Member(userID.String()).Build()).AsInt64()
	if err != nil {
		return fmt.Errorf("failed to open ticket: %w", err)
	}
	if added == 0 {
		return ErrDuplicateTicket
	}

	err = s.client.Do(ctx, s.client.B().Hset().Key(pendingTicketsKey).
		FieldValue().FieldValue(userID.String(), submission).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to store submission: %w", err)
	}

	s.logger.Info("Opened application ticket", zap.Uint64("userID", uint64(userID)))
	return nil
}

// CloseTicket resolves the user's ticket.
func (s *TicketStore) CloseTicket(ctx context.Context, userID snowflake.ID) error {
	err := s.client.Do(ctx, s.client.B().Srem().
		Key(openTicketsKey).Member(userID.String()).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to close ticket: %w", err)
	}

	err = s.client.Do(ctx, s.client.B().Hdel().
		Key(pendingTicketsKey).Field(userID.String()).Build()).Error()
	if err != nil {
		return fmt.Errorf("failed to drop submission: %w", err)
	}
	return nil
}
