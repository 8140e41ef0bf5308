package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tablesync/internal/domain"
	"tablesync/internal/infra/pubsub"
	"tablesync/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrSessionNotFound = fmt.Errorf("%w: Session not found", domain.ErrNotFound)

// CartSubscription stops a shared cart listener. Unsubscribe is idempotent.
type CartSubscription interface {
	Unsubscribe() error
}

// TableSessionService keeps a table's shared cart consistent across devices.
// The stored row is the source of truth; every successful write is followed
// by a broadcast of the full snapshot on the session topic.
type TableSessionService struct {
	repo    repository.SessionRepository
	channel pubsub.Channel
	log     zerolog.Logger
	now     func() time.Time
}

func NewTableSessionService(r repository.SessionRepository, ch pubsub.Channel, log zerolog.Logger) *TableSessionService {
	return &TableSessionService{
		repo:    r,
		channel: ch,
		log:     log,
		now:     time.Now,
	}
}

func (s *TableSessionService) OpenTableSession(ctx context.Context, restaurantID, tableID string) (*domain.TableSession, error) {
	if tableID == "" {
		return nil, fmt.Errorf("%w: table_id is required", domain.ErrValidation)
	}

	session := &domain.TableSession{
		ID:           uuid.NewString(),
		RestaurantID: restaurantID,
		TableID:      tableID,
		Status:       domain.SessionActive,
		CartItems:    []domain.CartItem{},
		StartedAt:    s.now().UTC(),
	}
	res, err := s.repo.Open(ctx, session)
	if err != nil {
		return nil, err
	}
	if !res.Matched {
		return nil, fmt.Errorf("%w: table %s not found or already has an active session", domain.ErrNotFound, tableID)
	}
	return res.Record, nil
}

// GetSharedCart never fails: a missing session, an empty cart or a read
// error all yield an empty cart.
func (s *TableSessionService) GetSharedCart(ctx context.Context, sessionID string) []domain.CartItem {
	session, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("shared cart read failed")
		return []domain.CartItem{}
	}
	if session == nil || session.CartItems == nil {
		return []domain.CartItem{}
	}
	return session.CartItems
}

// UpdateSharedCart replaces the whole cart. Callers merge concurrent edits
// before calling; the write only applies while the session is active.
func (s *TableSessionService) UpdateSharedCart(ctx context.Context, sessionID string, items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	for i, it := range items {
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: cart item %d has non-positive quantity", domain.ErrValidation, i)
		}
		if it.UnitPrice < 0 {
			return fmt.Errorf("%w: cart item %d has negative price", domain.ErrInvalidAmount, i)
		}
	}

	res, err := s.repo.UpdateCart(ctx, sessionID, items)
	if err != nil {
		return err
	}
	if !res.Matched {
		return ErrSessionNotFound
	}

	s.broadcast(ctx, domain.CartSnapshot{SessionID: sessionID, Items: items})
	return nil
}

// ClearSharedCart empties the cart and reports whether the write succeeded.
func (s *TableSessionService) ClearSharedCart(ctx context.Context, sessionID string) bool {
	res, err := s.repo.UpdateCart(ctx, sessionID, []domain.CartItem{})
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("shared cart clear failed")
		return false
	}
	if !res.Matched {
		return false
	}

	s.broadcast(ctx, domain.CartSnapshot{SessionID: sessionID, Items: []domain.CartItem{}})
	return true
}

// SubscribeToSharedCart calls fn with every snapshot broadcast for the
// session, in order, from a dedicated listener goroutine.
func (s *TableSessionService) SubscribeToSharedCart(ctx context.Context, sessionID string, fn func(domain.CartSnapshot)) (CartSubscription, error) {
	sub, err := s.channel.Subscribe(ctx, domain.SessionTopic(sessionID))
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe to session %s: %v", domain.ErrTransientIO, sessionID, err)
	}

	go func() {
		for payload := range sub.Messages() {
			var snap domain.CartSnapshot
			if err := json.Unmarshal(payload, &snap); err != nil {
				s.log.Warn().Err(err).Str("session_id", sessionID).Msg("dropping undecodable cart snapshot")
				continue
			}
			fn(snap)
		}
	}()

	return sub, nil
}

func (s *TableSessionService) EndTableSession(ctx context.Context, sessionID string) error {
	res, err := s.repo.End(ctx, sessionID)
	if err != nil {
		return err
	}
	if !res.Matched {
		return ErrSessionNotFound
	}

	s.broadcast(ctx, domain.CartSnapshot{SessionID: sessionID, Items: []domain.CartItem{}, Ended: true})
	s.log.Info().Str("session_id", sessionID).Msg("table session ended")
	return nil
}

func (s *TableSessionService) GetSessionWithOrders(ctx context.Context, sessionID string) (*domain.TableSession, error) {
	session, err := s.repo.FindWithOrders(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// broadcast failures are logged only: the write is already committed and
// devices that miss the snapshot re-read the row on reconnect.
func (s *TableSessionService) broadcast(ctx context.Context, snap domain.CartSnapshot) {
	snap.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(snap)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", snap.SessionID).Msg("encode cart snapshot")
		return
	}
	if err := s.channel.Broadcast(ctx, domain.SessionTopic(snap.SessionID), payload); err != nil {
		s.log.Warn().Err(err).Str("session_id", snap.SessionID).Msg("cart broadcast failed")
	}
}
