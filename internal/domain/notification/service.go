package notification

import (
	"context"
	"fmt"
	"log"

	"finsync/internal/shared/messages"
)

// Service sends sync-related push notifications. Every method is best
// effort: a push failure is logged and never propagated, so notifications
// can never fail a sync.
type Service struct {
	repo      DeviceTokenRepository
	messenger Messenger
	texts     *messages.Messages
}

// NewService creates a notification service.
func NewService(repo DeviceTokenRepository, messenger Messenger, texts *messages.Messages) *Service {
	return &Service{repo: repo, messenger: messenger, texts: texts}
}

// ReconnectRequired notifies the user that an institution connection needs
// to be re-established.
func (s *Service) ReconnectRequired(ctx context.Context, userID int64, institution, userMessage string) {
	body := userMessage
	if body == "" {
		body = fmt.Sprintf(s.texts.ReconnectRequired.Body, institution)
	}
	s.send(ctx, userID, s.texts.ReconnectRequired.Title, body, map[string]string{
		"type":        "reconnect_required",
		"institution": institution,
	})
}

// SyncCompleted notifies the user that new transactions arrived.
func (s *Service) SyncCompleted(ctx context.Context, userID int64, added int) {
	if added == 0 {
		return
	}
	body := fmt.Sprintf(s.texts.SyncComplete.Body, added)
	s.send(ctx, userID, s.texts.SyncComplete.Title, body, map[string]string{
		"type": "sync_complete",
	})
}

func (s *Service) send(ctx context.Context, userID int64, title, body string, data map[string]string) {
	tokens, err := s.repo.ListActiveTokens(ctx, userID)
	if err != nil {
		log.Printf("User %d: failed to list device tokens: %v", userID, err)
		return
	}
	if len(tokens) == 0 {
		return
	}
	if err := s.messenger.SendMulticast(ctx, tokens, title, body, data); err != nil {
		log.Printf("User %d: failed to send push notification: %v", userID, err)
	}
}
