package gmail

import (
	"context"
	"fmt"
	"sync"
	"time"

	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/subhatanay/expenseapp/internal/domain"
)

const mailbox = "me"

// Source reads bank alert mails through the Gmail API. Each user has their
// own credentials file; services are created on first use.
type Source struct {
	mu       sync.Mutex
	creds    map[string]string
	services map[string]*gmailapi.Service
	opts     []option.ClientOption
}

// NewSource creates a Source. creds maps user ids to OAuth credential files
// (authorized_user or service account JSON). opts are appended to every
// service, e.g. option.WithEndpoint in tests.
func NewSource(creds map[string]string, opts ...option.ClientOption) *Source {
	return &Source{
		creds:    creds,
		services: make(map[string]*gmailapi.Service),
		opts:     opts,
	}
}

// SetService installs a ready Gmail service for a user.
func (s *Source) SetService(userID string, svc *gmailapi.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[userID] = svc
}

func (s *Source) service(ctx context.Context, userID string) (*gmailapi.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc, ok := s.services[userID]; ok {
		return svc, nil
	}
	path, ok := s.creds[userID]
	if !ok || path == "" {
		return nil, fmt.Errorf("no gmail credentials for user %s: %w", userID, domain.ErrNotFound)
	}

	opts := append([]option.ClientOption{
		option.WithCredentialsFile(path),
		option.WithScopes(gmailapi.GmailReadonlyScope),
	}, s.opts...)
	svc, err := gmailapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service for %s: %w", userID, err)
	}
	s.services[userID] = svc
	return svc, nil
}

// List implements domain.MessageSource. Gmail returns ids newest first.
func (s *Source) List(ctx context.Context, userID, query string, limit int) ([]string, error) {
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	call := svc.Users.Messages.List(mailbox).Q(query).Context(ctx)
	if limit > 0 {
		call = call.MaxResults(int64(limit))
	}
	resp, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("List: listing messages: %w", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, nil
}

// Get implements domain.MessageSource.
func (s *Source) Get(ctx context.Context, userID, messageID string) (*domain.RawMessage, error) {
	svc, err := s.service(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("Get: %w", err)
	}

	msg, err := svc.Users.Messages.Get(mailbox, messageID).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("Get: fetching message %s: %w", messageID, err)
	}

	body, err := PayloadText(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("Get: message %s: %w", messageID, err)
	}

	return &domain.RawMessage{
		ID:        msg.Id,
		Timestamp: time.UnixMilli(msg.InternalDate).UTC(),
		Body:      body,
	}, nil
}

// Ensure Source implements domain.MessageSource.
var _ domain.MessageSource = (*Source)(nil)
