package gmail

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	syncdomain "mailstream/internal/sync/domain"
	"mailstream/pkg/provider"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const pageSize = 100

// Service lists messages through the Gmail REST API.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "gmail"
}

// ListMessages fetches one page of message metadata. The cursor is the Gmail
// page token; folderID maps to a Gmail label.
func (s *Service) ListMessages(ctx context.Context, creds provider.Credentials, folderID, cursor string) (*provider.ListResult, error) {
	srv, err := s.newGmailService(ctx, creds.AccessToken)
	if err != nil {
		return nil, err
	}

	user := "me"
	listQuery := srv.Users.Messages.List(user).MaxResults(pageSize)
	if folderID != "" {
		listQuery = listQuery.LabelIds(folderID)
	}
	if cursor != "" {
		listQuery = listQuery.PageToken(cursor)
	}

	resp, err := listQuery.Context(ctx).Do()
	if err != nil {
		return nil, mapError(err)
	}

	candidates := make([]*syncdomain.MessageCandidate, 0, len(resp.Messages))

	// Fetch metadata in parallel with a bounded number of in-flight requests.
	type fetchResult struct {
		candidate *syncdomain.MessageCandidate
		err       error
	}
	results := make(chan fetchResult, len(resp.Messages))
	semaphore := make(chan struct{}, 10)

	for _, msg := range resp.Messages {
		go func(msgID string) {
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			full, err := srv.Users.Messages.Get(user, msgID).
				Format("metadata").
				MetadataHeaders("Subject", "From", "Message-Id").
				Context(ctx).Do()
			if err != nil {
				results <- fetchResult{nil, mapError(err)}
				return
			}
			results <- fetchResult{convertMessage(full), nil}
		}(msg.Id)
	}

	var firstErr error
	for range resp.Messages {
		r := <-results
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			continue
		}
		candidates = append(candidates, r.candidate)
	}
	if len(candidates) == 0 && firstErr != nil {
		return nil, firstErr
	}

	// Parallel fetching returns messages in arbitrary order.
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ReceivedAt.After(candidates[j].ReceivedAt)
	})

	return &provider.ListResult{
		Messages:      candidates,
		NextCursor:    resp.NextPageToken,
		TotalEstimate: int(resp.ResultSizeEstimate),
	}, nil
}

func (s *Service) newGmailService(ctx context.Context, accessToken string) (*gmail.Service, error) {
	source := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	})
	srv, err := gmail.NewService(ctx, option.WithTokenSource(source))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

func convertMessage(msg *gmail.Message) *syncdomain.MessageCandidate {
	candidate := &syncdomain.MessageCandidate{
		ProviderID: msg.Id,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
		IsRead:     true,
	}

	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "subject":
				candidate.Subject = h.Value
			case "from":
				candidate.Sender = extractAddress(h.Value)
			case "message-id":
				candidate.MessageID = strings.Trim(h.Value, "<>")
			}
		}
	}

	for _, label := range msg.LabelIds {
		switch label {
		case "UNREAD":
			candidate.IsRead = false
		case "STARRED":
			candidate.IsStarred = true
		case "IMPORTANT":
			candidate.IsImportant = true
		}
	}

	return candidate
}

// extractAddress pulls the bare address out of "Name <addr@host>" forms.
func extractAddress(from string) string {
	if start := strings.LastIndex(from, "<"); start >= 0 {
		if end := strings.LastIndex(from, ">"); end > start {
			return strings.TrimSpace(from[start+1 : end])
		}
	}
	return strings.TrimSpace(from)
}

func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("%w: %v", provider.ErrAuthFailed, err)
		case 429:
			return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
		}
	}
	return err
}
