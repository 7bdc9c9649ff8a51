package outlook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	syncdomain "mailstream/internal/sync/domain"
	"mailstream/pkg/provider"
)

const (
	graphBase = "https://graph.microsoft.com/v1.0"
	pageSize  = 100
)

// Service lists messages through the Microsoft Graph REST API.
type Service struct {
	httpClient *http.Client
}

func NewService() *Service {
	return &Service{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Service) Name() string {
	return "outlook"
}

type graphMessage struct {
	ID                string `json:"id"`
	InternetMessageID string `json:"internetMessageId"`
	Subject           string `json:"subject"`
	ReceivedDateTime  string `json:"receivedDateTime"`
	IsRead            bool   `json:"isRead"`
	Importance        string `json:"importance"`
	Flag              struct {
		FlagStatus string `json:"flagStatus"`
	} `json:"flag"`
	From struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

type graphListResponse struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
	Count    int            `json:"@odata.count"`
}

// ListMessages fetches one page. The cursor is the @odata.nextLink returned
// by the previous page; folderID selects a mail folder when set.
func (s *Service) ListMessages(ctx context.Context, creds provider.Credentials, folderID, cursor string) (*provider.ListResult, error) {
	endpoint := cursor
	if endpoint == "" {
		path := "/me/messages"
		if folderID != "" {
			path = "/me/mailFolders/" + url.PathEscape(folderID) + "/messages"
		}
		query := url.Values{}
		query.Set("$top", fmt.Sprintf("%d", pageSize))
		query.Set("$select", "id,internetMessageId,subject,from,receivedDateTime,isRead,flag,importance")
		query.Set("$count", "true")
		query.Set("$orderby", "receivedDateTime desc")
		endpoint = graphBase + path + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build graph request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	req.Header.Set("ConsistencyLevel", "eventual")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, fmt.Errorf("%w: graph returned %d", provider.ErrAuthFailed, resp.StatusCode)
	case http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: graph returned 429", provider.ErrRateLimited)
	default:
		return nil, fmt.Errorf("graph returned unexpected status %d", resp.StatusCode)
	}

	var body graphListResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode graph response: %w", err)
	}

	candidates := make([]*syncdomain.MessageCandidate, 0, len(body.Value))
	for _, m := range body.Value {
		candidates = append(candidates, convertMessage(m))
	}

	return &provider.ListResult{
		Messages:      candidates,
		NextCursor:    body.NextLink,
		TotalEstimate: body.Count,
	}, nil
}

func convertMessage(m graphMessage) *syncdomain.MessageCandidate {
	receivedAt, _ := time.Parse(time.RFC3339, m.ReceivedDateTime)
	return &syncdomain.MessageCandidate{
		ProviderID:  m.ID,
		MessageID:   strings.Trim(m.InternetMessageID, "<>"),
		Subject:     m.Subject,
		Sender:      m.From.EmailAddress.Address,
		ReceivedAt:  receivedAt.UTC(),
		IsRead:      m.IsRead,
		IsStarred:   m.Flag.FlagStatus == "flagged",
		IsImportant: m.Importance == "high",
	}
}
