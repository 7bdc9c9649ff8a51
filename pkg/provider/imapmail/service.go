package imapmail

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	syncdomain "mailstream/internal/sync/domain"
	"mailstream/pkg/provider"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
)

const pageSize = 100

// Service lists messages from a generic IMAP mailbox. The cursor is the last
// synced UID, so successive pages walk the mailbox in UID order.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

func (s *Service) Name() string {
	return "imap"
}

func (s *Service) ListMessages(ctx context.Context, creds provider.Credentials, folderID, cursor string) (*provider.ListResult, error) {
	c, err := dial(creds)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to IMAP server: %w", err)
	}
	defer c.Logout()

	if err := c.Login(creds.IMAPUsername, creds.IMAPPassword); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrAuthFailed, err)
	}

	folder := folderID
	if folder == "" {
		folder = "INBOX"
	}
	mbox, err := c.Select(folder, true)
	if err != nil {
		return nil, fmt.Errorf("failed to select mailbox %q: %w", folder, err)
	}

	var lastUID uint32
	if cursor != "" {
		parsed, err := strconv.ParseUint(cursor, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid IMAP cursor %q: %w", cursor, err)
		}
		lastUID = uint32(parsed)
	}

	searchRange := new(imap.SeqSet)
	searchRange.AddRange(lastUID+1, 0)
	criteria := imap.NewSearchCriteria()
	criteria.Uid = searchRange

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	if len(uids) == 0 {
		return &provider.ListResult{TotalEstimate: int(mbox.Messages)}, nil
	}

	page := uids
	nextCursor := ""
	if len(page) > pageSize {
		page = page[:pageSize]
		nextCursor = strconv.FormatUint(uint64(page[len(page)-1]), 10)
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(page...)

	headerSection := &imap.BodySectionName{Peek: true}
	headerSection.Specifier = imap.HeaderSpecifier

	messages := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, []imap.FetchItem{
			imap.FetchEnvelope, imap.FetchFlags, imap.FetchUid, headerSection.FetchItem(),
		}, messages)
	}()

	candidates := make([]*syncdomain.MessageCandidate, 0, len(page))
	for msg := range messages {
		candidates = append(candidates, convertMessage(msg, folder, headerSection))
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("error during fetch: %w", err)
	}

	return &provider.ListResult{
		Messages:      candidates,
		NextCursor:    nextCursor,
		TotalEstimate: int(mbox.Messages),
	}, nil
}

func dial(creds provider.Credentials) (*client.Client, error) {
	addr := fmt.Sprintf("%s:%d", creds.IMAPHost, creds.IMAPPort)
	tlsConfig := &tls.Config{ServerName: creds.IMAPHost}

	switch strings.ToUpper(creds.IMAPEncryption) {
	case "SSL", "TLS":
		return client.DialTLS(addr, tlsConfig)
	case "STARTTLS":
		c, err := client.Dial(addr)
		if err != nil {
			return nil, err
		}
		if err := c.StartTLS(tlsConfig); err != nil {
			return nil, err
		}
		return c, nil
	default:
		return client.Dial(addr)
	}
}

func convertMessage(msg *imap.Message, folder string, headerSection *imap.BodySectionName) *syncdomain.MessageCandidate {
	candidate := &syncdomain.MessageCandidate{
		ProviderID: fmt.Sprintf("%s/%d", folder, msg.Uid),
	}

	if msg.Envelope != nil {
		candidate.MessageID = strings.Trim(msg.Envelope.MessageId, "<>")
		candidate.Subject = msg.Envelope.Subject
		candidate.ReceivedAt = msg.Envelope.Date.UTC()
		if len(msg.Envelope.From) > 0 {
			from := msg.Envelope.From[0]
			candidate.Sender = from.MailboxName + "@" + from.HostName
		}
	}

	// Some servers return sparse envelopes; fall back to the raw header.
	if candidate.MessageID == "" || candidate.Sender == "" {
		if literal := msg.GetBody(headerSection); literal != nil {
			if mr, err := mail.CreateReader(literal); err == nil {
				if candidate.MessageID == "" {
					if id, err := mr.Header.MessageID(); err == nil {
						candidate.MessageID = id
					}
				}
				if candidate.Sender == "" {
					if addrs, err := mr.Header.AddressList("From"); err == nil && len(addrs) > 0 {
						candidate.Sender = addrs[0].Address
					}
				}
			}
		}
	}

	for _, flag := range msg.Flags {
		switch flag {
		case imap.SeenFlag:
			candidate.IsRead = true
		case imap.FlaggedFlag:
			candidate.IsStarred = true
		}
	}

	return candidate
}
