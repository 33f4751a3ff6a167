package outlook

import (
	"github.com/microsoftgraph/msgraph-sdk-go/models"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/normalisers/htmltext"
)

// MessageToEmail converts a Graph message.
func MessageToEmail(m models.Messageable) *domain.Email {
	email := &domain.Email{
		ItemHeader: domain.ItemHeader{Provider: domain.ProviderMicrosoft},
		ThreadID:   deref(m.GetConversationId()),
		Subject:    deref(m.GetSubject()),
		Snippet:    deref(m.GetBodyPreview()),
		To:         extractAddresses(m.GetToRecipients()),
		Cc:         extractAddresses(m.GetCcRecipients()),
		Labels:     m.GetCategories(),
	}
	email.ProviderItemID = deref(m.GetId())

	if from := m.GetFrom(); from != nil {
		if addr := from.GetEmailAddress(); addr != nil {
			email.From = deref(addr.GetAddress())
		}
	}
	if body := m.GetBody(); body != nil {
		email.Body = deref(body.GetContent())
		if ct := body.GetContentType(); ct != nil && htmltext.IsHTML(ct.String()) {
			email.Body = htmltext.Text(email.Body)
		}
	}
	if rcvd := m.GetReceivedDateTime(); rcvd != nil {
		email.ReceivedAt = rcvd.UTC()
	}
	return email
}

// extractAddresses extracts email addresses from recipients.
func extractAddresses(recipients []models.Recipientable) []string {
	var addrs []string
	for _, r := range recipients {
		if emailAddr := r.GetEmailAddress(); emailAddr != nil {
			if addr := emailAddr.GetAddress(); addr != nil {
				addrs = append(addrs, *addr)
			}
		}
	}
	return addrs
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
