package gmail

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/normalisers/htmltext"
)

// MessageToEmail converts a Gmail message fetched with Format("full").
func MessageToEmail(msg *gmail.Message) *domain.Email {
	email := &domain.Email{
		ItemHeader: domain.ItemHeader{
			Provider:       domain.ProviderGoogle,
			ProviderItemID: msg.Id,
		},
		ThreadID:   msg.ThreadId,
		Snippet:    msg.Snippet,
		Labels:     msg.LabelIds,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return email
	}

	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			email.Subject = h.Value
		case "from":
			email.From = h.Value
		case "to":
			email.To = addressList(h.Value)
		case "cc":
			email.Cc = addressList(h.Value)
		}
	}
	email.Body = bodyText(msg.Payload)
	return email
}

// bodyText prefers a text/plain part and falls back to a converted text/html part.
func bodyText(payload *gmail.MessagePart) string {
	if body := findPart(payload, "text/plain"); body != "" {
		return body
	}
	return htmltext.Text(findPart(payload, "text/html"))
}

// findPart returns the decoded data of the first part of mimeType, searching depth first.
func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, p := range part.Parts {
		if body := findPart(p, mimeType); body != "" {
			return body
		}
	}
	return ""
}

// decodeBody decodes base64url part data. Gmail omits padding on some parts.
func decodeBody(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}

func addressList(value string) []string {
	addrs, err := mail.ParseAddressList(value)
	if err != nil {
		var out []string
		for _, a := range strings.Split(value, ",") {
			if a = strings.TrimSpace(a); a != "" {
				out = append(out, a)
			}
		}
		return out
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.Address)
	}
	return out
}
