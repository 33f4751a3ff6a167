package domain

// ProviderType identifies an external OAuth2 provider.
type ProviderType string

const (
	// ProviderGoogle covers Gmail and Google Drive.
	ProviderGoogle ProviderType = "google"
	// ProviderTwitter covers Twitter-compatible social timelines.
	ProviderTwitter ProviderType = "twitter"
	// ProviderMicrosoft covers Outlook mail through Microsoft Graph.
	ProviderMicrosoft ProviderType = "microsoft"
)

// AllProviderTypes returns every supported provider.
func AllProviderTypes() []ProviderType {
	return []ProviderType{ProviderGoogle, ProviderTwitter, ProviderMicrosoft}
}

// IsValid reports whether p is a known provider.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderTwitter, ProviderMicrosoft:
		return true
	}
	return false
}

// String returns the provider identifier.
func (p ProviderType) String() string {
	return string(p)
}

// ItemKind identifies a category of imported content.
type ItemKind string

const (
	// ItemKindEmail is a mail message.
	ItemKindEmail ItemKind = "email"
	// ItemKindTweet is a social post.
	ItemKindTweet ItemKind = "tweet"
	// ItemKindDriveFile is a file-storage entry.
	ItemKindDriveFile ItemKind = "drive_file"
)

// Capability is an abstract permission an import needs.
// Providers map capabilities onto their own scope strings.
type Capability string

const (
	CapabilityReadMail     Capability = "read-mail"
	CapabilityReadTimeline Capability = "read-timeline"
	CapabilityReadFiles    Capability = "read-files"
	CapabilityReadProfile  Capability = "read-profile"
)

// CapabilityFor returns the capability required to import items of kind k.
func CapabilityFor(k ItemKind) Capability {
	switch k {
	case ItemKindEmail:
		return CapabilityReadMail
	case ItemKindTweet:
		return CapabilityReadTimeline
	case ItemKindDriveFile:
		return CapabilityReadFiles
	default:
		return ""
	}
}

// ProviderKinds lists the item kinds each provider can import.
var ProviderKinds = map[ProviderType][]ItemKind{
	ProviderGoogle:    {ItemKindEmail, ItemKindDriveFile},
	ProviderTwitter:   {ItemKindTweet},
	ProviderMicrosoft: {ItemKindEmail},
}

// Supports reports whether provider p can import items of kind k.
func (p ProviderType) Supports(k ItemKind) bool {
	for _, kind := range ProviderKinds[p] {
		if kind == k {
			return true
		}
	}
	return false
}
