package drive

import (
	"fmt"
	"time"

	"google.golang.org/api/drive/v3"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
)

// Google Workspace MIME types.
const (
	MimeTypeGoogleDoc    = "application/vnd.google-apps.document"
	MimeTypeGoogleSheet  = "application/vnd.google-apps.spreadsheet"
	MimeTypeGoogleSlides = "application/vnd.google-apps.presentation"
	MimeTypeFolder       = "application/vnd.google-apps.folder"
)

// fileFields are the metadata fields requested for a single file.
const fileFields = "id, name, mimeType, size, parents, md5Checksum, webViewLink, modifiedTime, trashed"

// FileToDriveFile converts Drive file metadata. Folders and trashed files
// are not importable.
func FileToDriveFile(file *drive.File) (*domain.DriveFile, error) {
	if file.MimeType == MimeTypeFolder {
		return nil, fmt.Errorf("%s is a folder", file.Id)
	}
	if file.Trashed {
		return nil, fmt.Errorf("%s is trashed", file.Id)
	}

	out := &domain.DriveFile{
		ItemHeader: domain.ItemHeader{
			Provider:       domain.ProviderGoogle,
			ProviderItemID: file.Id,
		},
		Name:      file.Name,
		MimeType:  file.MimeType,
		SizeBytes: file.Size,
		Parents:   file.Parents,
		MD5:       file.Md5Checksum,
		WebLink:   ResolveWebURL(file.Id, file.WebViewLink),
	}
	if file.ModifiedTime != "" {
		t, err := time.Parse(time.RFC3339, file.ModifiedTime)
		if err != nil {
			return nil, fmt.Errorf("parse modified time %q: %w", file.ModifiedTime, err)
		}
		out.ModifiedAt = t.UTC()
	}
	return out, nil
}
