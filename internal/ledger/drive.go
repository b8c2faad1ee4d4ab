package ledger

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DriveArchiver implements the Archiver interface using Google Drive.
type DriveArchiver struct {
	svc      *drive.Service
	folderID string
}

// NewDriveArchiver creates a new DriveArchiver uploading into one folder
func NewDriveArchiver(ctx context.Context, credentialsFile, folderID string) (*DriveArchiver, error) {
	if folderID == "" {
		return nil, fmt.Errorf("drive folder id is required")
	}

	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("creating drive service: %w", err)
	}

	return &DriveArchiver{svc: svc, folderID: folderID}, nil
}

// Archive uploads the file and returns its web view link as the source
// reference, so the same string doubles as the admin notification link.
func (a *DriveArchiver) Archive(ctx context.Context, filename string, data []byte, mimeType string) (string, error) {
	meta := &drive.File{
		Name:    sanitizeFilename(filename),
		Parents: []string{a.folderID},
	}

	created, err := a.svc.Files.Create(meta).
		Media(bytes.NewReader(data), googleapi.ContentType(mimeType)).
		Fields("id", "webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("uploading to drive: %w", err)
	}

	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return created.Id, nil
}
