package gdrive

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"google.golang.org/api/drive/v3"
)

// FileManager handles file operations within resolved folders.
type FileManager struct {
	client *Client
}

func NewFileManager(client *Client) *FileManager {
	return &FileManager{client: client}
}

// Find searches for a file by name in a specific folder; nil when absent.
func (fm *FileManager) Find(ctx context.Context, filename, parentID string) (*drive.File, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQueryValue(filename), parentID)

	fileList, err := withRetry(ctx, func() (*drive.FileList, error) {
		return fm.client.Service().Files.List().
			Q(query).
			Fields("files(id, name, createdTime, modifiedTime, webViewLink)").
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, err
	}

	if len(fileList.Files) == 0 {
		return nil, nil
	}
	return fileList.Files[0], nil
}

// Create makes a new file with the given content.
func (fm *FileManager) Create(ctx context.Context, name, parentID, mimeType string, content []byte) (*drive.File, error) {
	fileMetadata := &drive.File{
		Name:     name,
		Parents:  []string{parentID},
		MimeType: mimeType,
	}

	return fm.client.Service().Files.Create(fileMetadata).
		Media(bytes.NewReader(content)).
		Fields("id, webViewLink").
		Context(ctx).
		Do()
}

// Update replaces an existing file's content in place.
func (fm *FileManager) Update(ctx context.Context, fileID string, content []byte) error {
	_, err := fm.client.Service().Files.Update(fileID, &drive.File{}).
		Media(bytes.NewReader(content)).
		Context(ctx).
		Do()
	return err
}

// Download fetches the content of a file.
func (fm *FileManager) Download(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := fm.client.Service().Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// ListNames returns the names of all non-trashed files in a folder.
func (fm *FileManager) ListNames(ctx context.Context, parentID string) ([]string, error) {
	query := fmt.Sprintf("'%s' in parents and mimeType != '%s' and trashed=false", parentID, folderMimeType)

	fileList, err := withRetry(ctx, func() (*drive.FileList, error) {
		return fm.client.Service().Files.List().
			Q(query).
			Fields("files(name)").
			OrderBy("name").
			PageSize(200).
			Context(ctx).
			Do()
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fileList.Files))
	for _, file := range fileList.Files {
		names = append(names, file.Name)
	}
	return names, nil
}
