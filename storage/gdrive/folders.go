package gdrive

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/api/drive/v3"
)

const folderMimeType = "application/vnd.google-apps.folder"

// FolderManager handles folder operations, caching resolved folder IDs for
// the lifetime of the connection. The lookup-by-name before every write is
// the main quota cost center; the cache keeps repeat saves to one request.
type FolderManager struct {
	client *Client

	mu    sync.Mutex
	cache map[string]string // "parentID/name" -> folderID
}

func NewFolderManager(client *Client) *FolderManager {
	return &FolderManager{
		client: client,
		cache:  make(map[string]string),
	}
}

// GetOrCreate returns the ID of a folder under parentID, creating it if it
// doesn't exist. An empty parent means the user's My Drive root.
func (fm *FolderManager) GetOrCreate(ctx context.Context, name, parentID string) (string, error) {
	if parentID == "" {
		parentID = "root"
	}

	key := parentID + "/" + name
	fm.mu.Lock()
	if id, ok := fm.cache[key]; ok {
		fm.mu.Unlock()
		return id, nil
	}
	fm.mu.Unlock()

	id, err := fm.lookup(ctx, name, parentID)
	if err != nil {
		return "", err
	}

	if id == "" {
		fileMetadata := &drive.File{
			Name:     name,
			MimeType: folderMimeType,
			Parents:  []string{parentID},
		}

		file, err := fm.client.Service().Files.Create(fileMetadata).
			Fields("id").
			Context(ctx).
			Do()
		if err != nil {
			return "", err
		}
		id = file.Id
	}

	fm.mu.Lock()
	fm.cache[key] = id
	fm.mu.Unlock()

	return id, nil
}

// Find returns the ID of a folder under parentID without creating it, or
// empty string when absent.
func (fm *FolderManager) Find(ctx context.Context, name, parentID string) (string, error) {
	if parentID == "" {
		parentID = "root"
	}

	key := parentID + "/" + name
	fm.mu.Lock()
	if id, ok := fm.cache[key]; ok {
		fm.mu.Unlock()
		return id, nil
	}
	fm.mu.Unlock()

	id, err := fm.lookup(ctx, name, parentID)
	if err != nil {
		return "", err
	}

	if id != "" {
		fm.mu.Lock()
		fm.cache[key] = id
		fm.mu.Unlock()
	}
	return id, nil
}

func (fm *FolderManager) lookup(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false and '%s' in parents",
		escapeQueryValue(name), folderMimeType, parentID)

	fileList, err := withRetry(ctx, func() (*drive.FileList, error) {
		return fm.client.Service().Files.List().
			Q(query).
			Fields("files(id, name)").
			Context(ctx).
			Do()
	})
	if err != nil {
		return "", err
	}

	if len(fileList.Files) > 0 {
		return fileList.Files[0].Id, nil
	}
	return "", nil
}

// InvalidateCache drops all cached folder IDs. Called when the project
// scope changes and the folder tree root moves.
func (fm *FolderManager) InvalidateCache() {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.cache = make(map[string]string)
}

// escapeQueryValue escapes single quotes and backslashes for Drive query
// strings; folder names come from user-controlled project names.
func escapeQueryValue(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
