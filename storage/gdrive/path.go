package gdrive

import (
	"errors"
	"path"
	"strings"
)

var errBadPath = errors.New("invalid storage path")

// splitLogicalPath breaks a logical path into intermediate folder segments
// and a leaf filename. Paths are slash-separated, relative to the provider
// root; empty paths and traversal are rejected.
func splitLogicalPath(p string) ([]string, string, error) {
	cleaned := path.Clean(strings.Trim(p, "/"))
	if cleaned == "" || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return nil, "", errBadPath
	}

	segments := strings.Split(cleaned, "/")
	filename := segments[len(segments)-1]
	folders := segments[:len(segments)-1]

	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return nil, "", errBadPath
		}
	}

	return folders, filename, nil
}

// splitDirectory breaks a directory path into folder segments; empty and
// "/" mean the provider root.
func splitDirectory(dir string) ([]string, error) {
	trimmed := strings.Trim(dir, "/")
	if trimmed == "" {
		return nil, nil
	}

	segments := strings.Split(path.Clean(trimmed), "/")
	for _, seg := range segments {
		if seg == "" || seg == "." || seg == ".." {
			return nil, errBadPath
		}
	}
	return segments, nil
}

// contentMimeType guesses a MIME type from the filename extension; the
// provider only writes a handful of formats.
func contentMimeType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".md":
		return "text/markdown"
	case ".txt", ".fountain":
		return "text/plain"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
