package connector

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/searchemu/searchemu/internal/gitignore"
	"github.com/searchemu/searchemu/internal/schema"
)

// FileSystemConnector treats a data source's connectionString as a base
// directory and its container as a subdirectory beneath it; query is a
// glob pattern matched against each file's base name.
// Directory traversal follows the teacher's scanner.go convention
// (filepath.WalkDir, skip directories and unfollowed symlinks).
// ExcludedPatterns reuses the teacher's gitignore matcher so a data
// source can skip whole trees (vendored dependencies, build output)
// without forcing every entry through Query's single glob.
type FileSystemConnector struct{}

func (c *FileSystemConnector) root(ds *schema.DataSource) string {
	return filepath.Join(ds.ConnectionString, ds.Container)
}

// ListDocuments walks root, returning every file whose modification time
// is strictly newer than trackingState.
func (c *FileSystemConnector) ListDocuments(ctx context.Context, ds *schema.DataSource, trackingState *time.Time) ([]DataSourceDocument, error) {
	root := c.root(ds)
	var docs []DataSourceDocument

	matcher := gitignore.New()
	for _, p := range ds.ExcludedPatterns {
		matcher.AddPattern(p)
	}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil {
			return nil // skip files we can't access, matching scanner.go
		}
		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if d.IsDir() {
			if relPath != "." && matcher.Match(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return nil
		}
		if matcher.Match(relPath, false) {
			return nil
		}
		if ds.Query != "" {
			matched, err := filepath.Match(ds.Query, filepath.Base(path))
			if err != nil || !matched {
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if trackingState != nil && !info.ModTime().After(*trackingState) {
			return nil
		}

		docs = append(docs, c.toDocument(relPath, info))
		return nil
	})
	if err != nil && err != context.Canceled {
		return nil, fmt.Errorf("list documents under %s: %w", root, err)
	}
	return docs, nil
}

// ReadContent reads a document's raw bytes. Crackers (component G) are a
// pure function of these bytes plus the document's content type/name.
func (c *FileSystemConnector) ReadContent(ctx context.Context, ds *schema.DataSource, doc DataSourceDocument) ([]byte, error) {
	relPath, err := decodeKey(doc.Key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(c.root(ds), relPath))
	if err != nil {
		return nil, fmt.Errorf("read content for %s: %w", doc.Name, err)
	}
	return data, nil
}

// GetDocument fetches one document's metadata by key, without its
// content.
func (c *FileSystemConnector) GetDocument(ctx context.Context, ds *schema.DataSource, key string) (*DataSourceDocument, error) {
	relPath, err := decodeKey(key)
	if err != nil {
		return nil, err
	}
	full := filepath.Join(c.root(ds), relPath)
	info, err := os.Stat(full)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", relPath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("get document %s: is a directory", relPath)
	}
	doc := c.toDocument(relPath, info)
	return &doc, nil
}

func (c *FileSystemConnector) toDocument(relPath string, info fs.FileInfo) DataSourceDocument {
	name := filepath.Base(relPath)
	return DataSourceDocument{
		Key:          encodeKey(relPath),
		Name:         name,
		ContentType:  contentTypeForName(name),
		Size:         info.Size(),
		LastModified: info.ModTime(),
		MetadataStorage: map[string]interface{}{
			"metadata_storage_name":          name,
			"metadata_storage_path":          relPath,
			"metadata_storage_size":          info.Size(),
			"metadata_storage_last_modified": info.ModTime().Format(time.RFC3339),
			"metadata_storage_content_type":  contentTypeForName(name),
		},
	}
}

func encodeKey(relPath string) string {
	return base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(relPath))
}

func decodeKey(key string) (string, error) {
	b, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("invalid document key %q: %w", key, err)
	}
	return string(b), nil
}

func contentTypeForName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	switch ext {
	case ".md":
		return "text/markdown"
	case ".txt":
		return "text/plain"
	case ".html", ".htm":
		return "text/html"
	default:
		return "application/octet-stream"
	}
}
