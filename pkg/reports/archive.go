// Package reports implements the versioned report archive.
package reports

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Archive is the durable blob store for generated report content. Put returns
// an opaque content reference recorded on the artifact.
type Archive interface {
	Put(ctx context.Context, campaignID, period string, version int, content []byte) (string, error)
	Get(ctx context.Context, contentRef string) ([]byte, error)
}

// FileArchive stores report content on the file system under
// <root>/<campaign>/<period>/v<version>.<ext>. The content reference is the
// path relative to the root.
type FileArchive struct {
	root string
}

func NewFileArchive(root string) *FileArchive {
	return &FileArchive{root: strings.Replace(root, "file://", "", 1)}
}

func (a *FileArchive) Put(_ context.Context, campaignID, period string, version int, content []byte) (string, error) {
	if err := validatePathComponent(campaignID); err != nil {
		return "", err
	}

	if err := validatePathComponent(period); err != nil {
		return "", err
	}

	dir := filepath.Join(a.root, campaignID, period)

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	name := fmt.Sprintf("v%d.json", version)

	err = os.WriteFile(filepath.Join(dir, name), content, 0600)
	if err != nil {
		return "", fmt.Errorf("failed to write report content: %w", err)
	}

	return filepath.Join(campaignID, period, name), nil
}

func (a *FileArchive) Get(_ context.Context, contentRef string) ([]byte, error) {
	if strings.Contains(contentRef, "..") {
		return nil, errors.New("content reference contains invalid characters")
	}

	data, err := os.ReadFile(filepath.Join(a.root, contentRef)) // #nosec G304 -- contentRef is validated
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("report content not found: %s", contentRef)
		}

		return nil, fmt.Errorf("failed to read report content %s: %w", contentRef, err)
	}

	return data, nil
}

func validatePathComponent(s string) error {
	if s == "" {
		return errors.New("path component cannot be empty")
	}

	if strings.Contains(s, "..") || strings.ContainsAny(s, `/\`) {
		return errors.New("path component contains invalid characters")
	}

	return nil
}
