package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"sync"

	"github.com/adopshq/adflow/pkg/models"
)

// ReportRepository handles report-artifact file operations. Artifacts are
// immutable; each campaign+period+version is its own file.
type ReportRepository struct {
	root string
	mu   sync.Mutex
}

// NewReportRepository creates a new report repository.
func NewReportRepository(root string) *ReportRepository {
	return &ReportRepository{root: root}
}

// SaveReport records a report artifact.
func (rr *ReportRepository) SaveReport(_ context.Context, artifact *models.ReportArtifact) error {
	rr.mu.Lock()
	defer rr.mu.Unlock()

	dir := path.Join(rr.root, "reports")

	err := os.MkdirAll(dir, 0750)
	if err != nil {
		return fmt.Errorf("failed to create reports directory: %w", err)
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report artifact: %w", err)
	}

	name := fmt.Sprintf("%s_%s_v%d.json", artifact.CampaignID, artifact.Period, artifact.Version)

	return os.WriteFile(path.Join(dir, name), data, 0600)
}

// LatestVersion returns the highest recorded version for a campaign and
// period, or 0 when no artifact exists.
func (rr *ReportRepository) LatestVersion(ctx context.Context, campaignID, period string) (int, error) {
	artifacts, err := rr.ReportsByCampaign(ctx, campaignID)
	if err != nil {
		return 0, err
	}

	latest := 0

	for _, artifact := range artifacts {
		if artifact.Period == period && artifact.Version > latest {
			latest = artifact.Version
		}
	}

	return latest, nil
}

// ReportsByCampaign returns a campaign's report artifacts, newest first.
func (rr *ReportRepository) ReportsByCampaign(_ context.Context, campaignID string) ([]*models.ReportArtifact, error) {
	dir := path.Join(rr.root, "reports")

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list report files: %w", err)
	}

	artifacts := make([]*models.ReportArtifact, 0)

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(dir, file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read report file %s: %w", file, err)
		}

		var artifact models.ReportArtifact

		err = json.Unmarshal(body, &artifact)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal report file %s: %w", file, err)
		}

		if artifact.CampaignID != campaignID {
			continue
		}

		artifacts = append(artifacts, &artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})

	return artifacts, nil
}
