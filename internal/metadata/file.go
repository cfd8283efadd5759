package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
	"gopkg.in/yaml.v3"
)

// FileProvider reads metadata from a YAML or JSON file. The file holds either
// a single project or a list of projects.
type FileProvider struct {
	Path string
}

func (p FileProvider) Fetch(ctx context.Context, projectID int64) (mpwebrtc.ProjectMetadata, error) {
	projects, err := p.load()
	if err != nil {
		return mpwebrtc.ProjectMetadata{}, err
	}
	if len(projects) == 1 && (projectID == 0 || projects[0].ID == projectID) {
		return projects[0], nil
	}
	for _, m := range projects {
		if m.ID == projectID {
			return m, nil
		}
	}
	return mpwebrtc.ProjectMetadata{}, fmt.Errorf("%w: %d in %s", ErrNotFound, projectID, p.Path)
}

func (p FileProvider) load() ([]mpwebrtc.ProjectMetadata, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}

	unmarshal := yaml.Unmarshal
	if strings.EqualFold(filepath.Ext(p.Path), ".json") {
		unmarshal = json.Unmarshal
	}

	var list []mpwebrtc.ProjectMetadata
	if err := unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single mpwebrtc.ProjectMetadata
	if err := unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", p.Path, err)
	}
	return []mpwebrtc.ProjectMetadata{single}, nil
}
