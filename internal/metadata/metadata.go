// Package metadata loads the description of the program a host runs. The
// result is pushed to the client as the first data channel message.
package metadata

import (
	"context"
	"errors"

	mpwebrtc "github.com/BioHazard786/multiplay/internal/webrtc"
)

// ErrNotFound is returned when a provider has no metadata for a project.
var ErrNotFound = errors.New("project not found")

// Provider fetches project metadata by id.
type Provider interface {
	Fetch(ctx context.Context, projectID int64) (mpwebrtc.ProjectMetadata, error)
}

// Static serves a single fixed project, whatever id is asked for.
type Static mpwebrtc.ProjectMetadata

func (s Static) Fetch(ctx context.Context, projectID int64) (mpwebrtc.ProjectMetadata, error) {
	return mpwebrtc.ProjectMetadata(s), nil
}
