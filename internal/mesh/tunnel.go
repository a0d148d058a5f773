// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package mesh

import (
	"context"

	"patronus.dev/core/internal/model"
)

// Tunnel is the injected capability that materializes and tears down
// the data-plane transport underlying a Path. The Mesh Manager never
// touches kernel or cloud APIs directly, per §4.6/§5's capability
// injection pattern.
type Tunnel interface {
	// Ensure brings up (or updates) the tunnel for path between src
	// and dst, returning the descriptor to persist on the Path.
	Ensure(ctx context.Context, path model.Path, src, dst model.Endpoint) (model.TunnelDescriptor, error)
	// Teardown removes a previously-established tunnel. Called with
	// the last known descriptor; implementations must tolerate being
	// called on an already-torn-down tunnel.
	Teardown(ctx context.Context, path model.Path) error
}
