package workspace

import (
	"context"
	"fmt"

	"github.com/openkraft/issuegate/internal/domain"
)

// StaticProvider serves the same workspace and roots for every build. The
// workspace is confined to the roots.
type StaticProvider struct {
	ws    domain.Workspace
	roots []string
}

func NewStaticProvider(ws domain.Workspace, roots ...string) *StaticProvider {
	return &StaticProvider{ws: ws, roots: roots}
}

func (p *StaticProvider) Workspace(_ context.Context, _ domain.BuildRef) (domain.Workspace, []string, error) {
	if len(p.roots) == 0 {
		return nil, nil, fmt.Errorf("no workspace roots configured")
	}
	return Confine(p.ws, p.roots...), p.roots, nil
}

// RemoteProvider asks an agent for its roots on every build.
type RemoteProvider struct {
	remote *Remote
}

func NewRemoteProvider(remote *Remote) *RemoteProvider {
	return &RemoteProvider{remote: remote}
}

func (p *RemoteProvider) Workspace(ctx context.Context, _ domain.BuildRef) (domain.Workspace, []string, error) {
	roots, err := p.remote.Roots(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing workspace roots: %w", err)
	}
	if len(roots.Roots) == 0 {
		return nil, nil, fmt.Errorf("agent %s reported no workspace roots", p.remote.ID())
	}
	return Confine(p.remote, roots.Roots...), roots.Roots, nil
}
