// Package paths is the sole authority for computing on-disk locations for
// customer data. Every store resolves its root through this package so that
// persistence guarantees cannot be violated by ad-hoc path construction.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind names a logical storage location.
type Kind string

const (
	KindTabularRoot      Kind = "tabular_root"
	KindVectorRoot       Kind = "vector_root"
	KindGraphRoot        Kind = "graph_root"
	KindLoraRoot         Kind = "lora_root"
	KindUploadStaging    Kind = "upload_staging"
	KindHandlerStore     Kind = "handler_store"
	KindEphemeralScratch Kind = "ephemeral_scratch"
)

// Mode selects the deployment environment controlling the base prefix.
type Mode string

const (
	ModeManaged     Mode = "managed"
	ModeSelfHosted  Mode = "self_hosted"
	ModeDevelopment Mode = "development"
)

const (
	managedBase    = "/data/lakecore"
	selfHostedBase = "/var/lib/lakecore"

	// managedMarker is present inside managed containers; its existence is
	// how auto-detection distinguishes managed from development.
	managedMarker = "/.dockerenv"
)

// Resolver computes per-customer absolute paths for logical storage kinds.
type Resolver struct {
	mode           Mode
	selfHostedBase string
	devBase        string
}

// Option configures the Resolver.
type Option func(*Resolver)

// WithMode overrides the auto-detected deployment mode.
func WithMode(m Mode) Option {
	return func(r *Resolver) {
		r.mode = m
	}
}

// WithSelfHostedBase overrides the host-persistent base prefix.
func WithSelfHostedBase(base string) Option {
	return func(r *Resolver) {
		r.selfHostedBase = base
	}
}

// WithDevelopmentBase overrides the project-local base prefix.
func WithDevelopmentBase(base string) Option {
	return func(r *Resolver) {
		r.devBase = base
	}
}

// NewResolver creates a Resolver. Without options the deployment mode is
// taken from DEPLOYMENT_TYPE, falling back to auto-detection.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		mode:           detectMode(),
		selfHostedBase: selfHostedBase,
		devBase:        filepath.Join(".", "data"),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Mode returns the resolver's deployment mode.
func (r *Resolver) Mode() Mode {
	return r.mode
}

// Resolve returns the absolute path for the given customer and kind. For
// persistent kinds the directory is created on access. Ephemeral scratch is
// the only kind that may live under the OS temp directory; its callers must
// remove it on all exit paths.
func (r *Resolver) Resolve(customerID string, kind Kind) (string, error) {
	if customerID == "" {
		return "", fmt.Errorf("customer id must not be empty")
	}

	if kind == KindEphemeralScratch {
		dir, err := os.MkdirTemp("", "lakecore-"+sanitize(customerID)+"-")
		if err != nil {
			return "", fmt.Errorf("failed to create scratch dir; %w", err)
		}
		return dir, nil
	}

	base := r.base()
	path, err := filepath.Abs(filepath.Join(base, sanitize(customerID), string(kind)))
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s for %s; %w", kind, customerID, err)
	}

	// A persistent path under the OS temp directory is a programming error,
	// never a recoverable condition.
	if underTempDir(path) {
		panic(fmt.Sprintf("paths: persistent kind %s resolved into temp directory: %s", kind, path))
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s; %w", path, err)
	}

	return path, nil
}

func (r *Resolver) base() string {
	switch r.mode {
	case ModeManaged:
		// Identical for all customers; the deployer guarantees external
		// persistence of this prefix.
		return managedBase
	case ModeSelfHosted:
		return r.selfHostedBase
	default:
		return r.devBase
	}
}

// detectMode resolves the deployment mode from DEPLOYMENT_TYPE, falling back
// to managed when running inside a container and development otherwise.
func detectMode() Mode {
	switch os.Getenv("DEPLOYMENT_TYPE") {
	case string(ModeManaged):
		return ModeManaged
	case string(ModeSelfHosted):
		return ModeSelfHosted
	case string(ModeDevelopment):
		return ModeDevelopment
	}

	if _, err := os.Stat(managedMarker); err == nil {
		return ModeManaged
	}

	return ModeDevelopment
}

// underTempDir reports whether path resolves inside the OS temp directory.
func underTempDir(path string) bool {
	tmp, err := filepath.Abs(os.TempDir())
	if err != nil {
		return false
	}
	return path == tmp || strings.HasPrefix(path, tmp+string(os.PathSeparator))
}

// sanitize strips path separators from customer ids so a hostile id cannot
// escape the customer prefix.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, string(os.PathSeparator), "_")
	id = strings.ReplaceAll(id, "..", "_")
	return id
}
