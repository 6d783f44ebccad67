// Package provision performs the per-entity provisioning steps: scratch
// fileset creation, quota/fallback population and home-directory linking.
package provision

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hpcugent/muk-sync/pkg/config"
	"github.com/hpcugent/muk-sync/pkg/directory"
)

// Provisioning step names, in execution order.
const (
	StepCreateScratchFileset    = "create_scratch_fileset"
	StepPopulateScratchFallback = "populate_scratch_fallback"
	StepCreateHomeDir           = "create_home_dir"
)

// Options controls a provisioning call. It is passed by value so a dry-run
// flag can never leak between entities.
type Options struct {
	// DryRun simulates all mutating calls. Reads still happen so the log
	// shows what a real run would have done.
	DryRun bool
}

// StepError reports which step failed for which entity. Remaining steps
// for that entity are skipped; processing continues with the next entity.
type StepError struct {
	EntityID string
	Step     string
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed for %s: %v", e.Step, e.EntityID, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FilesetStatus describes a fileset as known to the storage backend. A
// fileset can exist without being junctioned into the filesystem, typically
// after a run that died between creation and linking.
type FilesetStatus struct {
	Exists bool
	Linked bool
}

// Backend exposes the storage primitives provisioning is built on: GPFS
// fileset management plus plain filesystem operations on the NFS side.
//
//go:generate mockgen -destination=mocks/mock_backend.go -package=mocks github.com/hpcugent/muk-sync/pkg/provision Backend
type Backend interface {
	// LookupFileset reports whether the named fileset exists on device and
	// whether it is junctioned.
	LookupFileset(ctx context.Context, device, name string) (FilesetStatus, error)

	// CreateFileset creates the named fileset on device.
	CreateFileset(ctx context.Context, device, name string) error

	// LinkFileset junctions the fileset into the filesystem at path.
	LinkFileset(ctx context.Context, device, name, path string) error

	// SetQuota applies the quota to the fileset.
	SetQuota(ctx context.Context, device, name string, quota config.Quota) error

	// EnsureDir creates a directory and its parents; existing directories
	// are not an error.
	EnsureDir(path string, perm os.FileMode) error

	// ReadLink returns the target of a symlink and whether the path
	// exists at all. A non-symlink existing path returns an error.
	ReadLink(path string) (string, bool, error)

	// Symlink creates a symlink at path pointing at target.
	Symlink(target, path string) error
}

// Provisioner runs the three provisioning steps for a single entity. All
// steps are idempotent: re-provisioning an already provisioned entity is a
// sequence of no-ops.
type Provisioner struct {
	cfg     *config.Muk
	backend Backend
}

// NewProvisioner creates a provisioner over the given backend.
func NewProvisioner(cfg *config.Muk, backend Backend) *Provisioner {
	return &Provisioner{cfg: cfg, backend: backend}
}

// Provision runs the steps in strict order, stopping at the first failure.
func (p *Provisioner) Provision(ctx context.Context, acct directory.Account, opts Options) error {
	if err := p.createScratchFileset(ctx, acct, opts); err != nil {
		return &StepError{EntityID: acct.VscID, Step: StepCreateScratchFileset, Err: err}
	}
	if err := p.populateScratchFallback(ctx, acct, opts); err != nil {
		return &StepError{EntityID: acct.VscID, Step: StepPopulateScratchFallback, Err: err}
	}
	if err := p.createHomeDir(ctx, acct, opts); err != nil {
		return &StepError{EntityID: acct.VscID, Step: StepCreateHomeDir, Err: err}
	}
	return nil
}

// createScratchFileset ensures the entity's dedicated fileset exists and is
// junctioned under the scratch mount. An existing but unlinked fileset is
// left behind when a previous run failed between creation and linking; it
// must be junctioned here, not skipped, or the home link of step three
// would point at a plain directory.
func (p *Provisioner) createScratchFileset(ctx context.Context, acct directory.Account, opts Options) error {
	name := p.cfg.FilesetName(acct.VscID)
	status, err := p.backend.LookupFileset(ctx, p.cfg.ScratchDevice, name)
	if err != nil {
		return err
	}
	if status.Exists && status.Linked {
		slog.Debug("Fileset already exists and is linked", "entity", acct.VscID, "fileset", name)
		return nil
	}
	if opts.DryRun {
		slog.Info("Dry run: would create and link fileset", "entity", acct.VscID, "fileset", name)
		return nil
	}
	if !status.Exists {
		if err := p.backend.CreateFileset(ctx, p.cfg.ScratchDevice, name); err != nil {
			return err
		}
	} else {
		slog.Warn("Fileset exists but is not junctioned, relinking",
			"entity", acct.VscID, "fileset", name)
	}
	return p.backend.LinkFileset(ctx, p.cfg.ScratchDevice, name, p.cfg.FilesetPath(acct.VscID))
}

// populateScratchFallback applies the default quota and creates the
// fallback directory inside the fileset.
func (p *Provisioner) populateScratchFallback(ctx context.Context, acct directory.Account, opts Options) error {
	name := p.cfg.FilesetName(acct.VscID)
	if opts.DryRun {
		slog.Info("Dry run: would set quota and populate fallback", "entity", acct.VscID, "fileset", name)
		return nil
	}
	if err := p.backend.SetQuota(ctx, p.cfg.ScratchDevice, name, p.cfg.ScratchQuota); err != nil {
		return err
	}
	return p.backend.EnsureDir(filepath.Join(p.cfg.FilesetPath(acct.VscID), "fallback"), 0750)
}

// createHomeDir ensures the entity's home directory exists as a symlink
// from the institute's NFS tree into the scratch fileset.
func (p *Provisioner) createHomeDir(_ context.Context, acct directory.Account, opts Options) error {
	home := p.cfg.HomePath(acct.Institute, acct.VscID)
	target := p.cfg.FilesetPath(acct.VscID)

	current, exists, err := p.backend.ReadLink(home)
	if err != nil {
		return err
	}
	if exists {
		if current != target {
			return fmt.Errorf("home %s links to %s, expected %s", home, current, target)
		}
		slog.Debug("Home link already in place", "entity", acct.VscID, "home", home)
		return nil
	}
	if opts.DryRun {
		slog.Info("Dry run: would link home directory", "entity", acct.VscID, "home", home, "target", target)
		return nil
	}
	return p.backend.Symlink(target, home)
}
