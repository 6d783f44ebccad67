// Package sync implements the change-driven synchronisation loop: it looks
// up entities changed in the directory service since the last watermark and
// provisions each of them, isolating failures per entity and per institute.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hpcugent/muk-sync/pkg/config"
	"github.com/hpcugent/muk-sync/pkg/directory"
	"github.com/hpcugent/muk-sync/pkg/provision"
)

// Directory is the subset of the directory-service client the runner needs.
//
//go:generate mockgen -destination=mocks/mock_deps.go -package=mocks github.com/hpcugent/muk-sync/pkg/sync Directory,Provisioner
type Directory interface {
	SearchGroups(ctx context.Context, filter directory.Filter) ([]directory.Group, error)
	SearchAccounts(ctx context.Context, filter directory.Filter) ([]directory.Account, error)
}

// Provisioner performs the provisioning steps for a single entity.
type Provisioner interface {
	Provision(ctx context.Context, acct directory.Account, opts provision.Options) error
}

// Counts aggregates per-entity outcomes.
type Counts struct {
	OK   int
	Fail int
}

// Add returns the element-wise sum of two counts.
func (c Counts) Add(other Counts) Counts {
	return Counts{OK: c.OK + other.OK, Fail: c.Fail + other.Fail}
}

// RunResult holds the outcome of one synchronisation run, per institute.
// It is transient: it exists only to drive health reporting.
type RunResult struct {
	PerInstitute map[string]Counts
}

// Totals sums the counts across all institutes.
func (r *RunResult) Totals() Counts {
	var total Counts
	for _, c := range r.PerInstitute {
		total = total.Add(c)
	}
	return total
}

// Runner drives one synchronisation pass over all configured institutes.
type Runner struct {
	cfg  *config.Muk
	dir  Directory
	prov Provisioner

	// statMount is the mount-guard check, injectable for tests.
	statMount func(path string) error
}

// Option customises a Runner.
type Option func(*Runner)

// WithMountCheck replaces the mount-guard stat call.
func WithMountCheck(check func(path string) error) Option {
	return func(r *Runner) {
		r.statMount = check
	}
}

// NewRunner creates a runner over the given collaborators.
func NewRunner(cfg *config.Muk, dir Directory, prov Provisioner, opts ...Option) *Runner {
	r := &Runner{
		cfg:  cfg,
		dir:  dir,
		prov: prov,
		statMount: func(path string) error {
			_, err := os.Stat(path)
			return err
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes all institutes. It returns an error only for run-level
// fatal conditions (the autogroup bootstrap); everything below that is
// absorbed into the result counts.
func (r *Runner) Run(ctx context.Context, since time.Time, opts provision.Options) (*RunResult, error) {
	group, err := r.lookupProjectGroup(ctx)
	if err != nil {
		return nil, err
	}
	slog.Info("Resolved Muk project group",
		"group", group.CN, "members", len(group.MemberUIDs))

	members := directory.MemberOf(group.MemberUIDs)

	result := &RunResult{PerInstitute: make(map[string]Counts, len(r.cfg.Institutes))}
	for _, inst := range r.cfg.Institutes {
		if inst == r.cfg.ExcludedInstitute {
			slog.Warn("Not performing any action for excluded institute", "institute", inst)
			continue
		}
		result.PerInstitute[inst] = r.processInstitute(ctx, inst, members, since, opts)
	}
	return result, nil
}

// lookupProjectGroup resolves the autogroup of interest. Not finding it is
// fatal for the run: without the membership list nothing can be scoped.
func (r *Runner) lookupProjectGroup(ctx context.Context) (*directory.Group, error) {
	groups, err := r.dir.SearchGroups(ctx, directory.CN(r.cfg.ProjectGroup))
	if err != nil {
		return nil, fmt.Errorf("project group lookup failed: %w", err)
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("could not find a group with cn %s, cannot proceed with synchronisation", r.cfg.ProjectGroup)
	}
	return &groups[0], nil
}

// processInstitute handles one institute: mount guard, entity lookup, then
// per-entity provisioning. Failures never escape this method; they are
// converted into counts.
func (r *Runner) processInstitute(
	ctx context.Context,
	inst string,
	members directory.Filter,
	since time.Time,
	opts provision.Options,
) Counts {
	mount := r.cfg.NFSHomePaths[inst]
	mountErr := r.statMount(mount)

	accounts, err := r.dir.SearchAccounts(ctx, directory.And(
		directory.ModifiedSince(since),
		directory.Institute(inst),
		members,
	))
	if err != nil {
		// The changed set is unknowable; record the institute as failed
		// so the run can never report a clean result.
		slog.Error("Entity lookup failed for institute", "institute", inst, "error", err)
		return Counts{Fail: 1}
	}

	ids := make([]string, 0, len(accounts))
	for _, acct := range accounts {
		ids = append(ids, acct.VscID)
	}
	slog.Info("Processing changed entities", "institute", inst, "entities", ids)

	if mountErr != nil {
		slog.Error("Cannot stat link to NFS mount, marking all entities failed",
			"institute", inst, "mount", mount, "error", mountErr)
		return Counts{Fail: len(accounts)}
	}

	var counts Counts
	for _, acct := range accounts {
		if err := r.prov.Provision(ctx, acct, opts); err != nil {
			slog.Error("Cannot provision entity", "institute", inst, "entity", acct.VscID, "error", err)
			counts.Fail++
			continue
		}
		counts.OK++
	}
	return counts
}
