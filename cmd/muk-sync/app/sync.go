package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/hpcugent/muk-sync/pkg/config"
	"github.com/hpcugent/muk-sync/pkg/directory"
	"github.com/hpcugent/muk-sync/pkg/ha"
	"github.com/hpcugent/muk-sync/pkg/locking"
	"github.com/hpcugent/muk-sync/pkg/nagios"
	"github.com/hpcugent/muk-sync/pkg/provision"
	"github.com/hpcugent/muk-sync/pkg/sync"
	"github.com/hpcugent/muk-sync/pkg/timestamp"
)

// lockHandle is the mutual-exclusion contract the run depends on.
type lockHandle interface {
	Acquire() error
	Release() error
}

// runEnv bundles the collaborators of one run so tests can substitute any
// of them.
type runEnv struct {
	reporter *nagios.Reporter
	lock     lockHandle

	dryRun        bool
	haAddr        string
	timestampPath string

	proceedOnHA    func(addr string) (bool, error)
	runPass        func(ctx context.Context, since time.Time, opts provision.Options) (*sync.RunResult, error)
	readTimestamp  func(path string) (time.Time, bool, error)
	writeTimestamp func(path string, t time.Time) error
	now            func() time.Time
}

// runSync wires the real collaborators and executes one run, returning the
// process exit code.
func runSync(ctx context.Context) int {
	reporter := nagios.NewReporter(
		nagiosHeader,
		viper.GetString("nagios-check-filename"),
		time.Duration(viper.GetInt("nagios-check-interval-threshold"))*time.Second,
	)

	// The nagios branch is a pure read path: no config, no lock, no work.
	if viper.GetBool("nagios") {
		return reporter.Report(os.Stdout)
	}

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		slog.Error("Cannot load configuration", "error", err)
		cache(reporter, nagios.ExitCritical, nagios.Result{
			Message: fmt.Sprintf("invalid configuration: %v", err),
		})
		return nagios.ExitCritical
	}

	env := &runEnv{
		reporter:      reporter,
		lock:          locking.New(viper.GetString("lock-filename")),
		dryRun:        viper.GetBool("dry-run"),
		haAddr:        viper.GetString("ha"),
		timestampPath: viper.GetString("timestamp-filename"),
		proceedOnHA:   ha.ProceedOnService,
		runPass: func(ctx context.Context, since time.Time, opts provision.Options) (*sync.RunResult, error) {
			client, err := directory.Connect(cfg.LDAP, ldapPassword())
			if err != nil {
				return nil, err
			}
			defer client.Close()

			provisioner := provision.NewProvisioner(cfg, provision.NewGPFSBackend())
			return sync.NewRunner(cfg, client, provisioner).Run(ctx, since, opts)
		},
		readTimestamp:  timestamp.Read,
		writeTimestamp: timestamp.Write,
		now:            time.Now,
	}
	return run(ctx, env)
}

// run is the coordinator state machine: HA gate, lock acquisition, the
// synchronisation pass, outcome evaluation and lock release on every path.
func run(ctx context.Context, env *runEnv) int {
	logger := slog.With("run_id", uuid.NewString())
	logger.Info("Starting synchronisation of Muk entities", "dry_run", env.dryRun)

	active, err := env.proceedOnHA(env.haAddr)
	if err != nil {
		logger.Error("HA check failed", "ha", env.haAddr, "error", err)
		cache(env.reporter, nagios.ExitWarning, nagios.Result{
			Message: fmt.Sprintf("HA check failed: %v", err),
		})
		return nagios.ExitWarning
	}
	if !active {
		logger.Warn("Not running on the target host in the HA setup, stopping", "ha", env.haAddr)
		cache(env.reporter, nagios.ExitWarning, nagios.Result{
			Message: "not running on the HA master",
		})
		return nagios.ExitWarning
	}

	if err := env.lock.Acquire(); err != nil {
		logger.Error("Cannot acquire lock", "error", err)
		cache(env.reporter, nagios.ExitCritical, nagios.Result{
			Message: fmt.Sprintf("failed to acquire lock: %v", err),
		})
		return nagios.ExitCritical
	}

	// From here on the lock must be released on every path.
	code, result := executeLocked(ctx, env, logger)

	if err := env.lock.Release(); err != nil {
		logger.Error("Cannot release lock", "error", err)
		result.Message += ", lock release failed"
		if code < nagios.ExitWarning {
			code = nagios.ExitWarning
		}
		cache(env.reporter, code, result)
	}

	logger.Info("Finished synchronisation of Muk entities", "exit_code", code)
	return code
}

// executeLocked performs the work that requires the lock and caches the
// run's health report. The returned result is kept so a failing lock
// release can overwrite the report without losing the run outcome.
func executeLocked(ctx context.Context, env *runEnv, logger *slog.Logger) (int, nagios.Result) {
	// The new watermark is captured before the first directory query, so
	// entities modified mid-run land after it and are seen next run.
	newMark := env.now()

	since, found, err := env.readTimestamp(env.timestampPath)
	if err != nil {
		logger.Error("Cannot read synchronisation timestamp", "error", err)
		result := nagios.Result{Message: fmt.Sprintf("cannot read timestamp: %v", err)}
		cache(env.reporter, nagios.ExitCritical, result)
		return nagios.ExitCritical, result
	}
	if !found {
		since = time.Unix(0, 0).UTC()
		logger.Warn("No previous synchronisation timestamp, processing full history")
	}
	logger.Info("Synchronising changes", "since", since.UTC().Format(directory.GeneralizedTimeLayout))

	runResult, err := env.runPass(ctx, since, provision.Options{DryRun: env.dryRun})
	if err != nil {
		logger.Error("Failure during Muk synchronisation", "error", err)
		result := nagios.Result{Message: "script failed, check the logs"}
		cache(env.reporter, nagios.ExitCritical, result)
		return nagios.ExitCritical, result
	}

	totals := runResult.Totals()
	result := buildResult(runResult)

	switch {
	case totals.Fail > 0:
		result.Message = "several entities were not synchronised"
		cache(env.reporter, nagios.ExitWarning, result)
		return nagios.ExitWarning, result

	case env.dryRun:
		result.Message = "muk entities synchronised (dry run, timestamp not advanced)"
		cache(env.reporter, nagios.ExitOK, result)
		return nagios.ExitOK, result

	default:
		if err := env.writeTimestamp(env.timestampPath, newMark); err != nil {
			// Provisioning succeeded but the watermark is stale; the run
			// needs investigating even though no entity failed.
			logger.Error("Something broke writing the timestamp", "error", err)
			result.Message = "muk entities synchronised, timestamp not written"
			cache(env.reporter, nagios.ExitWarning, result)
			return nagios.ExitWarning, result
		}
		result.Message = "muk entities synchronised"
		cache(env.reporter, nagios.ExitOK, result)
		return nagios.ExitOK, result
	}
}

// buildResult converts the run counts into a nagios result. The fail count
// carries the alerting thresholds.
func buildResult(runResult *sync.RunResult) nagios.Result {
	totals := runResult.Totals()

	var result nagios.Result
	result.SetMetric("ok", totals.OK)
	result.SetThresholdMetric("fail", totals.Fail, 1, 3)
	for inst, counts := range runResult.PerInstitute {
		result.SetMetric(inst+"_ok", counts.OK)
		result.SetMetric(inst+"_fail", counts.Fail)
	}
	return result
}

// cache stores the health report; a failure to do so is logged but cannot
// change the run outcome.
func cache(reporter *nagios.Reporter, code int, result nagios.Result) {
	if err := reporter.Cache(code, result); err != nil {
		slog.Error("Cannot cache nagios report", "error", err)
	}
}

// ldapPassword reads the directory bind password from the environment.
func ldapPassword() string {
	v := viper.New()
	v.SetEnvPrefix(config.EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v.GetString("LDAP_PASSWORD")
}
