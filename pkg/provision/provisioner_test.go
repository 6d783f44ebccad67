package provision_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/hpcugent/muk-sync/pkg/config"
	"github.com/hpcugent/muk-sync/pkg/directory"
	"github.com/hpcugent/muk-sync/pkg/provision"
	"github.com/hpcugent/muk-sync/pkg/provision/mocks"
)

func testAccount() directory.Account {
	return directory.Account{
		VscID:     "gvo00002",
		Institute: config.Gent,
		Modified:  time.Date(2013, 4, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProvisionFreshEntity(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	fileset := cfg.FilesetName(acct.VscID)
	filesetPath := cfg.FilesetPath(acct.VscID)
	home := cfg.HomePath(acct.Institute, acct.VscID)

	gomock.InOrder(
		backend.EXPECT().LookupFileset(gomock.Any(), cfg.ScratchDevice, fileset).Return(provision.FilesetStatus{}, nil),
		backend.EXPECT().CreateFileset(gomock.Any(), cfg.ScratchDevice, fileset).Return(nil),
		backend.EXPECT().LinkFileset(gomock.Any(), cfg.ScratchDevice, fileset, filesetPath).Return(nil),
		backend.EXPECT().SetQuota(gomock.Any(), cfg.ScratchDevice, fileset, cfg.ScratchQuota).Return(nil),
		backend.EXPECT().EnsureDir(filesetPath+"/fallback", os.FileMode(0750)).Return(nil),
		backend.EXPECT().ReadLink(home).Return("", false, nil),
		backend.EXPECT().Symlink(filesetPath, home).Return(nil),
	)

	p := provision.NewProvisioner(cfg, backend)
	require.NoError(t, p.Provision(context.Background(), acct, provision.Options{}))
}

func TestProvisionAlreadyProvisionedEntityIsNoOp(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	fileset := cfg.FilesetName(acct.VscID)
	filesetPath := cfg.FilesetPath(acct.VscID)
	home := cfg.HomePath(acct.Institute, acct.VscID)

	// fileset and home link already in place: no creation calls at all,
	// quota reapplication is the only mutation and it is idempotent
	backend.EXPECT().LookupFileset(gomock.Any(), cfg.ScratchDevice, fileset).
		Return(provision.FilesetStatus{Exists: true, Linked: true}, nil)
	backend.EXPECT().SetQuota(gomock.Any(), cfg.ScratchDevice, fileset, cfg.ScratchQuota).Return(nil)
	backend.EXPECT().EnsureDir(filesetPath+"/fallback", os.FileMode(0750)).Return(nil)
	backend.EXPECT().ReadLink(home).Return(filesetPath, true, nil)

	p := provision.NewProvisioner(cfg, backend)
	require.NoError(t, p.Provision(context.Background(), acct, provision.Options{}))
}

func TestProvisionStopsAtFirstFailedStep(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	boom := errors.New("mmcrfileset exploded")
	backend.EXPECT().LookupFileset(gomock.Any(), gomock.Any(), gomock.Any()).Return(provision.FilesetStatus{}, nil)
	backend.EXPECT().CreateFileset(gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)
	// no SetQuota, EnsureDir, ReadLink or Symlink calls: later steps skipped

	p := provision.NewProvisioner(cfg, backend)
	err := p.Provision(context.Background(), acct, provision.Options{})
	require.Error(t, err)

	var stepErr *provision.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, provision.StepCreateScratchFileset, stepErr.Step)
	assert.Equal(t, acct.VscID, stepErr.EntityID)
	assert.ErrorIs(t, err, boom)
}

func TestProvisionRelinksFilesetAfterFailedLink(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	fileset := cfg.FilesetName(acct.VscID)
	filesetPath := cfg.FilesetPath(acct.VscID)
	home := cfg.HomePath(acct.Institute, acct.VscID)

	// first run: the fileset is created but junctioning fails, so the
	// entity ends up with an existing, unlinked fileset
	gomock.InOrder(
		backend.EXPECT().LookupFileset(gomock.Any(), cfg.ScratchDevice, fileset).Return(provision.FilesetStatus{}, nil),
		backend.EXPECT().CreateFileset(gomock.Any(), cfg.ScratchDevice, fileset).Return(nil),
		backend.EXPECT().LinkFileset(gomock.Any(), cfg.ScratchDevice, fileset, filesetPath).
			Return(errors.New("mmlinkfileset: junction point busy")),
	)

	p := provision.NewProvisioner(cfg, backend)
	err := p.Provision(context.Background(), acct, provision.Options{})

	var stepErr *provision.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, provision.StepCreateScratchFileset, stepErr.Step)

	// second run: the existing fileset is not recreated, but it must be
	// junctioned before the home link is put in place
	gomock.InOrder(
		backend.EXPECT().LookupFileset(gomock.Any(), cfg.ScratchDevice, fileset).
			Return(provision.FilesetStatus{Exists: true, Linked: false}, nil),
		backend.EXPECT().LinkFileset(gomock.Any(), cfg.ScratchDevice, fileset, filesetPath).Return(nil),
		backend.EXPECT().SetQuota(gomock.Any(), cfg.ScratchDevice, fileset, cfg.ScratchQuota).Return(nil),
		backend.EXPECT().EnsureDir(filesetPath+"/fallback", os.FileMode(0750)).Return(nil),
		backend.EXPECT().ReadLink(home).Return("", false, nil),
		backend.EXPECT().Symlink(filesetPath, home).Return(nil),
	)

	require.NoError(t, p.Provision(context.Background(), acct, provision.Options{}))
}

func TestProvisionQuotaFailureSkipsHomeDir(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	backend.EXPECT().LookupFileset(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(provision.FilesetStatus{Exists: true, Linked: true}, nil)
	backend.EXPECT().SetQuota(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("quota daemon down"))

	p := provision.NewProvisioner(cfg, backend)
	err := p.Provision(context.Background(), acct, provision.Options{})

	var stepErr *provision.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, provision.StepPopulateScratchFallback, stepErr.Step)
}

func TestProvisionDryRunPerformsNoMutations(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	// only reads are allowed in a dry run
	backend.EXPECT().LookupFileset(gomock.Any(), gomock.Any(), gomock.Any()).Return(provision.FilesetStatus{}, nil)
	backend.EXPECT().ReadLink(gomock.Any()).Return("", false, nil)

	p := provision.NewProvisioner(cfg, backend)
	require.NoError(t, p.Provision(context.Background(), acct, provision.Options{DryRun: true}))
}

func TestProvisionRejectsMislinkedHome(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	cfg := config.Default()
	backend := mocks.NewMockBackend(ctrl)
	acct := testAccount()

	backend.EXPECT().LookupFileset(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(provision.FilesetStatus{Exists: true, Linked: true}, nil)
	backend.EXPECT().SetQuota(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().EnsureDir(gomock.Any(), gomock.Any()).Return(nil)
	backend.EXPECT().ReadLink(gomock.Any()).Return("/somewhere/else", true, nil)

	p := provision.NewProvisioner(cfg, backend)
	err := p.Provision(context.Background(), acct, provision.Options{})

	var stepErr *provision.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, provision.StepCreateHomeDir, stepErr.Step)
}
