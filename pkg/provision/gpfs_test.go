package provision

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpcugent/muk-sync/pkg/config"
)

// fakeRunner records the commands a backend issues and plays back canned
// results.
type fakeRunner struct {
	calls  []string
	output string
	err    error
}

func (f *fakeRunner) run(_ context.Context, name string, args ...string) (string, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return f.output, f.err
}

func TestLookupFileset(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		output     string
		err        error
		wantStatus FilesetStatus
		wantErr    bool
	}{
		{
			name:       "linked_fileset",
			output:     "Filesets in file system 'scratch':\nfileset_gvo00002 Linked /gpfs/scratch/fileset_gvo00002\n",
			wantStatus: FilesetStatus{Exists: true, Linked: true},
		},
		{
			name:       "unlinked_fileset",
			output:     "Filesets in file system 'scratch':\nfileset_gvo00002 Unlinked --\n",
			wantStatus: FilesetStatus{Exists: true, Linked: false},
		},
		{
			name:    "unknown_fileset",
			output:  "Fileset named fileset_gvo00002 not found.",
			err:     errors.New("exit status 2"),
			wantErr: false,
		},
		{
			name:    "command_failure",
			output:  "mmlsfileset: GPFS is down on this node.",
			err:     errors.New("exit status 1"),
			wantErr: true,
		},
		{
			name:    "unparseable_output",
			output:  "mmlsfileset: something something\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			runner := &fakeRunner{output: tt.output, err: tt.err}
			backend := &GPFSBackend{run: runner.run}

			status, err := backend.LookupFileset(context.Background(), "scratch", "fileset_gvo00002")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, []string{"mmlsfileset scratch fileset_gvo00002"}, runner.calls)
		})
	}
}

func TestSetQuotaCommandLine(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	backend := &GPFSBackend{run: runner.run}

	quota := config.Quota{BlockSoft: "250G", BlockHard: "260G", FilesSoft: 1000000, FilesHard: 1100000}
	require.NoError(t, backend.SetQuota(context.Background(), "scratch", "fileset_gvo00002", quota))

	require.Len(t, runner.calls, 1)
	assert.Equal(t,
		"mmsetquota scratch:fileset_gvo00002 --block 250G:260G --files 1000000:1100000",
		runner.calls[0])
}

func TestLinkFilesetCommandLine(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	backend := &GPFSBackend{run: runner.run}

	require.NoError(t, backend.LinkFileset(context.Background(), "scratch", "fileset_gvo00002", "/gpfs/scratch/fileset_gvo00002"))
	assert.Equal(t,
		[]string{"mmlinkfileset scratch fileset_gvo00002 -J /gpfs/scratch/fileset_gvo00002"},
		runner.calls)
}

func TestReadLink(t *testing.T) {
	t.Parallel()

	backend := NewGPFSBackend()
	dir := t.TempDir()

	// missing path
	_, exists, err := backend.ReadLink(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.False(t, exists)

	// proper symlink
	link := filepath.Join(dir, "home")
	require.NoError(t, os.Symlink("/gpfs/scratch/fileset_gvo00002", link))
	target, exists, err := backend.ReadLink(link)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "/gpfs/scratch/fileset_gvo00002", target)

	// existing non-symlink is an error
	plain := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(plain, []byte("x"), 0644))
	_, exists, err = backend.ReadLink(plain)
	assert.True(t, exists)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fmt.Sprintf("%s exists and is not a symlink", plain))
}
