package provision

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hpcugent/muk-sync/pkg/config"
)

// GPFS administration commands. These live in /usr/lpp/mmfs/bin on the
// storage nodes; they are resolved through PATH so tests and containers can
// interpose.
const (
	cmdListFileset   = "mmlsfileset"
	cmdCreateFileset = "mmcrfileset"
	cmdLinkFileset   = "mmlinkfileset"
	cmdSetQuota      = "mmsetquota"
)

// GPFSBackend implements Backend by shelling out to the GPFS command-line
// tools for fileset and quota management, and using plain filesystem calls
// for the NFS home side. There is no Go SDK for GPFS; the mm* commands are
// the administration interface.
type GPFSBackend struct {
	run func(ctx context.Context, name string, args ...string) (string, error)
}

// NewGPFSBackend creates a backend executing the real GPFS commands.
func NewGPFSBackend() *GPFSBackend {
	return &GPFSBackend{run: runCommand}
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("%s %s: %w (output: %s)",
			name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// LookupFileset reports whether the fileset is known to GPFS and whether it
// is junctioned, parsed from the status column of mmlsfileset.
func (b *GPFSBackend) LookupFileset(ctx context.Context, device, name string) (FilesetStatus, error) {
	out, err := b.run(ctx, cmdListFileset, device, name)
	if err != nil {
		// mmlsfileset reports an unknown fileset as an error; treat that
		// as a clean "does not exist".
		if strings.Contains(out, "not found") {
			return FilesetStatus{}, nil
		}
		return FilesetStatus{}, err
	}
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 && fields[0] == name {
			return FilesetStatus{Exists: true, Linked: fields[1] == "Linked"}, nil
		}
	}
	return FilesetStatus{}, fmt.Errorf("%s succeeded but did not report fileset %s (output: %s)",
		cmdListFileset, name, strings.TrimSpace(out))
}

// CreateFileset creates the fileset on the device.
func (b *GPFSBackend) CreateFileset(ctx context.Context, device, name string) error {
	_, err := b.run(ctx, cmdCreateFileset, device, name)
	return err
}

// LinkFileset junctions the fileset at path.
func (b *GPFSBackend) LinkFileset(ctx context.Context, device, name, path string) error {
	_, err := b.run(ctx, cmdLinkFileset, device, name, "-J", path)
	return err
}

// SetQuota applies block and file limits to the fileset.
func (b *GPFSBackend) SetQuota(ctx context.Context, device, name string, quota config.Quota) error {
	_, err := b.run(ctx, cmdSetQuota,
		fmt.Sprintf("%s:%s", device, name),
		"--block", fmt.Sprintf("%s:%s", quota.BlockSoft, quota.BlockHard),
		"--files", fmt.Sprintf("%d:%d", quota.FilesSoft, quota.FilesHard),
	)
	return err
}

// EnsureDir creates a directory tree, tolerating existing directories.
func (*GPFSBackend) EnsureDir(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// ReadLink inspects the path: returns the symlink target when it is a
// symlink, (_, false, nil) when nothing exists, and an error when the path
// exists but is not a symlink.
func (*GPFSBackend) ReadLink(path string) (string, bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if info.Mode()&os.ModeSymlink == 0 {
		return "", true, fmt.Errorf("%s exists and is not a symlink", path)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return "", true, err
	}
	return target, true, nil
}

// Symlink creates the link.
func (*GPFSBackend) Symlink(target, path string) error {
	return os.Symlink(target, path)
}
