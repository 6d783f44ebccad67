// Package config provides the Muk synchronisation configuration: the set of
// institutes, their NFS mount paths, the scratch filesystem layout and the
// directory-service connection settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for all muk-sync environment variables.
const EnvPrefix = "MUK_SYNC"

// Institute identifiers. These are fixed: the directory service partitions
// accounts by institute and the scratch filesystem mounts one NFS home tree
// per institute.
const (
	Antwerpen = "antwerpen"
	Brussel   = "brussel"
	Gent      = "gent"
	Leuven    = "leuven"
)

// Quota holds the default scratch quota applied to a freshly created
// fileset. Block values are GPFS size strings ("250G"), file limits are
// inode counts.
type Quota struct {
	BlockSoft string `yaml:"blockSoft"`
	BlockHard string `yaml:"blockHard"`
	FilesSoft int    `yaml:"filesSoft"`
	FilesHard int    `yaml:"filesHard"`
}

// LDAP holds the directory-service connection settings. The bind password
// is taken from the MUK_SYNC_LDAP_PASSWORD environment variable, never from
// the config file.
type LDAP struct {
	URL         string `yaml:"url"`
	BindDN      string `yaml:"bindDN"`
	AccountBase string `yaml:"accountBase"`
	GroupBase   string `yaml:"groupBase"`
}

// Muk is the synchronisation configuration. It is constructed once at
// process start and passed explicitly to every component that needs it; it
// is never mutated after loading.
type Muk struct {
	// Institutes is the ordered list of institutes to process.
	Institutes []string `yaml:"institutes"`

	// ExcludedInstitute is never queried or processed, regardless of
	// mount status.
	ExcludedInstitute string `yaml:"excludedInstitute"`

	// NFSHomePaths maps an institute to the NFS mount point backing its
	// home directories. Used both as the mount-guard stat target and as
	// the parent of provisioned home links.
	NFSHomePaths map[string]string `yaml:"nfsHomePaths"`

	// ScratchDevice is the GPFS device holding the scratch filesets.
	ScratchDevice string `yaml:"scratchDevice"`

	// ScratchMount is the mount point of the scratch filesystem; filesets
	// are junctioned below it.
	ScratchMount string `yaml:"scratchMount"`

	// FilesetPrefix is prepended to the entity id to form the fileset name.
	FilesetPrefix string `yaml:"filesetPrefix"`

	// ProjectGroup is the CN of the autogroup whose members are in scope.
	ProjectGroup string `yaml:"projectGroup"`

	ScratchQuota Quota `yaml:"scratchQuota"`
	LDAP         LDAP  `yaml:"ldap"`
}

// Default returns the built-in Muk configuration. A config file, when
// given, is merged over these values.
func Default() *Muk {
	return &Muk{
		Institutes:        []string{Antwerpen, Brussel, Gent, Leuven},
		ExcludedInstitute: Brussel,
		NFSHomePaths: map[string]string{
			Antwerpen: "/mnt/nfs/antwerpen/home",
			Brussel:   "/mnt/nfs/brussel/home",
			Gent:      "/mnt/nfs/gent/home",
			Leuven:    "/mnt/nfs/leuven/home",
		},
		ScratchDevice: "scratch",
		ScratchMount:  "/gpfs/scratch",
		FilesetPrefix: "fileset_",
		ProjectGroup:  "muk-projects",
		ScratchQuota: Quota{
			BlockSoft: "250G",
			BlockHard: "260G",
			FilesSoft: 1000000,
			FilesHard: 1100000,
		},
		LDAP: LDAP{
			URL:         "ldaps://ldap.muk.example.org",
			BindDN:      "cn=muk-sync,dc=muk,dc=example,dc=org",
			AccountBase: "ou=people,dc=muk,dc=example,dc=org",
			GroupBase:   "ou=groups,dc=muk,dc=example,dc=org",
		},
	}
}

// Load returns the default configuration with the YAML file at path merged
// in. An empty path returns the defaults unchanged.
func Load(path string) (*Muk, error) {
	cfg := Default()
	if path != "" {
		// Resolve symlinks before reading; this also cleans the path.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate config path: %w", err)
		}
		data, err := os.ReadFile(realPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks internal consistency of the configuration.
func (m *Muk) Validate() error {
	if len(m.Institutes) == 0 {
		return fmt.Errorf("no institutes configured")
	}
	seen := make(map[string]bool, len(m.Institutes))
	for _, inst := range m.Institutes {
		if inst == "" {
			return fmt.Errorf("empty institute name")
		}
		if seen[inst] {
			return fmt.Errorf("duplicate institute %q", inst)
		}
		seen[inst] = true
		if inst == m.ExcludedInstitute {
			continue
		}
		if m.NFSHomePaths[inst] == "" {
			return fmt.Errorf("no NFS home path configured for institute %q", inst)
		}
	}
	if m.ExcludedInstitute != "" && !seen[m.ExcludedInstitute] {
		return fmt.Errorf("excluded institute %q is not a configured institute", m.ExcludedInstitute)
	}
	if m.ScratchDevice == "" {
		return fmt.Errorf("scratch device is required")
	}
	if m.ScratchMount == "" {
		return fmt.Errorf("scratch mount is required")
	}
	if m.ProjectGroup == "" {
		return fmt.Errorf("project group is required")
	}
	if m.ScratchQuota.BlockSoft == "" || m.ScratchQuota.BlockHard == "" {
		return fmt.Errorf("scratch block quota is required")
	}
	if m.ScratchQuota.FilesSoft <= 0 || m.ScratchQuota.FilesHard <= 0 {
		return fmt.Errorf("scratch file quota must be positive")
	}
	if m.LDAP.URL == "" {
		return fmt.Errorf("LDAP URL is required")
	}
	return nil
}

// FilesetName returns the scratch fileset name for an entity id.
func (m *Muk) FilesetName(entityID string) string {
	return m.FilesetPrefix + entityID
}

// FilesetPath returns the junction path of an entity's scratch fileset.
func (m *Muk) FilesetPath(entityID string) string {
	return filepath.Join(m.ScratchMount, m.FilesetName(entityID))
}

// HomePath returns the NFS home directory path for an entity of the given
// institute.
func (m *Muk) HomePath(institute, entityID string) string {
	return filepath.Join(m.NFSHomePaths[institute], entityID)
}
