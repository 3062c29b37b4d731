package plugin

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/Masterminds/semver/v3"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

// Metadata describes a plugin's identity and requirements.
type Metadata struct {
	// ID is the unique plugin identifier and the key used for configuration.
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Version     string `json:"version" yaml:"version"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Author      string `json:"author,omitempty" yaml:"author,omitempty"`

	// MinCLIVersion is the lowest host version the plugin runs on. Empty means
	// no constraint.
	MinCLIVersion string `json:"minCliVersion,omitempty" yaml:"minCliVersion,omitempty"`

	// Dependencies are the ids of plugins that must be Ready first.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
}

// String returns a human-readable representation of the plugin metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s@%s", m.ID, m.Version)
}

var numericVersion = regexp.MustCompile(`^v?(0|[1-9][0-9]*)(\.(0|[1-9][0-9]*)){0,2}$`)

// ParseVersion parses a dotted numeric version. Missing minor or patch
// components count as zero and a leading "v" is accepted. Prerelease and
// build suffixes are rejected.
func ParseVersion(v string) (*semver.Version, error) {
	if !numericVersion.MatchString(v) {
		return nil, fmt.Errorf("%q is not a dotted numeric version", v)
	}
	return semver.NewVersion(v)
}

// parseHostVersion accepts any semantic version and keeps only its
// major.minor.patch core, so "2.0.0-dev" satisfies a minimum of "2.0.0".
func parseHostVersion(v string) (*semver.Version, error) {
	parsed, err := semver.NewVersion(v)
	if err != nil {
		return nil, err
	}
	return semver.New(parsed.Major(), parsed.Minor(), parsed.Patch(), "", ""), nil
}

// MetadataValidator checks plugin metadata against a host version and remembers
// the ids it accepted.
type MetadataValidator struct {
	host      *semver.Version
	hostLabel string

	mu       sync.Mutex
	accepted map[string]struct{}
}

// NewMetadataValidator creates a validator for the given host version.
func NewMetadataValidator(hostVersion string) (*MetadataValidator, error) {
	host, err := parseHostVersion(hostVersion)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.KindHostConfig, fmt.Sprintf("invalid host version %q", hostVersion)).Build()
	}
	return &MetadataValidator{host: host, hostLabel: hostVersion, accepted: make(map[string]struct{})}, nil
}

// HostVersion returns the version plugins are checked against.
func (v *MetadataValidator) HostVersion() string {
	return v.hostLabel
}

// Validate checks meta and records its id when it is accepted.
func (v *MetadataValidator) Validate(meta Metadata) error {
	if err := v.check(meta); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if _, dup := v.accepted[meta.ID]; dup {
		return ferrors.Newf(ferrors.KindDuplicateID, "plugin id %q is already registered", meta.ID).
			ForPlugin(meta.ID).Build()
	}
	v.accepted[meta.ID] = struct{}{}
	return nil
}

func (v *MetadataValidator) check(meta Metadata) error {
	invalid := func(msg string, cause error) error {
		b := ferrors.NewError(ferrors.KindInvalidMetadata, msg).ForPlugin(meta.ID)
		if cause != nil {
			b = ferrors.WrapError(cause, ferrors.KindInvalidMetadata, msg).ForPlugin(meta.ID)
		}
		return b.Build()
	}

	switch {
	case meta.ID == "":
		return invalid("plugin id is required", nil)
	case meta.Name == "":
		return invalid("plugin name is required", nil)
	case meta.Version == "":
		return invalid("plugin version is required", nil)
	}
	if _, err := ParseVersion(meta.Version); err != nil {
		return invalid(fmt.Sprintf("invalid version %q", meta.Version), err)
	}
	for _, dep := range meta.Dependencies {
		if dep == "" {
			return invalid("dependency id must not be empty", nil)
		}
	}
	if meta.MinCLIVersion == "" {
		return nil
	}

	minVersion, err := ParseVersion(meta.MinCLIVersion)
	if err != nil {
		return invalid(fmt.Sprintf("invalid minCliVersion %q", meta.MinCLIVersion), err)
	}
	if v.host.LessThan(minVersion) {
		return ferrors.Newf(ferrors.KindIncompatibleHost, "requires host %s or newer, running %s", minVersion, v.hostLabel).
			ForPlugin(meta.ID).
			WithContext("min_cli_version", meta.MinCLIVersion).
			WithContext("host_version", v.hostLabel).
			Build()
	}
	return nil
}
