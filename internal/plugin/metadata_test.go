package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/ObvexBlackvault/custom-gemini-cli/internal/foundation/errors"
)

func TestMetadataValidator_Validate(t *testing.T) {
	tests := []struct {
		name string
		host string
		meta Metadata
		want ferrors.ErrorKind
	}{
		{"valid", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0"}, ""},
		{"missing id", "1.5.0", Metadata{Name: "A", Version: "1.0.0"}, ferrors.KindInvalidMetadata},
		{"missing name", "1.5.0", Metadata{ID: "a", Version: "1.0.0"}, ferrors.KindInvalidMetadata},
		{"missing version", "1.5.0", Metadata{ID: "a", Name: "A"}, ferrors.KindInvalidMetadata},
		{"malformed version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "one.two"}, ferrors.KindInvalidMetadata},
		{"malformed min version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "latest"}, ferrors.KindInvalidMetadata},
		{"empty dependency", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0", Dependencies: []string{""}}, ferrors.KindInvalidMetadata},
		{"host too old", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "2.0.0"}, ferrors.KindIncompatibleHost},
		{"host newer", "2.0.1", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "2.0.0"}, ""},
		{"host equal", "2.0.0", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "2.0.0"}, ""},
		{"missing components are zero", "1.0.0", Metadata{ID: "a", Name: "A", Version: "1", MinCLIVersion: "1"}, ""},
		{"minor compared before patch", "1.10.0", Metadata{ID: "a", Name: "A", Version: "1.0", MinCLIVersion: "1.9.5"}, ""},
		{"prerelease version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0-beta"}, ferrors.KindInvalidMetadata},
		{"build metadata version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0+build.5"}, ferrors.KindInvalidMetadata},
		{"leading zero version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "01.2.3"}, ferrors.KindInvalidMetadata},
		{"prerelease min version", "1.5.0", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "1.0.0-rc.1"}, ferrors.KindInvalidMetadata},
		{"leading v accepted", "1.5.0", Metadata{ID: "a", Name: "A", Version: "v1.2", MinCLIVersion: "v1.5"}, ""},
		{"host prerelease equals its core", "2.0.0-dev", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "2.0.0"}, ""},
		{"host prerelease still too old", "1.9.9-dev", Metadata{ID: "a", Name: "A", Version: "1.0.0", MinCLIVersion: "2.0.0"}, ferrors.KindIncompatibleHost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewMetadataValidator(tt.host)
			require.NoError(t, err)

			err = v.Validate(tt.meta)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.want, ferrors.KindOf(err))
		})
	}
}

func TestMetadataValidator_DuplicateID(t *testing.T) {
	v, err := NewMetadataValidator("1.0.0")
	require.NoError(t, err)

	require.NoError(t, v.Validate(meta("a")))
	err = v.Validate(meta("a"))
	assert.Equal(t, ferrors.KindDuplicateID, ferrors.KindOf(err))

	// A rejected plugin does not reserve its id.
	bad := meta("b")
	bad.Version = ""
	require.Error(t, v.Validate(bad))
	assert.NoError(t, v.Validate(meta("b")))
}

func TestNewMetadataValidator_InvalidHost(t *testing.T) {
	_, err := NewMetadataValidator("not-a-version")
	require.Error(t, err)
	assert.Equal(t, ferrors.KindHostConfig, ferrors.KindOf(err))
}

func TestMetadataValidator_HostVersionKeepsLabel(t *testing.T) {
	v, err := NewMetadataValidator("2.0.0-dev")
	require.NoError(t, err)
	assert.Equal(t, "2.0.0-dev", v.HostVersion())
}
