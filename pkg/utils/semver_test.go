package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input   string
		want    Semver
		wantErr bool
	}{
		{"1.0.0", Semver{1, 0, 0}, false},
		{"0.12.3", Semver{0, 12, 3}, false},
		{"10.20.30", Semver{10, 20, 30}, false},
		{"1.0", Semver{}, true},
		{"1.0.0-beta", Semver{}, true},
		{"v1.0.0", Semver{}, true},
		{"", Semver{}, true},
		{"abc", Semver{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSemver(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBumpPatch(t *testing.T) {
	got, err := BumpPatch("1.0.0")
	assert.NoError(t, err)
	assert.Equal(t, "1.0.1", got)

	got, err = BumpPatch("2.3.9")
	assert.NoError(t, err)
	assert.Equal(t, "2.3.10", got)

	_, err = BumpPatch("not-a-version")
	assert.Error(t, err)
}

func TestBumpMinor(t *testing.T) {
	got, err := BumpMinor("1.2.7")
	assert.NoError(t, err)
	assert.Equal(t, "1.3.0", got)
}

func TestBumpMajor(t *testing.T) {
	got, err := BumpMajor("1.2.7")
	assert.NoError(t, err)
	assert.Equal(t, "2.0.0", got)

	_, err = BumpMajor("nope")
	assert.Error(t, err)
}

func TestCompareSemver(t *testing.T) {
	assert.Equal(t, 0, CompareSemver("1.2.3", "1.2.3"))
	assert.Equal(t, -1, CompareSemver("1.2.3", "1.10.0"))
	assert.Equal(t, 1, CompareSemver("2.0.0", "1.99.99"))
	assert.Equal(t, -1, CompareSemver("bogus", "0.0.1"))
}
