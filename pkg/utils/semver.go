package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Semver is a parsed major.minor.patch version. Pre-release and build
// metadata are not supported; schema versions never carry them.
type Semver struct {
	Major int
	Minor int
	Patch int
}

var semverPattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// ParseSemver parses a "major.minor.patch" string.
func ParseSemver(s string) (Semver, error) {
	m := semverPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Semver{}, fmt.Errorf("invalid semver string '%s' (expected major.minor.patch)", s)
	}
	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])
	return Semver{Major: major, Minor: minor, Patch: patch}, nil
}

// IsValidSemver reports whether s is a well-formed major.minor.patch string.
func IsValidSemver(s string) bool {
	_, err := ParseSemver(s)
	return err == nil
}

func (v Semver) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 ordering v against o.
func (v Semver) Compare(o Semver) int {
	if v.Major != o.Major {
		return sign(v.Major - o.Major)
	}
	if v.Minor != o.Minor {
		return sign(v.Minor - o.Minor)
	}
	return sign(v.Patch - o.Patch)
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

// BumpPatch returns the version string with the patch component incremented.
func BumpPatch(s string) (string, error) {
	v, err := ParseSemver(s)
	if err != nil {
		return "", err
	}
	v.Patch++
	return v.String(), nil
}

// BumpMinor returns the version string with the minor component incremented
// and the patch component reset to zero.
func BumpMinor(s string) (string, error) {
	v, err := ParseSemver(s)
	if err != nil {
		return "", err
	}
	v.Minor++
	v.Patch = 0
	return v.String(), nil
}

// BumpMajor returns the version string with the major component incremented
// and the minor and patch components reset to zero.
func BumpMajor(s string) (string, error) {
	v, err := ParseSemver(s)
	if err != nil {
		return "", err
	}
	v.Major++
	v.Minor = 0
	v.Patch = 0
	return v.String(), nil
}

// CompareSemver orders two version strings; malformed input sorts lowest.
func CompareSemver(a, b string) int {
	va, errA := ParseSemver(a)
	vb, errB := ParseSemver(b)
	if errA != nil && errB != nil {
		return 0
	}
	if errA != nil {
		return -1
	}
	if errB != nil {
		return 1
	}
	return va.Compare(vb)
}
