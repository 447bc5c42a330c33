package update

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/adamancini/updraft/internal/logging"
)

var versionRegex = regexp.MustCompile(`^v?(\d+)\.(\d+)\.(\d+)(?:\.(\d+))?(?:-([0-9A-Za-z][0-9A-Za-z.-]*))?$`)

// Version is a MAJOR.MINOR.BUILD[.REVISION][-PRERELEASE] identifier.
type Version struct {
	Major      int
	Minor      int
	Build      int
	Revision   int
	Prerelease string
}

// ParseVersion parses a version string.
// Supports formats like "1.2.3", "v1.2.3", "1.2.3.4", "1.2.3-beta.1".
func ParseVersion(s string) (*Version, error) {
	if strings.TrimSpace(s) == "" {
		return nil, Validationf("empty version")
	}

	matches := versionRegex.FindStringSubmatch(strings.TrimSpace(s))
	if matches == nil {
		return nil, Validationf("invalid version format: %q", s)
	}

	var nums [4]int
	for i := range nums {
		if matches[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(matches[i+1])
		if err != nil {
			return nil, Validationf("invalid version component %q in %q", matches[i+1], s)
		}
		nums[i] = n
	}

	return &Version{
		Major:      nums[0],
		Minor:      nums[1],
		Build:      nums[2],
		Revision:   nums[3],
		Prerelease: matches[5],
	}, nil
}

// String returns the canonical form; a zero revision is omitted.
func (v *Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
	if v.Revision != 0 {
		s += fmt.Sprintf(".%d", v.Revision)
	}
	if v.Prerelease != "" {
		s += "-" + v.Prerelease
	}
	return s
}

// Compare compares two versions
// Returns:
//   - 1 if v > other
//   - 0 if v == other
//   - -1 if v < other
func (v *Version) Compare(other *Version) int {
	for _, pair := range [][2]int{
		{v.Major, other.Major},
		{v.Minor, other.Minor},
		{v.Build, other.Build},
		{v.Revision, other.Revision},
	} {
		if pair[0] > pair[1] {
			return 1
		}
		if pair[0] < pair[1] {
			return -1
		}
	}

	// A final release sorts above any prerelease of the same numbers
	if v.Prerelease == "" && other.Prerelease != "" {
		return 1
	}
	if v.Prerelease != "" && other.Prerelease == "" {
		return -1
	}

	// Both prereleases: plain case-insensitive string order
	return strings.Compare(strings.ToLower(v.Prerelease), strings.ToLower(other.Prerelease))
}

// IsGreaterThan returns true if v > other
func (v *Version) IsGreaterThan(other *Version) bool {
	return v.Compare(other) > 0
}

// CompareVersions compares two version strings
// Returns:
//   - 1 if v1 > v2
//   - 0 if v1 == v2
//   - -1 if v1 < v2
//   - error if either version is invalid
func CompareVersions(v1, v2 string) (int, error) {
	ver1, err := ParseVersion(v1)
	if err != nil {
		return 0, fmt.Errorf("invalid version v1: %w", err)
	}

	ver2, err := ParseVersion(v2)
	if err != nil {
		return 0, fmt.Errorf("invalid version v2: %w", err)
	}

	return ver1.Compare(ver2), nil
}

// NormalizeVersion removes the 'v' prefix if present
func NormalizeVersion(s string) string {
	return strings.TrimPrefix(strings.TrimSpace(s), "v")
}

// Comparer answers eligibility questions about versions. It fails closed:
// unparseable input is logged and treated as "not eligible".
type Comparer struct {
	log logrus.FieldLogger
}

// NewComparer returns a Comparer logging to log (nil discards).
func NewComparer(log logrus.FieldLogger) *Comparer {
	return &Comparer{log: logging.OrDiscard(log)}
}

// IsNewer reports whether candidate is newer than current. An empty current
// accepts any valid candidate.
func (c *Comparer) IsNewer(current, candidate string) bool {
	if strings.TrimSpace(candidate) == "" {
		return false
	}
	cand, err := ParseVersion(candidate)
	if err != nil {
		c.log.WithError(err).WithField("candidate", candidate).Warn("Ignoring unparseable candidate version")
		return false
	}
	if strings.TrimSpace(current) == "" {
		return true
	}
	cur, err := ParseVersion(current)
	if err != nil {
		c.log.WithError(err).WithField("current", current).Warn("Ignoring update check for unparseable current version")
		return false
	}
	return cand.Compare(cur) > 0
}

// MeetsMinimum reports whether current is at least minimum. An empty
// minimum is always met.
func (c *Comparer) MeetsMinimum(current, minimum string) bool {
	if strings.TrimSpace(minimum) == "" {
		return true
	}
	cmp, err := CompareVersions(current, minimum)
	if err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"current": current,
			"minimum": minimum,
		}).Warn("Cannot evaluate minimum version")
		return false
	}
	return cmp >= 0
}
