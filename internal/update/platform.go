package update

import (
	"runtime"
	"strings"

	"github.com/samber/lo"
)

// Metadata keys consulted for compatibility filtering.
const (
	MetadataPlatform     = "platform"
	MetadataArchitecture = "architecture"
)

// Platform identifies the operating system and architecture an update targets.
type Platform struct {
	OS   string
	Arch string
}

// Detect returns the current platform (OS and architecture)
func Detect() Platform {
	return Platform{
		OS:   runtime.GOOS,
		Arch: runtime.GOARCH,
	}
}

// ExecutableName appends the platform's executable suffix to base.
func (p Platform) ExecutableName(base string) string {
	if p.OS == "windows" && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		return base + ".exe"
	}
	return base
}

// Compatible reports whether an update's metadata allows this platform.
// Missing keys allow everything; values may be comma-separated lists and
// are compared case-insensitively.
func (p Platform) Compatible(metadata map[string]string) bool {
	return allows(lookupFold(metadata, MetadataPlatform), p.OS) &&
		allows(lookupFold(metadata, MetadataArchitecture), p.Arch)
}

func lookupFold(m map[string]string, key string) string {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func allows(list, value string) bool {
	entries := lo.FilterMap(strings.Split(list, ","), func(s string, _ int) (string, bool) {
		s = strings.ToLower(strings.TrimSpace(s))
		return s, s != ""
	})
	if len(entries) == 0 || value == "" {
		return true
	}
	return lo.Contains(entries, strings.ToLower(value)) || lo.Contains(entries, "any")
}
