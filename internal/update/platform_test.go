package update

import (
	"runtime"
	"testing"
)

func TestDetect(t *testing.T) {
	p := Detect()

	if p.OS != runtime.GOOS {
		t.Errorf("OS mismatch: got %s, want %s", p.OS, runtime.GOOS)
	}

	if p.Arch != runtime.GOARCH {
		t.Errorf("Arch mismatch: got %s, want %s", p.Arch, runtime.GOARCH)
	}
}

func TestPlatformExecutableName(t *testing.T) {
	tests := []struct {
		name string
		p    Platform
		base string
		want string
	}{
		{name: "linux", p: Platform{OS: "linux", Arch: "amd64"}, base: "updraft-launcher", want: "updraft-launcher"},
		{name: "windows", p: Platform{OS: "windows", Arch: "amd64"}, base: "updraft-launcher", want: "updraft-launcher.exe"},
		{name: "windows already suffixed", p: Platform{OS: "windows", Arch: "amd64"}, base: "App.EXE", want: "App.EXE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.ExecutableName(tt.base); got != tt.want {
				t.Errorf("ExecutableName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlatformCompatible(t *testing.T) {
	p := Platform{OS: "linux", Arch: "arm64"}

	tests := []struct {
		name     string
		metadata map[string]string
		want     bool
	}{
		{name: "no metadata", metadata: nil, want: true},
		{name: "unrelated keys", metadata: map[string]string{"channel": "beta"}, want: true},
		{name: "exact match", metadata: map[string]string{"platform": "linux", "architecture": "arm64"}, want: true},
		{name: "case insensitive", metadata: map[string]string{"Platform": "Linux", "ARCHITECTURE": "ARM64"}, want: true},
		{name: "list", metadata: map[string]string{"platform": "windows, linux"}, want: true},
		{name: "any", metadata: map[string]string{"architecture": "any"}, want: true},
		{name: "wrong os", metadata: map[string]string{"platform": "windows"}, want: false},
		{name: "wrong arch", metadata: map[string]string{"platform": "linux", "architecture": "amd64,386"}, want: false},
		{name: "blank value", metadata: map[string]string{"platform": " , "}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Compatible(tt.metadata); got != tt.want {
				t.Errorf("Compatible(%v) = %v, want %v", tt.metadata, got, tt.want)
			}
		})
	}
}
