package update

import (
	"errors"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Version
		wantErr bool
	}{
		{
			name:  "three components",
			input: "0.8.2",
			want:  &Version{Major: 0, Minor: 8, Build: 2},
		},
		{
			name:  "version with v prefix",
			input: "v0.8.2",
			want:  &Version{Major: 0, Minor: 8, Build: 2},
		},
		{
			name:  "four components",
			input: "1.2.3.4",
			want:  &Version{Major: 1, Minor: 2, Build: 3, Revision: 4},
		},
		{
			name:  "version with prerelease",
			input: "1.0.0-rc.1",
			want:  &Version{Major: 1, Minor: 0, Build: 0, Prerelease: "rc.1"},
		},
		{
			name:  "revision and prerelease",
			input: "2.0.0.7-Beta",
			want:  &Version{Major: 2, Minor: 0, Build: 0, Revision: 7, Prerelease: "Beta"},
		},
		{
			name:    "invalid format",
			input:   "invalid",
			wantErr: true,
		},
		{
			name:    "missing build",
			input:   "1.0",
			wantErr: true,
		},
		{
			name:    "five components",
			input:   "1.2.3.4.5",
			wantErr: true,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "empty prerelease",
			input:   "1.0.0-",
			wantErr: true,
		},
		{
			name:    "component overflow",
			input:   "99999999999999999999.0.0",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseVersion(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseVersion() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Errorf("ParseVersion() error = %v, want ErrValidation", err)
				}
				return
			}
			if *got != *tt.want {
				t.Errorf("ParseVersion() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestVersionString(t *testing.T) {
	tests := []struct {
		name    string
		version *Version
		want    string
	}{
		{
			name:    "zero revision omitted",
			version: &Version{Major: 0, Minor: 8, Build: 2},
			want:    "0.8.2",
		},
		{
			name:    "revision kept",
			version: &Version{Major: 1, Minor: 2, Build: 3, Revision: 4},
			want:    "1.2.3.4",
		},
		{
			name:    "version with prerelease",
			version: &Version{Major: 1, Minor: 0, Build: 0, Prerelease: "rc.1"},
			want:    "1.0.0-rc.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.version.String(); got != tt.want {
				t.Errorf("String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		name string
		v1   string
		v2   string
		want int // 1 if v1 > v2, 0 if equal, -1 if v1 < v2
	}{
		// Equal versions
		{name: "equal versions", v1: "0.8.2", v2: "0.8.2", want: 0},
		{name: "equal with v prefix", v1: "v0.8.2", v2: "0.8.2", want: 0},
		{name: "implicit zero revision", v1: "1.0.0", v2: "1.0.0.0", want: 0},
		{name: "prerelease case folded", v1: "1.0.0-RC", v2: "1.0.0-rc", want: 0},

		// Numeric differences
		{name: "major version greater", v1: "2.0.0", v2: "1.9.9", want: 1},
		{name: "minor version less", v1: "1.8.0", v2: "1.9.0", want: -1},
		{name: "build version greater", v1: "1.0.3", v2: "1.0.2", want: 1},
		{name: "revision greater", v1: "1.0.0.1", v2: "1.0.0", want: 1},
		{name: "numeric not lexical", v1: "0.10.0", v2: "0.9.0", want: 1},

		// Prerelease comparisons
		{name: "final > prerelease", v1: "1.0.0", v2: "1.0.0-rc.1", want: 1},
		{name: "prerelease < final", v1: "1.0.0-rc.1", v2: "1.0.0", want: -1},
		{name: "alpha < beta", v1: "1.0.0-alpha", v2: "1.0.0-beta", want: -1},
		{name: "plain string order", v1: "1.0.0-rc.10", v2: "1.0.0-rc.9", want: -1},
		{name: "numbers beat prerelease", v1: "1.0.1-alpha", v2: "1.0.0", want: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ver1, err := ParseVersion(tt.v1)
			if err != nil {
				t.Fatalf("Failed to parse v1: %v", err)
			}

			ver2, err := ParseVersion(tt.v2)
			if err != nil {
				t.Fatalf("Failed to parse v2: %v", err)
			}

			if got := ver1.Compare(ver2); got != tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.v1, tt.v2, got, tt.want)
			}
			if got := ver2.Compare(ver1); got != -tt.want {
				t.Errorf("Compare(%s, %s) = %d, want %d", tt.v2, tt.v1, got, -tt.want)
			}
			if got := ver1.Compare(ver1); got != 0 {
				t.Errorf("Compare(%s, %s) = %d, want 0", tt.v1, tt.v1, got)
			}
		})
	}
}

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		name    string
		v1      string
		v2      string
		want    int
		wantErr bool
	}{
		{name: "greater", v1: "0.9.0", v2: "0.8.2", want: 1},
		{name: "less", v1: "0.8.2", v2: "0.9.0", want: -1},
		{name: "equal", v1: "0.8.2", v2: "0.8.2", want: 0},
		{name: "invalid v1", v1: "invalid", v2: "0.8.2", wantErr: true},
		{name: "invalid v2", v1: "0.8.2", v2: "invalid", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CompareVersions(tt.v1, tt.v2)
			if (err != nil) != tt.wantErr {
				t.Errorf("CompareVersions() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("CompareVersions(%s, %s) = %d, want %d", tt.v1, tt.v2, got, tt.want)
			}
		})
	}
}

func TestComparerIsNewer(t *testing.T) {
	c := NewComparer(nil)

	tests := []struct {
		current   string
		candidate string
		want      bool
	}{
		{"1.0.0", "2.0.0", true},
		{"2.0.0", "1.0.0", false},
		{"1.0.0", "1.0.0", false},
		{"1.0.0-beta", "1.0.0", true},
		{"1.0.0", "1.0.0-beta", false},
		{"1.0.0-alpha", "1.0.0-beta", true},
		{"", "1.0.0", true},
		{"1.0.0", "", false},
		{"", "", false},
		{"invalid", "1.0.0", false},
		{"1.0.0", "invalid", false},
		{"", "invalid", false},
		{"1.0.0.1", "1.0.0.2", true},
	}

	for _, tt := range tests {
		t.Run(tt.current+"->"+tt.candidate, func(t *testing.T) {
			if got := c.IsNewer(tt.current, tt.candidate); got != tt.want {
				t.Errorf("IsNewer(%q, %q) = %v, want %v", tt.current, tt.candidate, got, tt.want)
			}
		})
	}
}

func TestComparerMeetsMinimum(t *testing.T) {
	c := NewComparer(nil)

	tests := []struct {
		current string
		minimum string
		want    bool
	}{
		{"1.0.0", "", true},
		{"1.0.0", "1.0.0", true},
		{"1.2.0", "1.0.0", true},
		{"0.9.0", "1.0.0", false},
		{"1.0.0-rc.1", "1.0.0", false},
		{"garbage", "1.0.0", false},
		{"1.0.0", "garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.current+">="+tt.minimum, func(t *testing.T) {
			if got := c.MeetsMinimum(tt.current, tt.minimum); got != tt.want {
				t.Errorf("MeetsMinimum(%q, %q) = %v, want %v", tt.current, tt.minimum, got, tt.want)
			}
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"v0.8.2", "0.8.2"},
		{"0.8.2", "0.8.2"},
		{" v1.0.0-rc.1 ", "1.0.0-rc.1"},
	}

	for _, tt := range tests {
		if got := NormalizeVersion(tt.input); got != tt.want {
			t.Errorf("NormalizeVersion(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
