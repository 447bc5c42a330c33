// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/adamancini/updraft/internal/update"
)

// Response represents the user's response to a prompt.
type Response int

const (
	ResponseYes   Response = iota // Install now
	ResponseNo                    // Not now
	ResponseNotes                 // Show release notes, then ask again
)

// Prompter asks before an update is installed.
type Prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompter creates a prompter with stdin/stdout.
func NewPrompter() *Prompter {
	return NewPrompterWithIO(os.Stdin, os.Stdout)
}

// NewPrompterWithIO creates a prompter with custom input/output (for testing).
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// prompt displays a question and reads the response.
func (p *Prompter) prompt(format string, args ...interface{}) Response {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n/r] ")

	if !p.scanner.Scan() {
		return ResponseNo
	}

	switch strings.ToLower(strings.TrimSpace(p.scanner.Text())) {
	case "y", "yes":
		return ResponseYes
	case "r", "notes":
		return ResponseNotes
	case "n", "no", "":
		return ResponseNo
	default:
		// Default to no for invalid input
		_, _ = fmt.Fprintln(p.out, "Invalid response, not updating.")
		return ResponseNo
	}
}

// ConfirmUpdate describes d and asks whether to install it. "r" prints the
// release notes and asks again. End of input counts as no.
func (p *Prompter) ConfirmUpdate(current string, d *update.UpdateDescriptor) bool {
	if d == nil {
		return false
	}

	_, _ = fmt.Fprintf(p.out, "Update available: %s -> %s\n", displayVersion(current), d.Version)
	if !d.ReleaseDate.IsZero() {
		_, _ = fmt.Fprintf(p.out, "Released: %s\n", d.ReleaseDate.Format("2006-01-02"))
	}
	if d.FileSizeBytes > 0 {
		_, _ = fmt.Fprintf(p.out, "Download size: %d bytes\n", d.FileSizeBytes)
	}
	if d.Mandatory {
		_, _ = fmt.Fprintln(p.out, "This update is mandatory.")
	}

	for {
		switch p.prompt("Install %s now and restart?", d.Version) {
		case ResponseYes:
			return true
		case ResponseNotes:
			notes := strings.TrimSpace(d.ReleaseNotes)
			if notes == "" {
				notes = "(no release notes)"
			}
			_, _ = fmt.Fprintf(p.out, "\n%s\n\n", notes)
		default:
			return false
		}
	}
}

func displayVersion(v string) string {
	if strings.TrimSpace(v) == "" {
		return "(unknown)"
	}
	return v
}
