// Package display renders generated images inline using the kitty
// graphics protocol.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/davegraham/imagegen/pkg/models"
)

type Displayer struct {
	out io.Writer
}

func New(out io.Writer) *Displayer {
	return &Displayer{out: out}
}

// Display writes the payload to the terminal inline. Providers always
// hand back decoded bytes, so there is nothing to fetch.
func (d *Displayer) Display(payload *models.ImagePayload) error {
	if len(payload.Data) == 0 {
		return fmt.Errorf("image has no data")
	}
	if err := writeKitty(d.out, payload.Data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}
	fmt.Fprintln(d.out)
	return nil
}

// IsTerminalSupported reports whether the terminal understands the
// kitty graphics protocol.
func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	for _, prog := range []string{"kitty", "ghostty", "iterm.app", "wezterm"} {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
