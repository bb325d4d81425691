package schedule

import (
	"errors"

	"github.com/atotto/clipboard"
)

var errClipboardUnsupported = errors.New("schedule: no clipboard utility available")

// Clipboard writes text for the user to paste elsewhere.
type Clipboard interface {
	WriteAll(text string) error
}

// SystemClipboard uses the platform clipboard (pbcopy, xclip, xsel,
// wl-copy or the Windows API).
type SystemClipboard struct{}

func (SystemClipboard) WriteAll(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}
