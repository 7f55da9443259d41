package display

import (
	"encoding/base64"
	"fmt"
	"io"
)

const (
	escapeStart = "\x1b_G"
	escapeEnd   = "\x1b\\"
	// Protocol maximum payload per escape sequence.
	chunkSize = 4096
)

// writeKitty emits the image as kitty graphics escape sequences,
// chunking the base64 payload when it exceeds the protocol limit.
// f=100 transmits PNG data; q=2 suppresses terminal responses.
func writeKitty(w io.Writer, data []byte) error {
	if len(data) == 0 {
		return nil
	}

	encoded := base64.StdEncoding.EncodeToString(data)

	if len(encoded) <= chunkSize {
		_, err := fmt.Fprintf(w, "%sa=T,f=100,q=2;%s%s", escapeStart, encoded, escapeEnd)
		return err
	}

	for i := 0; i < len(encoded); i += chunkSize {
		end := i + chunkSize
		if end > len(encoded) {
			end = len(encoded)
		}

		var params string
		switch {
		case i == 0:
			params = "a=T,f=100,q=2,m=1"
		case end == len(encoded):
			params = "m=0"
		default:
			params = "m=1"
		}

		if _, err := fmt.Fprintf(w, "%s%s;%s%s", escapeStart, params, encoded[i:end], escapeEnd); err != nil {
			return err
		}
	}

	return nil
}
