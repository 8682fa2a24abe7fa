package request

import (
	"errors"

	"github.com/sangkips/popup-pos/pkg/scanner"
)

// FrameRequest is the page's decode result for one video frame. Exactly one
// of Text, NotFound or Error is expected.
type FrameRequest struct {
	Text     string `json:"text"`
	Format   string `json:"format"`
	NotFound bool   `json:"notFound"`
	Error    string `json:"error"`
}

// ToFrame converts the body to a scanner frame
func (r *FrameRequest) ToFrame() scanner.Frame {
	switch {
	case r.Error != "":
		return scanner.Frame{Err: errors.New(r.Error)}
	case r.NotFound || r.Text == "":
		return scanner.Frame{Err: scanner.ErrSymbolNotFound}
	default:
		formats := scanner.ParseFormats([]string{r.Format})
		f := scanner.Frame{Text: r.Text}
		if len(formats) == 1 {
			f.Format = formats[0]
		}
		return f
	}
}

// ConfirmScanRequest accepts the pending value. A non-empty Code replaces it.
type ConfirmScanRequest struct {
	Code string `json:"code" binding:"omitempty,max=64"`
}
