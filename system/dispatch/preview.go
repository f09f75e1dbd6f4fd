package dispatch

import (
	"encoding/json"

	"github.com/tidwall/gjson"
)

// maxPreviewBytes bounds the logging-only payload preview (SPEC_FULL.md
// §4.2); it is never a correctness concern, only a log-volume one.
const maxPreviewBytes = 500

// previewJSON renders raw as a length-capped string for logging.
// gjson.ParseBytes takes the value's raw text as-is (it neither validates
// nor re-serializes it) without requiring a concrete Go type, which is the
// point: the dispatcher never knows an algorithm's input/output shape ahead
// of time.
func previewJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	preview := gjson.ParseBytes(raw).Raw
	if len(preview) > maxPreviewBytes {
		return preview[:maxPreviewBytes] + "...(truncated)"
	}
	return preview
}
