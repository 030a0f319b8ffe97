package supervisor

import (
	"encoding/json"
	"io"

	"vbmcd/internal/listener"
)

// writeChildParams encodes params as JSON to w and closes it, handing
// the spawned child everything it needs on its stdin in one write.
func writeChildParams(w io.WriteCloser, params listener.ChildParams) error {
	defer w.Close()
	return json.NewEncoder(w).Encode(params)
}
