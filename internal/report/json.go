package report

import (
	"encoding/json"
	"io"

	"github.com/zsiec/ltcsplit/internal/pipeline"
	"github.com/zsiec/ltcsplit/internal/tctable"
)

type jsonReport struct {
	*pipeline.Result
	Table []tctable.Event `json:"table,omitempty"`
}

// WriteJSON writes res as an indented JSON document. The timecode table is
// included when withTable is set.
func WriteJSON(w io.Writer, res *pipeline.Result, withTable bool) error {
	doc := jsonReport{Result: res}
	if withTable && res.Table != nil {
		doc.Table = res.Table.Events()
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
