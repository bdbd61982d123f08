package reporter

import (
	"encoding/json"
	"io"

	"github.com/senbaris/tempdbcheck/internal/model"
)

// WriteJSON writes the report as indented JSON.
func WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
