package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dshills/ticketgate/internal/gate"
)

// JSONWriter outputs the full outcome, diagnostics included, as JSON.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, o *gate.Outcome) error {
	data, err := json.MarshalIndent(o, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
