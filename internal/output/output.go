package output

import (
	"fmt"
	"io"
	"os"

	"github.com/dshills/ticketgate/internal/gate"
)

// Writer writes a run outcome in a specific format.
type Writer interface {
	Write(w io.Writer, o *gate.Outcome) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "text", "":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "markdown", "md":
		return &MarkdownWriter{}, nil
	case "sarif":
		return &SARIFWriter{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// WriteOutcome writes o to outPath, or to stdout when outPath is empty.
func WriteOutcome(o *gate.Outcome, format, outPath string) error {
	writer, err := GetWriter(format)
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return writer.Write(w, o)
}
