package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/scode/transitprobe/corpus"
)

// ExportCorpus writes the plaintext corpus cfg generates as CSV (index, label, kind, value)
// without contacting the service. The same seed always yields the same file.
func ExportCorpus(cfg corpus.Config, w io.Writer) error {
	records, err := corpus.Generate(cfg)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"index", "label", "kind", "value"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, rec := range records {
		row := []string{strconv.Itoa(rec.Index), rec.Label, string(rec.Kind), rec.Value}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", rec.Index, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
