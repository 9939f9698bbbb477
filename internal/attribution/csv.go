package attribution

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
)

// Columns is the fixed column order of the audit CSV.
var Columns = []string{"text", "true_label", "predicted_label", "predicted_score", "github", "protocol_id"}

// WriteCSV writes records with a header row. The header is written even when
// there are no records.
func WriteCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(Record{}); err != nil {
		return eris.Wrap(err, "attribution: write header")
	}
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return eris.Wrap(err, "attribution: write record")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "attribution: flush")
}

// WriteCSVFile writes the report to path, creating parent directories.
func WriteCSVFile(path string, records []Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "attribution: create dir for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "attribution: create %s", path)
	}
	if err := WriteCSV(f, records); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return eris.Wrapf(f.Close(), "attribution: close %s", path)
}
