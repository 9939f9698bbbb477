// Package dataset reads labelled note CSVs and turns them into encoded,
// batched examples.
package dataset

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/noteseg/internal/labels"
)

// Column names understood by the reader.
const (
	ColContent    = "content"
	ColTag        = "tag"
	ColGithub     = "github"
	ColProtocolID = "protocol_id"
)

// TrainColumns are required by the training command.
var TrainColumns = []string{ColContent, ColTag}

// EvalColumns are required by the evaluation command.
var EvalColumns = []string{ColContent, ColTag, ColGithub, ColProtocolID}

// Row is one record of the source table.
type Row struct {
	Content    string `csv:"content"`
	Tag        string `csv:"tag"`
	Github     string `csv:"github,omitempty"`
	ProtocolID string `csv:"protocol_id,omitempty"`
}

// ReadCSV loads every row of the CSV at path. A missing required column is
// reported as a labels.ConfigurationError.
func ReadCSV(path string, required []string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	return DecodeCSV(f, required)
}

// DecodeCSV is ReadCSV over an arbitrary reader.
func DecodeCSV(r io.Reader, required []string) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if err == io.EOF {
			return nil, labels.NewConfigurationError("csv has no header row")
		}
		return nil, eris.Wrap(err, "dataset: read header")
	}

	have := make(map[string]bool)
	for _, h := range dec.Header() {
		have[h] = true
	}
	for _, col := range required {
		if !have[col] {
			return nil, labels.NewConfigurationError("missing required column %q", col)
		}
	}

	var rows []Row
	for {
		var row Row
		if err := dec.Decode(&row); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "dataset: decode row %d", len(rows)+1)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
