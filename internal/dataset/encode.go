package dataset

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/noteseg/internal/tokenize"
)

// Example is one encoded row. len(IDs) == len(Mask) == max length.
type Example struct {
	IDs   []int
	Mask  []int
	Label int
	// Source is the position of the row in the prepared table.
	Source int
}

// Encode tokenizes texts to fixed-length examples, one per text and in the
// same order. Rows are independent so up to workers rows are tokenized
// concurrently. Callers drop null texts beforehand.
func Encode(ctx context.Context, texts []string, targets []int, tok tokenize.Tokenizer, maxLen, workers int) ([]Example, error) {
	if len(texts) != len(targets) {
		return nil, eris.Errorf("dataset: %d texts but %d labels", len(texts), len(targets))
	}
	if maxLen <= 0 {
		return nil, eris.Errorf("dataset: max length must be positive (got %d)", maxLen)
	}
	if workers < 1 {
		workers = 1
	}

	out := make([]Example, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, text := range texts {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			enc, err := tok.Encode(text)
			if err != nil {
				return eris.Wrapf(err, "dataset: encode row %d", i)
			}
			fit := tokenize.Fit(enc, maxLen, tok.PadID())
			out[i] = Example{IDs: fit.IDs, Mask: fit.Mask, Label: targets[i], Source: i}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
