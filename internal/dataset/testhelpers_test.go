package dataset

import (
	"errors"
	"strings"

	"github.com/sells-group/noteseg/internal/tokenize"
)

// wordTokenizer maps whitespace-separated words to the fixed ids given at
// construction, starting at 3. Unknown words share id 3+len(vocab). 0 is
// padding, 1 and 2 wrap every sequence, and the text "boom" fails.
type wordTokenizer struct {
	vocab map[string]int
}

func newWordTokenizer(words ...string) *wordTokenizer {
	w := &wordTokenizer{vocab: map[string]int{}}
	for _, word := range words {
		w.vocab[word] = len(w.vocab) + 3
	}
	return w
}

func (w *wordTokenizer) Encode(text string) (tokenize.Encoding, error) {
	if text == "boom" {
		return tokenize.Encoding{}, errors.New("tokenizer exploded")
	}
	ids := []int{1}
	for _, f := range strings.Fields(text) {
		id, ok := w.vocab[f]
		if !ok {
			id = 3 + len(w.vocab)
		}
		ids = append(ids, id)
	}
	ids = append(ids, 2)
	mask := make([]int, len(ids))
	for i := range mask {
		mask[i] = 1
	}
	return tokenize.Encoding{IDs: ids, Mask: mask}, nil
}

func (w *wordTokenizer) Decode(ids []int, _ bool) string { return "" }

func (w *wordTokenizer) PadID() int { return 0 }
