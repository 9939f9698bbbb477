// Package tokenize turns text into fixed-length token id and attention mask
// sequences.
package tokenize

// Encoding is the tokenized form of a single text.
type Encoding struct {
	IDs  []int
	Mask []int
}

// Tokenizer converts text to token ids and back.
type Tokenizer interface {
	// Encode tokenizes text with special tokens added, unpadded.
	Encode(text string) (Encoding, error)
	// Decode turns ids back into text. Special tokens (including padding)
	// are dropped when skipSpecial is set.
	Decode(ids []int, skipSpecial bool) string
	// PadID is the id used to right-pad sequences.
	PadID() int
}

// Fit truncates or right-pads enc to exactly maxLen positions. Truncation
// keeps the final token so a trailing separator survives. Padded positions
// carry padID with a zero mask.
func Fit(enc Encoding, maxLen, padID int) Encoding {
	ids := make([]int, maxLen)
	mask := make([]int, maxLen)

	n := len(enc.IDs)
	if n > maxLen {
		copy(ids, enc.IDs[:maxLen-1])
		ids[maxLen-1] = enc.IDs[n-1]
		for i := range mask {
			mask[i] = 1
		}
		return Encoding{IDs: ids, Mask: mask}
	}

	copy(ids, enc.IDs)
	for i := 0; i < n; i++ {
		mask[i] = 1
		if i < len(enc.Mask) {
			mask[i] = enc.Mask[i]
		}
	}
	for i := n; i < maxLen; i++ {
		ids[i] = padID
	}
	return Encoding{IDs: ids, Mask: mask}
}

// Unpad returns the ids whose mask is set.
func Unpad(ids, mask []int) []int {
	out := make([]int, 0, len(ids))
	for i, id := range ids {
		if i < len(mask) && mask[i] == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}
