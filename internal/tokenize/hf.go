package tokenize

import (
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// FileName is the tokenizer definition stored inside a checkpoint directory.
const FileName = "tokenizer.json"

// HF wraps a HuggingFace tokenizer.json definition.
type HF struct {
	tk    *tokenizer.Tokenizer
	path  string
	padID int
}

// LoadHF loads a tokenizer from a tokenizer.json file or from a directory
// that contains one. padToken selects the padding id; when the token is not
// in the vocabulary id 0 is used.
func LoadHF(source, padToken string) (*HF, error) {
	path, err := resolve(source)
	if err != nil {
		return nil, err
	}
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tokenize: load %s", path)
	}
	padID := 0
	if id, ok := tk.TokenToId(padToken); ok {
		padID = id
	}
	return &HF{tk: tk, path: path, padID: padID}, nil
}

func resolve(source string) (string, error) {
	info, err := os.Stat(source)
	if err != nil {
		return "", eris.Wrapf(err, "tokenize: stat %s", source)
	}
	if info.IsDir() {
		return filepath.Join(source, FileName), nil
	}
	return source, nil
}

// Encode implements Tokenizer.
func (h *HF) Encode(text string) (Encoding, error) {
	en, err := h.tk.EncodeSingle(text, true)
	if err != nil {
		return Encoding{}, eris.Wrap(err, "tokenize: encode")
	}
	return Encoding{IDs: en.Ids, Mask: en.AttentionMask}, nil
}

// Decode implements Tokenizer.
func (h *HF) Decode(ids []int, skipSpecial bool) string {
	return h.tk.Decode(ids, skipSpecial)
}

// PadID implements Tokenizer.
func (h *HF) PadID() int { return h.padID }

// SaveTo copies the tokenizer definition into dir.
func (h *HF) SaveTo(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "tokenize: create %s", dir)
	}
	dst := filepath.Join(dir, FileName)
	if absPath(dst) == absPath(h.path) {
		return nil
	}

	src, err := os.Open(h.path)
	if err != nil {
		return eris.Wrap(err, "tokenize: open source")
	}
	defer src.Close() //nolint:errcheck

	out, err := os.Create(dst)
	if err != nil {
		return eris.Wrap(err, "tokenize: create copy")
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close() //nolint:errcheck
		return eris.Wrap(err, "tokenize: copy")
	}
	return eris.Wrap(out.Close(), "tokenize: close copy")
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}
