// Package labels maps tag names to contiguous class indices and back.
package labels

import (
	"slices"
	"sort"
)

// Index is an immutable bijection between tag names and indices in [0, N).
type Index struct {
	names []string
	index map[string]int
}

// Build constructs an Index. When explicit is non-empty its order fixes the
// indices verbatim and duplicate names are rejected. Otherwise the distinct
// values of tags are sorted lexicographically and numbered in that order.
func Build(tags []string, explicit []string) (*Index, error) {
	if len(explicit) > 0 {
		return fromOrdered(slices.Clone(explicit))
	}

	seen := make(map[string]struct{}, len(tags))
	var names []string
	for _, t := range tags {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		names = append(names, t)
	}
	sort.Strings(names)
	return fromOrdered(names)
}

func fromOrdered(names []string) (*Index, error) {
	if len(names) == 0 {
		return nil, NewConfigurationError("no label names")
	}
	idx := make(map[string]int, len(names))
	for i, n := range names {
		if prev, ok := idx[n]; ok {
			return nil, NewConfigurationError("duplicate label name %q at positions %d and %d", n, prev, i)
		}
		idx[n] = i
	}
	return &Index{names: names, index: idx}, nil
}

// ToIndex returns the class index for name.
func (x *Index) ToIndex(name string) (int, error) {
	i, ok := x.index[name]
	if !ok {
		return 0, &UnknownLabelError{Name: name}
	}
	return i, nil
}

// ToName returns the tag name for class index i.
func (x *Index) ToName(i int) (string, error) {
	if i < 0 || i >= len(x.names) {
		return "", &IndexOutOfRangeError{Index: i, Size: len(x.names)}
	}
	return x.names[i], nil
}

// Encode translates a column of tag names into class indices.
func (x *Index) Encode(tags []string) ([]int, error) {
	out := make([]int, len(tags))
	for i, t := range tags {
		v, err := x.ToIndex(t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Len returns the number of classes.
func (x *Index) Len() int { return len(x.names) }

// Names returns the tag names in index order.
func (x *Index) Names() []string { return slices.Clone(x.names) }
