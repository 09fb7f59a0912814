package indexsync

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/cbergoon/merkletree"

	"github.com/norjs/nopg/internal/nerr"
)

// State maps index names to their catalog definitions. The declared state
// is built from canonical forms; the observed state comes from the catalog.
type State map[string]string

// indexContent implements merkletree.Content for one index entry.
type indexContent struct {
	name string
	def  string
}

func (c indexContent) CalculateHash() ([]byte, error) {
	h := sha256.Sum256([]byte(c.name + "|" + c.def))
	return h[:], nil
}

func (c indexContent) Equals(other merkletree.Content) (bool, error) {
	o, ok := other.(indexContent)
	if !ok {
		return false, nil
	}
	return c.name == o.name && c.def == o.def, nil
}

// StateHash computes the merkle root over a state, with entries sorted by
// index name for determinism. Two states hash equal exactly when they hold
// the same definitions under the same names.
func StateHash(state State) (string, error) {
	if len(state) == 0 {
		return emptyStateHash(), nil
	}

	names := make([]string, 0, len(state))
	for name := range state {
		names = append(names, name)
	}
	sort.Strings(names)

	contents := make([]merkletree.Content, 0, len(names))
	for _, name := range names {
		contents = append(contents, indexContent{name: name, def: state[name]})
	}

	tree, err := merkletree.NewTree(contents)
	if err != nil {
		return "", nerr.Wrap(nerr.ErrIndexSync, err, "failed to build index state tree")
	}
	return hex.EncodeToString(tree.MerkleRoot()), nil
}

func emptyStateHash() string {
	h := sha256.Sum256([]byte("empty_index_state"))
	return hex.EncodeToString(h[:])
}

// Drift is the result of comparing a declared index state against the
// catalog's observed state.
type Drift struct {
	Match        bool
	DeclaredRoot string
	ObservedRoot string
	Missing      []string // Declared but absent from the catalog
	Extra        []string // Present in the catalog but not declared
	Modified     []string // Present under the declared name with a different definition
}

// HasDifferences reports whether any drift was found.
func (d *Drift) HasDifferences() bool {
	return len(d.Missing) > 0 || len(d.Extra) > 0 || len(d.Modified) > 0
}

// Compare diffs the declared state against the observed state. The root
// hashes short-circuit the common no-drift case; the per-index lists are
// filled only on mismatch.
func Compare(declared, observed State) (*Drift, error) {
	declaredRoot, err := StateHash(declared)
	if err != nil {
		return nil, err
	}
	observedRoot, err := StateHash(observed)
	if err != nil {
		return nil, err
	}

	d := &Drift{
		Match:        declaredRoot == observedRoot,
		DeclaredRoot: declaredRoot,
		ObservedRoot: observedRoot,
	}
	if d.Match {
		return d, nil
	}

	for name, def := range declared {
		got, exists := observed[name]
		switch {
		case !exists:
			d.Missing = append(d.Missing, name)
		case got != def:
			d.Modified = append(d.Modified, name)
		}
	}
	for name := range observed {
		if _, exists := declared[name]; !exists {
			d.Extra = append(d.Extra, name)
		}
	}

	sort.Strings(d.Missing)
	sort.Strings(d.Extra)
	sort.Strings(d.Modified)
	return d, nil
}

