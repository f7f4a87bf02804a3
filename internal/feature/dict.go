package feature

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Dictionary is the reversible token-to-text mapping for one table, or for
// a whole run once merged. Every token any stage emits must resolve in
// exactly one entry.
type Dictionary map[string]string

// Merge combines per-table dictionaries into one global dictionary. A
// duplicate token across inputs is an error: silent overwrite would break
// the round-trip invariant for the earlier table.
func Merge(dicts ...Dictionary) (Dictionary, error) {
	out := make(Dictionary)
	for _, d := range dicts {
		for tok, text := range d {
			if prev, ok := out[tok]; ok {
				return nil, fmt.Errorf("merge: token %q maps to both %q and %q", tok, prev, text)
			}
			out[tok] = text
		}
	}
	return out, nil
}

// WriteFile serializes the dictionary as a single binary blob.
func (d Dictionary) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("write dictionary: %w", err)
	}
	return nil
}

// ReadDictionary loads a dictionary blob written by WriteFile.
func ReadDictionary(path string) (Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	defer f.Close()

	var d Dictionary
	if err := gob.NewDecoder(f).Decode(&d); err != nil {
		return nil, fmt.Errorf("read dictionary: %w", err)
	}
	return d, nil
}
