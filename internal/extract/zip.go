package extract

// Pair is one positional key/value match.
type Pair struct {
	Key   string
	Value string
}

// ZipPairs pairs keys and values by position. Unequal lengths truncate to the
// shorter list; a malformed definition list loses its tail rather than
// failing the document.
func ZipPairs(keys, values []string) []Pair {
	n := len(keys)
	if len(values) < n {
		n = len(values)
	}
	out := make([]Pair, n)
	for i := 0; i < n; i++ {
		out[i] = Pair{Key: keys[i], Value: values[i]}
	}
	return out
}
