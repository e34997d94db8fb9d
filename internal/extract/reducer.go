package extract

// MissingLabel keys content that appears before the first label.
const MissingLabel = "MISSING_KEY"

// LabelReducer folds a flat run of "label, then content" elements into
// fields. It has two inputs: Label sets the active key; Content appends to
// the value under the active key, joining repeats with Delimiter.
type LabelReducer struct {
	Delimiter string

	active string
	fields map[string]string
	order  []string
}

// NewLabelReducer returns a reducer joining repeated content with delim.
func NewLabelReducer(delim string) *LabelReducer {
	return &LabelReducer{Delimiter: delim, active: MissingLabel, fields: make(map[string]string)}
}

// Label switches the active key.
func (r *LabelReducer) Label(label string) {
	r.active = label
}

// Content appends value to the active key.
func (r *LabelReducer) Content(value string) {
	if existing, ok := r.fields[r.active]; ok {
		r.fields[r.active] = existing + r.Delimiter + value
		return
	}
	r.fields[r.active] = value
	r.order = append(r.order, r.active)
}

// Fields returns the accumulated values.
func (r *LabelReducer) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out[k] = v
	}
	return out
}

// Keys returns the keys in first-seen order.
func (r *LabelReducer) Keys() []string {
	return append([]string(nil), r.order...)
}
