// Package rules maps every document type to the extraction rule that parses
// it and describes the seed requests of each supported site.
package rules

import (
	"fmt"
	"sort"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/rules/au"
	"github.com/JakeFAU/parlcrawl/internal/rules/ca"
	"github.com/JakeFAU/parlcrawl/internal/rules/nz"
)

// Set is a closed mapping from document type to rule.
type Set struct {
	rules map[crawler.DocumentType]crawler.Rule
}

// NewSet builds a Set, rejecting unknown document types.
func NewSet(rules map[crawler.DocumentType]crawler.Rule) (*Set, error) {
	out := &Set{rules: make(map[crawler.DocumentType]crawler.Rule, len(rules))}
	for t, r := range rules {
		if !t.Valid() {
			return nil, fmt.Errorf("unknown document type %q", t)
		}
		if r == nil {
			return nil, fmt.Errorf("nil rule for %s", t)
		}
		out.rules[t] = r
	}
	return out, nil
}

// Default returns the rules for every supported site.
func Default() *Set {
	all := make(map[crawler.DocumentType]crawler.Rule)
	for _, site := range []map[crawler.DocumentType]crawler.Rule{au.Rules(), nz.Rules(), ca.Rules()} {
		for t, r := range site {
			all[t] = r
		}
	}
	set, err := NewSet(all)
	if err != nil {
		panic(err)
	}
	return set
}

// Rule returns the rule registered for docType.
func (s *Set) Rule(docType crawler.DocumentType) (crawler.Rule, error) {
	r, ok := s.rules[docType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", crawler.ErrNoRule, docType)
	}
	return r, nil
}

// Types returns the registered document types, sorted.
func (s *Set) Types() []crawler.DocumentType {
	out := make([]crawler.DocumentType, 0, len(s.rules))
	for t := range s.rules {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
