// Package extract holds the helpers shared by the site rules: goquery text
// handling, positional zips, the label reducer used by biography pages and
// day-first date normalization.
package extract
