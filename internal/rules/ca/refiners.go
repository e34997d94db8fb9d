package ca

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

type refiner struct {
	RefinerID ID       `json:"RefinerId"`
	Name      string   `json:"Name"`
	Options   []Option `json:"Options"`
}

// Option is one parliament in the Parliament refiner. Number is zero for
// the current-members option and for options that could not be numbered.
type Option struct {
	OptionID      ID     `json:"OptionId"`
	DisplayNameEn string `json:"DisplayNameEn"`
	RefinerID     ID     `json:"-"`
	Number        int    `json:"-"`
	Current       bool   `json:"-"`
}

// Term is the identifier used for the option in records and file names:
// "current" or the parliament number.
func (o Option) Term() string {
	if o.Current {
		return currentTerm
	}
	if o.Number > 0 {
		return strconv.Itoa(o.Number)
	}
	return ""
}

// ParliamentOptions decodes a refiners response and returns the parliament
// options numbered in chronological order.
func ParliamentOptions(body []byte) ([]Option, error) {
	var refiners []refiner
	if err := decode(body, &refiners); err != nil {
		return nil, fmt.Errorf("decode refiners: %w", err)
	}
	var parl *refiner
	for i := range refiners {
		if refiners[i].Name == parliamentRefiner {
			parl = &refiners[i]
			break
		}
	}
	if parl == nil {
		return nil, fmt.Errorf("parliament refiner not found")
	}

	options := append([]Option(nil), parl.Options...)
	if n := len(options); n > 0 && !strings.HasPrefix(options[0].DisplayNameEn, "1st") &&
		strings.HasPrefix(options[n-1].DisplayNameEn, "1st") {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			options[i], options[j] = options[j], options[i]
		}
	}
	for i := range options {
		options[i].RefinerID = parl.RefinerID
		number := i + 1
		switch {
		case strings.HasPrefix(options[i].DisplayNameEn, strconv.Itoa(number)):
			options[i].Number = number
		case options[i].DisplayNameEn == currentOption:
			options[i].Current = true
		}
	}
	return options, nil
}

// ExtractRefiners emits a Term record per parliament option and follows the
// people search for every option the run selects.
func ExtractRefiners(rc crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	options, err := ParliamentOptions(doc.Body)
	if err != nil {
		return ext, fmt.Errorf("refiners %s: %w", doc.Request.URL, err)
	}
	base := extract.BaseURL(doc)

	for _, opt := range options {
		term := opt.Term()
		ext.Emit(crawler.NewRecord(crawler.KindTerm).
			Set("Parliament", term).
			Set("OptionId", opt.OptionID.String()).
			Set("RefinerId", opt.RefinerID.String()).
			Set("DisplayNameEn", opt.DisplayNameEn).
			Set("Current", strconv.FormatBool(opt.Current)))

		if term == "" {
			ext.Warn(base, "parliament option %q could not be numbered", opt.DisplayNameEn)
			continue
		}
		if !rc.Terms.Includes(opt.Number, opt.Current) {
			continue
		}
		query := url.Values{"refiners": {opt.RefinerID.String() + "-" + opt.OptionID.String() + ","}}
		abs, err := crawler.ResolveURL(base, "../Person/SearchAndRefine?"+query.Encode())
		if err != nil {
			return ext, fmt.Errorf("people search url: %w", err)
		}
		ext.Follow(jsonRequest(abs, crawler.DocCAPeople, doc.Request.Context.WithTerm(term)))
	}
	return ext, nil
}
