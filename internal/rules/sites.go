package rules

import (
	"fmt"
	"sort"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/rules/au"
	"github.com/JakeFAU/parlcrawl/internal/rules/ca"
	"github.com/JakeFAU/parlcrawl/internal/rules/nz"
)

// Site describes a crawlable starting point.
type Site struct {
	Name        string
	Description string
	SeedType    crawler.DocumentType
	SeedURLs    []string
	Headers     map[string]string
}

var sites = map[string]Site{
	"au-members": {
		Name:        "au-members",
		Description: "Australian parliamentarians, their speeches and Hansard sessions",
		SeedType:    crawler.DocAUMembers,
		SeedURLs:    []string{au.MembersURL},
	},
	"au-biographies": {
		Name:        "au-biographies",
		Description: "Australian parliamentary handbook biographies",
		SeedType:    crawler.DocAUBiographies,
		SeedURLs:    []string{au.BiographiesURL},
	},
	"au-bills": {
		Name:        "au-bills",
		Description: "Australian private members' bills and their progress",
		SeedType:    crawler.DocAUBills,
		SeedURLs:    []string{au.PrivateBillsURL},
	},
	"nz-mps": {
		Name:        "nz-mps",
		Description: "New Zealand current and former members of parliament",
		SeedType:    crawler.DocNZMembers,
		SeedURLs:    []string{nz.CurrentMembersURL, nz.FormerMembersURL},
	},
	"ca-parliaments": {
		Name:        "ca-parliaments",
		Description: "Canadian parliaments, their members and member profiles",
		SeedType:    crawler.DocCARefiners,
		SeedURLs:    []string{ca.RefinersURL},
		Headers:     ca.JSONHeaders(),
	},
}

// Sites returns the known site names, sorted.
func Sites() []Site {
	out := make([]Site, 0, len(sites))
	for _, s := range sites {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Seeds returns the seed requests for a site. overrides replace the default
// seed URLs when non-empty.
func Seeds(name string, overrides []string) ([]crawler.Request, error) {
	site, ok := sites[name]
	if !ok {
		return nil, fmt.Errorf("unknown site %q", name)
	}
	urls := site.SeedURLs
	if len(overrides) > 0 {
		urls = overrides
	}
	out := make([]crawler.Request, 0, len(urls))
	for _, u := range urls {
		req := crawler.NewRequest(u, site.SeedType)
		if len(site.Headers) > 0 {
			req.Headers = site.Headers
		}
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("seed for %s: %w", name, err)
		}
		out = append(out, req)
	}
	return out, nil
}
