// Package ca reads the Library of Parliament ParlinfoWebAPI JSON endpoints:
// refiners (parliament options), people search results and person profiles.
package ca

import (
	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// RefinersURL is the seed of the Canadian crawl.
const RefinersURL = "https://lop.parl.ca/ParlinfoWebAPI/Refiner/GetRefiners"

const (
	parliamentRefiner = "Parliament"
	currentOption     = "Currently in Office"
	currentTerm       = "current"
	classJoin         = "|"
)

// Person columns copied from search results, in output order.
var (
	RegularColumns = []string{
		"PersonId", "LastName", "UsedFirstName", "StraightDisplayName", "Gender", "LanguageEn",
		"PartyEn", "ConstituencyEn", "ProvinceEn", "TypeOfParliamentarianEn",
		"DateOfBirth", "DateOfBirthIsApproximate",
		"CityOfBirthEn", "ProvinceOfBirthEn", "CountryOfBirthEn", "IsCanadianOrigin", "DiedInOffice",
	}
	DeathColumns = []string{"DateOfDeath", "DeceasedOnDuty"}
)

// JSONHeaders are sent with every ParlinfoWebAPI request; without them the
// API answers with XML.
func JSONHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// Rules returns the rule for every Canadian document type.
func Rules() map[crawler.DocumentType]crawler.Rule {
	return map[crawler.DocumentType]crawler.Rule{
		crawler.DocCARefiners: crawler.RuleFunc(ExtractRefiners),
		crawler.DocCAPeople:   crawler.RuleFunc(ExtractPeople),
		crawler.DocCAProfile:  crawler.RuleFunc(ExtractProfile),
	}
}

func jsonRequest(rawURL string, docType crawler.DocumentType, ctx crawler.RequestContext) crawler.Request {
	req := crawler.NewRequest(rawURL, docType)
	req.Context = ctx
	req.Headers = JSONHeaders()
	return req
}
