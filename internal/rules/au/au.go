// Package au parses the Australian Parliament sites: the parlinfo search and
// handbook pages, aph.gov.au member profiles and Hansard session XML.
package au

import (
	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// Seed URLs.
const (
	MembersURL      = "https://parlinfo.aph.gov.au/parlInfo/search/summary/summary.w3p;adv=yes;orderBy=alphaAss;page=0;query=Dataset%3Amembers;resCount=200"
	BiographiesURL  = "https://parlinfo.aph.gov.au/parlInfo/guide/biography.w3p;list=3"
	PrivateBillsURL = "https://parlinfo.aph.gov.au/parlInfo/search/summary/summary.w3p;adv=yes;orderBy=date-eFirst;page=0;query=Dataset%3AbillsCurBef,billsCurNotBef,billsPrevParl%20Dataset_Phrase%3A%22billhome%22%20BillType_Phrase%3A%22private%22;resCount=200"

	biographyURLFormat = "https://parlinfo.aph.gov.au/parlInfo/search/display/display.w3p;query=Id%%3A%%22handbook%%2Fallmps%%2F%s%%22"
	speechesPageSize   = "&ps=100"
	multiValueJoin     = "||"
)

// Rules returns the rule for every Australian document type.
func Rules() map[crawler.DocumentType]crawler.Rule {
	return map[crawler.DocumentType]crawler.Rule{
		crawler.DocAUMembers:         crawler.RuleFunc(ExtractMembers),
		crawler.DocAUParliamentarian: crawler.RuleFunc(ExtractParliamentarian),
		crawler.DocAUSpeeches:        crawler.RuleFunc(ExtractSpeeches),
		crawler.DocAUSession:         crawler.RuleFunc(ExtractSession),
		crawler.DocAUBiographies:     crawler.RuleFunc(ExtractBiographies),
		crawler.DocAUBiography:       crawler.RuleFunc(ExtractBiography),
		crawler.DocAUBills:           crawler.RuleFunc(ExtractBills),
		crawler.DocAUBill:            crawler.RuleFunc(ExtractBill),
	}
}
