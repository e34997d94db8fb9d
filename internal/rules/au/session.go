package au

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
	"github.com/JakeFAU/parlcrawl/internal/extract"
)

// ExtractSession parses a Hansard session XML document. Sessions dated before
// the cutoff yield nothing. Debates nest exactly three levels deep (debate,
// subdebate.1, subdebate.2); each level collects only its own speeches.
func ExtractSession(rc crawler.RunContext, doc crawler.Document) (crawler.Extraction, error) {
	var ext crawler.Extraction
	root, err := xmlquery.Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return ext, fmt.Errorf("parse session xml %s: %w", doc.Request.URL, err)
	}
	source := doc.Request.URL

	header := xmlquery.FindOne(root, "//session.header")
	if header == nil {
		return ext, fmt.Errorf("session xml %s has no session.header", source)
	}
	rawDate := childText(header, "date")
	date := rawDate
	if t, err := extract.ParseDayFirst(rawDate); err == nil {
		if rc.BeforeCutoff(t) {
			return ext, nil
		}
		date = t.Format(extract.DateLayout)
	} else {
		ext.Warn(source, "unparseable session date %q", rawDate)
	}

	ext.Emit(crawler.NewRecord(crawler.KindSession).
		Set("sourceUrl", source).
		Set("date", date).
		Set("parliamentNum", childText(header, "parliament.no")).
		Set("periodNum", childText(header, "period.no")).
		Set("chamber", childText(header, "chamber")).
		Set("proof", childText(header, "proof")))

	s := sessionWalker{ext: &ext, source: source, date: date}
	for _, debate := range xmlquery.Find(root, "//debate") {
		s.debate(debate)
	}
	return ext, nil
}

type sessionWalker struct {
	ext    *crawler.Extraction
	source string
	date   string
}

func (s sessionWalker) debate(n *xmlquery.Node) {
	titles := []string{nodeText(xmlquery.FindOne(n, "./debateinfo/title"))}
	s.speeches(n, titles)
	for _, sub := range xmlquery.Find(n, "./subdebate.1") {
		s.subdebate1(sub, titles)
	}
}

func (s sessionWalker) subdebate1(n *xmlquery.Node, parent []string) {
	titles := appendTitle(parent, nodeText(xmlquery.FindOne(n, "./subdebateinfo/title")))
	s.speeches(n, titles)
	for _, sub := range xmlquery.Find(n, "./subdebate.2") {
		s.subdebate2(sub, titles)
	}
}

func (s sessionWalker) subdebate2(n *xmlquery.Node, parent []string) {
	titles := appendTitle(parent, nodeText(xmlquery.FindOne(n, "./subdebateinfo/title")))
	s.speeches(n, titles)
}

func (s sessionWalker) speeches(n *xmlquery.Node, titles []string) {
	for _, speech := range xmlquery.Find(n, "./speech") {
		s.speech(speech, titles)
	}
}

func (s sessionWalker) speech(n *xmlquery.Node, titles []string) {
	talker := xmlquery.FindOne(n, ".//talker")
	talkerID := childText(talker, "name.id")

	s.ext.Emit(crawler.NewRecord(crawler.KindTalker).
		Set("talkerId", talkerID).
		Set("date", s.date).
		Set("timestamp", childText(talker, "time.stamp")).
		Set("name", nodeText(findOne(talker, "./name[@role='metadata']"))).
		Set("displayName", nodeText(findOne(talker, "./name[@role='display']"))).
		Set("electorate", childText(talker, "electorate")).
		Set("party", childText(talker, "party")).
		Set("sourceUrl", s.source))

	paragraphs := xmlquery.Find(n, ".//talk.text//p")
	if len(paragraphs) == 0 {
		paragraphs = xmlquery.Find(n, ".//para")
	}
	texts := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		texts = append(texts, nodeText(p))
	}

	if talkerID == "" {
		s.ext.Warn(s.source, "speech without talker id under %q", strings.Join(titles, multiValueJoin))
	}
	s.ext.Emit(crawler.NewRecord(crawler.KindSpeech).
		Set("talkerId", talkerID).
		Set("date", s.date).
		Set("time", nodeText(xmlquery.FindOne(n, ".//*[@class='HPS-Time']"))).
		Set("debateTitles", strings.Join(titles, multiValueJoin)).
		Set("text", strings.Join(texts, "\n\n")).
		Set("sourceUrl", s.source))
}

func appendTitle(parent []string, title string) []string {
	out := make([]string, 0, len(parent)+1)
	out = append(out, parent...)
	return append(out, title)
}

func findOne(n *xmlquery.Node, expr string) *xmlquery.Node {
	if n == nil {
		return nil
	}
	return xmlquery.FindOne(n, expr)
}

func childText(n *xmlquery.Node, name string) string {
	return nodeText(findOne(n, "./"+name))
}

func nodeText(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.InnerText())
}
