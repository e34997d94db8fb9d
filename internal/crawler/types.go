package crawler

import (
	"fmt"
	"strings"
	"time"
)

// DocumentType tags a Request with the rule its response is parsed by.
type DocumentType string

// Document types known to the engine. The set is closed: rules are looked up
// by these values and anything else is rejected at enqueue time.
const (
	DocAUMembers         DocumentType = "au.members"
	DocAUParliamentarian DocumentType = "au.parliamentarian"
	DocAUSpeeches        DocumentType = "au.speeches"
	DocAUSession         DocumentType = "au.session"
	DocAUBiographies     DocumentType = "au.biographies"
	DocAUBiography       DocumentType = "au.biography"
	DocAUBills           DocumentType = "au.bills"
	DocAUBill            DocumentType = "au.bill"
	DocNZMembers         DocumentType = "nz.members"
	DocNZProfile         DocumentType = "nz.profile"
	DocCARefiners        DocumentType = "ca.refiners"
	DocCAPeople          DocumentType = "ca.people"
	DocCAProfile         DocumentType = "ca.profile"
)

var documentTypes = map[DocumentType]bool{
	DocAUMembers:         false,
	DocAUParliamentarian: true,
	DocAUSpeeches:        false,
	DocAUSession:         false,
	DocAUBiographies:     false,
	DocAUBiography:       true,
	DocAUBills:           false,
	DocAUBill:            false,
	DocNZMembers:         false,
	DocNZProfile:         true,
	DocCARefiners:        false,
	DocCAPeople:          false,
	DocCAProfile:         true,
}

// Valid reports whether t is one of the declared document types.
func (t DocumentType) Valid() bool {
	_, ok := documentTypes[t]
	return ok
}

// IsProfile reports whether documents of this type are persisted per entity
// and therefore gated by the ProfileStore.
func (t DocumentType) IsProfile() bool {
	return documentTypes[t]
}

// DocumentTypes returns every declared document type.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, 0, len(documentTypes))
	for t := range documentTypes {
		out = append(out, t)
	}
	return out
}

// RequestContext is the state a parent document hands to its children.
type RequestContext struct {
	Term         string
	Date         string
	TalkerID     string
	DebateTitles []string
	EntityID     string
	DisplayName  string
}

// WithEntity returns a copy of c carrying the entity identity of a profile.
func (c RequestContext) WithEntity(id, displayName string) RequestContext {
	out := c.clone()
	out.EntityID = id
	out.DisplayName = displayName
	return out
}

// WithTerm returns a copy of c tagged with a legislative term.
func (c RequestContext) WithTerm(term string) RequestContext {
	out := c.clone()
	out.Term = term
	return out
}

// WithTitle returns a copy of c with title appended to the hierarchy.
func (c RequestContext) WithTitle(title string) RequestContext {
	out := c.clone()
	out.DebateTitles = append(out.DebateTitles, title)
	return out
}

// WithDate returns a copy of c carrying the document date.
func (c RequestContext) WithDate(date string) RequestContext {
	out := c.clone()
	out.Date = date
	return out
}

func (c RequestContext) clone() RequestContext {
	out := c
	out.DebateTitles = append([]string(nil), c.DebateTitles...)
	return out
}

// Request is a unit of crawl work. It is treated as immutable once created.
type Request struct {
	URL     string
	Type    DocumentType
	Context RequestContext
	// Headers are sent verbatim; JSON endpoints use them to ask for JSON.
	Headers map[string]string
}

// NewRequest builds a Request with an empty context.
func NewRequest(rawURL string, docType DocumentType) Request {
	return Request{URL: rawURL, Type: docType}
}

// Key identifies the request for at-most-once dispatch.
func (r Request) Key() string {
	normalized, err := NormalizeURL(r.URL)
	if err != nil {
		normalized = r.URL
	}
	return string(r.Type) + " " + normalized
}

// Validate rejects requests the scheduler cannot route.
func (r Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return fmt.Errorf("request url is required")
	}
	if !r.Type.Valid() {
		return fmt.Errorf("unknown document type %q", r.Type)
	}
	if r.Type.IsProfile() && strings.TrimSpace(r.Context.EntityID) == "" {
		return fmt.Errorf("profile request %s has no entity id", r.URL)
	}
	return nil
}

// Document is a fetched (or store-loaded) payload together with its Request.
type Document struct {
	Request     Request
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	FromStore   bool
}

// RecordKind tags the entity variant a Record describes.
type RecordKind string

// Record kinds emitted by the extraction rules.
const (
	KindPerson       RecordKind = "person"
	KindTerm         RecordKind = "term"
	KindRole         RecordKind = "role"
	KindBill         RecordKind = "bill"
	KindBillProgress RecordKind = "bill_progress"
	KindSession      RecordKind = "session"
	KindTalker       RecordKind = "talker"
	KindSpeech       RecordKind = "speech"
)

// Record is one extracted entity row. Fields hold scalar or delimiter-joined
// multi-value strings.
type Record struct {
	Kind   RecordKind
	Fields map[string]string
}

// NewRecord returns a Record with an initialized field map.
func NewRecord(kind RecordKind) Record {
	return Record{Kind: kind, Fields: make(map[string]string)}
}

// Set assigns a field and returns the record for chaining.
func (r Record) Set(field, value string) Record {
	r.Fields[field] = value
	return r
}

// Get returns the field value or the empty string.
func (r Record) Get(field string) string {
	return r.Fields[field]
}

// Key returns the natural join key of the record.
func (r Record) Key() string {
	switch r.Kind {
	case KindPerson, KindRole:
		return firstNonEmpty(r.Fields, "PersonId", "id", "url", "name")
	case KindTerm:
		return firstNonEmpty(r.Fields, "Parliament", "OptionId")
	case KindBill, KindBillProgress:
		return r.Fields["permalink"]
	case KindSession:
		return r.Fields["sourceUrl"]
	case KindTalker, KindSpeech:
		return r.Fields["talkerId"] + "@" + r.Fields["date"]
	default:
		return ""
	}
}

func firstNonEmpty(fields map[string]string, keys ...string) string {
	for _, k := range keys {
		if v := fields[k]; v != "" {
			return v
		}
	}
	return ""
}

// Extraction is the output of a Rule applied to a Document.
type Extraction struct {
	Records   []Record
	FollowUps []Request
	Warnings  []ParseWarning
}

// Emit appends records.
func (e *Extraction) Emit(records ...Record) {
	e.Records = append(e.Records, records...)
}

// Follow appends follow-up requests.
func (e *Extraction) Follow(requests ...Request) {
	e.FollowUps = append(e.FollowUps, requests...)
}

// Warn records a recoverable parse problem against the document URL.
func (e *Extraction) Warn(url, format string, args ...any) {
	e.Warnings = append(e.Warnings, ParseWarning{URL: url, Message: fmt.Sprintf(format, args...)})
}

// ProfileKey names a persisted profile. EntityID is the store-wide id built
// by ProfileID; sites reuse member codes across profile types, so the bare
// entity id alone is not unique.
type ProfileKey struct {
	EntityID    string
	DisplayName string
}

// Type returns the profile document type the key is scoped to, or "" for
// unscoped keys.
func (k ProfileKey) Type() DocumentType {
	t, _ := SplitProfileID(k.EntityID)
	return t
}

// Entity returns the site's own identifier for the profile.
func (k ProfileKey) Entity() string {
	_, id := SplitProfileID(k.EntityID)
	return id
}

// ProfileID scopes entityID to a profile document type, e.g.
// "au.biography/00AMV".
func ProfileID(t DocumentType, entityID string) string {
	if t == "" {
		return entityID
	}
	return string(t) + "/" + entityID
}

// SplitProfileID is the inverse of ProfileID. Ids without a known profile
// type prefix are returned unscoped.
func SplitProfileID(id string) (DocumentType, string) {
	prefix, rest, ok := strings.Cut(id, "/")
	if !ok || !DocumentType(prefix).IsProfile() {
		return "", id
	}
	return DocumentType(prefix), rest
}

// TermSelection picks legislative terms for term-enumerating sites.
type TermSelection struct {
	Start          int
	End            int
	IncludeCurrent bool
}

// Includes reports whether a numbered (or current) term is selected.
func (s TermSelection) Includes(number int, current bool) bool {
	if current {
		return s.IncludeCurrent
	}
	return number > 0 && number >= s.Start && number <= s.End
}

// RunContext carries the immutable per-run knobs handed to every component.
type RunContext struct {
	RunID      string
	Site       string
	Cutoff     time.Time
	Terms      TermSelection
	RoleFields []string
	StartedAt  time.Time
}

// BeforeCutoff reports whether t falls strictly before the run cutoff.
func (rc RunContext) BeforeCutoff(t time.Time) bool {
	if rc.Cutoff.IsZero() {
		return false
	}
	return t.Before(rc.Cutoff)
}
