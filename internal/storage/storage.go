// Package storage names persisted profiles. Every ProfileStore backend that
// keeps profiles as files or objects uses the same
// "<profile type>/<id>-<display>.json" layout so a store directory can be
// copied to a bucket and back. Ids without a profile type live at the top
// level.
package storage

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

const (
	profileExt = ".json"
	claimExt   = ".claim"
)

var profileFile = regexp.MustCompile(`^([0-9A-Za-z_%]+)-(.+)\.json$`)

// ValidateKey rejects keys that cannot be stored.
func ValidateKey(key crawler.ProfileKey) error {
	if strings.TrimSpace(key.EntityID) == "" {
		return fmt.Errorf("profile entity id is required")
	}
	return nil
}

// ProfileFileName returns the slash-separated file or object name a profile
// is stored under, relative to the store root.
func ProfileFileName(key crawler.ProfileKey) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return ProfilePrefix(key.EntityID) + displayPart(key.DisplayName, key.Entity()) + profileExt, nil
}

// ProfilePrefix is the relative name prefix shared by every file stored for
// the scoped id.
func ProfilePrefix(id string) string {
	t, entity := crawler.SplitProfileID(id)
	if t == "" {
		return IDPrefix(entity)
	}
	return string(t) + "/" + IDPrefix(entity)
}

// ClaimName is the marker a writer creates exclusively before publishing a
// profile, so only one display name is ever stored per id.
func ClaimName(id string) string {
	return ProfilePrefix(id) + claimExt
}

// IDPrefix is the name prefix shared by every file stored for entityID.
// Characters other than letters, digits and underscore are percent-encoded,
// so the first hyphen always ends the id.
func IDPrefix(entityID string) string {
	var b strings.Builder
	for i := 0; i < len(entityID); i++ {
		c := entityID[i]
		if isIDChar(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	b.WriteByte('-')
	return b.String()
}

// ParseProfileFileName is the inverse of ProfileFileName. It accepts a bare
// file name or one under a profile type directory. ok is false for names that
// are not profile files.
func ParseProfileFileName(name string) (crawler.ProfileKey, bool) {
	var scope crawler.DocumentType
	if dir, file, found := strings.Cut(name, "/"); found {
		scope = crawler.DocumentType(dir)
		if !scope.IsProfile() {
			return crawler.ProfileKey{}, false
		}
		name = file
	}
	m := profileFile.FindStringSubmatch(name)
	if m == nil {
		return crawler.ProfileKey{}, false
	}
	id, ok := unescapeID(m[1])
	if !ok {
		return crawler.ProfileKey{}, false
	}
	return crawler.ProfileKey{EntityID: crawler.ProfileID(scope, id), DisplayName: m[2]}, true
}

// SortKeys orders keys by display name, then id.
func SortKeys(keys []crawler.ProfileKey) {
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].DisplayName != keys[j].DisplayName {
			return keys[i].DisplayName < keys[j].DisplayName
		}
		return keys[i].EntityID < keys[j].EntityID
	})
}

func displayPart(display, fallback string) string {
	display = strings.TrimSpace(display)
	if display == "" {
		display = fallback
	}
	return strings.NewReplacer("/", "_", `\`, "_", "\x00", "").Replace(display)
}

func isIDChar(c byte) bool {
	return c == '_' || ('0' <= c && c <= '9') || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func unescapeID(s string) (string, bool) {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '%' {
			b.WriteByte(s[i])
			continue
		}
		if i+2 >= len(s) {
			return "", false
		}
		c, err := strconv.ParseUint(s[i+1:i+3], 16, 8)
		if err != nil {
			return "", false
		}
		b.WriteByte(byte(c))
		i += 2
	}
	return b.String(), true
}
