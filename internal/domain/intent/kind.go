package intent

import (
	"fmt"
	"strings"
)

// Kind is the classified purpose of a caption.
type Kind string

// Known intent kinds.
const (
	KindSearch            Kind = "search"
	KindPlaceLookup       Kind = "place"
	KindTasteAutocomplete Kind = "autocomplete_taste"
	KindLocationLookup    Kind = "location"
	KindDefine            Kind = "define"
)

var kinds = []Kind{KindSearch, KindPlaceLookup, KindTasteAutocomplete, KindLocationLookup, KindDefine}

// ParseKind parses a kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown intent kind %q", s)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, err := ParseKind(string(k))
	return err == nil
}

// Deduplicated reports whether identical concurrent searches of this kind are suppressed.
// Place lookups and autocomplete are cheap one-shot actions and always run.
func (k Kind) Deduplicated() bool {
	return k == KindSearch || k == KindLocationLookup
}

// Dispatches reports whether this kind queries the place providers.
func (k Kind) Dispatches() bool {
	return k == KindSearch || k == KindLocationLookup || k == KindPlaceLookup
}
