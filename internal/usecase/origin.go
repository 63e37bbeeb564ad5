package usecase

import (
	"strings"

	"github.com/msrptw/backend/internal/domain"
)

// OriginKeyword maps a place or keyword substring to a canonical origin
type OriginKeyword struct {
	Keyword string
	Origin  domain.Origin
}

// DefaultOriginTable is checked in order and the first contained keyword wins.
// Keywords are stored in normalized form (臺, not 台). Keep more specific keys
// ahead of broader ones that could also be contained in the same text.
var DefaultOriginTable = []OriginKeyword{
	// Domestic cities, counties and domestic-only labels
	{"臺北", domain.OriginTaiwan}, {"臺中", domain.OriginTaiwan}, {"基隆", domain.OriginTaiwan},
	{"臺南", domain.OriginTaiwan}, {"高雄", domain.OriginTaiwan}, {"新北", domain.OriginTaiwan},
	{"桃園", domain.OriginTaiwan}, {"嘉義", domain.OriginTaiwan}, {"新竹", domain.OriginTaiwan},
	{"苗栗", domain.OriginTaiwan}, {"南投", domain.OriginTaiwan}, {"彰化", domain.OriginTaiwan},
	{"屏東", domain.OriginTaiwan}, {"花蓮", domain.OriginTaiwan}, {"臺東", domain.OriginTaiwan},
	{"金門", domain.OriginTaiwan}, {"澎湖", domain.OriginTaiwan}, {"臺灣", domain.OriginTaiwan},
	{"西螺", domain.OriginTaiwan}, {"美濃", domain.OriginTaiwan}, {"雲林", domain.OriginTaiwan},
	{"宜蘭", domain.OriginTaiwan}, {"履歷", domain.OriginTaiwan}, {"有機", domain.OriginTaiwan},

	{"澳洲", domain.OriginAustralia},
	{"中國", domain.OriginChina},
	{"美國", domain.OriginUSA},
	{"日本", domain.OriginJapan}, {"富士", domain.OriginJapan},
	{"韓國", domain.OriginKorea},

	// Named foreign origins without a canonical label of their own
	{"進口", domain.OriginOther}, {"越南", domain.OriginOther}, {"紐西", domain.OriginOther},
	{"南非", domain.OriginOther}, {"智利", domain.OriginOther}, {"泰國", domain.OriginOther},
}

// OriginResolver maps free-form origin text to a canonical origin
type OriginResolver struct {
	table []OriginKeyword
}

// NewOriginResolver creates a resolver over an ordered keyword table.
// Keywords are normalized so callers may pass either glyph variant.
func NewOriginResolver(table []OriginKeyword) *OriginResolver {
	normalized := make([]OriginKeyword, 0, len(table))
	for _, k := range table {
		key := Normalize(k.Keyword)
		if key == "" {
			continue
		}
		normalized = append(normalized, OriginKeyword{Keyword: key, Origin: k.Origin})
	}
	return &OriginResolver{table: normalized}
}

var defaultOriginResolver = NewOriginResolver(DefaultOriginTable)

// ResolveOrigin resolves s with the default keyword table
func ResolveOrigin(s string, def domain.Origin) domain.Origin {
	return defaultOriginResolver.Resolve(s, def)
}

// Resolve returns the origin of the first table keyword contained in the
// normalized text. Without a match it returns def, or OriginOther when def is
// empty or not a canonical origin.
func (r *OriginResolver) Resolve(s string, def domain.Origin) domain.Origin {
	s = Normalize(s)
	if s != "" {
		for _, k := range r.table {
			if strings.Contains(s, k.Keyword) {
				return k.Origin
			}
		}
	}

	if o, ok := domain.ParseOrigin(Normalize(string(def))); ok {
		return o
	}
	return domain.OriginOther
}
