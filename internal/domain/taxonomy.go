package domain

// Category is a top-level taxonomy grouping, e.g. a commodity class
type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Parts    []Part `json:"parts"`
}

// Part is a taxonomy leaf a product is classified into.
// Parts are matched in Position order and the first match wins, so
// the order of a category's parts is meaningful configuration.
type Part struct {
	ID         int64   `json:"id"`
	CategoryID int64   `json:"categoryId"`
	Name       string  `json:"name"`
	Position   int     `json:"position"`
	Aliases    []Alias `json:"aliases,omitempty"`
}

// Alias is an alternate surface string of a Part.
// An anti alias vetoes a match for its own Part only.
type Alias struct {
	ID     int64  `json:"id"`
	PartID int64  `json:"partId"`
	Name   string `json:"name"`
	Anti   bool   `json:"anti"`
}

// PartByID returns the category's part with the given id
func (c *Category) PartByID(id int64) (*Part, bool) {
	for i := range c.Parts {
		if c.Parts[i].ID == id {
			return &c.Parts[i], true
		}
	}
	return nil, false
}

// PartNames lists part names in declaration order
func (c *Category) PartNames() []string {
	names := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		names[i] = p.Name
	}
	return names
}

// Origin is a canonical provenance label
type Origin string

// Closed set of canonical origins
const (
	OriginTaiwan    Origin = "臺灣"
	OriginAustralia Origin = "澳洲"
	OriginChina     Origin = "中國"
	OriginUSA       Origin = "美國"
	OriginJapan     Origin = "日本"
	OriginKorea     Origin = "韓國"
	OriginOther     Origin = "其他"
)

var origins = []Origin{
	OriginTaiwan, OriginAustralia, OriginChina, OriginUSA,
	OriginJapan, OriginKorea, OriginOther,
}

// Origins returns every canonical origin, domestic first and catch-all last
func Origins() []Origin {
	out := make([]Origin, len(origins))
	copy(out, origins)
	return out
}

// ParseOrigin reports whether s names a canonical origin
func ParseOrigin(s string) (Origin, bool) {
	for _, o := range origins {
		if string(o) == s {
			return o, true
		}
	}
	return "", false
}

// Source is a named retailer or market
type Source struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
