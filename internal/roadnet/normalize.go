package roadnet

import (
	"regexp"
	"strings"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// roadTypeSuffixes are trailing road-type words stripped during
// normalization, per the lookup rule order.
var roadTypeSuffixes = map[string]bool{
	"RD": true, "ROAD": true, "AVE": true, "AVENUE": true,
	"ST": true, "STREET": true, "DR": true, "DRIVE": true,
	"HWY": true, "HIGHWAY": true, "LN": true, "LANE": true, "BLVD": true,
}

// fmAttached matches a bare "FM123" form with no separating space.
var fmAttached = regexp.MustCompile(`^FM(\d+)$`)

// prefixFamilies lists the canonical prefix families in alphabetical order —
// the order in which variant generation retries a lookup miss.
var prefixFamilies = []string{"CR", "FM", "SH", "US"}

type prefixPattern struct {
	re    *regexp.Regexp
	canon string
}

// prefixPatterns canonicalize a "PREFIX NUMBER" road name to its family.
var prefixPatterns = []prefixPattern{
	{regexp.MustCompile(`^(?:HWY|SH|TX)[\s-]*(\d+)$`), "SH"},
	{regexp.MustCompile(`^HIGHWAY\s+(\d+)$`), "SH"},
	{regexp.MustCompile(`^US[\s-]*(\d+)$`), "US"},
	{regexp.MustCompile(`^US HWY\s+(\d+)$`), "US"},
	{regexp.MustCompile(`^FM[\s-]*(\d+)$`), "FM"},
	{regexp.MustCompile(`^FARM TO MARKET\s+(\d+)$`), "FM"},
	{regexp.MustCompile(`^CR[\s-]*(\d+)$`), "CR"},
	{regexp.MustCompile(`^COUNTY ROAD\s+(\d+)$`), "CR"},
}

var canonicalForm = regexp.MustCompile(`^(CR|FM|SH|US) (\d+)$`)

// Normalize reduces a road name to its canonical lookup form: uppercase,
// trimmed, whitespace-collapsed, trailing road-type word stripped, and
// prefix family canonicalized (HWY/SH/TX -> SH, US -> US, FM -> FM,
// CR -> CR).
func Normalize(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = whitespaceRun.ReplaceAllString(s, " ")
	if m := fmAttached.FindStringSubmatch(s); m != nil {
		s = "FM " + m[1]
	}
	s = stripTrailingType(s)
	s = canonicalizePrefix(s)
	return s
}

func stripTrailingType(s string) string {
	tokens := strings.Split(s, " ")
	if len(tokens) < 2 {
		return s
	}
	last := tokens[len(tokens)-1]
	if roadTypeSuffixes[last] {
		return strings.Join(tokens[:len(tokens)-1], " ")
	}
	return s
}

func canonicalizePrefix(s string) string {
	for _, p := range prefixPatterns {
		if m := p.re.FindStringSubmatch(s); m != nil {
			return p.canon + " " + m[1]
		}
	}
	return s
}

// Variants returns the deterministic, alphabetically-ordered list of
// alternate canonical names to retry when a direct lookup on name misses —
// swapping the prefix family while holding the road number fixed. Returns
// nil if name is not in "FAMILY NUMBER" canonical form.
func Variants(canonicalName string) []string {
	m := canonicalForm.FindStringSubmatch(canonicalName)
	if m == nil {
		return nil
	}
	family, number := m[1], m[2]
	var out []string
	for _, f := range prefixFamilies {
		if f == family {
			continue
		}
		out = append(out, f+" "+number)
	}
	return out
}
