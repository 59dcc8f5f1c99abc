package render

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	slugTagRe   = regexp.MustCompile(`(?i)<[!/a-z].*?>`)
	slugPunctRe = regexp.MustCompile(`[\x{2000}-\x{206F}\x{2E00}-\x{2E7F}\\'!"#$%&()*+,./:;<=>?@\[\]^` + "`" + `{|}~]`)
	slugSpaceRe = regexp.MustCompile(`\s`)
)

// Slugger allocates heading anchors. Slugs are unique only within one
// Slugger; collisions get a numeric "-N" suffix in allocation order.
type Slugger struct {
	seen map[string]int
}

// NewSlugger returns an empty Slugger.
func NewSlugger() *Slugger {
	return &Slugger{seen: make(map[string]int)}
}

// Slug returns the next free slug for text.
func (s *Slugger) Slug(text string) string {
	base := serializeSlug(text)
	slug := base
	n := 0
	if _, taken := s.seen[slug]; taken {
		n = s.seen[base]
		for {
			n++
			slug = base + "-" + strconv.Itoa(n)
			if _, taken := s.seen[slug]; !taken {
				break
			}
		}
	}
	s.seen[base] = n
	s.seen[slug] = 0
	return slug
}

func serializeSlug(text string) string {
	v := strings.TrimSpace(strings.ToLower(norm.NFC.String(text)))
	v = slugTagRe.ReplaceAllString(v, "")
	v = slugPunctRe.ReplaceAllString(v, "")
	return slugSpaceRe.ReplaceAllString(v, "-")
}
