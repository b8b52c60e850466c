package moderation

import (
	"regexp"
	"unicode"

	"sanctuary/domain"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Prefilter is the synchronous, zero-latency first tier: an Aho-Corasick
// automaton over a normalized crisis lexicon plus a set of toxicity regexes.
// It runs on the send path before any broadcast, so it must stay cheap.
type Prefilter struct {
	matcher  *goahocorasick.Machine
	patterns []*regexp.Regexp
}

// Hit is the prefilter verdict for one message.
type Hit struct {
	Crisis   bool
	Toxic    bool
	Terms    []string
	Severity domain.Severity
	Method   domain.DetectionMethod
}

// Matched reports whether the prefilter found anything at all.
func (h Hit) Matched() bool { return h.Crisis || h.Toxic }

// NewPrefilter builds the automaton from a normalized version of the crisis
// term list and compiles the toxicity regexes.
func NewPrefilter(data *LexiconData) (*Prefilter, error) {
	terms := make([][]rune, len(data.CrisisTerms))
	for i, term := range data.CrisisTerms {
		terms[i] = normalizeRunes([]rune(term))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(terms); err != nil {
		return nil, err
	}

	patterns := make([]*regexp.Regexp, 0, len(data.ToxicityPatterns))
	for _, p := range data.ToxicityPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return &Prefilter{matcher: m, patterns: patterns}, nil
}

// Scan checks the content against the crisis lexicon first, then the
// toxicity patterns. A crisis hit is always critical; a pattern hit is high.
func (p *Prefilter) Scan(content string) Hit {
	norm := normalizeRunes([]rune(content))
	if len(norm) > 0 {
		spans := p.matcher.MultiPatternSearch(norm, false)
		if len(spans) > 0 {
			hit := Hit{
				Crisis:   true,
				Severity: domain.SeverityCritical,
				Method:   domain.MethodKeyword,
			}
			for _, span := range spans {
				hit.Terms = append(hit.Terms, string(span.Word))
			}
			return hit
		}
	}

	for _, re := range p.patterns {
		if match := re.FindString(content); match != "" {
			return Hit{
				Toxic:    true,
				Terms:    []string{match},
				Severity: domain.SeverityHigh,
				Method:   domain.MethodPattern,
			}
		}
	}
	return Hit{Severity: domain.SeverityNone, Method: domain.MethodKeyword}
}

// normalizeRunes applies simplification and noise removal so obfuscated
// spellings still match the lexicon.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

// isNoise identifies characters ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
