package moderation

import (
	"testing"

	"sanctuary/domain"

	"github.com/stretchr/testify/require"
)

func newTestPrefilter(t *testing.T) *Prefilter {
	t.Helper()
	data, err := LoadLexicon()
	require.NoError(t, err)
	prefilter, err := NewPrefilter(data)
	require.NoError(t, err)
	return prefilter
}

func TestPrefilter_Scan(t *testing.T) {
	prefilter := newTestPrefilter(t)

	tests := []struct {
		name     string
		content  string
		crisis   bool
		toxic    bool
		severity domain.Severity
	}{
		{
			name:     "plain crisis phrase",
			content:  "honestly I just want to end my life",
			crisis:   true,
			severity: domain.SeverityCritical,
		},
		{
			name:     "crisis phrase split by punctuation",
			content:  "i want to end... my... life",
			crisis:   true,
			severity: domain.SeverityCritical,
		},
		{
			name:     "leet speak obfuscation",
			content:  "i might k!ll my$elf tonight",
			crisis:   true,
			severity: domain.SeverityCritical,
		},
		{
			name:     "uppercase crisis phrase",
			content:  "I WANNA DIE",
			crisis:   true,
			severity: domain.SeverityCritical,
		},
		{
			name:     "toxicity pattern",
			content:  "you're all worthless anyway",
			toxic:    true,
			severity: domain.SeverityHigh,
		},
		{
			name:     "toxicity pattern with target",
			content:  "nobody likes you here",
			toxic:    true,
			severity: domain.SeverityHigh,
		},
		{
			name:     "ordinary supportive message",
			content:  "thank you all for listening tonight, it really helped",
			severity: domain.SeverityNone,
		},
		{
			name:     "empty message",
			content:  "",
			severity: domain.SeverityNone,
		},
		{
			name:     "benign use of overlapping words",
			content:  "my plants nearly died this summer",
			severity: domain.SeverityNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			hit := prefilter.Scan(tt.content)

			req.Equal(tt.crisis, hit.Crisis)
			req.Equal(tt.toxic, hit.Toxic)
			req.Equal(tt.severity, hit.Severity)
			if tt.crisis || tt.toxic {
				req.True(hit.Matched())
				req.NotEmpty(hit.Terms)
			} else {
				req.False(hit.Matched())
			}
		})
	}
}

func TestPrefilter_Crisis_Wins_Over_Toxicity(t *testing.T) {
	req := require.New(t)
	prefilter := newTestPrefilter(t)

	// Content matching both tiers reports the crisis, which carries the
	// higher severity.
	hit := prefilter.Scan("nobody likes you and i want to die")

	req.True(hit.Crisis)
	req.Equal(domain.SeverityCritical, hit.Severity)
	req.Equal(domain.MethodKeyword, hit.Method)
}

func TestLoadLexicon(t *testing.T) {
	req := require.New(t)

	data, err := LoadLexicon()

	req.NoError(err)
	req.NotEmpty(data.CrisisTerms)
	req.NotEmpty(data.ToxicityPatterns)
}
