package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/errors"

	"github.com/abadojack/whatlanggo"
)

// RemoteClassifier calls the remote text-safety service. The service is
// treated as an opaque capability that may be slow, unavailable, or wrong;
// every call carries a hard timeout.
type RemoteClassifier struct {
	url     string
	client  *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewRemoteClassifier(url string, timeout time.Duration, log *slog.Logger) *RemoteClassifier {
	return &RemoteClassifier{
		url:     url,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log,
	}
}

type classifyRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang,omitempty"`
}

type classifyResponse struct {
	Severity string   `json:"severity"`
	Action   string   `json:"action"`
	Topics   []string `json:"topics"`
}

func (c *RemoteClassifier) Classify(ctx context.Context, text string) (contract.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info := whatlanggo.Detect(text)
	body, err := json.Marshal(classifyRequest{Text: text, Lang: info.Lang.Iso6391()})
	if err != nil {
		return contract.Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return contract.Verdict{}, errors.ErrClassifierTimeout
		}
		return contract.Verdict{}, fmt.Errorf("%w: %v", errors.ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return contract.Verdict{}, fmt.Errorf("%w: status %d", errors.ErrClassifierUnavailable, resp.StatusCode)
	}

	var parsed classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return contract.Verdict{}, fmt.Errorf("%w: unparseable response", errors.ErrClassifierUnavailable)
	}

	severity, ok := parseSeverity(parsed.Severity)
	if !ok {
		return contract.Verdict{}, fmt.Errorf("%w: unknown severity %q", errors.ErrClassifierUnavailable, parsed.Severity)
	}

	action := domain.ModerationAction(parsed.Action)
	switch action {
	case domain.ActionNone, domain.ActionWarning, domain.ActionMute, domain.ActionRemove, domain.ActionEscalate:
	default:
		action = domain.ActionFor(severity)
	}
	return contract.Verdict{Severity: severity, Action: action, Topics: parsed.Topics}, nil
}

func parseSeverity(s string) (domain.Severity, bool) {
	switch domain.Severity(s) {
	case domain.SeverityNone, domain.SeverityLow, domain.SeverityMedium,
		domain.SeverityHigh, domain.SeverityCritical:
		return domain.Severity(s), true
	default:
		return "", false
	}
}

// LocalHeuristicClassifier re-runs the prefilter-class heuristics as a
// classifier. It exists so the fallback path reuses the exact same logic
// instead of re-implementing it.
type LocalHeuristicClassifier struct {
	prefilter *Prefilter
}

func NewLocalHeuristicClassifier(prefilter *Prefilter) *LocalHeuristicClassifier {
	return &LocalHeuristicClassifier{prefilter: prefilter}
}

func (c *LocalHeuristicClassifier) Classify(_ context.Context, text string) (contract.Verdict, error) {
	hit := c.prefilter.Scan(text)
	if hit.Crisis {
		// Fail-closed: anything crisis-shaped always escalates.
		return contract.Verdict{
			Severity: domain.SeverityCritical,
			Action:   domain.ActionEscalate,
			Topics:   hit.Terms,
		}, nil
	}
	if hit.Toxic {
		return contract.Verdict{
			Severity: hit.Severity,
			Action:   domain.ActionFor(hit.Severity),
			Topics:   hit.Terms,
		}, nil
	}
	// Fail-open for ordinary content.
	return contract.Verdict{Severity: domain.SeverityLow, Action: domain.ActionNone}, nil
}

// Fallback composes two classifiers: if the primary errors, times out, or
// returns garbage, the secondary decides. With Remote as primary and the
// local heuristic as secondary this yields the fail-open/fail-closed policy
// without duplicating heuristic code.
type Fallback struct {
	primary   contract.Classifier
	secondary contract.Classifier
	log       *slog.Logger
}

func NewFallback(primary, secondary contract.Classifier, log *slog.Logger) *Fallback {
	return &Fallback{primary: primary, secondary: secondary, log: log}
}

func (f *Fallback) Classify(ctx context.Context, text string) (contract.Verdict, error) {
	verdict, err := f.primary.Classify(ctx, text)
	if err == nil {
		return verdict, nil
	}
	f.log.Warn("classifier fallback engaged", "error", err)
	return f.secondary.Classify(ctx, text)
}
