package moderation

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"sanctuary/contract"
	"sanctuary/domain"
	"sanctuary/errors"

	"github.com/stretchr/testify/require"
)

func TestRemoteClassifier_Valid_Response(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body classifyRequest
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("this message is fine", body.Text)
		_ = json.NewEncoder(w).Encode(classifyResponse{
			Severity: "medium",
			Action:   "warning",
			Topics:   []string{"conflict"},
		})
	}))
	defer server.Close()

	classifier := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	verdict, err := classifier.Classify(context.Background(), "this message is fine")

	req.NoError(err)
	req.Equal(domain.SeverityMedium, verdict.Severity)
	req.Equal(domain.ActionWarning, verdict.Action)
	req.Equal([]string{"conflict"}, verdict.Topics)
}

func TestRemoteClassifier_Unknown_Action_Falls_Back_To_Policy(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Severity: "high", Action: "shadowban"})
	}))
	defer server.Close()

	classifier := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	verdict, err := classifier.Classify(context.Background(), "some text")

	req.NoError(err)
	req.Equal(domain.SeverityHigh, verdict.Severity)
	req.Equal(domain.ActionWarning, verdict.Action)
}

func TestRemoteClassifier_Unknown_Severity_Is_Unusable(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Severity: "catastrophic"})
	}))
	defer server.Close()

	classifier := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	_, err := classifier.Classify(context.Background(), "some text")

	req.ErrorIs(err, errors.ErrClassifierUnavailable)
}

func TestRemoteClassifier_Timeout(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	classifier := NewRemoteClassifier(server.URL, 20*time.Millisecond, slog.Default())
	_, err := classifier.Classify(context.Background(), "some text")

	req.ErrorIs(err, errors.ErrClassifierTimeout)
}

func TestRemoteClassifier_Unavailable(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	classifier := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	_, err := classifier.Classify(context.Background(), "some text")

	req.ErrorIs(err, errors.ErrClassifierUnavailable)
}

func TestLocalHeuristicClassifier_Fails_Closed_On_Crisis(t *testing.T) {
	req := require.New(t)
	classifier := NewLocalHeuristicClassifier(newTestPrefilter(t))

	verdict, err := classifier.Classify(context.Background(), "i have no reason to live")

	req.NoError(err)
	req.Equal(domain.SeverityCritical, verdict.Severity)
	req.Equal(domain.ActionEscalate, verdict.Action)
}

func TestLocalHeuristicClassifier_Fails_Open_On_Ordinary_Content(t *testing.T) {
	req := require.New(t)
	classifier := NewLocalHeuristicClassifier(newTestPrefilter(t))

	verdict, err := classifier.Classify(context.Background(), "today was actually a good day")

	req.NoError(err)
	req.Equal(domain.SeverityLow, verdict.Severity)
	req.Equal(domain.ActionNone, verdict.Action)
}

func TestFallback_Uses_Secondary_When_Primary_Fails(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	remote := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	local := NewLocalHeuristicClassifier(newTestPrefilter(t))
	fallback := NewFallback(remote, local, slog.Default())

	verdict, err := fallback.Classify(context.Background(), "i want to end it all")

	req.NoError(err)
	req.Equal(domain.SeverityCritical, verdict.Severity)
	req.Equal(domain.ActionEscalate, verdict.Action)
}

func TestFallback_Prefers_Primary(t *testing.T) {
	req := require.New(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Severity: "none", Action: "none"})
	}))
	defer server.Close()

	remote := NewRemoteClassifier(server.URL, time.Second, slog.Default())
	local := NewLocalHeuristicClassifier(newTestPrefilter(t))
	fallback := NewFallback(remote, local, slog.Default())

	verdict, err := fallback.Classify(context.Background(), "completely ordinary")

	req.NoError(err)
	req.Equal(domain.SeverityNone, verdict.Severity)
}

var _ contract.Classifier = (*Fallback)(nil)
