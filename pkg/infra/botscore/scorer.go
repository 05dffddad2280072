// Package botscore computes a 0-100 suspicion score for a request from its
// declared client attributes and the recent request rate of its source.
// The score is a heuristic: false positives are an accepted trade-off and
// ambiguous scores get a challenge rather than a hard block downstream.
package botscore

import (
	"net/url"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/tasksats/shield/pkg/config"
)

const (
	weightMissingUserAgent    = 40
	weightAutomationUserAgent = 30
	weightDeprecatedBrowser   = 20
	weightMissingCommonHeader = 10
	weightSuspiciousHeader    = 15
	weightHighRequestRate     = 30
	weightElevatedRequestRate = 15
	weightScrapingReferrer    = 25
	weightMalformedReferrer   = 10
	weightGenericAccept       = 10

	maxScore = 100
)

// Signals is the narrowed, explicit view of a request handed to the scorer
// so it stays pure and testable against the raw header bag.
type Signals struct {
	SourceID       string
	UserAgent      string
	Accept         string
	AcceptLanguage string
	AcceptEncoding string
	Referer        string
	ForwardedFor   string
	RequestedWith  string
	Host           string
}

// Result carries the clamped score plus a human-readable tag per triggered
// rule. Reasons are for logs and metrics only, never for decisioning.
type Result struct {
	Value   int
	Reasons []string
}

type historyCounter interface {
	CountWithin(sourceID string, d time.Duration) int
}

type Scorer struct {
	cfg     config.BotConfig
	history historyCounter
}

func NewScorer(cfg config.BotConfig, history historyCounter) *Scorer {
	return &Scorer{cfg: cfg, history: history}
}

func (s *Scorer) Score(in Signals) Result {
	score := 0
	var reasons []string

	add := func(points int, reason string) {
		score += points
		reasons = append(reasons, reason)
	}

	ua := strings.TrimSpace(in.UserAgent)
	if ua == "" {
		add(weightMissingUserAgent, "missing_user_agent")
	} else {
		for _, pattern := range automationPatterns {
			if pattern.MatchString(ua) {
				add(weightAutomationUserAgent, "automation_user_agent")
				break
			}
		}
		if isDeprecatedBrowser(ua) {
			add(weightDeprecatedBrowser, "deprecated_browser")
		}
	}

	if strings.TrimSpace(in.Accept) == "" {
		add(weightMissingCommonHeader, "missing_accept_header")
	}
	if strings.TrimSpace(in.AcceptLanguage) == "" {
		add(weightMissingCommonHeader, "missing_accept_language_header")
	}
	if strings.TrimSpace(in.AcceptEncoding) == "" {
		add(weightMissingCommonHeader, "missing_accept_encoding_header")
	}

	if hopCount(in.ForwardedFor) >= 3 {
		add(weightSuspiciousHeader, "chained_proxy_hops")
	}
	if rw := strings.TrimSpace(in.RequestedWith); rw != "" && rw != "XMLHttpRequest" {
		add(weightSuspiciousHeader, "invalid_requested_with")
	}

	if s.history != nil && in.SourceID != "" {
		perMinute := s.history.CountWithin(in.SourceID, time.Minute)
		if perMinute > s.cfg.HighRatePerMinute {
			add(weightHighRequestRate, "high_request_rate")
		} else if perMinute > s.cfg.MediumRatePerMinute {
			add(weightElevatedRequestRate, "elevated_request_rate")
		}
	}

	if referer := strings.TrimSpace(in.Referer); referer != "" {
		parsed, err := url.Parse(referer)
		if err != nil || parsed.Host == "" {
			add(weightMalformedReferrer, "malformed_referrer")
		} else if !strings.EqualFold(parsed.Host, in.Host) && scrapingProxyPattern.MatchString(parsed.Host) {
			add(weightScrapingReferrer, "scraping_proxy_referrer")
		}
	}

	if strings.TrimSpace(in.Accept) == "*/*" && !cliToolPattern.MatchString(ua) {
		add(weightGenericAccept, "generic_accept")
	}

	if score > maxScore {
		score = maxScore
	}

	return Result{Value: score, Reasons: reasons}
}

// isDeprecatedBrowser flags user agents whose browser generation predates
// modern TLS and JS baselines, a common trait of replayed or fabricated UA
// strings.
func isDeprecatedBrowser(userAgent string) bool {
	ua := uasurfer.Parse(userAgent)
	major := ua.Browser.Version.Major

	switch ua.Browser.Name {
	case uasurfer.BrowserIE:
		return major <= 10
	case uasurfer.BrowserChrome:
		return major > 0 && major < 50
	case uasurfer.BrowserFirefox:
		return major > 0 && major < 45
	case uasurfer.BrowserSafari:
		return major > 0 && major < 10
	case uasurfer.BrowserOpera:
		return major > 0 && major < 36
	default:
		return false
	}
}

func hopCount(forwardedFor string) int {
	if strings.TrimSpace(forwardedFor) == "" {
		return 0
	}
	return len(strings.Split(forwardedFor, ","))
}
