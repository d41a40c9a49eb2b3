// Package enhance implements the entity enhancement stage: a
// deterministic, rule-based NLP pass over the transcript that re-derives
// date/time spans and location entities independently of the generative
// extraction stage. Its output is advisory; the orchestrator merges it
// under a strict precedence rule.
package enhance

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"
	"time"
)

// TimeSpan is a resolved absolute time window.
type TimeSpan struct {
	Start  time.Time
	End    time.Time
	AllDay bool
}

// Patch is the partial result of the enhancement pass. Nil fields mean
// the rules found nothing; they never mean "clear the field".
type Patch struct {
	Location *string
	Span     *TimeSpan
}

// RuleEnhancer runs the regex/lexicon rule pipeline.
type RuleEnhancer struct {
	logger *slog.Logger
}

// NewRuleEnhancer creates the rule-based enhancer.
func NewRuleEnhancer(logger *slog.Logger) *RuleEnhancer {
	if logger == nil {
		logger = slog.Default()
	}
	return &RuleEnhancer{logger: logger}
}

// Enhance derives a patch from the transcript relative to now. It is a
// local computation; the context parameter keeps the stage contract
// uniform with the network-bound stages.
func (e *RuleEnhancer) Enhance(_ context.Context, transcript string, now time.Time) (Patch, error) {
	if strings.TrimSpace(transcript) == "" {
		return Patch{}, errors.New("empty transcript")
	}

	patch := Patch{
		Location: extractLocation(transcript),
		Span:     ResolveSpan(transcript, now),
	}

	e.logger.Debug("enhancement pass complete",
		"has_location", patch.Location != nil, "has_span", patch.Span != nil)
	return patch, nil
}

// Location patterns: a Chinese postpositional "在<place><verb/punct>"
// phrase, or an English "at/in <Proper Noun>" phrase.
var (
	zhLocationRe = regexp.MustCompile(`在([\p{Han}A-Za-z0-9]{1,20}?)(開會|見面|上課|集合|舉行|吃飯|碰面|，|。|、|,|\s|$)`)
	enLocationRe = regexp.MustCompile(`\b(?:at|in)\s+(?:the\s+)?((?:[A-Z][A-Za-z0-9']*)(?:\s[A-Z][A-Za-z0-9']*)*)`)
)

func extractLocation(transcript string) *string {
	if m := zhLocationRe.FindStringSubmatch(transcript); m != nil {
		loc := strings.TrimSpace(m[1])
		if loc != "" {
			return &loc
		}
	}
	if m := enLocationRe.FindStringSubmatch(transcript); m != nil {
		loc := strings.TrimSpace(m[1])
		if loc != "" {
			return &loc
		}
	}
	return nil
}
