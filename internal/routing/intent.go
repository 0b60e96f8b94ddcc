// Package routing decides which service owns a brand-new conversation.
package routing

import (
	"sort"
	"strings"

	"github.com/movonte/deskbridge/internal/services"
)

// Route sources, in decision order.
const (
	SourceKeyword = "keyword"
	SourceDefault = "default"
	SourceFirst   = "first"
)

// Decision is the routing outcome for a new conversation.
type Decision struct {
	ServiceID string `json:"service_id"`
	Source    string `json:"source"`
}

// Route picks the service for a new conversation. Active services are tested
// in stable service-name order; a keyword wins when it exactly matches a
// token of the message or appears as a substring of the normalized phrase.
// Without a keyword hit the configured default wins when it is among the
// active services, otherwise the first active service does. Returns false
// when the user has no active services at all.
func Route(message string, active []services.ServiceConfig, defaultServiceID string) (Decision, bool) {
	if len(active) == 0 {
		return Decision{}, false
	}

	ordered := make([]services.ServiceConfig, len(active))
	copy(ordered, active)
	sort.SliceStable(ordered, func(i, j int) bool {
		return strings.ToLower(ordered[i].ServiceName) < strings.ToLower(ordered[j].ServiceName)
	})

	phrase := normalize(message)
	tokens := strings.Fields(phrase)

	for _, svc := range ordered {
		for _, kw := range svc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if matchesToken(tokens, kw) || strings.Contains(phrase, kw) {
				return Decision{ServiceID: svc.ServiceID, Source: SourceKeyword}, true
			}
		}
	}

	if defaultServiceID != "" {
		for _, svc := range ordered {
			if svc.ServiceID == defaultServiceID {
				return Decision{ServiceID: defaultServiceID, Source: SourceDefault}, true
			}
		}
	}

	return Decision{ServiceID: ordered[0].ServiceID, Source: SourceFirst}, true
}

func matchesToken(tokens []string, kw string) bool {
	for _, tok := range tokens {
		if tok == kw {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// ParseSelection interprets a reply to a previously presented service list as
// either a 1-based numeric choice or a case-insensitive name/keyword match.
// Returns false when the reply selects nothing.
func ParseSelection(reply string, presented []services.ServiceConfig) (services.ServiceConfig, bool) {
	trimmed := strings.TrimSpace(reply)
	if trimmed == "" || len(presented) == 0 {
		return services.ServiceConfig{}, false
	}

	if n, ok := parseIndex(trimmed); ok && n >= 1 && n <= len(presented) {
		return presented[n-1], true
	}

	lowered := strings.ToLower(trimmed)
	for _, svc := range presented {
		if strings.EqualFold(strings.TrimSpace(svc.ServiceName), trimmed) {
			return svc, true
		}
	}
	for _, svc := range presented {
		if strings.Contains(lowered, strings.ToLower(svc.ServiceName)) && svc.ServiceName != "" {
			return svc, true
		}
		for _, kw := range svc.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lowered, kw) {
				return svc, true
			}
		}
	}
	return services.ServiceConfig{}, false
}

func parseIndex(s string) (int, bool) {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
		if n > 1000 {
			return 0, false
		}
	}
	return n, n > 0
}
