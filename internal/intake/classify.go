package intake

import "strings"

// CommentMeta is the small value object the classifier inspects, decoupled
// from any webhook payload shape.
type CommentMeta struct {
	DisplayName string
	Email       string
	AccountID   string
	Body        string
}

// Classification is the tagged result of the AI-authorship check.
type Classification struct {
	IsAI   bool
	Reason string
}

// Author-name fragments that mark a comment as machine-authored.
var aiAuthorMarkers = []string{"ai", "assistant", "bot", "movonte", "automation", "noreply"}

// Signature phrases the assistant identity uses in its own replies. A body
// containing any of them is treated as AI output regardless of author.
var aiBodySignatures = []string{
	"ai response",
	"asistente",
	"automático",
	"soy un asistente",
	"puedo ayudarte",
	"gracias por contactar",
	"respuesta automática",
}

// ClassifyComment decides whether a comment was produced by the AI identity.
// Any single signal is enough: author name/email markers, body signature
// phrases, or a known bot account id.
func ClassifyComment(meta CommentMeta, knownBotIDs []string) Classification {
	name := strings.ToLower(meta.DisplayName)
	email := strings.ToLower(meta.Email)
	for _, marker := range aiAuthorMarkers {
		if strings.Contains(name, marker) || strings.Contains(email, marker) {
			return Classification{IsAI: true, Reason: "author matches " + marker}
		}
	}

	body := strings.ToLower(meta.Body)
	for _, signature := range aiBodySignatures {
		if strings.Contains(body, signature) {
			return Classification{IsAI: true, Reason: "body contains signature phrase"}
		}
	}

	if meta.AccountID != "" {
		for _, id := range knownBotIDs {
			if meta.AccountID == id {
				return Classification{IsAI: true, Reason: "known bot account"}
			}
		}
	}

	return Classification{}
}
