// Package whatsapp is the WhatsApp Cloud API channel: phone normalization,
// the phone-to-ticket mapper, the Graph API client, and the inbound
// message processor.
package whatsapp

import "strings"

// NormalizePhone reduces any phone spelling to the canonical form used as
// the mapping key: digits only, prefixed with "+". Inputs with no digits
// normalize to the empty string.
func NormalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return ""
	}
	return "+" + b.String()
}
