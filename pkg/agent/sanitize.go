package agent

import (
	"net/url"
	"regexp"
	"strings"
)

const searchEngineURL = "https://www.google.com/search?q="

var (
	embeddedURLRe = regexp.MustCompile(`https?://[^\s"'<>]+`)
	tokenSplitRe  = regexp.MustCompile(`[\s,()]+`)
	domainRe      = regexp.MustCompile(`(?i)^(?:www\.)?(?:[a-z0-9](?:[a-z0-9-]*[a-z0-9])?\.)+[a-z]{2,}(?:[/?#]\S*)?$`)
)

// SanitizeURL turns a navigation target into a URL that is safe to open.
// An absolute http(s) URL without whitespace is kept; otherwise a URL or a
// bare domain embedded in the text is used; anything else becomes a search
// for the text. A sentence is never used as a host.
func SanitizeURL(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return "https://www.google.com"
	}

	lowered := strings.ToLower(cleaned)
	isAbsolute := strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://")
	if isAbsolute && !strings.ContainsAny(cleaned, " \t\r\n") {
		return cleaned
	}

	if m := embeddedURLRe.FindString(cleaned); m != "" {
		return strings.TrimRight(m, ".,;:!?)")
	}

	if domain := bareDomain(cleaned); domain != "" {
		return "https://" + domain
	}

	return searchEngineURL + url.QueryEscape(cleaned)
}

// bareDomain returns the first token that looks like a domain name.
func bareDomain(text string) string {
	for _, token := range tokenSplitRe.Split(text, -1) {
		token = strings.Trim(token, ".!?;:")
		if domainRe.MatchString(token) {
			return token
		}
	}
	return ""
}
