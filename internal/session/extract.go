package session

import (
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// DefaultCookie is the cookie the web front end stores the credential in.
const DefaultCookie = "auth._token.local"

var bearerPattern = regexp.MustCompile(`(?i)Bearer\s+(.*)$`)

// ExtractCredential returns the credential carried by r. An Authorization
// header of the form "Bearer <token>" wins; otherwise the cookie named
// cookieName is used, URL-decoded and with an optional Bearer prefix removed.
func ExtractCredential(r *http.Request, cookieName string) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		if m := bearerPattern.FindStringSubmatch(header); m != nil {
			token := strings.TrimSpace(m[1])
			return token, token != ""
		}
	}

	if cookieName == "" {
		cookieName = DefaultCookie
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return "", false
	}
	value := cookie.Value
	if decoded, err := url.QueryUnescape(value); err == nil {
		value = decoded
	}
	if m := bearerPattern.FindStringSubmatch(value); m != nil {
		value = m[1]
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
