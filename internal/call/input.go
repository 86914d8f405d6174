package call

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/1ureka/roomcall/internal/signaling"
)

var roomIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{27}$`)

// ParseJoinInput accepts a bare room id or a share link of the form
// https://<host>/call/<roomId>[?host=<server>]. For links it also returns
// the signaling host to use. ok is false for blank input.
//
// Anything that is not a well-formed link is taken as a room id verbatim.
func ParseJoinInput(input string) (roomID, host string, ok bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", "", false
	}

	u, err := url.Parse(trimmed)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return trimmed, "", true
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segments[len(segments)-1]
	if !roomIDPattern.MatchString(last) {
		return trimmed, "", true
	}

	if override := strings.TrimSpace(u.Query().Get("host")); override != "" {
		if _, valid := signaling.ParseEndpoint(override); valid {
			return last, override, true
		}
	}
	if u.Scheme == "http" {
		return last, "http://" + u.Host, true
	}
	return last, u.Host, true
}
