package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrNotFound is returned when a trusted device does not exist for the user.
var ErrNotFound = errors.New("trusted device not found")

// TrustedDevice is a client allowed to skip the MFA prompt until ExpiresAt.
// TokenHash is the SHA-256 of the bearer token; the token itself is never stored.
type TrustedDevice struct {
	ID         string
	UserID     string
	TokenHash  string
	Name       string
	IPAddress  string
	UserAgent  string
	CreatedAt  time.Time
	LastUsedAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the device trust has lapsed at now.
func (d *TrustedDevice) Expired(now time.Time) bool {
	return now.After(d.ExpiresAt)
}

// maxNameLength bounds device names derived from an unrecognised user agent.
const maxNameLength = 50

// UnknownDeviceName labels devices that sent no user agent.
const UnknownDeviceName = "Unknown device"

var platforms = []struct {
	needles []string
	name    string
}{
	// Order matters: iOS agents mention Mac OS X and Android agents mention Linux.
	{[]string{"iPhone", "iPad", "iPod"}, "iOS"},
	{[]string{"Android"}, "Android"},
	{[]string{"Macintosh", "Mac OS X"}, "macOS"},
	{[]string{"Windows"}, "Windows"},
	{[]string{"Linux", "X11"}, "Linux"},
}

var browsers = []struct {
	needle string
	name   string
}{
	{"Edg/", "Edge"},
	{"Firefox/", "Firefox"},
	{"Chrome/", "Chrome"},
	{"CriOS/", "Chrome"},
	{"Safari/", "Safari"},
}

// NameFromUserAgent derives a display label such as "Chrome on macOS" from a user agent.
func NameFromUserAgent(ua string) string {
	ua = strings.TrimSpace(ua)
	if ua == "" {
		return UnknownDeviceName
	}
	platform := ""
	for _, p := range platforms {
		if containsAny(ua, p.needles) {
			platform = p.name
			break
		}
	}
	if platform == "" {
		return truncate(ua, maxNameLength)
	}
	for _, b := range browsers {
		if strings.Contains(ua, b.needle) {
			return b.name + " on " + platform
		}
	}
	return platform + " device"
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-3]) + "..."
}
