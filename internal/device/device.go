// Package device guesses the client device class, browser and operating
// system from a User-Agent header.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const (
	TypeDesktop = "desktop"
	TypeMobile  = "mobile"
	TypeTablet  = "tablet"
	TypeBot     = "bot"

	unknown = "unknown"
)

// Info is the parsed view of a User-Agent.
type Info struct {
	Type    string
	Browser string
	OS      string
}

// Parse returns the device info for userAgent. The second result is false
// when userAgent is empty and nothing could be derived.
func Parse(userAgent string) (Info, bool) {
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return Info{}, false
	}

	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()

	info := Info{
		Type:    classify(ua, userAgent),
		Browser: strings.TrimSpace(browser),
		OS:      strings.TrimSpace(ua.OS()),
	}
	if info.Browser == "" {
		info.Browser = unknown
	}
	if info.OS == "" {
		info.OS = unknown
	}
	return info, true
}

func classify(ua *useragent.UserAgent, raw string) string {
	switch {
	case ua.Bot():
		return TypeBot
	case strings.Contains(ua.Platform(), "iPad"), strings.Contains(strings.ToLower(raw), "tablet"):
		return TypeTablet
	case ua.Mobile():
		return TypeMobile
	default:
		return TypeDesktop
	}
}
