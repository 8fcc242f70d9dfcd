package analytics

import "strings"

// Device classes.
const (
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceBot     = "Bot"
)

// Fallback labels for unknown dimensions.
const (
	Unknown        = "Unknown"
	ReferrerDirect = "Direct"
	ReferrerOther  = "Other"
	ReferrerSelf   = "Internal"
)

// rule maps any of its keywords to label. Tables of rules are evaluated in
// order and the first matching rule wins.
type rule struct {
	keywords []string
	label    string
}

func (r rule) matches(s string) bool {
	for _, kw := range r.keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func firstMatch(s string, rules []rule, fallback string) string {
	for _, r := range rules {
		if r.matches(s) {
			return r.label
		}
	}
	return fallback
}

var deviceRules = []rule{
	{[]string{"mobile"}, DeviceMobile},
	{[]string{"tablet", "ipad"}, DeviceTablet},
	{[]string{"bot", "crawler", "spider"}, DeviceBot},
}

var browserRules = []rule{
	{[]string{"firefox"}, "Firefox"},
	{[]string{"edg"}, "Edge"},
	{[]string{"chrome"}, "Chrome"},
	{[]string{"safari"}, "Safari"},
	{[]string{"opera", "opr"}, "Opera"},
}

// Android UAs also mention "linux", so Android only wins for UAs that do not.
var osRules = []rule{
	{[]string{"windows"}, "Windows"},
	{[]string{"mac os", "macintosh"}, "macOS"},
	{[]string{"linux"}, "Linux"},
	{[]string{"android"}, "Android"},
	{[]string{"iphone", "ipad"}, "iOS"},
}

var botRule = rule{keywords: []string{"bot", "crawler", "spider"}}

var referrerRules = []rule{
	{[]string{"google"}, "Google"},
	{[]string{"facebook", "fb.com"}, "Facebook"},
	{[]string{"instagram"}, "Instagram"},
	{[]string{"linkedin"}, "LinkedIn"},
	{[]string{"telegram", "t.me"}, "Telegram"},
	{[]string{"twitter", "x.com"}, "Twitter/X"},
	{[]string{"youtube"}, "YouTube"},
	{[]string{"bing"}, "Bing"},
	{[]string{"yahoo"}, "Yahoo"},
	{[]string{"duckduckgo"}, "DuckDuckGo"},
}

// UserAgent is the classification of a User-Agent header.
type UserAgent struct {
	Browser string
	Device  string
	OS      string
}

// ParseUserAgent classifies ua into browser, device class and OS.
func ParseUserAgent(ua string) UserAgent {
	if ua == "" {
		return UserAgent{Browser: Unknown, Device: DeviceDesktop, OS: Unknown}
	}
	ua = strings.ToLower(ua)
	return UserAgent{
		Browser: firstMatch(ua, browserRules, Unknown),
		Device:  firstMatch(ua, deviceRules, DeviceDesktop),
		OS:      firstMatch(ua, osRules, Unknown),
	}
}

// IsBot reports whether ua carries any automated-client keyword, even when
// the device table classified it as mobile first.
func IsBot(ua string) bool {
	return botRule.matches(strings.ToLower(ua))
}

// CategorizeReferrer maps a Referer header to a short source label.
func (c Config) CategorizeReferrer(ref string) string {
	if ref == "" {
		return ReferrerDirect
	}
	ref = strings.ToLower(ref)
	rules := referrerRules
	if len(c.InternalHosts) > 0 {
		rules = append(rules[:len(rules):len(rules)], rule{c.InternalHosts, ReferrerSelf})
	}
	return firstMatch(ref, rules, ReferrerOther)
}
