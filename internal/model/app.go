package model

import "strings"

// AppType is the closed classification tag for a flow.
type AppType int

const (
	AppUnknown AppType = iota
	AppHTTP
	AppHTTPS
	AppDNS
	AppTLS
	AppQUIC
	AppGoogle
	AppFacebook
	AppYouTube
	AppTwitter
	AppInstagram
	AppNetflix
	AppAmazon
	AppMicrosoft
	AppApple
	AppWhatsApp
	AppTelegram
	AppTikTok
	AppSpotify
	AppZoom
	AppDiscord
	AppGitHub
	AppCloudflare
	appCount
)

var appNames = [...]string{
	AppUnknown:    "Unknown",
	AppHTTP:       "HTTP",
	AppHTTPS:      "HTTPS",
	AppDNS:        "DNS",
	AppTLS:        "TLS",
	AppQUIC:       "QUIC",
	AppGoogle:     "Google",
	AppFacebook:   "Facebook",
	AppYouTube:    "YouTube",
	AppTwitter:    "Twitter",
	AppInstagram:  "Instagram",
	AppNetflix:    "Netflix",
	AppAmazon:     "Amazon",
	AppMicrosoft:  "Microsoft",
	AppApple:      "Apple",
	AppWhatsApp:   "WhatsApp",
	AppTelegram:   "Telegram",
	AppTikTok:     "TikTok",
	AppSpotify:    "Spotify",
	AppZoom:       "Zoom",
	AppDiscord:    "Discord",
	AppGitHub:     "GitHub",
	AppCloudflare: "Cloudflare",
}

func (a AppType) String() string {
	if a < 0 || int(a) >= len(appNames) {
		return "Unknown"
	}
	return appNames[a]
}

// ParseAppType resolves a case-insensitive application name. Returns
// AppUnknown and false for names outside the enumeration.
func ParseAppType(name string) (AppType, bool) {
	for i, n := range appNames {
		if strings.EqualFold(n, name) {
			return AppType(i), true
		}
	}
	return AppUnknown, false
}

// AppTypes returns every classifiable application, in enum order.
func AppTypes() []AppType {
	apps := make([]AppType, appCount)
	for i := range apps {
		apps[i] = AppType(i)
	}
	return apps
}
