package inspect

import (
	"strings"

	"NetWarden/internal/model"
)

// domainApps maps hostname fragments to applications. Order matters:
// "youtube" must hit before "google", "instagram" before "facebook".
var domainApps = []struct {
	fragment string
	app      model.AppType
}{
	{"youtube", model.AppYouTube},
	{"ytimg", model.AppYouTube},
	{"googlevideo", model.AppYouTube},
	{"instagram", model.AppInstagram},
	{"cdninstagram", model.AppInstagram},
	{"whatsapp", model.AppWhatsApp},
	{"facebook", model.AppFacebook},
	{"fbcdn", model.AppFacebook},
	{"google", model.AppGoogle},
	{"gstatic", model.AppGoogle},
	{"twitter", model.AppTwitter},
	{"twimg", model.AppTwitter},
	{"x.com", model.AppTwitter},
	{"netflix", model.AppNetflix},
	{"nflxvideo", model.AppNetflix},
	{"amazon", model.AppAmazon},
	{"aws", model.AppAmazon},
	{"microsoft", model.AppMicrosoft},
	{"windows", model.AppMicrosoft},
	{"office365", model.AppMicrosoft},
	{"apple", model.AppApple},
	{"icloud", model.AppApple},
	{"telegram", model.AppTelegram},
	{"t.me", model.AppTelegram},
	{"tiktok", model.AppTikTok},
	{"musical.ly", model.AppTikTok},
	{"spotify", model.AppSpotify},
	{"scdn.co", model.AppSpotify},
	{"zoom.us", model.AppZoom},
	{"zoom.com", model.AppZoom},
	{"discord", model.AppDiscord},
	{"github", model.AppGitHub},
	{"cloudflare", model.AppCloudflare},
}

// ClassifyServerName maps an extracted hostname to the application
// enumeration by substring match. Unknown names stay Unknown.
func ClassifyServerName(name string) model.AppType {
	if name == "" {
		return model.AppUnknown
	}
	lower := strings.ToLower(name)
	for _, entry := range domainApps {
		if strings.Contains(lower, entry.fragment) {
			return entry.app
		}
	}
	return model.AppUnknown
}
