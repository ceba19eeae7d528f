package utils

import (
	"strings"

	ua "github.com/mssola/user_agent"
)

// DeviceInfo is what the booking audit trail keeps about a client
type DeviceInfo struct {
	DeviceType string `json:"device_type"` // mobile, tablet, desktop, unknown
	Platform   string `json:"platform"`    // android, ios, windows, mac, linux, unknown
	OS         string `json:"os"`
	Browser    string `json:"browser"`
	IsBot      bool   `json:"is_bot"`
}

var tabletMarkers = []string{"ipad", "tablet", "kindle", "playbook", "nexus 7", "nexus 9", "nexus 10", "sm-t"}

var platformMarkers = []struct{ marker, platform string }{
	{"android", "android"},
	{"iphone os", "ios"},
	{"ios", "ios"},
	{"windows", "windows"},
	{"mac os x", "mac"},
	{"macos", "mac"},
	{"chrome os", "chromeos"},
	{"linux", "linux"},
	{"ubuntu", "linux"},
}

// ParseUserAgent extracts device information from a User-Agent header
func ParseUserAgent(userAgent string) DeviceInfo {
	if userAgent == "" || userAgent == "Unknown" {
		return DeviceInfo{DeviceType: "unknown", Platform: "unknown", OS: "Unknown", Browser: "Unknown"}
	}

	parser := ua.New(userAgent)
	info := DeviceInfo{
		DeviceType: "desktop",
		Platform:   "unknown",
		OS:         "Unknown",
		Browser:    "Unknown",
		IsBot:      parser.Bot(),
	}

	if parser.Mobile() {
		info.DeviceType = "mobile"
		lower := strings.ToLower(userAgent)
		for _, m := range tabletMarkers {
			if strings.Contains(lower, m) {
				info.DeviceType = "tablet"
				break
			}
		}
	}

	osInfo := parser.OSInfo()
	if osInfo.Name != "" {
		info.OS = strings.TrimSpace(osInfo.Name + " " + osInfo.Version)
		name := strings.ToLower(osInfo.Name)
		for _, p := range platformMarkers {
			if strings.Contains(name, p.marker) {
				info.Platform = p.platform
				break
			}
		}
	}

	if name, _ := parser.Browser(); name != "" {
		info.Browser = name
	}

	return info
}
