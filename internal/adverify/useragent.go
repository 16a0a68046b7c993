package adverify

import "strings"

const (
	PlatformWindows = "Windows"
	PlatformMacOS   = "MacOS"
	PlatformLinux   = "Linux"
	PlatformAndroid = "Android"
	PlatformIOS     = "iOS"
	PlatformOther   = "other"
	Unknown         = "unknown"

	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceTV      = "tv"
	DeviceDesktop = "desktop"
)

// ClassifyUserAgent maps a user agent onto the coarse platform and device
// buckets used by ad analytics.
func ClassifyUserAgent(ua string) (platform, device string) {
	if strings.TrimSpace(ua) == "" {
		return Unknown, Unknown
	}
	s := strings.ToLower(ua)
	return classifyPlatform(s), classifyDevice(s)
}

func classifyPlatform(s string) string {
	switch {
	case strings.Contains(s, "android"):
		return PlatformAndroid
	case strings.Contains(s, "iphone"), strings.Contains(s, "ipad"), strings.Contains(s, "ipod"):
		return PlatformIOS
	case strings.Contains(s, "windows"):
		return PlatformWindows
	case strings.Contains(s, "mac os"), strings.Contains(s, "macintosh"):
		return PlatformMacOS
	case strings.Contains(s, "linux"), strings.Contains(s, "x11"):
		return PlatformLinux
	default:
		return PlatformOther
	}
}

func classifyDevice(s string) string {
	switch {
	case strings.Contains(s, "smart-tv"), strings.Contains(s, "smarttv"), strings.Contains(s, "googletv"),
		strings.Contains(s, "appletv"), strings.Contains(s, "hbbtv"), strings.Contains(s, "tizen"):
		return DeviceTV
	case strings.Contains(s, "ipad"), strings.Contains(s, "tablet"),
		strings.Contains(s, "android") && !strings.Contains(s, "mobile"):
		return DeviceTablet
	case strings.Contains(s, "mobi"), strings.Contains(s, "iphone"), strings.Contains(s, "ipod"):
		return DeviceMobile
	case strings.Contains(s, "windows"), strings.Contains(s, "macintosh"), strings.Contains(s, "x11"),
		strings.Contains(s, "linux"):
		return DeviceDesktop
	default:
		return Unknown
	}
}
