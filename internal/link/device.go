package link

import "strings"

// DeviceType is the coarse device class derived from a User-Agent.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
	DeviceDesktop DeviceType = "desktop"
)

// DetectDevice classifies a User-Agent string. Mobile tokens win over
// tablet tokens, so an iPad UA carrying "Mobile" counts as mobile.
func DetectDevice(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)

	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return DeviceMobile
	}

	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return DeviceTablet
	}

	return DeviceDesktop
}
