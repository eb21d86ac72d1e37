package dashboard

import (
	"strings"

	"github.com/mssola/useragent"
)

// Device is the signup device shown on the profile card.
type Device struct {
	Label   string `json:"label"`
	Browser string `json:"browser,omitempty"`
	Mobile  bool   `json:"mobile"`
}

// DescribeDevice reduces a user agent to a coarse device label plus the
// browser it reported.
func DescribeDevice(ua string) Device {
	d := Device{Label: deviceLabel(ua)}
	if strings.TrimSpace(ua) == "" {
		return d
	}
	parsed := useragent.New(ua)
	d.Mobile = parsed.Mobile()
	if name, version := parsed.Browser(); name != "" {
		d.Browser = strings.TrimSpace(name + " " + majorVersion(version))
	}
	return d
}

// deviceLabel checks the families in order; Android and iOS user agents also
// mention Linux and Mac OS X.
func deviceLabel(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case lower == "":
		return "Unknown Device"
	case strings.Contains(lower, "android"):
		return "Android Device"
	case strings.Contains(ua, "iPad"), strings.Contains(ua, "iPhone"), strings.Contains(ua, "iPod"):
		return "iOS Device"
	case strings.Contains(lower, "windows phone"):
		return "Windows Phone"
	case strings.Contains(lower, "macintosh"):
		return "Mac"
	case strings.Contains(lower, "windows"):
		return "Windows PC"
	case strings.Contains(lower, "linux"):
		return "Linux PC"
	}
	return "Unknown Device"
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}
