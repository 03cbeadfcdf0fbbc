// Package utm implements the pure UTM parsing and traffic-classification
// grammar used to populate silver_order_utm from a free-form manager
// comment. Every function here is a pure function of its input string —
// no I/O, no store access — so it is exercised directly by table-driven
// tests rather than through the store's integration tests.
package utm

import (
	"regexp"
	"strings"
)

// Parsed holds the UTM key/value pairs and pixel markers extracted from a
// manager_comment, with keys lowercased per spec §4.4.
type Parsed struct {
	Source   string
	Medium   string
	Campaign string
	Content  string
	Term     string
	Lang     string
	FBP      string
	FBC      string
	TTP      string
	FBClid   string
}

var utmBlockRe = regexp.MustCompile(`(?is)UTM:\s*([^\n]*)`)

var markerRes = map[string]*regexp.Regexp{
	"_fbp":   regexp.MustCompile(`_fbp[=:]\s*([^\s;]+)`),
	"_fbc":   regexp.MustCompile(`_fbc[=:]\s*([^\s;]+)`),
	"ttp":    regexp.MustCompile(`\bttp[=:]\s*([^\s;]+)`),
	"fbclid": regexp.MustCompile(`fbclid[=:]\s*([^\s;]+)`),
}

// Parse extracts the first "UTM: k: v; k: v" block from comment and scans
// independently for pixel markers anywhere in the text.
func Parse(comment string) Parsed {
	var p Parsed

	if m := utmBlockRe.FindStringSubmatch(comment); m != nil {
		for _, pair := range strings.Split(m[1], ";") {
			kv := strings.SplitN(pair, ":", 2)
			if len(kv) != 2 {
				continue
			}
			key := strings.ToLower(strings.TrimSpace(kv[0]))
			val := strings.TrimSpace(kv[1])
			switch key {
			case "utm_source", "source":
				p.Source = strings.ToLower(val)
			case "utm_medium", "medium":
				p.Medium = strings.ToLower(val)
			case "utm_campaign", "campaign":
				p.Campaign = val
			case "utm_content", "content":
				p.Content = val
			case "utm_term", "term":
				p.Term = val
			case "utm_lang", "lang":
				p.Lang = val
			}
		}
	}

	if m := markerRes["_fbp"].FindStringSubmatch(comment); m != nil {
		p.FBP = m[1]
	} else if strings.Contains(comment, "_fbp") {
		p.FBP = "present"
	}
	if m := markerRes["_fbc"].FindStringSubmatch(comment); m != nil {
		p.FBC = m[1]
	} else if strings.Contains(comment, "_fbc") {
		p.FBC = "present"
	}
	if m := markerRes["ttp"].FindStringSubmatch(comment); m != nil {
		p.TTP = m[1]
	} else if regexp.MustCompile(`\bttp\b`).MatchString(comment) {
		p.TTP = "present"
	}
	if m := markerRes["fbclid"].FindStringSubmatch(comment); m != nil {
		p.FBClid = m[1]
	} else if strings.Contains(comment, "fbclid") {
		p.FBClid = "present"
	}

	return p
}

// TrafficType is the classification cascade's traffic-attribution bucket.
type TrafficType string

const (
	TrafficPaidConfirmed TrafficType = "paid_confirmed"
	TrafficPaidLikely    TrafficType = "paid_likely"
	TrafficOrganic       TrafficType = "organic"
	TrafficPixelOnly     TrafficType = "pixel_only"
	TrafficUnknown       TrafficType = "unknown"
)

// Platform is the inferred traffic source platform.
type Platform string

const (
	PlatformFacebook  Platform = "facebook"
	PlatformTikTok    Platform = "tiktok"
	PlatformGoogle    Platform = "google"
	PlatformInstagram Platform = "instagram"
	PlatformEmail     Platform = "email"
	PlatformOther     Platform = "other"
)

var numericRe = regexp.MustCompile(`^[0-9]+$`)

func isNumeric(s string) bool {
	return s != "" && numericRe.MatchString(s)
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Classify applies the deterministic priority cascade from spec §4.4 to a
// parsed UTM record, stopping at the first matching rule.
func Classify(p Parsed) (TrafficType, Platform) {
	startsFBAds := strings.HasPrefix(p.Source, "fbads") || strings.HasPrefix(p.Medium, "fbads") || strings.HasPrefix(p.Campaign, "fbads")
	containsFacebookUA := strings.Contains(strings.ToLower(p.Campaign), "facebook_ua") || strings.Contains(strings.ToLower(p.Content), "facebook_ua")
	if startsFBAds || containsFacebookUA {
		return TrafficPaidConfirmed, PlatformFacebook
	}
	if p.FBC != "" {
		return TrafficPaidConfirmed, PlatformFacebook
	}
	if p.FBClid != "" && contains([]string{"paid", "cpc"}, p.Medium) {
		return TrafficPaidConfirmed, PlatformFacebook
	}
	campaignLower := strings.ToLower(p.Campaign)
	for _, marker := range []string{"tof", "mof", "bof", "| ss |", "| retarget", "| dynamic"} {
		if strings.Contains(campaignLower, marker) {
			return TrafficPaidConfirmed, PlatformTikTok
		}
	}
	if p.Source == "tiktok" && contains([]string{"paid", "cpc"}, p.Medium) {
		return TrafficPaidConfirmed, PlatformTikTok
	}
	if p.Source == "google" && (p.Medium == "cpc" || isNumeric(p.Campaign)) {
		return TrafficPaidConfirmed, PlatformGoogle
	}
	if contains([]string{"ig", "instagram"}, p.Source) && contains([]string{"social", "organic", ""}, p.Medium) {
		return TrafficOrganic, PlatformInstagram
	}
	if p.Source == "facebook" && contains([]string{"social", "organic"}, p.Medium) {
		return TrafficOrganic, PlatformFacebook
	}
	if p.Source == "tiktok" && contains([]string{"social", "organic", ""}, p.Medium) {
		return TrafficOrganic, PlatformTikTok
	}
	if contains([]string{"klaviyo", "email"}, p.Source) || contains([]string{"email", "klaviyo"}, p.Medium) {
		return TrafficOrganic, PlatformEmail
	}
	if p.Source == "" && p.Medium == "" {
		switch {
		case p.FBP != "" || p.FBC != "":
			return TrafficPixelOnly, PlatformFacebook
		case p.TTP != "":
			return TrafficPixelOnly, PlatformTikTok
		default:
			return TrafficUnknown, PlatformOther
		}
	}
	if p.Source != "" || p.Medium != "" {
		return inferredPlatformAndType(p)
	}
	return TrafficUnknown, PlatformOther
}

// inferredPlatformAndType implements rule 12: any other non-empty UTM
// combination is bucketed by medium class and a best-effort platform guess.
func inferredPlatformAndType(p Parsed) (TrafficType, Platform) {
	platform := PlatformOther
	switch {
	case strings.Contains(p.Source, "face") || strings.Contains(p.Source, "fb"):
		platform = PlatformFacebook
	case strings.Contains(p.Source, "tiktok"):
		platform = PlatformTikTok
	case strings.Contains(p.Source, "google"):
		platform = PlatformGoogle
	case strings.Contains(p.Source, "instagram") || strings.Contains(p.Source, "ig"):
		platform = PlatformInstagram
	case strings.Contains(p.Source, "mail"):
		platform = PlatformEmail
	}

	switch p.Medium {
	case "paid", "cpc", "ppc":
		return TrafficPaidLikely, platform
	case "social", "organic", "referral":
		return TrafficOrganic, platform
	case "":
		if p.Source != "" {
			return TrafficPaidLikely, platform
		}
		return TrafficUnknown, platform
	default:
		return TrafficUnknown, platform
	}
}
