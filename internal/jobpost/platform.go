package jobpost

import (
	"net/url"
	"strings"
)

// Platform is a recognized job board.
type Platform string

const (
	PlatformGreenhouse Platform = "greenhouse"
	PlatformLever      Platform = "lever"
	PlatformWorkday    Platform = "workday"
	PlatformAshby      Platform = "ashby"
	PlatformUnknown    Platform = "unknown"
)

// DetectPlatform identifies the job board from the posting URL host.
func DetectPlatform(rawURL string) Platform {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return PlatformUnknown
	}
	host := strings.ToLower(parsed.Hostname())

	switch {
	case strings.HasSuffix(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.HasSuffix(host, "lever.co"):
		return PlatformLever
	case strings.HasSuffix(host, "workday.com"), strings.HasSuffix(host, "myworkdayjobs.com"):
		return PlatformWorkday
	case strings.HasSuffix(host, "ashbyhq.com"):
		return PlatformAshby
	default:
		return PlatformUnknown
	}
}

var genericContent = []string{
	".job-description",
	".job-content",
	"#job-description",
	"#job-content",
	".posting-content",
	".job-details",
	"[data-testid='job-description']",
	"main",
	"article",
	".content",
	"#content",
}

// contentSelectors returns description selectors, most specific first.
func contentSelectors(p Platform) []string {
	switch p {
	case PlatformGreenhouse:
		return []string{".job__description.body", ".job__description", ".job-description__content", "#content", ".job-post-container"}
	case PlatformLever:
		return []string{".posting-page .section-wrapper.page-full-width", ".posting-description", ".posting-page", ".content"}
	case PlatformWorkday:
		return []string{"[data-automation-id='jobPostingDescription']", "[data-automation-id='jobDescription']", ".job-description"}
	case PlatformAshby:
		return []string{"[class*='_descriptionText']", "[class*='description']", "main"}
	default:
		return genericContent
	}
}

// noiseSelectors returns elements to strip before extracting text.
func noiseSelectors(p Platform) []string {
	common := []string{
		"nav", "footer", "header", "script", "style", "noscript", "svg",
		"form", "#application-form", ".application-form", ".apply-button-container",
		".eeo-statement", ".eeo-section", ".voluntary-disclosure", ".self-identification",
		".social-share", ".share-buttons", ".cookie-banner", ".cookie-consent", ".gdpr-notice",
	}
	switch p {
	case PlatformGreenhouse:
		return append(common, ".application--wrapper", ".voluntary-self-id", "#usa_self_id_section", ".post-apply")
	case PlatformLever:
		return append(common, ".apply-section", ".lever-application-form", ".posting-apply")
	case PlatformWorkday:
		return append(common, "[data-automation-id='applyButton']", ".application-section")
	default:
		return common
	}
}
