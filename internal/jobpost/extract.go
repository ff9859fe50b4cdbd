package jobpost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MinDescriptionLength is the shortest description accepted as a real posting.
const MinDescriptionLength = 100

// ErrNoDescription is returned when a page has no recognizable job description.
var ErrNoDescription = errors.New("no job description found")

// Posting is the prefill extracted from a posting page.
type Posting struct {
	URL         string   `json:"url"`
	Platform    Platform `json:"platform"`
	JobTitle    string   `json:"title,omitempty"`
	CompanyName string   `json:"company_name,omitempty"`
	Description string   `json:"description"`
}

// Importer fetches and extracts postings.
type Importer struct {
	fetcher *Fetcher
}

// NewImporter creates an importer around fetcher.
func NewImporter(fetcher *Fetcher) *Importer {
	if fetcher == nil {
		fetcher = NewFetcher(0)
	}
	return &Importer{fetcher: fetcher}
}

// Import fetches rawURL and extracts the posting.
func (i *Importer) Import(ctx context.Context, rawURL string) (*Posting, error) {
	page, err := i.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Extract(page.URL, page.HTML)
}

// Extract parses a posting page. Structured JobPosting data wins over page
// markup; title and company fall back to meta tags and headings.
func Extract(pageURL, body string) (*Posting, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	platform := DetectPlatform(pageURL)
	posting := &Posting{URL: pageURL, Platform: platform}

	if ld := findJobPostingLD(doc); ld != nil {
		posting.JobTitle = strings.TrimSpace(ld.Title)
		posting.CompanyName = strings.TrimSpace(ld.HiringOrganization.Name)
		if ld.Description != "" {
			posting.Description = htmlToText(ld.Description)
		}
	}

	if posting.JobTitle == "" {
		posting.JobTitle = firstNonEmpty(
			metaContent(doc, "og:title"),
			strings.TrimSpace(doc.Find("h1").First().Text()),
			strings.TrimSpace(doc.Find("title").First().Text()),
		)
	}
	if posting.CompanyName == "" {
		posting.CompanyName = metaContent(doc, "og:site_name")
	}

	if len(posting.Description) < MinDescriptionLength {
		if text := mainText(doc, platform); len(text) > len(posting.Description) {
			posting.Description = text
		}
	}
	if posting.Description == "" {
		return nil, ErrNoDescription
	}
	return posting, nil
}

type jobPostingLD struct {
	Type               any    `json:"@type"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
}

func (j *jobPostingLD) isJobPosting() bool {
	switch t := j.Type.(type) {
	case string:
		return t == "JobPosting"
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

// findJobPostingLD returns the first schema.org JobPosting in the page's JSON-LD blocks.
func findJobPostingLD(doc *goquery.Document) *jobPostingLD {
	var found *jobPostingLD
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		raw := []byte(strings.TrimSpace(s.Text()))

		var single jobPostingLD
		if err := json.Unmarshal(raw, &single); err == nil && single.isJobPosting() {
			found = &single
			return false
		}

		var many []jobPostingLD
		if err := json.Unmarshal(raw, &many); err == nil {
			for i := range many {
				if many[i].isJobPosting() {
					found = &many[i]
					return false
				}
			}
		}

		var graph struct {
			Graph []jobPostingLD `json:"@graph"`
		}
		if err := json.Unmarshal(raw, &graph); err == nil {
			for i := range graph.Graph {
				if graph.Graph[i].isJobPosting() {
					found = &graph.Graph[i]
					return false
				}
			}
		}
		return true
	})
	return found
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(fmt.Sprintf(`meta[property=%q], meta[name=%q]`, property, property)).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// mainText strips noise and returns the text of the first matching content selector, or the body.
func mainText(doc *goquery.Document, platform Platform) string {
	doc.Find(strings.Join(noiseSelectors(platform), ", ")).Remove()

	var content *goquery.Selection
	for _, selector := range contentSelectors(platform) {
		if sel := doc.Find(selector); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	if content == nil {
		content = doc.Find("body")
	}
	return selectionText(content)
}

func htmlToText(fragment string) string {
	// Some boards double-escape the markup inside JSON-LD.
	if strings.Contains(fragment, "&lt;") {
		fragment = html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + fragment + "</body>"))
	if err != nil {
		return CleanText(fragment)
	}
	return selectionText(doc.Find("body"))
}

// selectionText renders block elements on their own lines and list items as bullets.
func selectionText(sel *goquery.Selection) string {
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("li").Each(func(_ int, li *goquery.Selection) {
		li.PrependHtml("- ")
	})
	sel.Find("p, li, div, h1, h2, h3, h4, h5, h6, tr, section, ul, ol").Each(func(_ int, block *goquery.Selection) {
		block.AppendHtml("\n")
	})
	return CleanText(sel.Text())
}

var (
	spaceRun = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankRun = regexp.MustCompile(`\n{3,}`)
)

// CleanText normalizes line endings and spacing, keeping at most one blank line between blocks.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(spaceRun.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")
	text = blankRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
