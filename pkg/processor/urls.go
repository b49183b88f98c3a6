package processor

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

var DefaultIgnoreHosts = []string{
	"evernote.com", "w3.org", "example.com", "localhost", "127.0.0.1",
	"facebook.com", "twitter.com", "x.com", "instagram.com", "pinterest.com",
	"linkedin.com", "youtube.com", "youtu.be", "api.whatsapp.com", "wa.me",
	"t.co", "bit.ly", "tinyurl.com",
}

var DefaultIgnoreExtensions = []string{
	".dtd", ".xsd", ".xml", ".css", ".js", ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp",
}

var DefaultSharingParams = []string{"text=", "url=", "smid=", "utm_source=", "utm_medium="}

var (
	urlPattern         = regexp.MustCompile(`https?://[^\s<>"'\]\[)(]+`)
	clippedURLPattern  = regexp.MustCompile(`(?i)--en-clipped-source-url:\s*(https?://[^\s<>"';)]+)`)
	sourceLabelPattern = regexp.MustCompile(`(?i)\b(source|from|via|original|adapted)\b`)
)

var unwantedSegments = []string{
	"/print", "/amp", "/mobile", "/comments", "/comment", "/respond", "/feed", "/rss", "/trackback",
}

var unwantedParamPrefixes = []string{
	"utm_", "ref", "src", "fbclid", "gclid", "mc_", "campaign", "medium", "source",
	"content", "term", "cid", "sid", "print", "share", "comment", "respond",
}

// CleanURL strips fragments, print/amp style trailing segments, tracking
// parameters and trailing separators from a recipe URL.
func CleanURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return u
	}
	if idx := strings.Index(u, "#"); idx >= 0 {
		u = u[:idx]
	}

	for _, segment := range unwantedSegments {
		pos := segmentIndex(u, segment)
		if pos <= 0 {
			continue
		}
		before := u[:pos]
		if strings.Count(strings.TrimRight(before, "/"), "/") >= 3 {
			u = strings.TrimRight(before, "/")
			break
		}
	}

	if base, query, found := strings.Cut(u, "?"); found {
		var kept []string
		for _, param := range strings.Split(query, "&") {
			key, _, hasValue := strings.Cut(param, "=")
			if !hasValue {
				continue
			}
			if hasAnyPrefix(strings.ToLower(key), unwantedParamPrefixes) {
				continue
			}
			kept = append(kept, param)
		}
		u = base
		if len(kept) > 0 {
			u += "?" + strings.Join(kept, "&")
		}
	}

	for strings.HasSuffix(u, ";") || strings.HasSuffix(u, "/") {
		u = strings.TrimSuffix(strings.TrimSuffix(u, ";"), "/")
	}
	return u
}

// segmentIndex finds segment as a whole path element.
func segmentIndex(u, segment string) int {
	offset := 0
	for {
		idx := strings.Index(u[offset:], segment)
		if idx < 0 {
			return -1
		}
		pos := offset + idx
		end := pos + len(segment)
		if end == len(u) || strings.ContainsRune("/?#;", rune(u[end])) {
			return pos
		}
		offset = end
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

type candidate struct {
	url      string
	labelled bool
}

func (p *Processor) sourceURL(note models.RawNote, doc *goquery.Document, lines []string) string {
	if explicit := strings.TrimSpace(note.SourceURL); explicit != "" {
		return CleanURL(explicit)
	}
	if doc != nil {
		if tagged := strings.TrimSpace(doc.Find("source-url").First().Text()); strings.HasPrefix(tagged, "http") {
			return CleanURL(tagged)
		}
	}
	if m := clippedURLPattern.FindStringSubmatch(note.Body); m != nil {
		return CleanURL(m[1])
	}

	var candidates []candidate
	for i, line := range lines {
		matches := urlPattern.FindAllString(line, -1)
		if len(matches) == 0 {
			continue
		}
		labelled := sourceLabelPattern.MatchString(urlPattern.ReplaceAllString(line, ""))
		if !labelled && i > 0 && !urlPattern.MatchString(lines[i-1]) {
			labelled = sourceLabelPattern.MatchString(lines[i-1]) && len(lines[i-1]) <= 40
		}
		for _, m := range matches {
			candidates = append(candidates, candidate{url: m, labelled: labelled})
		}
	}
	if doc != nil {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			if !strings.HasPrefix(href, "http") {
				return
			}
			candidates = append(candidates, candidate{
				url:      href,
				labelled: sourceLabelPattern.MatchString(s.Text()),
			})
		})
	}

	var first string
	for _, c := range candidates {
		raw := strings.TrimRight(c.url, ".,:!?")
		if !p.validURL(raw) {
			p.logger.Debug("skipping url", "note", note.ID, "url", raw)
			continue
		}
		cleaned := CleanURL(raw)
		if c.labelled {
			return cleaned
		}
		if first == "" {
			first = cleaned
		}
	}
	return first
}

func (p *Processor) validURL(raw string) bool {
	if len(raw) < 10 || len(raw) > 500 {
		return false
	}
	lower := strings.ToLower(raw)
	for _, param := range p.config.SharingParams {
		if strings.Contains(lower, param) {
			return false
		}
	}

	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, ignored := range p.config.IgnoreHosts {
		ignored = strings.ToLower(ignored)
		if host == ignored || strings.HasSuffix(host, "."+ignored) {
			return false
		}
	}
	ext := strings.ToLower(path.Ext(u.Path))
	for _, ignored := range p.config.IgnoreExtensions {
		if ext == ignored {
			return false
		}
	}
	return true
}
