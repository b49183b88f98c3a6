package extractor

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
)

const (
	ingredientSelector  = `[class*="ingredient"] li, li[class*="ingredient"]`
	instructionSelector = `[class*="instruction"] li, [class*="direction"] li, [class*="method"] li, [class*="step"] li, li[class*="step"]`
)

// noiseSelectors are removed before the markdown scan.
var noiseSelectors = []string{
	"script", "style", "noscript",
	"nav", "footer", "header",
	"img", "picture", "figure", "figcaption",
	"iframe", "video", "audio",
	"svg", "canvas",
	"form", "button", "input", "select", "textarea",
	".sidebar", ".menu", ".navigation", ".ads", ".advertisement", ".comments",
}

func fromMarkup(doc *goquery.Document) *models.StructuredRecipe {
	recipe := &models.StructuredRecipe{Source: SourceHeuristic}

	scope := doc.Find(`[itemtype*="schema.org/Recipe"]`).First()
	if scope.Length() == 0 {
		scope = doc.Selection
	} else {
		recipe.Title = collapse(scope.Find(`[itemprop="name"]`).First().Text())
	}

	recipe.Ingredients = texts(scope.Find(`[itemprop="recipeIngredient"], [itemprop="ingredients"]`))

	var steps []string
	scope.Find(`[itemprop="recipeInstructions"]`).Each(func(_ int, s *goquery.Selection) {
		if items := s.Find("li"); items.Length() > 0 {
			steps = append(steps, texts(items)...)
			return
		}
		if text := collapse(s.Text()); text != "" {
			steps = append(steps, text)
		}
	})
	scope.Find(`[itemprop="image"]`).Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"src", "content", "href"} {
			if v, ok := s.Attr(attr); ok && strings.TrimSpace(v) != "" {
				recipe.ImageURLs = append(recipe.ImageURLs, strings.TrimSpace(v))
				return
			}
		}
	})

	if len(recipe.Ingredients) == 0 {
		recipe.Ingredients = texts(doc.Find(ingredientSelector))
	}
	if len(steps) == 0 {
		steps = texts(doc.Find(instructionSelector))
	}
	if len(steps) > 0 {
		recipe.Instructions = models.InstructionSteps(toSteps(steps))
	}

	if recipe.Title == "" {
		recipe.Title = firstNonEmpty(
			metaContent(doc, "og:title"),
			collapse(doc.Find("h1").First().Text()),
			collapse(doc.Find("title").First().Text()),
		)
	}
	if image := metaContent(doc, "og:image"); image != "" {
		recipe.ImageURLs = append(recipe.ImageURLs, image)
	}
	recipe.ImageURLs = dedupe(recipe.ImageURLs)

	return recipe
}

func texts(sel *goquery.Selection) []string {
	var out []string
	sel.Each(func(_ int, s *goquery.Selection) {
		if text := collapse(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func toSteps(lines []string) []models.HowToStep {
	steps := make([]models.HowToStep, 0, len(lines))
	for _, line := range lines {
		steps = append(steps, models.HowToStep{Text: line})
	}
	return steps
}

func metaContent(doc *goquery.Document, property string) string {
	sel := doc.Find(`meta[property="` + property + `"], meta[name="` + property + `"]`).First()
	content, _ := sel.Attr("content")
	return strings.TrimSpace(content)
}

var (
	mdHeadingPattern  = regexp.MustCompile(`^#{1,6}\s+(.+?)\s*#*$`)
	mdBoldLinePattern = regexp.MustCompile(`^\*\*(.+?)\*\*:?$`)
	mdListItemPattern = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s+(.+)$`)
	mdLinkPattern     = regexp.MustCompile(`!?\[([^\]]*)\]\([^)]*\)`)
	mdEscapePattern   = regexp.MustCompile(`\\([\\` + "`" + `*_{}\[\]()#+\-.!])`)
	mdEmphasisPattern = regexp.MustCompile(`\*\*|__|\*|` + "`")
)

// fromMarkdown converts the main content to markdown and collects list items
// under ingredient and instruction headings.
func fromMarkdown(page string) (*models.StructuredRecipe, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	for _, sel := range noiseSelectors {
		doc.Find(sel).Remove()
	}

	content := doc.Find("body")
	for _, tag := range []string{"main", "article"} {
		if sel := doc.Find(tag); sel.Length() > 0 {
			content = sel.First()
			break
		}
	}
	fragment, err := goquery.OuterHtml(content)
	if err != nil {
		return nil, err
	}

	markdown, err := htmltomarkdown.ConvertString(fragment)
	if err != nil {
		return nil, err
	}

	recipe := &models.StructuredRecipe{Source: SourceMarkdown}
	var steps []string
	current := ""
	for _, line := range strings.Split(markdown, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if heading := headingText(line); heading != "" {
			current = sectionFor(heading)
			if recipe.Title == "" && strings.HasPrefix(line, "# ") {
				recipe.Title = heading
			}
			continue
		}
		m := mdListItemPattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		item := plainMarkdown(m[1])
		if item == "" {
			continue
		}
		switch current {
		case "ingredients":
			recipe.Ingredients = append(recipe.Ingredients, item)
		case "instructions":
			steps = append(steps, item)
		}
	}
	if len(steps) > 0 {
		recipe.Instructions = models.InstructionSteps(toSteps(steps))
	}
	return recipe, nil
}

func headingText(line string) string {
	if m := mdHeadingPattern.FindStringSubmatch(line); m != nil {
		return plainMarkdown(m[1])
	}
	if m := mdBoldLinePattern.FindStringSubmatch(line); m != nil {
		return plainMarkdown(m[1])
	}
	return ""
}

func sectionFor(heading string) string {
	h := strings.ToLower(heading)
	switch {
	case strings.Contains(h, "ingredient"):
		return "ingredients"
	case strings.Contains(h, "instruction"), strings.Contains(h, "direction"),
		strings.Contains(h, "method"), strings.Contains(h, "step"), strings.Contains(h, "preparation"):
		return "instructions"
	}
	return ""
}

func plainMarkdown(s string) string {
	s = mdLinkPattern.ReplaceAllString(s, "$1")
	s = mdEmphasisPattern.ReplaceAllString(s, "")
	s = mdEscapePattern.ReplaceAllString(s, "$1")
	return collapse(s)
}
