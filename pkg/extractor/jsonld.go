package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/brettmiller/evernote-recipes-to-nextcloud-cookbook/internal/models"
	"golang.org/x/net/html"
)

var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineBreakTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p>|</li>|</div>`)
	tagPattern          = regexp.MustCompile(`<[^>]+>`)
)

func (e *Extractor) fromJSONLD(doc *goquery.Document) *models.StructuredRecipe {
	var found *models.StructuredRecipe
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		scriptType, _ := s.Attr("type")
		if !strings.Contains(strings.ToLower(scriptType), "ld+json") {
			return true
		}

		raw := normalizeJSONBlock(s.Text())
		if raw == "" {
			return true
		}
		var data any
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			e.logger.Debug("skipping malformed json-ld block", "index", i, "error", err)
			return true
		}

		recipe := findRecipe(data)
		if recipe == nil {
			return true
		}
		found = decodeRecipe(recipe)
		return false
	})
	return found
}

// normalizeJSONBlock trims comments, CDATA wrappers and trailing junk around
// the outermost JSON value.
func normalizeJSONBlock(raw string) string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<![CDATA[")
	raw = strings.TrimSuffix(raw, "]]>")
	raw = blockCommentPattern.ReplaceAllString(raw, "")

	start := strings.IndexAny(raw, "{[")
	end := strings.LastIndexAny(raw, "}]")
	if start < 0 || end < start {
		return ""
	}
	return raw[start : end+1]
}

func findRecipe(v any) map[string]any {
	switch t := v.(type) {
	case map[string]any:
		if isRecipeType(t["@type"]) {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			if r := findRecipe(graph); r != nil {
				return r
			}
		}
		keys := make([]string, 0, len(t))
		for k := range t {
			if k != "@graph" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			if r := findRecipe(t[k]); r != nil {
				return r
			}
		}
	case []any:
		for _, item := range t {
			if r := findRecipe(item); r != nil {
				return r
			}
		}
	}
	return nil
}

func isRecipeType(v any) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(strings.TrimPrefix(t, "http://schema.org/"), "Recipe") ||
			strings.EqualFold(strings.TrimPrefix(t, "https://schema.org/"), "Recipe")
	case []any:
		for _, item := range t {
			if isRecipeType(item) {
				return true
			}
		}
	}
	return false
}

func decodeRecipe(m map[string]any) *models.StructuredRecipe {
	return &models.StructuredRecipe{
		Title:        cleanText(firstString(m["name"])),
		Description:  cleanText(firstString(m["description"])),
		Ingredients:  textList(m["recipeIngredient"], false),
		Instructions: decodeInstructions(m["recipeInstructions"]),
		ImageURLs:    dedupe(imageURLs(m["image"])),
		Categories:   dedupe(textList(m["recipeCategory"], true)),
		Keywords:     dedupe(textList(m["keywords"], true)),
		Cuisine:      strings.Join(textList(m["recipeCuisine"], true), ", "),
		Yield:        cleanText(firstString(m["recipeYield"])),
		PrepTime:     firstString(m["prepTime"]),
		CookTime:     firstString(m["cookTime"]),
		TotalTime:    firstString(m["totalTime"]),
		Nutrition:    nutrition(m["nutrition"]),
		Source:       SourceJSONLD,
	}
}

// nutrition keeps the scalar NutritionInformation properties under their
// schema.org names.
func nutrition(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string)
	for key, value := range m {
		if strings.HasPrefix(key, "@") {
			continue
		}
		text := cleanText(firstString(value))
		if text == "" {
			continue
		}
		out[key] = text
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// firstString returns the scalar value, or the first scalar of a list.
func firstString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				return s
			}
		}
	case map[string]any:
		for _, key := range []string{"text", "name", "@value"} {
			if s := firstString(t[key]); s != "" {
				return s
			}
		}
	}
	return ""
}

func textList(v any, splitCommas bool) []string {
	var out []string
	add := func(s string) {
		if splitCommas {
			for _, part := range strings.Split(s, ",") {
				if part = cleanText(part); part != "" {
					out = append(out, part)
				}
			}
			return
		}
		if s = cleanText(s); s != "" {
			out = append(out, s)
		}
	}

	switch t := v.(type) {
	case string:
		add(t)
	case []any:
		for _, item := range t {
			if s := firstString(item); s != "" {
				add(s)
			}
		}
	case map[string]any:
		add(firstString(t))
	}
	return out
}

func decodeInstructions(v any) models.Instructions {
	switch t := v.(type) {
	case string:
		text := stripTags(t)
		if text == "" {
			return nil
		}
		return models.InstructionText(text)
	case map[string]any:
		return decodeInstructions([]any{t})
	case []any:
		steps := appendSteps(nil, t)
		if len(steps) == 0 {
			return nil
		}
		return models.InstructionSteps(steps)
	}
	return nil
}

func appendSteps(steps []models.HowToStep, items []any) []models.HowToStep {
	for _, item := range items {
		switch t := item.(type) {
		case string:
			if text := cleanText(t); text != "" {
				steps = append(steps, models.HowToStep{Text: text})
			}
		case []any:
			steps = appendSteps(steps, t)
		case map[string]any:
			if nested, ok := t["itemListElement"]; ok {
				switch list := nested.(type) {
				case []any:
					steps = appendSteps(steps, list)
				default:
					steps = appendSteps(steps, []any{list})
				}
				continue
			}
			step := models.HowToStep{
				Name: cleanText(firstString(t["name"])),
				Text: cleanText(firstString(t["text"])),
			}
			if step.Text == step.Name {
				step.Name = ""
			}
			if step.Text != "" || step.Name != "" {
				steps = append(steps, step)
			}
		}
	}
	return steps
}

func imageURLs(v any) []string {
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			return []string{s}
		}
	case []any:
		var out []string
		for _, item := range t {
			out = append(out, imageURLs(item)...)
		}
		return out
	case map[string]any:
		for _, key := range []string{"url", "contentUrl", "@id"} {
			s, _ := t[key].(string)
			s = strings.TrimSpace(s)
			if strings.HasPrefix(s, "http") || strings.HasPrefix(s, "/") {
				return []string{s}
			}
		}
	}
	return nil
}

// stripTags turns an HTML fragment into newline separated text.
func stripTags(s string) string {
	s = lineBreakTagPattern.ReplaceAllString(s, "\n")
	s = tagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = collapse(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

func cleanText(s string) string {
	return collapse(html.UnescapeString(tagPattern.ReplaceAllString(s, " ")))
}
