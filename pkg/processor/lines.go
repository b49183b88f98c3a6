package processor

import (
	"regexp"
	"strings"
	"unicode"
)

type section int

const (
	sectionNone section = iota
	sectionIngredients
	sectionInstructions
	sectionNotes
)

var sectionHeaders = map[string]section{
	"ingredients":     sectionIngredients,
	"ingredient list": sectionIngredients,
	"you will need":   sectionIngredients,
	"what you need":   sectionIngredients,
	"instructions":    sectionInstructions,
	"directions":      sectionInstructions,
	"method":          sectionInstructions,
	"preparation":     sectionInstructions,
	"steps":           sectionInstructions,
	"procedure":       sectionInstructions,
	"notes":           sectionNotes,
	"tips":            sectionNotes,
	"variations":      sectionNotes,
}

var instructionStarters = map[string]bool{
	"heat": true, "cook": true, "bake": true, "boil": true, "simmer": true, "saute": true,
	"sauté": true, "fry": true, "grill": true, "roast": true, "mix": true, "stir": true,
	"whisk": true, "blend": true, "combine": true, "add": true, "pour": true, "place": true,
	"remove": true, "drain": true, "rinse": true, "wash": true, "chop": true, "dice": true,
	"slice": true, "cut": true, "preheat": true, "serve": true, "garnish": true, "season": true,
	"taste": true, "adjust": true, "make": true, "prepare": true, "put": true, "set": true,
	"let": true, "allow": true, "bring": true, "reduce": true, "cover": true, "uncover": true,
	"flip": true, "turn": true, "melt": true, "spread": true, "brush": true, "transfer": true,
	"arrange": true, "top": true, "fill": true, "fold": true, "beat": true, "knead": true,
	"chill": true, "refrigerate": true, "freeze": true, "sprinkle": true, "drizzle": true,
}

var (
	bulletPattern        = regexp.MustCompile(`^[\s]*[•\-\*\+>◦▪▫○●□■➤→⁃‣⁌⁍☐✓✗✔✘]\s*`)
	listNumberPattern    = regexp.MustCompile(`^\d+[.)\]]\s+`)
	listLetterPattern    = regexp.MustCompile(`^[a-zA-Z][.)]\s+`)
	stepPattern          = regexp.MustCompile(`(?i)^(step\s*)?\d+\s*[.):\-]\s*`)
	numberedStepPattern  = regexp.MustCompile(`(?i)^(\d+[.)\-]\s|step\b)`)
	quantityPattern      = regexp.MustCompile(`^\s*(\d|[¼½¾⅓⅔⅛⅜⅝⅞])`)
	toTastePattern       = regexp.MustCompile(`(?i)\bto\s+taste\b|\bsalt\s+and\s+pepper\b`)
	temperaturePattern   = regexp.MustCompile(`(?i)\d+\s*(°|degrees?\b)`)
	yieldPattern         = regexp.MustCompile(`(?i)^(serves|servings|yield|yields|makes)\b\s*:?\s*(.+)$`)
	timeInfoPattern      = regexp.MustCompile(`(?i)^(prep|cook|cooking|total)\s+time\b`)
	pageReferencePattern = regexp.MustCompile(`(?i)\bpage\s+\d+\b|\bp\.\s*\d+\b`)
	proceduralPattern    = regexp.MustCompile(`(?i)\b(using|while|until|when|then|next|after|before|during|meanwhile|if you|you can|this will|this is|repeat|continue)\b`)
	instructionKeyword   = regexp.MustCompile(`(?i)\b(cook|bake|mix|add|heat|stir|pour|place|remove|serve|prepare|combine|season|boil|simmer|fry|chop|slice|dice|mince|whisk|blend|fold|beat|knead|roll|spread|brush|drizzle|sprinkle|garnish|chill|freeze|thaw|preheat|until|then|next|meanwhile)\b`)
	wwwPattern           = regexp.MustCompile(`(?i)\bwww\.[^\s<>"'\]\[)(]+`)
	emptyBracketPattern  = regexp.MustCompile(`\(\s*\)|\[\s*\]`)
	urlLabelOnlyPattern  = regexp.MustCompile(`(?i)^[\W_]*((source|from|via|original|originally|adapted|recipe|link|url|found|at|see|on|here)\b[\W_]*)*$`)
	substitutionPattern  = regexp.MustCompile(`(?i)\b(you\s+)?(can|could|try)\s+(replace|replacing|substitute|use)\b|\bsubstitut(e|ion)s?\b|\binstead\s+of\b|\balternatively\b|\bor\s+use\b|\buse\s+instead\b`)
	substitutionPrefix   = regexp.MustCompile(`(?i)^(you\s+can|you\s+could|can|try)\s+`)
	cookingVerbPattern   = regexp.MustCompile(`(?i)\b(make|melt|mix|stir|cook|heat|drain|transfer|add in|dump|brown|mixing|stirring|top with|melting|topping|plate)\b`)
)

// Instruction lines matching one of these are ingredient notes that landed in
// the steps, e.g. "Optional: chili flakes and lemon zest to taste".
var misplacedIngredientPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^optional\s+additional\s+seasonings?\s+to\s+taste`),
	regexp.MustCompile(`(?i)^\s*to\s+taste\s*[-:]?\s*(salt|pepper|seasoning)`),
	regexp.MustCompile(`(?i)^optional\s*[-:]?\s*[a-z\s,&]+\s+to\s+taste\s*\.?$`),
}

// Words that say nothing about which ingredient a substitution refers to.
var substitutionStopWords = map[string]bool{
	"cup": true, "cups": true, "tbsp": true, "tsp": true, "tablespoon": true, "tablespoons": true,
	"teaspoon": true, "teaspoons": true, "ounce": true, "ounces": true, "pound": true, "pounds": true,
	"gram": true, "grams": true, "large": true, "small": true, "medium": true, "fresh": true,
	"chopped": true, "minced": true, "diced": true, "sliced": true, "finely": true, "roughly": true,
	"ground": true, "about": true, "with": true, "into": true, "more": true, "some": true,
	"your": true, "other": true, "each": true, "plus": true, "optional": true, "taste": true,
	"replace": true, "replacing": true, "substitute": true, "substitution": true, "instead": true,
	"could": true, "alternatively": true, "works": true, "well": true, "also": true,
}

type classified struct {
	description  string
	ingredients  []string
	instructions []string
	yield        string
}

func classify(lines []string) classified {
	var out classified
	var description, substitutions []string
	current := sectionNone
	seenIngredient := false

	for _, line := range lines {
		line, ok := stripURLs(line)
		if !ok || pageReferencePattern.MatchString(line) {
			continue
		}
		if s, ok := headerSection(line); ok {
			current = s
			continue
		}
		if m := yieldPattern.FindStringSubmatch(line); m != nil && len(line) <= 40 {
			if out.yield == "" {
				out.yield = strings.TrimSpace(m[2])
			}
			continue
		}
		if timeInfoPattern.MatchString(line) {
			continue
		}
		if current != sectionNotes && isSubstitutionNote(line) {
			substitutions = append(substitutions, cleanInstruction(line))
			continue
		}

		switch current {
		case sectionIngredients:
			if !isIngredientLine(line) && looksLikeInstruction(line) {
				current = sectionInstructions
				out.instructions = appendNonEmpty(out.instructions, cleanInstruction(line))
				continue
			}
			out.ingredients = appendNonEmpty(out.ingredients, cleanIngredient(line))
			seenIngredient = true
		case sectionInstructions:
			out.instructions = appendNonEmpty(out.instructions, cleanInstruction(line))
		case sectionNotes:
			description = append(description, line)
		default:
			switch {
			case isIngredientLine(line):
				out.ingredients = appendNonEmpty(out.ingredients, cleanIngredient(line))
				seenIngredient = true
			case seenIngredient || isInstructionLine(line):
				out.instructions = appendNonEmpty(out.instructions, cleanInstruction(line))
			default:
				description = append(description, line)
			}
		}
	}

	out.ingredients, out.instructions = recoverIngredients(out.ingredients, out.instructions)
	out.ingredients, substitutions = attachSubstitutions(out.ingredients, substitutions)
	description = append(description, substitutions...)

	out.description = strings.Join(description, "\n")
	return out
}

func appendNonEmpty(list []string, s string) []string {
	if s == "" {
		return list
	}
	return append(list, s)
}

// stripURLs removes links from a line. It reports false when nothing but the
// links and a label such as "Source:" remains.
func stripURLs(line string) (string, bool) {
	stripped := urlPattern.ReplaceAllString(line, "")
	stripped = wwwPattern.ReplaceAllString(stripped, "")
	if stripped == line {
		return line, true
	}
	stripped = emptyBracketPattern.ReplaceAllString(stripped, "")
	stripped = strings.Join(strings.Fields(stripped), " ")
	stripped = strings.TrimRight(stripped, " :-,")
	if urlLabelOnlyPattern.MatchString(stripped) {
		return "", false
	}
	return stripped, true
}

func isSubstitutionNote(line string) bool {
	return substitutionPattern.MatchString(line) &&
		!isIngredientLine(line) &&
		!instructionStarters[firstWord(cleanInstruction(line))]
}

// attachSubstitutions appends each substitution note to the first ingredient
// that shares a word with it. Notes matching no ingredient are returned.
func attachSubstitutions(ingredients, notes []string) ([]string, []string) {
	var unmatched []string
	for _, note := range notes {
		target := -1
		noteWords := significantWords(note)
		for i, ingredient := range ingredients {
			for w := range significantWords(ingredient) {
				if noteWords[w] {
					target = i
					break
				}
			}
			if target >= 0 {
				break
			}
		}
		if target < 0 {
			unmatched = append(unmatched, note)
			continue
		}
		text := substitutionPrefix.ReplaceAllString(note, "")
		text = strings.TrimRight(text, ".")
		ingredients[target] = ingredients[target] + " (" + text + ")"
	}
	return ingredients, unmatched
}

func significantWords(s string) map[string]bool {
	words := make(map[string]bool)
	for _, field := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if len(field) < 4 || substitutionStopWords[field] {
			continue
		}
		words[field] = true
		words[strings.TrimSuffix(field, "s")] = true
	}
	return words
}

// recoverIngredients moves ingredient notes that were read as steps back to
// the ingredient list.
func recoverIngredients(ingredients, instructions []string) ([]string, []string) {
	var kept []string
	for _, step := range instructions {
		if isMisplacedIngredient(step) {
			ingredients = append(ingredients, strings.Join(strings.Fields(step), " "))
			continue
		}
		kept = append(kept, step)
	}
	return ingredients, kept
}

func isMisplacedIngredient(line string) bool {
	if cookingVerbPattern.MatchString(line) {
		return false
	}
	for _, pattern := range misplacedIngredientPatterns {
		if pattern.MatchString(line) {
			return true
		}
	}
	return false
}

func headerSection(line string) (section, bool) {
	key := strings.ToLower(cleanIngredient(line))
	key = strings.TrimSpace(strings.TrimRight(key, ":"))
	s, ok := sectionHeaders[key]
	return s, ok
}

func cleanIngredient(line string) string {
	line = bulletPattern.ReplaceAllString(line, "")
	line = listNumberPattern.ReplaceAllString(line, "")
	line = listLetterPattern.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func cleanInstruction(line string) string {
	line = bulletPattern.ReplaceAllString(line, "")
	line = stepPattern.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ",.:;!")
}

func isIngredientLine(line string) bool {
	clean := cleanIngredient(line)
	if len(clean) < 3 || len(clean) > 200 {
		return false
	}
	if instructionStarters[firstWord(clean)] {
		return false
	}
	if toTastePattern.MatchString(clean) && len(clean) < 50 {
		return true
	}
	if numberedStepPattern.MatchString(clean) {
		return false
	}
	if proceduralPattern.MatchString(clean) || temperaturePattern.MatchString(clean) {
		return false
	}
	return quantityPattern.MatchString(clean)
}

func isInstructionLine(line string) bool {
	return len(line) >= 20 && instructionKeyword.MatchString(line)
}

func looksLikeInstruction(line string) bool {
	if instructionStarters[firstWord(cleanInstruction(line))] {
		return true
	}
	return len(line) > 60 && isInstructionLine(line)
}
