package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		lines        []string
		ingredients  []string
		instructions []string
		description  string
	}{
		{
			name: "substitution attached to ingredient",
			lines: []string{
				"Ingredients",
				"1 cup chopped pecans",
				"2 tbsp butter",
				"You can replace pecans with walnuts.",
				"Instructions",
				"Toast the nuts.",
				"Melt the butter and stir in the nuts.",
			},
			ingredients:  []string{"1 cup chopped pecans (replace pecans with walnuts)", "2 tbsp butter"},
			instructions: []string{"Toast the nuts.", "Melt the butter and stir in the nuts."},
		},
		{
			name:         "unmatched substitution kept as description",
			lines:        []string{"2 eggs", "Whisk the eggs.", "Substitutions are fine here"},
			ingredients:  []string{"2 eggs"},
			instructions: []string{"Whisk the eggs."},
			description:  "Substitutions are fine here",
		},
		{
			name: "to taste lines recovered from steps",
			lines: []string{
				"Ingredients",
				"2 cups rice",
				"Directions",
				"Rinse the rice.",
				"Optional additional seasonings to taste, I usually add garlic powder and smoked paprika",
				"To taste: salt and pepper",
				"Optional: chili flakes, lemon zest to taste",
				"Season to taste and serve.",
			},
			ingredients: []string{
				"2 cups rice",
				"Optional additional seasonings to taste, I usually add garlic powder and smoked paprika",
				"To taste: salt and pepper",
				"Optional: chili flakes, lemon zest to taste",
			},
			instructions: []string{"Rinse the rice.", "Season to taste and serve."},
		},
		{
			name:         "optional line with cooking verb stays a step",
			lines:        []string{"Directions", "Optional: melt butter over the top to taste"},
			instructions: []string{"Optional: melt butter over the top to taste"},
		},
		{
			name: "links stripped from lines",
			lines: []string{
				"Source: https://recipes.test/pesto-toast",
				"1 jar pesto (https://shop.test/pesto)",
				"2 slices bread",
				"www.recipes.test/pesto-toast",
				"Spread the pesto on the bread, video at https://video.test/toast",
			},
			ingredients:  []string{"1 jar pesto", "2 slices bread"},
			instructions: []string{"Spread the pesto on the bread, video at"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.lines)
			assert.Equal(t, tt.ingredients, got.ingredients)
			assert.Equal(t, tt.instructions, got.instructions)
			assert.Equal(t, tt.description, got.description)
		})
	}
}

func TestStripURLs(t *testing.T) {
	tests := []struct {
		line     string
		expected string
		keep     bool
	}{
		{"2 cups flour", "2 cups flour", true},
		{"1 jar pesto (https://shop.test/pesto)", "1 jar pesto", true},
		{"Serve with salsa, see https://a.test/salsa", "Serve with salsa, see", true},
		{"https://recipes.test/x", "", false},
		{"Source: https://recipes.test/x", "", false},
		{"Recipe from www.recipes.test/pie", "", false},
		{"Original recipe: https://a.test/b, adapted", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, keep := stripURLs(tt.line)
			assert.Equal(t, tt.keep, keep)
			assert.Equal(t, tt.expected, got)
		})
	}
}
