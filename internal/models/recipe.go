package models

import (
	"strings"
	"time"
)

// Instructions is either free text or a list of steps.
type Instructions interface {
	Lines() []string
}

// InstructionText holds instructions given as one block of text.
type InstructionText string

func (t InstructionText) Lines() []string {
	var lines []string
	for _, line := range strings.Split(string(t), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// HowToStep is a single structured instruction step.
type HowToStep struct {
	Name string
	Text string
}

// InstructionSteps holds instructions given as structured steps.
type InstructionSteps []HowToStep

func (s InstructionSteps) Lines() []string {
	lines := make([]string, 0, len(s))
	for _, step := range s {
		text := strings.TrimSpace(step.Text)
		if text == "" {
			text = strings.TrimSpace(step.Name)
		}
		if text != "" {
			lines = append(lines, text)
		}
	}
	return lines
}

// StructuredRecipe is recipe metadata found in a web page. Every field is
// optional.
type StructuredRecipe struct {
	Title        string
	Description  string
	Ingredients  []string
	Instructions Instructions
	ImageURLs    []string
	Categories   []string
	Keywords     []string
	Cuisine      string
	Yield        string
	PrepTime     string
	CookTime     string
	TotalTime    string
	// Nutrition maps NutritionInformation properties to their values,
	// e.g. "calories" -> "250 kcal".
	Nutrition    map[string]string
	Source       string
}

// InstructionLines returns the instruction steps as plain strings.
func (s *StructuredRecipe) InstructionLines() []string {
	if s == nil || s.Instructions == nil {
		return nil
	}
	return s.Instructions.Lines()
}

// Usable reports whether the recipe carries ingredients or instructions.
func (s *StructuredRecipe) Usable() bool {
	return s != nil && (len(s.Ingredients) > 0 || len(s.InstructionLines()) > 0)
}

// Empty reports whether no field was found at all.
func (s *StructuredRecipe) Empty() bool {
	if s.Usable() {
		return false
	}
	return s == nil || (strings.TrimSpace(s.Title) == "" &&
		strings.TrimSpace(s.Description) == "" &&
		len(s.ImageURLs) == 0 &&
		len(s.Categories) == 0 &&
		len(s.Keywords) == 0 &&
		s.Cuisine == "" &&
		s.Yield == "" &&
		s.PrepTime == "" &&
		s.CookTime == "" &&
		s.TotalTime == "" &&
		len(s.Nutrition) == 0)
}

const (
	ContentSourceWeb  = "web"
	ContentSourceNote = "note"
)

const UntitledRecipe = "Untitled Recipe"

// Recipe is the final resolved recipe record.
type Recipe struct {
	ID            string
	Title         string
	Description   string
	Ingredients   []string
	Instructions  []string
	Categories    []string
	Tags          []string
	Keywords      []string
	Cuisine       string
	Nutrition     map[string]string
	Image         *Image
	SourceURL     string
	Yield         string
	PrepTime      string
	CookTime      string
	TotalTime     string
	Created       time.Time
	Updated       time.Time
	ContentSource string
	LowConfidence bool
	Missing       []string
}
