package features

import "strings"

// CategoricalGroup describes how one categorical field was one-hot encoded at
// training time: columns are named Field + Separator + category.
type CategoricalGroup struct {
	Field      string
	Separator  string
	Categories []string
}

// Prefix is the column-name prefix shared by the group's indicator columns.
func (g CategoricalGroup) Prefix() string { return g.Field + g.Separator }

// Known reports whether category is one the group was trained with.
func (g CategoricalGroup) Known(category string) bool {
	for _, c := range g.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// DefaultCategoricalGroups is the encoding used by the loan training pipeline.
var DefaultCategoricalGroups = []CategoricalGroup{
	{Field: FieldGender, Separator: "_", Categories: []string{"Male", "Female"}},
	{Field: FieldMarried, Separator: "_", Categories: []string{"Yes", "No"}},
	{Field: FieldDependents, Separator: "_", Categories: []string{"0", "1", "2", "3+"}},
	{Field: FieldEducation, Separator: "_", Categories: []string{"Graduate", "Not Graduate"}},
	{Field: FieldSelfEmployed, Separator: "_", Categories: []string{"Yes", "No"}},
	{Field: FieldPropertyArea, Separator: "_", Categories: []string{"Urban", "Semiurban", "Rural"}},
}

// matchGroup finds the group whose prefix matches name and returns the category
// suffix. The longest prefix wins so overlapping field names stay unambiguous.
func matchGroup(groups []CategoricalGroup, name string) (CategoricalGroup, string, bool) {
	var (
		best     CategoricalGroup
		bestLen  int
		category string
	)
	for _, g := range groups {
		p := g.Prefix()
		if len(p) > bestLen && strings.HasPrefix(name, p) {
			best, bestLen, category = g, len(p), name[len(p):]
		}
	}
	return best, category, bestLen > 0
}
