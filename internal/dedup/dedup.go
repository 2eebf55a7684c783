// Package dedup flags near-duplicate sibling names. Findings are advisory;
// nothing is merged automatically.
package dedup

import (
	"sort"

	"github.com/JonMunkholm/catalog/internal/mapper"
	"github.com/JonMunkholm/catalog/internal/taxonomy"
)

// DefaultThreshold is the similarity above which two names are reported.
const DefaultThreshold = 0.8

// EditDistance is the Levenshtein distance between a and b, counted in runes
// with unit cost for insertion, deletion and substitution.
func EditDistance(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) < len(rb) {
		ra, rb = rb, ra
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Similarity returns (maxLen - distance) / maxLen over the normalized forms
// of a and b. Two empty names are identical.
func Similarity(a, b string) float64 {
	na, nb := []rune(taxonomy.NormalizeName(a)), []rune(taxonomy.NormalizeName(b))
	maxLen := max(len(na), len(nb))
	if maxLen == 0 {
		return 1
	}
	d := EditDistance(string(na), string(nb))
	return float64(maxLen-d) / float64(maxLen)
}

// Pair is two sibling names that look alike.
type Pair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

// Detector compares every unordered pair of names. The cost is quadratic in
// the number of names and in their length.
type Detector struct {
	Threshold float64
}

// New returns a Detector. A threshold outside (0, 1) selects DefaultThreshold.
func New(threshold float64) Detector {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultThreshold
	}
	return Detector{Threshold: threshold}
}

// Find reports every pair scoring strictly above the threshold, highest
// score first. Input order breaks ties.
func (d Detector) Find(names []string) []Pair {
	var pairs []Pair
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if s := Similarity(names[i], names[j]); s > d.Threshold {
				pairs = append(pairs, Pair{A: names[i], B: names[j], Score: s})
			}
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].Score > pairs[j].Score })
	return pairs
}

// Finding is a Pair located in the tree.
type Finding struct {
	Level  taxonomy.Level `json:"level"`
	Parent string         `json:"parent"`
	Pair
}

// ScanTree runs the detector over every sibling set of a mapped tree:
// categories, the subcategories of each category and the jobs of each
// subcategory.
func (d Detector) ScanTree(tree *mapper.Tree) []Finding {
	if tree == nil {
		return nil
	}

	var out []Finding
	add := func(level taxonomy.Level, parent string, names []string) {
		for _, p := range d.Find(names) {
			out = append(out, Finding{Level: level, Parent: parent, Pair: p})
		}
	}

	cats := make([]string, len(tree.Categories))
	for i, c := range tree.Categories {
		cats[i] = c.Name
	}
	add(taxonomy.LevelCategory, tree.SectorName, cats)

	for _, c := range tree.Categories {
		subs := make([]string, len(c.Subcategories))
		for i, s := range c.Subcategories {
			subs[i] = s.Name
		}
		add(taxonomy.LevelSubcategory, c.Name, subs)

		for _, s := range c.Subcategories {
			jobs := make([]string, len(s.Jobs))
			for i, j := range s.Jobs {
				jobs[i] = j.Name
			}
			add(taxonomy.LevelJob, s.Name, jobs)
		}
	}
	return out
}
