package orchestrator

import (
	"fmt"
	"strings"
)

const defaultHeading = "General"

// UsedSource records one chunk that actually made it into the assembled
// context. The set is exact: a source is listed if and only if its text (or
// a truncated prefix of it) was emitted.
type UsedSource struct {
	Id      string
	Url     string
	Section string
}

// assembleContext renders ranked candidates into the bounded context block
// handed to the answer prompts.
//
// Candidates are visited in rank order; duplicates (by fallback id) and
// empty texts are skipped. Each chunk renders as
//
//	[h1 > h2]
//	text
//
//	(Source: url)
//
// with the bracketed line omitted when the chunk carries no hierarchy.
// Blocks are grouped under their top-level heading in first-seen order and
// groups are joined with a horizontal rule. The budget is enforced on total
// emitted runes; the block that crosses it is truncated, still counts as
// used, and ends assembly.
func assembleContext(cands []*candidate, budget int) (string, []UsedSource) {
	type group struct {
		heading string
		blocks  []string
	}
	var groups []*group
	byHeading := make(map[string]*group)

	seen := make(map[string]bool)
	var used []UsedSource
	usedChars := 0

	for _, c := range cands {
		text := strings.TrimSpace(c.record.Text)
		if text == "" {
			continue
		}
		id := c.record.FallbackID()
		if seen[id] {
			continue
		}
		seen[id] = true

		var block string
		if hierarchy := strings.Join(c.record.Hierarchy, " > "); hierarchy != "" {
			block = fmt.Sprintf("[%s]\n%s\n\n(Source: %s)", hierarchy, text, c.record.Url)
		} else {
			block = fmt.Sprintf("%s\n\n(Source: %s)", text, c.record.Url)
		}

		runes := []rune(block)
		truncated := false
		if usedChars+len(runes) > budget {
			remaining := budget - usedChars
			if remaining <= 0 {
				break
			}
			if remaining < len(runes) {
				runes = runes[:remaining]
				block = string(runes)
			}
			truncated = true
		}

		heading := c.record.TopHeading()
		if heading == "" {
			heading = defaultHeading
		}
		g, ok := byHeading[heading]
		if !ok {
			g = &group{heading: heading}
			byHeading[heading] = g
			groups = append(groups, g)
		}
		g.blocks = append(g.blocks, block)
		usedChars += len(runes)
		used = append(used, UsedSource{Id: id, Url: c.record.Url, Section: heading})

		if truncated {
			break
		}
	}

	sections := make([]string, 0, len(groups))
	for _, g := range groups {
		sections = append(sections, strings.Join(g.blocks, "\n\n"))
	}
	return strings.Join(sections, "\n\n---\n\n"), used
}
