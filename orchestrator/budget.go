package orchestrator

import "strings"

const (
	budgetFloor        = 8000
	budgetReserveFloor = 2000
	budgetUsableFloor  = 2000
	budgetCharCap      = 180000
	largeModelCharCap  = 100000
)

// contextBudget sizes the assembled context in characters. The caller's
// preference sets a floor of at least 8000. A known context window converts
// to characters at 4 chars/token after reserving 15% (at least 2000 tokens)
// for the prompt scaffolding and the reply. Without a window, models known
// to carry large windows get five times the base, capped.
func contextBudget(maxContextChars, windowTokens int, modelName string) int {
	base := maxContextChars
	if base < budgetFloor {
		base = budgetFloor
	}

	if windowTokens > 0 {
		reserve := windowTokens * 15 / 100
		if reserve < budgetReserveFloor {
			reserve = budgetReserveFloor
		}
		usable := windowTokens - reserve
		if usable < budgetUsableFloor {
			usable = budgetUsableFloor
		}
		chars := usable * 4
		if chars > budgetCharCap {
			chars = budgetCharCap
		}
		if chars > base {
			return chars
		}
		return base
	}

	name := strings.ToLower(modelName)
	if strings.Contains(name, "gpt-4o") || strings.Contains(name, "4o") || strings.Contains(name, "gpt-4.1") {
		expanded := base * 5
		if expanded > largeModelCharCap {
			expanded = largeModelCharCap
		}
		return expanded
	}
	return base
}
