package llm

import "strings"

// LooksLikeCode reports whether model output resembles code, markup or a raw
// data structure rather than a plain-language answer. Such output must never
// reach the user.
func LooksLikeCode(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	if strings.Contains(t, "```") {
		return true
	}
	switch t[0] {
	case '{', '[', '<':
		return true
	}
	lower := strings.ToLower(t)
	codeMarkers := []string{
		"def ", "import ", "function ", "func ", "print(", "console.log",
		"select ", "return ", "#include", "class ", "var ", "let ", "const ",
	}
	for _, m := range codeMarkers {
		if strings.HasPrefix(lower, m) || strings.Contains(lower, "\n"+m) {
			return true
		}
	}
	// Heavy brace or semicolon density is a strong code signal in short text.
	braces := strings.Count(t, "{") + strings.Count(t, "}") + strings.Count(t, ";")
	return braces > 0 && len(t) < 400 && braces*20 >= len(t)
}

// LooksLikeInstructions reports whether output reads as the model explaining
// how to compute an answer instead of answering.
func LooksLikeInstructions(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	prefixes := []string{
		"to calculate", "to compute", "to find", "you can ", "you should ",
		"first,", "step 1", "here's how", "here is how",
	}
	for _, p := range prefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}
