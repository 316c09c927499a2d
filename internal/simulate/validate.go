package simulate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Harsh-BH/codepad/internal/domain"
)

var entryPoints = map[domain.Language]struct {
	pattern *regexp.Regexp
	hint    string
}{
	domain.LangKotlin: {regexp.MustCompile(`\bfun\s+main\s*\(`), "fun main()"},
	domain.LangJava:   {regexp.MustCompile(`\bstatic\s+void\s+main\s*\(`), "public static void main(String[] args)"},
	domain.LangCpp:    {regexp.MustCompile(`\bmain\s*\(`), "int main()"},
	domain.LangC:      {regexp.MustCompile(`\bmain\s*\(`), "int main()"},
}

// Validate statically checks delimiter balance and the presence of an entry point.
// It returns one diagnostic per problem found.
func Validate(lang domain.Language, src string) []string {
	var problems []string

	braces, parens := countDelimiters(src)
	if braces.open != braces.close || braces.negative {
		problems = append(problems, fmt.Sprintf("unbalanced braces: %d '{' vs %d '}'", braces.open, braces.close))
	}
	if parens.open != parens.close || parens.negative {
		problems = append(problems, fmt.Sprintf("unbalanced parentheses: %d '(' vs %d ')'", parens.open, parens.close))
	}

	if ep, ok := entryPoints[lang]; ok && !ep.pattern.MatchString(stripNoise(src)) {
		problems = append(problems, fmt.Sprintf("missing entry point: expected %s", ep.hint))
	}

	return problems
}

type delimiterCount struct {
	open, close int
	// negative is set when a closer appears before its opener.
	negative bool
}

func (d *delimiterCount) add(opening bool) {
	if opening {
		d.open++
		return
	}
	d.close++
	if d.close > d.open {
		d.negative = true
	}
}

// countDelimiters counts braces and parentheses outside string literals and comments.
func countDelimiters(src string) (braces, parens delimiterCount) {
	clean := stripNoise(src)
	for _, r := range clean {
		switch r {
		case '{':
			braces.add(true)
		case '}':
			braces.add(false)
		case '(':
			parens.add(true)
		case ')':
			parens.add(false)
		}
	}
	return braces, parens
}

// stripNoise blanks string/char literals and comments so delimiters and
// keywords inside them are ignored.
func stripNoise(src string) string {
	var b strings.Builder
	b.Grow(len(src))

	runes := []rune(src)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				b.WriteRune('\n')
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
			b.WriteRune(' ')
		case r == '"' || r == '\'' || r == '`':
			quote := r
			i++
			for i < len(runes) && runes[i] != quote && runes[i] != '\n' {
				if runes[i] == '\\' {
					i++
				}
				i++
			}
			b.WriteString(`""`)
		case r == '#' && i+1 < len(runes) && runes[i+1] == ' ':
			// python comment; "#include" and friends are kept.
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
			if i < len(runes) {
				b.WriteRune('\n')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
