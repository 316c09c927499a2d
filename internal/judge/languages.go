package judge

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Harsh-BH/codepad/internal/domain"
)

// DefaultLanguageIDs maps languages to the hosted judge's numeric ids.
var DefaultLanguageIDs = map[domain.Language]int{
	domain.LangKotlin:     78,
	domain.LangJava:       62,
	domain.LangPython:     71,
	domain.LangJavaScript: 63,
	domain.LangCpp:        54,
	domain.LangC:          50,
}

// LanguageTable resolves a language to a judge language id, falling back to
// the id of a default language when unmapped.
type LanguageTable struct {
	ids      map[domain.Language]int
	fallback domain.Language
}

// NewLanguageTable creates a table. Missing entries of ids are not filled in.
func NewLanguageTable(ids map[domain.Language]int, fallback domain.Language) (*LanguageTable, error) {
	if len(ids) == 0 {
		ids = DefaultLanguageIDs
	}
	if _, ok := ids[fallback]; !ok {
		return nil, fmt.Errorf("judge: default language %q has no id", fallback)
	}
	copied := make(map[domain.Language]int, len(ids))
	for k, v := range ids {
		copied[k] = v
	}
	return &LanguageTable{ids: copied, fallback: fallback}, nil
}

// ID returns the judge id for lang.
func (t *LanguageTable) ID(lang domain.Language) int {
	if id, ok := t.ids[lang]; ok {
		return id
	}
	return t.ids[t.fallback]
}

// ParseLanguageIDs parses "kotlin=78,python=71" into a language id map.
func ParseLanguageIDs(raw string) (map[domain.Language]int, error) {
	ids := make(map[domain.Language]int)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("judge: invalid language id entry %q", entry)
		}
		lang := domain.Language(strings.ToLower(strings.TrimSpace(name)))
		if !lang.IsValid() {
			return nil, fmt.Errorf("judge: unknown language %q", name)
		}
		id, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("judge: invalid id for %s: %q", lang, raw)
		}
		ids[lang] = id
	}
	return ids, nil
}
