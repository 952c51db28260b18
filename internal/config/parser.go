package config

import (
	"fmt"
	"strings"
)

const utf8BOM = "\uFEFF"

// Parse overlays JSONC content onto base and validates the result. Blank
// content yields base unchanged.
func Parse(content string, base Config) (Config, []Warning, error) {
	content = strings.TrimPrefix(content, utf8BOM)

	body := strings.TrimLeft(content, " \t\r\n")
	switch {
	case strings.TrimSpace(body) == "":
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	case body[0] != '{' && !strings.HasPrefix(body, "//") && !strings.HasPrefix(body, "/*"):
		line := 1 + strings.Count(content[:len(content)-len(body)], "\n")
		return Config{}, nil, fmt.Errorf("line %d: config must be a JSONC object", line)
	}
	return parseJSONC(content, base)
}
