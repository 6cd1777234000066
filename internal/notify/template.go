package notify

import (
	"fmt"
	"html"
	"regexp"
	"sort"
	"strings"

	"github.com/studypay/duebell/internal/models"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\}\}`)

// Placeholders extracts the distinct placeholder names referenced by text,
// sorted for stable error messages.
func Placeholders(text string) []string {
	seen := map[string]struct{}{}
	for _, match := range placeholderPattern.FindAllStringSubmatch(text, -1) {
		seen[match[1]] = struct{}{}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateTemplate checks placeholder syntax and membership at save time.
// Malformed markers (unclosed or stray braces) and references outside the
// allowed set are configuration errors; they never reach the dispatcher.
func ValidateTemplate(subject, body string, allowed []string) error {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		allowedSet[name] = struct{}{}
	}

	for _, section := range []struct {
		label string
		text  string
	}{
		{"subject", subject},
		{"body", body},
	} {
		if err := checkMarkerSyntax(section.text); err != nil {
			return fmt.Errorf("%s: %w", section.label, err)
		}
		for _, name := range Placeholders(section.text) {
			if _, ok := allowedSet[name]; !ok {
				return fmt.Errorf("%s references unknown placeholder {{%s}}", section.label, name)
			}
		}
	}

	return nil
}

// checkMarkerSyntax rejects braces that are not part of a well-formed
// placeholder: unclosed markers ("{{amount"), bad names ("{{ due date }}")
// and single-brace typos ("{amount}"). Any brace left after stripping valid
// markers would go out literally, so all of them are save-time errors.
func checkMarkerSyntax(text string) error {
	stripped := placeholderPattern.ReplaceAllString(text, "")
	if idx := strings.IndexAny(stripped, "{}"); idx >= 0 {
		return fmt.Errorf("malformed placeholder marker near %q", snippet(stripped, idx))
	}
	return nil
}

func snippet(text string, idx int) string {
	end := idx + 16
	if end > len(text) {
		end = len(text)
	}
	return text[idx:end]
}

// Render substitutes every placeholder with the HTML-escaped string form of
// the matching event field. A placeholder with no matching field fails the
// render: an unresolved marker must never appear in an outbound message.
func Render(tmpl models.MessageTemplate, data map[string]string) (Rendered, error) {
	subject, err := substitute(tmpl.Subject, data, false)
	if err != nil {
		return Rendered{}, fmt.Errorf("render subject: %w", err)
	}

	body, err := substitute(tmpl.Body, data, true)
	if err != nil {
		return Rendered{}, fmt.Errorf("render body: %w", err)
	}

	return Rendered{Subject: subject, Body: body}, nil
}

func substitute(text string, data map[string]string, escape bool) (string, error) {
	var missing []string

	out := placeholderPattern.ReplaceAllStringFunc(text, func(marker string) string {
		name := placeholderPattern.FindStringSubmatch(marker)[1]
		value, ok := data[name]
		if !ok {
			missing = append(missing, name)
			return marker
		}
		if escape {
			return html.EscapeString(value)
		}
		return value
	})

	if len(missing) > 0 {
		return "", fmt.Errorf("no value for placeholder {{%s}}", missing[0])
	}
	return out, nil
}
