package transformer

import "strings"

// Separators used by packed source fields.
const (
	CodeDisplaySeparator = ":"
	SiteSeparator        = ","
	ProjectSeparator     = ";"
)

// BannedSentinel disables decomposition: "Adenocarcinoma, NOS" is one value.
const BannedSentinel = "NOS"

// Decompose splits value on sep, trimming every token and dropping empty
// ones. A value containing BannedSentinel is returned whole.
func Decompose(value, sep string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if strings.Contains(value, BannedSentinel) {
		return []string{value}
	}

	var tokens []string
	for _, part := range strings.Split(value, sep) {
		if part = strings.TrimSpace(part); part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// SplitCodeDisplay splits "code: display". ok is false when the value does
// not carry exactly a non-empty code and display.
func SplitCodeDisplay(value string) (code, display string, ok bool) {
	value = strings.TrimSpace(value)
	if strings.Contains(value, BannedSentinel) || !strings.Contains(value, CodeDisplaySeparator) {
		return "", "", false
	}
	parts := strings.SplitN(value, CodeDisplaySeparator, 2)
	code, display = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if code == "" || display == "" {
		return "", "", false
	}
	return code, display, true
}

// SplitProjects decomposes a ";"-delimited project list, keeping the first
// occurrence of each code.
func SplitProjects(value string) []string {
	seen := make(map[string]struct{})
	var codes []string
	for _, code := range Decompose(value, ProjectSeparator) {
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		codes = append(codes, code)
	}
	return codes
}
