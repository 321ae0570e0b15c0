package extract

import "strings"

type plainText struct{}

func (plainText) Name() string { return "plain text" }

func (plainText) MIMETypes() []string {
	return []string{"text/plain", "text/x-plain", "application/octet-stream"}
}

func (plainText) Extensions() []string { return []string{".txt", ".text", ".log"} }

// Convert trims trailing whitespace per line and drops NUL bytes.
func (plainText) Convert(data string) (string, error) {
	data = strings.ReplaceAll(data, "\x00", "")
	lines := strings.Split(data, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}
