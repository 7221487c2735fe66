// Package textfile reads and writes the line-oriented item files that task
// runs consume and produce.
package textfile

import (
	"fmt"
	"os"
	"strings"
)

// DefaultSeparator splits combined records within a single line, such as
// "user----pass".
const DefaultSeparator = "----"

// ResolvePath appends the .txt suffix unless the name already carries one.
// The check is case-insensitive.
func ResolvePath(name string) string {
	if strings.HasSuffix(strings.ToLower(name), ".txt") {
		return name
	}
	return name + ".txt"
}

// ReadItems loads the ordered items of a text file: one item per line, lines
// containing separator split into several items, everything whitespace
// trimmed and blanks dropped. An empty separator disables the per-line
// split.
func ReadItems(name, separator string) ([]string, error) {
	data, err := os.ReadFile(ResolvePath(name))
	if err != nil {
		return nil, fmt.Errorf("failed to read items file: %w", err)
	}

	var items []string
	for _, line := range strings.Split(string(data), "\n") {
		parts := []string{line}
		if separator != "" {
			parts = strings.Split(line, separator)
		}
		for _, part := range parts {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
	}
	return items, nil
}

// Write stores items in a text file, joined by sep and terminated with a
// newline. An empty sep joins with newlines, one item per line. With
// appendMode the items are added to the existing content instead of
// replacing it.
func Write(name string, items []string, appendMode bool, sep string) error {
	if len(items) == 0 {
		return nil
	}
	if sep == "" {
		sep = "\n"
	}

	flags := os.O_CREATE | os.O_WRONLY
	if appendMode {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(ResolvePath(name), flags, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open items file: %w", err)
	}
	if _, err := f.WriteString(strings.Join(items, sep) + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("failed to write items file: %w", err)
	}
	return f.Close()
}
