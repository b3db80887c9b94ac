package output

import (
	"fmt"
	"os"
	"strings"
)

// BuildIDName is the output carrying the CodeBuild build ID.
const BuildIDName = "aws-build-id"

// Set appends name=value to the runner's output file at path. Values
// spanning several lines use the heredoc form with a delimiter that does not
// occur in the value.
func Set(path, name, value string) error {
	if path == "" {
		return fmt.Errorf("no output file configured for %s", name)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open output file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(format(name, value)); err != nil {
		return fmt.Errorf("failed to write output %s: %w", name, err)
	}
	return nil
}

func format(name, value string) string {
	if !strings.ContainsAny(value, "\r\n") {
		return fmt.Sprintf("%s=%s\n", name, value)
	}

	delimiter := "ghadelimiter"
	for strings.Contains(value, delimiter) {
		delimiter += "_"
	}
	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter)
}
