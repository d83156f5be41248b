package command

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadEnvironments lists the values of "EnvName=" lines in an engine
// environment file, decoded with codec.
func ReadEnvironments(path string, codec Codec) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("command: open env file: %w", err)
	}
	defer f.Close()

	out := []string{}
	sc := bufio.NewScanner(codec.enc.NewDecoder().Reader(f))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(line, "EnvName") {
			continue
		}
		_, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("command: read env file: %w", err)
	}
	return out, nil
}
