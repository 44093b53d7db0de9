// Package credentials resolves the upstream API key/secret pair once at startup.
package credentials

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrMalformedSecrets is returned when the secrets file does not hold a key and a secret.
var ErrMalformedSecrets = errors.New("the first line needs to be the apiKey, the second line the apiSecret")

// Source names where a credential pair came from.
type Source string

const (
	SourceConfig Source = "config"
	SourceFile   Source = "file"
)

// Credentials is an API key/secret pair.
type Credentials struct {
	APIKey    string
	APISecret string
	Source    Source
}

// String redacts the secret.
func (c Credentials) String() string {
	return fmt.Sprintf("apiKey=%s apiSecret=%s (from %s)", Redact(c.APIKey), Redact(c.APISecret), c.Source)
}

// Redact keeps at most the first four characters of s.
func Redact(s string) string {
	if s == "" {
		return "(empty)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:4] + "****"
}

// Resolve returns the configured pair when both values are set, otherwise it
// reads the first two lines of secretsFile.
func Resolve(apiKey, apiSecret, secretsFile string) (Credentials, error) {
	if apiKey != "" && apiSecret != "" {
		return Credentials{APIKey: apiKey, APISecret: apiSecret, Source: SourceConfig}, nil
	}

	return FromFile(secretsFile)
}

// FromFile reads a two-line secrets file: key first, secret second.
func FromFile(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("could not open secrets file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for len(lines) < 2 && scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("could not read secrets file: %w", err)
	}

	if len(lines) < 2 || lines[0] == "" || lines[1] == "" {
		return Credentials{}, ErrMalformedSecrets
	}

	return Credentials{APIKey: lines[0], APISecret: lines[1], Source: SourceFile}, nil
}
