package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/bissquit/garden-console/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func parseFormat(s string) (outputFormat, error) {
	switch f := outputFormat(strings.ToLower(s)); f {
	case formatTable, formatJSON, formatYAML:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

// writeStructured renders v as JSON or YAML. YAML keys follow the JSON field
// names.
func writeStructured(w io.Writer, format outputFormat, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}

	if format == formatJSON {
		_, err := fmt.Fprintln(w, string(raw))
		return err
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(generic); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}

// statusText renders a service status for tables, e.g. "Partial Outage".
func statusText(s domain.ServiceStatus) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(s), "_", " "))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
