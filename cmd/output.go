package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/nb75km/nenavi-cli/config"
)

// truncate caps s at max runes, appending an ellipsis. Slicing bytes
// would split multibyte text mid-rune.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return lo.Substring(s, 0, uint(max-3)) + "..."
}

// writeOutput renders v in the requested format. textFn renders the
// human-readable form; json and yaml marshal v directly.
func writeOutput(w io.Writer, format config.OutputFormat, v any, textFn func(io.Writer)) error {
	switch format {
	case config.OutputFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputFormatYAML:
		data, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		_, err = w.Write(data)
		return err
	default:
		textFn(w)
		return nil
	}
}

// outputFormat resolves the per-command -o flag against the configured
// default.
func outputFormat(flag string, cfg *config.CLIConfig) config.OutputFormat {
	if flag != "" {
		return config.OutputFormat(flag)
	}
	return cfg.OutputFormat
}
