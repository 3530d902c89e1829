package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
	"github.com/ohler55/ojg/jp"
	"github.com/richinsley/comfyparams/extract"
)

// record turns a parse result into generic data, tagged with where the workflow came from.
func record(key, source string, res *extract.Result) map[string]interface{} {
	m := res.Map()
	if source != "" {
		m[key] = source
	}
	return m
}

// render writes v in the given format. When sel is set only the values it matches are
// written: a single match on its own, several as a list.
func render(w io.Writer, format, sel string, v interface{}) error {
	if sel != "" {
		expr, err := jp.ParseString(sel)
		if err != nil {
			return fmt.Errorf("invalid JSONPath expression: %w", err)
		}
		results := expr.Get(v)
		switch len(results) {
		case 0:
			return nil
		case 1:
			v = results[0]
		default:
			v = results
		}
	}

	switch format {
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(b)
		return err
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(v)
	}
	return fmt.Errorf("unsupported output format %q", format)
}
