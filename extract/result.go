package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Generation parameter keys reported in Result.GenParams.
const (
	ParamPrompt         = "prompt"
	ParamNegativePrompt = "negative_prompt"
	ParamSteps          = "steps"
	ParamSampler        = "sampler"
	ParamCfgScale       = "cfg_scale"
	ParamSeed           = "seed"
	ParamSize           = "size"
	ParamClipSkip       = "clip_skip"
)

// ParamKeys is the closed set of keys a Result may carry in GenParams.
var ParamKeys = []string{
	ParamPrompt,
	ParamNegativePrompt,
	ParamSteps,
	ParamSampler,
	ParamCfgScale,
	ParamSeed,
	ParamSize,
	ParamClipSkip,
}

func isParamKey(k string) bool {
	for _, p := range ParamKeys {
		if p == k {
			return true
		}
	}
	return false
}

// Result is the flat parameter record extracted from a workflow.
type Result struct {
	GenParams map[string]string `json:"gen_params" yaml:"gen_params"`
	Loras     string            `json:"loras,omitempty" yaml:"loras,omitempty"`
}

func newResult() *Result {
	return &Result{GenParams: make(map[string]string)}
}

// IsEmpty reports whether nothing was extracted.
func (r *Result) IsEmpty() bool {
	return len(r.GenParams) == 0 && r.Loras == ""
}

// Map returns the result as generic JSON data.
func (r *Result) Map() map[string]interface{} {
	gp := make(map[string]interface{}, len(r.GenParams))
	for k, v := range r.GenParams {
		gp[k] = v
	}
	retv := map[string]interface{}{"gen_params": gp}
	if r.Loras != "" {
		retv["loras"] = r.Loras
	}
	return retv
}

// Stringify renders a resolved literal the way parameters are reported.
// Integral numbers are written without a fractional part.
func Stringify(v interface{}) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case float64:
		if value == math.Trunc(value) && math.Abs(value) < 1e15 {
			return strconv.FormatInt(int64(value), 10), true
		}
		return strconv.FormatFloat(value, 'f', -1, 64), true
	case float32:
		return Stringify(float64(value))
	case int:
		return strconv.Itoa(value), true
	case int64:
		return strconv.FormatInt(value, 10), true
	case json.Number:
		return numberString(value), true
	case bool:
		return strconv.FormatBool(value), true
	}
	return fmt.Sprint(v), true
}

// numberString keeps integers exactly as written and renders other numbers like float64.
func numberString(n json.Number) string {
	s := n.String()
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	if _, err := strconv.ParseUint(s, 10, 64); err == nil {
		return s
	}
	if f, err := n.Float64(); err == nil {
		out, _ := Stringify(f)
		return out
	}
	return s
}

// toFloat converts a numeric literal, failing on anything else.
func toFloat(v interface{}) (float64, error) {
	switch value := v.(type) {
	case float64:
		return value, nil
	case float32:
		return float64(value), nil
	case int:
		return float64(value), nil
	case int64:
		return float64(value), nil
	case json.Number:
		return value.Float64()
	case string:
		return strconv.ParseFloat(value, 64)
	}
	return 0, fmt.Errorf("expected a number, got %T", v)
}
