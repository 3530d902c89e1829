package extract

import (
	"strings"
)

const defaultDelimiter = ", "

type joinStringsProcessor struct {
	base
}

func (p *joinStringsProcessor) Compute(ev *Evaluator) (interface{}, error) {
	delimiter := defaultDelimiter
	if v, ok := p.literal("delimiter"); ok {
		if s, ok := v.(string); ok {
			delimiter = s
		}
	}

	first := presentString(p.resolve(ev, "string1"))
	second := presentString(p.resolve(ev, "string2"))
	switch {
	case first == "" && second == "":
		return nil, nil
	case first == "":
		return second, nil
	case second == "":
		return first, nil
	}
	return first + delimiter + second, nil
}

// presentString stringifies v, reporting nil and the empty string alike as "".
func presentString(v interface{}) string {
	s, _ := Stringify(v)
	return s
}

type stringConstantProcessor struct {
	base
}

func (p *stringConstantProcessor) Compute(ev *Evaluator) (interface{}, error) {
	v := p.resolve(ev, "string")
	if v == nil {
		return nil, nil
	}
	s, _ := Stringify(v)
	if strip, _ := p.resolve(ev, "strip_newlines").(bool); strip {
		s = strings.ReplaceAll(s, "\r\n", " ")
		s = strings.ReplaceAll(s, "\n", " ")
	}
	return s, nil
}

// triggerWordProcessor joins the text of the active trigger words.
type triggerWordProcessor struct {
	base
}

func (p *triggerWordProcessor) Compute(ev *Evaluator) (interface{}, error) {
	words := make([]string, 0)
	for _, entry := range activeEntries(p.resolve(ev, "toggle_trigger_words")) {
		if text := presentString(entry["text"]); text != "" {
			words = append(words, text)
		}
	}
	if len(words) == 0 {
		return nil, nil
	}
	return strings.Join(words, defaultDelimiter), nil
}

// activeEntries returns the toggle entries that are active and not placeholders.
// The list is accepted bare or wrapped in a map under "__value__".
func activeEntries(v interface{}) []map[string]interface{} {
	if wrapped, ok := v.(map[string]interface{}); ok {
		v = wrapped["__value__"]
	}
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}

	retv := make([]map[string]interface{}, 0, len(list))
	for _, item := range list {
		entry, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		if active, _ := entry["active"].(bool); !active {
			continue
		}
		if dummy, _ := entry["_isDummy"].(bool); dummy {
			continue
		}
		retv = append(retv, entry)
	}
	return retv
}
