package extract

import (
	"fmt"
	"path"
	"strings"
)

const loraStackKey = "lora_stack"

func loraToken(name, strength string) string {
	return fmt.Sprintf("<lora:%s:%s>", name, strength)
}

// loraStackerProcessor builds "<lora:name:strength>" tokens from its toggle list and
// appends the upstream stack. As a loader the stack is reported under "lora_stack".
type loraStackerProcessor struct {
	base
	asLoader bool
}

func (p *loraStackerProcessor) Compute(ev *Evaluator) (interface{}, error) {
	tokens := make([]string, 0)
	for _, entry := range activeEntries(p.resolve(ev, "loras")) {
		name, nok := Stringify(entry["name"])
		strength, sok := Stringify(entry["strength"])
		if !nok || !sok {
			continue
		}
		tokens = append(tokens, loraToken(name, strength))
	}

	upstream := stackString(p.resolve(ev, loraStackKey))
	stack := joinNonEmpty([]string{strings.Join(tokens, " "), upstream}, " ")
	if stack == "" {
		return nil, nil
	}
	if p.asLoader {
		return map[string]interface{}{loraStackKey: stack}, nil
	}
	return stack, nil
}

// loraLoaderProcessor reports the single LoRA applied by a stock LoraLoader node.
type loraLoaderProcessor struct {
	base
}

func (p *loraLoaderProcessor) Compute(ev *Evaluator) (interface{}, error) {
	file, ok := Stringify(p.resolve(ev, "lora_name"))
	if !ok || file == "" {
		return nil, nil
	}
	strength, ok := Stringify(p.resolve(ev, "strength_model"))
	if !ok {
		strength = "1"
	}

	name := path.Base(strings.ReplaceAll(file, "\\", "/"))
	name = strings.TrimSuffix(name, path.Ext(name))
	return map[string]interface{}{loraStackKey: loraToken(name, strength)}, nil
}

// stackString extracts a LoRA stack from either a stacker's string output or a loader's map.
func stackString(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case map[string]interface{}:
		s, _ := value[loraStackKey].(string)
		return s
	}
	return ""
}

func joinNonEmpty(parts []string, sep string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
