package extract

import (
	"math"
)

// samplerProcessor reports the settings of a KSampler style node.
type samplerProcessor struct {
	base
	seedInput string
}

func (p *samplerProcessor) Compute(ev *Evaluator) (interface{}, error) {
	params := make(map[string]interface{})
	p.emit(ev, params, ParamSeed, p.seedInput)
	p.emit(ev, params, ParamSteps, "steps")
	p.emit(ev, params, ParamCfgScale, "cfg")
	p.emit(ev, params, ParamSampler, "sampler_name")
	p.emit(ev, params, ParamPrompt, "positive")
	p.emit(ev, params, ParamNegativePrompt, "negative")

	if latent, ok := p.resolve(ev, "latent_image").(map[string]interface{}); ok {
		w, wok := Stringify(latent["width"])
		h, hok := Stringify(latent["height"])
		if wok && hok {
			params[ParamSize] = w + "x" + h
		}
	}
	return params, nil
}

func (p *samplerProcessor) emit(ev *Evaluator, params map[string]interface{}, key, input string) {
	if s, ok := Stringify(p.resolve(ev, input)); ok {
		params[key] = s
	}
}

// passthroughProcessor returns one resolved input unchanged.
type passthroughProcessor struct {
	base
	input string
}

func (p *passthroughProcessor) Compute(ev *Evaluator) (interface{}, error) {
	return p.resolve(ev, p.input), nil
}

type latentProcessor struct {
	base
}

func (p *latentProcessor) Compute(ev *Evaluator) (interface{}, error) {
	width := p.resolve(ev, "width")
	height := p.resolve(ev, "height")
	if width == nil && height == nil {
		return nil, nil
	}
	return map[string]interface{}{"width": width, "height": height}, nil
}

// clipSkipProcessor turns a negative stop_at_clip_layer into a clip skip count.
type clipSkipProcessor struct {
	base
}

func (p *clipSkipProcessor) Compute(ev *Evaluator) (interface{}, error) {
	v := p.resolve(ev, "stop_at_clip_layer")
	if v == nil {
		return nil, nil
	}
	layer, err := toFloat(v)
	if err != nil {
		return nil, err
	}
	if layer >= 0 {
		return nil, nil
	}
	skip, _ := Stringify(math.Abs(layer))
	return map[string]interface{}{ParamClipSkip: skip}, nil
}
