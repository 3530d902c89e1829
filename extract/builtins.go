package extract

import "github.com/richinsley/comfyparams/graphapi"

// Node types handled by the built-in processors.
const (
	TypeKSampler                = "KSampler"
	TypeKSamplerAdvanced        = "KSamplerAdvanced"
	TypeCLIPTextEncode          = "CLIPTextEncode"
	TypeEmptyLatentImage        = "EmptyLatentImage"
	TypeEmptySD3LatentImage     = "EmptySD3LatentImage"
	TypeFluxGuidance            = "FluxGuidance"
	TypeJoinStrings             = "JoinStrings"
	TypeStringConstant          = "StringConstant"
	TypeStringConstantMultiline = "StringConstantMultiline"
	TypeCLIPSetLastLayer        = "CLIPSetLastLayer"
	TypeTriggerWordToggle       = "TriggerWord Toggle (LoraManager)"
	TypeLoraStacker             = "Lora Stacker (LoraManager)"
	TypeLoraManagerLoader       = "Lora Loader (LoraManager)"
	TypeLoraLoader              = "LoraLoader"
)

// base carries what every processor is constructed from.
type base struct {
	id       string
	node     *graphapi.Node
	workflow *graphapi.Workflow
}

func (b base) resolve(ev *Evaluator, name string) interface{} {
	return ev.ResolveInput(b.id, name)
}

// literal returns the input as written in the workflow, without following references.
func (b base) literal(name string) (interface{}, bool) {
	return b.node.Input(name)
}

func newBase(id string, node *graphapi.Node, wf *graphapi.Workflow) base {
	return base{id: id, node: node, workflow: wf}
}

// RegisterBuiltins registers every built-in processor with r.
func RegisterBuiltins(r *Registry) {
	r.Register(TypeKSampler, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &samplerProcessor{base: newBase(id, node, wf), seedInput: "seed"}
	})
	r.Register(TypeKSamplerAdvanced, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &samplerProcessor{base: newBase(id, node, wf), seedInput: "noise_seed"}
	})
	r.Register(TypeCLIPTextEncode, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &passthroughProcessor{base: newBase(id, node, wf), input: "text"}
	})
	r.Register(TypeFluxGuidance, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &passthroughProcessor{base: newBase(id, node, wf), input: "conditioning"}
	})
	latent := func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &latentProcessor{base: newBase(id, node, wf)}
	}
	r.Register(TypeEmptyLatentImage, latent)
	r.Register(TypeEmptySD3LatentImage, latent)
	r.Register(TypeJoinStrings, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &joinStringsProcessor{base: newBase(id, node, wf)}
	})
	constant := func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &stringConstantProcessor{base: newBase(id, node, wf)}
	}
	r.Register(TypeStringConstant, constant)
	r.Register(TypeStringConstantMultiline, constant)
	r.Register(TypeCLIPSetLastLayer, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &clipSkipProcessor{base: newBase(id, node, wf)}
	})
	r.Register(TypeTriggerWordToggle, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &triggerWordProcessor{base: newBase(id, node, wf)}
	})
	r.Register(TypeLoraStacker, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &loraStackerProcessor{base: newBase(id, node, wf)}
	})
	r.Register(TypeLoraManagerLoader, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &loraStackerProcessor{base: newBase(id, node, wf), asLoader: true}
	})
	r.Register(TypeLoraLoader, func(id string, node *graphapi.Node, wf *graphapi.Workflow) Processor {
		return &loraLoaderProcessor{base: newBase(id, node, wf)}
	})
}
