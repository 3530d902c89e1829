// Comfyparams extracts generation parameters (prompt, sampler settings, LoRA stack,
// clip-skip, image size) from ComfyUI API-format workflows. A workflow is evaluated
// as a graph: entry nodes such as KSampler are resolved by following their input
// references into other nodes, each computed by a processor registered for its type.
package comfyparams
