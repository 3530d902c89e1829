package client

import "github.com/richinsley/comfyparams/graphapi"

// There may be other DataOutput types.  We definitely need a text type

type DataOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// PromptHistoryItem is a prompt the server has executed, with the API-format
// workflow it ran and the images it produced per output node.
type PromptHistoryItem struct {
	PromptID string
	Index    int
	Prompt   *graphapi.Workflow
	Outputs  map[string][]DataOutput
}

type PromptError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details"`
	ExtraInfo map[string]interface{} `json:"extra_info"`
}
