package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"

	"github.com/richinsley/comfyparams/graphapi"
)

/*
@routes.get("/history")
@routes.get("/history/{prompt_id}")
*/

var ErrPromptNotFound = errors.New("prompt not found in history")

func (c *ComfyClient) getJSON(ctx context.Context, path string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.httpURL(path), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		perror := struct {
			Error PromptError `json:"error"`
		}{}
		if json.Unmarshal(body, &perror) == nil && perror.Error.Message != "" {
			return fmt.Errorf("GET %s: %s", path, perror.Error.Message)
		}
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	return json.Unmarshal(body, v)
}

type internalOutputs struct {
	Images *[]DataOutput `json:"images"`
}

type internalPromptHistoryItem struct {
	// The prompt is stored as an array layed out like this:
	// [
	// 	[0] index 		int,
	// 	[1] promptID 	string,
	// 	[2] prompt 		map[string]graphapi.Node, // the API-format workflow
	// 	[3] extra_data 	{"extra_pnginfo": {"workflow": ...}},
	//  [4] outputs     []string 						// array of nodeIDs that have outputs
	// ]
	Prompt  []json.RawMessage          `json:"prompt"`
	Outputs map[string]internalOutputs `json:"outputs"`
}

func (ph *internalPromptHistoryItem) toItem(promptID string) PromptHistoryItem {
	item := PromptHistoryItem{
		PromptID: promptID,
		Outputs:  make(map[string][]DataOutput),
	}
	if len(ph.Prompt) > 0 {
		var index float64
		if err := json.Unmarshal(ph.Prompt[0], &index); err == nil {
			item.Index = int(index)
		}
	}
	if len(ph.Prompt) > 2 {
		wf, err := graphapi.NewWorkflowFromJsonBytes(ph.Prompt[2])
		if err != nil {
			slog.Warn("cannot decode history prompt", "prompt id", promptID, "error", err)
		} else {
			item.Prompt = wf
		}
	}
	for k, o := range ph.Outputs {
		if o.Images != nil {
			item.Outputs[k] = *o.Images
		}
	}
	return item
}

// GetPromptHistoryByID retrieves the server's prompt history keyed by prompt id
func (c *ComfyClient) GetPromptHistoryByID(ctx context.Context) (map[string]PromptHistoryItem, error) {
	history := make(map[string]internalPromptHistoryItem)
	if err := c.getJSON(ctx, "/history", &history); err != nil {
		return nil, err
	}

	ret := make(map[string]PromptHistoryItem, len(history))
	for k, ph := range history {
		ret[k] = ph.toItem(k)
	}
	return ret, nil
}

// GetPromptHistoryByIndex retrieves the server's prompt history ordered by queue index
func (c *ComfyClient) GetPromptHistoryByIndex(ctx context.Context) ([]PromptHistoryItem, error) {
	history, err := c.GetPromptHistoryByID(ctx)
	if err != nil {
		return nil, err
	}

	retv := make([]PromptHistoryItem, 0, len(history))
	// ComfyUI does not recalculate the indicies of prompt history items,
	// so the indecies may not always be ordered 0..n
	for _, h := range history {
		retv = append(retv, h)
	}

	sort.Slice(retv, func(i, j int) bool {
		if retv[i].Index != retv[j].Index {
			return retv[i].Index < retv[j].Index
		}
		return retv[i].PromptID < retv[j].PromptID
	})

	return retv, nil
}

// GetPromptHistoryItem retrieves a single executed prompt
func (c *ComfyClient) GetPromptHistoryItem(ctx context.Context, promptID string) (*PromptHistoryItem, error) {
	history := make(map[string]internalPromptHistoryItem)
	if err := c.getJSON(ctx, "/history/"+url.PathEscape(promptID), &history); err != nil {
		return nil, err
	}
	ph, ok := history[promptID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, promptID)
	}
	item := ph.toItem(promptID)
	return &item, nil
}
