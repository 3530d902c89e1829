package graphapi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var (
	ErrNotPNG           = errors.New("not a valid PNG file")
	ErrNoPromptMetadata = errors.New("png does not contain prompt metadata")
	ErrChunkTooLarge    = errors.New("png text chunk exceeds size limit")
)

// maxTextChunkSize bounds the text chunks GetPngMetadata will read into memory.
const maxTextChunkSize = 64 << 20

var pngSignature = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// GetPngMetadata returns the keyword/text pairs stored in the tEXt and iTXt chunks of a PNG.
// Compressed iTXt chunks are skipped.
func GetPngMetadata(r io.Reader) (map[string]string, error) {
	header := make([]byte, 8)
	_, err := io.ReadFull(r, header)
	if err != nil {
		return nil, err
	}

	if !bytes.Equal(header, pngSignature) {
		return nil, ErrNotPNG
	}

	txtChunks := make(map[string]string)

	for {
		var length uint32
		err = binary.Read(r, binary.BigEndian, &length)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		chunkType := make([]byte, 4)
		_, err = io.ReadFull(r, chunkType)
		if err != nil {
			return nil, err
		}

		switch string(chunkType) {
		case "tEXt", "iTXt":
			if length > maxTextChunkSize {
				return nil, fmt.Errorf("%w: %s chunk of %d bytes", ErrChunkTooLarge, chunkType, length)
			}
			chunkData := make([]byte, length)
			_, err = io.ReadFull(r, chunkData)
			if err != nil {
				return nil, err
			}

			keywordEnd := bytes.IndexByte(chunkData, 0)
			if keywordEnd == -1 {
				return nil, errors.New("malformed text chunk")
			}
			keyword := string(chunkData[:keywordEnd])

			if string(chunkType) == "tEXt" {
				txtChunks[keyword] = string(chunkData[keywordEnd+1:])
			} else if text, ok := internationalText(chunkData[keywordEnd+1:]); ok {
				txtChunks[keyword] = text
			}
		case "IEND":
			return txtChunks, nil
		default:
			_, err = io.CopyN(io.Discard, r, int64(length))
			if err != nil {
				return nil, err
			}
		}

		// Skip the CRC
		_, err = io.CopyN(io.Discard, r, 4)
		if err != nil {
			return nil, err
		}
	}

	return txtChunks, nil
}

// internationalText decodes the part of an iTXt chunk after the keyword:
// compression flag, compression method, language tag\0, translated keyword\0, text.
func internationalText(b []byte) (string, bool) {
	if len(b) < 2 || b[0] != 0 {
		return "", false
	}
	rest := b[2:]
	for i := 0; i < 2; i++ {
		end := bytes.IndexByte(rest, 0)
		if end == -1 {
			return "", false
		}
		rest = rest[end+1:]
	}
	return string(rest), true
}

// NewWorkflowFromPNGReader extracts the API-format prompt stored by ComfyUI in a PNG.
func NewWorkflowFromPNGReader(r io.Reader) (*Workflow, error) {
	metadata, err := GetPngMetadata(r)
	if err != nil {
		return nil, err
	}

	prompt, ok := metadata["prompt"]
	if !ok {
		return nil, ErrNoPromptMetadata
	}
	return NewWorkflowFromJsonReader(strings.NewReader(prompt))
}

func NewWorkflowFromPNGFile(path string) (*Workflow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return NewWorkflowFromPNGReader(file)
}
