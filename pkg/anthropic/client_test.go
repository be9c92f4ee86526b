package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseText(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "{\"score\": 72"},
			{Type: "thinking", Text: "ignored"},
			{Type: "text", Text: ", \"rationale\": \"solid\"}"},
		},
	}
	assert.Equal(t, `{"score": 72, "rationale": "solid"}`, resp.Text())
}

func TestResponseTextEmpty(t *testing.T) {
	resp := &MessageResponse{}
	assert.Equal(t, "", resp.Text())
}
