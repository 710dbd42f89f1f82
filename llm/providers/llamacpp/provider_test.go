package llamacpp

import (
	"encoding/json"
	"testing"

	"github.com/sanchez314c/agent-chat/llm/providers"
	"github.com/sanchez314c/agent-chat/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlternate(t *testing.T) {
	tests := []struct {
		name string
		in   []types.Message
		want []providers.WireMessage
	}{
		{
			name: "drops system and merges users",
			in: []types.Message{
				{Role: types.RoleSystem, Content: "persona"},
				{Role: types.RoleUser, Content: "a"},
				{Role: types.RoleOperator, Content: "b"},
				{Role: types.RoleAssistant, Content: "c"},
			},
			want: []providers.WireMessage{
				{Role: "user", Content: "a\n\nb"},
				{Role: "assistant", Content: "c"},
			},
		},
		{
			name: "leading assistant gets greeting",
			in: []types.Message{
				{Role: types.RoleAssistant, Content: "x"},
				{Role: types.RoleUser, Content: "y"},
			},
			want: []providers.WireMessage{
				{Role: "user", Content: Greeting},
				{Role: "assistant", Content: "x"},
				{Role: "user", Content: "y"},
			},
		},
		{name: "only system", in: []types.Message{{Role: types.RoleSystem, Content: "s"}}, want: []providers.WireMessage{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Alternate(tt.in))
		})
	}
}

func TestBuildRequest(t *testing.T) {
	raw, err := json.Marshal(BuildRequest([]types.Message{{Role: types.RoleUser, Content: "hi"}}, "local-model", 10, 0.5, nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[{"role":"user","content":"hi"}],"max_tokens":10,"temperature":0.5,"stream":false}`, string(raw))
}

func TestNew(t *testing.T) {
	a := New()
	assert.Equal(t, "http://localhost:8080/v1/chat/completions", a.Endpoint("", nil))
	assert.Equal(t, "x", a.ParseResponse([]byte(`{"choices":[{"message":{"content":"x"}}]}`)))
	assert.Nil(t, a.Discovery)
}
