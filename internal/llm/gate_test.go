package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/paper-parsing-service/internal/domain"
)

// scriptedClient replays one canned reply (or error) per call.
type scriptedClient struct {
	replies []string
	errs    []error
	prompts []string
}

func (c *scriptedClient) Complete(_ context.Context, _ string, userPrompt string) (string, error) {
	call := len(c.prompts)
	c.prompts = append(c.prompts, userPrompt)
	if call < len(c.errs) && c.errs[call] != nil {
		return "", c.errs[call]
	}
	if call < len(c.replies) {
		return c.replies[call], nil
	}
	return "[]", nil
}

func (c *scriptedClient) Model() string { return "scripted" }

func ref(title string) domain.ReferenceRecord {
	return domain.ReferenceRecord{Title: title, LastName: "Doe"}
}

func refsN(n int) []domain.ReferenceRecord {
	out := make([]domain.ReferenceRecord, n)
	for i := range out {
		out[i] = ref("Paper " + string(rune('A'+i)))
	}
	return out
}

func validatedReply(t *testing.T, refs []domain.ReferenceRecord, valid func(int) bool) string {
	t.Helper()
	entries := make([]gatedReference, len(refs))
	for i, r := range refs {
		entries[i] = gatedReference{ReferenceRecord: r, Valid: valid(i)}
	}
	raw, err := json.Marshal(entries)
	require.NoError(t, err)
	return string(raw)
}

func TestReferenceGate_Filter(t *testing.T) {
	t.Run("keeps only entries marked valid and strips the flag", func(t *testing.T) {
		refs := refsN(3)
		client := &scriptedClient{replies: []string{
			validatedReply(t, refs, func(i int) bool { return i != 1 }),
		}}

		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refs)

		require.Len(t, got, 2)
		assert.Equal(t, refs[0], got[0])
		assert.Equal(t, refs[2], got[1])

		raw, err := json.Marshal(got[0])
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "valid")
	})

	t.Run("strips code fences before parsing", func(t *testing.T) {
		refs := refsN(1)
		client := &scriptedClient{replies: []string{
			"```json\n" + validatedReply(t, refs, func(int) bool { return true }) + "\n```",
		}}

		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refs)
		assert.Len(t, got, 1)
	})

	t.Run("splits input into batches of ten", func(t *testing.T) {
		refs := refsN(23)
		client := &scriptedClient{replies: []string{"[]", "[]", "[]"}}

		NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refs)

		require.Len(t, client.prompts, 3)
		assert.Contains(t, client.prompts[0], refs[0].Title)
		assert.Contains(t, client.prompts[1], refs[10].Title)
		assert.Contains(t, client.prompts[2], refs[20].Title)
	})

	t.Run("an unparsable batch does not lose the other batches", func(t *testing.T) {
		refs := refsN(15)
		client := &scriptedClient{replies: []string{
			"I cannot help with that.",
			validatedReply(t, refs[10:], func(int) bool { return true }),
		}}

		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refs)

		require.Len(t, got, 5)
		assert.Equal(t, refs[10], got[0])
	})

	t.Run("a failed call drops only its own batch", func(t *testing.T) {
		refs := refsN(12)
		client := &scriptedClient{
			errs:    []error{errors.New("rate limited")},
			replies: []string{"", validatedReply(t, refs[10:], func(int) bool { return true })},
		}

		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refs)
		assert.Len(t, got, 2)
	})

	t.Run("a non-array reply drops the batch", func(t *testing.T) {
		client := &scriptedClient{replies: []string{`{"valid": true}`}}
		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), refsN(1))
		assert.Empty(t, got)
	})

	t.Run("no references means no calls", func(t *testing.T) {
		client := &scriptedClient{}
		got := NewReferenceGate(client, zerolog.Nop()).Filter(context.Background(), nil)
		assert.Empty(t, got)
		assert.Empty(t, client.prompts)
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `[{"a":1}]`, stripCodeFences("```json\n[{\"a\":1}]\n```"))
	assert.Equal(t, `[{"a":1}]`, stripCodeFences(`[{"a":1}]`))
}
