package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizer_Summarize(t *testing.T) {
	t.Run("embeds methods and tables verbatim and returns the report", func(t *testing.T) {
		client := &scriptedClient{replies: []string{"The study used qPCR."}}
		s := NewSummarizer(client, zerolog.Nop())

		got := s.Summarize(context.Background(), "We used qPCR.", `[[["Gene","Fold"]]]`)

		assert.Equal(t, "The study used qPCR.", got)
		require.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], "We used qPCR.")
		assert.Contains(t, client.prompts[0], `[[["Gene","Fold"]]]`)
	})

	t.Run("a failed call returns the sentinel instead of an error", func(t *testing.T) {
		client := &scriptedClient{errs: []error{errors.New("timeout")}}
		s := NewSummarizer(client, zerolog.Nop())

		got := s.Summarize(context.Background(), "methods", "[]")
		assert.Equal(t, SummaryFailureMessage, got)
	})
}
