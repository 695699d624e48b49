package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edugenius/backend/internal/flow"
	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/logging"
	"edugenius/backend/internal/schema"
)

const samplePNG = "data:image/png;base64,iVBORw0KGgo="

// scriptedInvoker answers by flow name and records every request.
type scriptedInvoker struct {
	replies  map[string]string
	requests []*generation.Request
}

func (s *scriptedInvoker) Invoke(ctx context.Context, req *generation.Request) (*generation.Response, error) {
	s.requests = append(s.requests, req)
	return &generation.Response{Text: s.replies[req.Flow], Model: "scripted"}, nil
}

func load(t *testing.T, inv generation.Invoker) *flow.Registry {
	t.Helper()
	reg, err := Load(inv, logging.NewNop())
	require.NoError(t, err)
	return reg
}

func TestLoad_RegistersEveryFlow(t *testing.T) {
	reg := load(t, &scriptedInvoker{})

	var names []string
	for _, info := range reg.List() {
		names = append(names, info.Name)
		_, err := schema.MarshalJSONSchema(info.Input)
		require.NoError(t, err, info.Name)
	}
	assert.Equal(t, []string{
		"ai-tutor",
		"doubt-solver",
		"essay-writer",
		"extract-text-from-image",
		"flashcards-from-image",
		"generate-flashcards",
		"generate-quiz",
		"generate-test-paper",
		"homework-helper",
		"homework-solution",
		"notes-to-flashcards",
		"past-paper-matcher",
		"project-assistant",
		"summarize-notes",
	}, names)

	f, err := reg.Get("homework-helper")
	require.NoError(t, err)
	assert.Equal(t, []string{"extract-text-from-image", "homework-solution"}, f.Info().Steps)

	f, err = reg.Get("generate-flashcards")
	require.NoError(t, err)
	assert.Equal(t, []string{"content", "numberOfFlashcards"}, f.Info().Placeholders)
}

func TestCatalog_TestPaperOmitsAbsentMarks(t *testing.T) {
	inv := &scriptedInvoker{replies: map[string]string{"generate-test-paper": "1. What is 2 + 2?"}}
	reg := load(t, inv)

	out, err := reg.Run(context.Background(), "generate-test-paper", map[string]any{
		"topics":            "Addition",
		"difficulty":        "easy",
		"numberOfQuestions": 1,
	})
	require.NoError(t, err)
	assert.Equal(t, "1. What is 2 + 2?", out["testPaper"])

	require.Len(t, inv.requests, 1)
	prompt := inv.requests[0].Prompt
	assert.Contains(t, prompt, "Generate a test paper in the specified language: English.")
	assert.NotContains(t, prompt, "Total Marks")
	assert.NotContains(t, prompt, "Document:")
	assert.Equal(t, generation.ModeText, inv.requests[0].Mode())
}

func TestCatalog_DoubtSolver(t *testing.T) {
	inv := &scriptedInvoker{replies: map[string]string{
		"extract-text-from-image": `{"extractedText": "What is 12 x 12?"}`,
		"ai-tutor":                "12 x 12 = 144.",
	}}
	reg := load(t, inv)

	out, err := reg.Run(context.Background(), "doubt-solver", map[string]any{"imageDataUri": samplePNG})
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"question": "What is 12 x 12?", "answer": "12 x 12 = 144."}, out)

	require.Len(t, inv.requests, 2)
	assert.Len(t, inv.requests[0].Attachments, 1)
	assert.Contains(t, inv.requests[1].Prompt, `"What is 12 x 12?"`)
}

func TestCatalog_HomeworkHelperStopsOnEmptyExtraction(t *testing.T) {
	inv := &scriptedInvoker{replies: map[string]string{
		"extract-text-from-image": `{"extractedText": ""}`,
	}}
	reg := load(t, inv)

	_, err := reg.Run(context.Background(), "homework-helper", map[string]any{"imageDataUri": samplePNG})
	require.Error(t, err)
	assert.ErrorIs(t, err, flow.ErrContentPrecondition)
	assert.Len(t, inv.requests, 1)
}

func TestCatalog_FlashcardsFromImageUsesDefaultCount(t *testing.T) {
	var cards []string
	for i := 0; i < 10; i++ {
		cards = append(cards, `{"question": "Q", "answer": "A"}`)
	}
	inv := &scriptedInvoker{replies: map[string]string{
		"extract-text-from-image": `{"extractedText": "Mitochondria are the powerhouse of the cell."}`,
		"generate-flashcards":     `{"flashcards": [` + strings.Join(cards, ",") + `]}`,
	}}
	reg := load(t, inv)

	out, err := reg.Run(context.Background(), "flashcards-from-image", map[string]any{"imageDataUri": samplePNG})
	require.NoError(t, err)
	assert.Len(t, out["flashcards"], 10)
	assert.Contains(t, inv.requests[1].Prompt, "Number of Flashcards: 10")
}

func flashcardsReply(n int) string {
	cards := make([]string, n)
	for i := range cards {
		cards[i] = fmt.Sprintf(`{"question": "Q%d", "answer": "A%d"}`, i+1, i+1)
	}
	return `{"flashcards": [` + strings.Join(cards, ",") + `]}`
}

func TestCatalog_GenerateFlashcardsHonorsCount(t *testing.T) {
	in := map[string]any{
		"content":            "Photosynthesis turns light, water and carbon dioxide into glucose and oxygen.",
		"numberOfFlashcards": 5,
	}

	t.Run("exact count", func(t *testing.T) {
		inv := &scriptedInvoker{replies: map[string]string{"generate-flashcards": flashcardsReply(5)}}
		out, err := load(t, inv).Run(context.Background(), "generate-flashcards", in)
		require.NoError(t, err)

		cards, ok := out["flashcards"].([]any)
		require.True(t, ok)
		require.Len(t, cards, 5)
		assert.Equal(t, map[string]any{"question": "Q1", "answer": "A1"}, cards[0])
		assert.Contains(t, inv.requests[0].Prompt, "Number of Flashcards: 5")
	})

	t.Run("short reply", func(t *testing.T) {
		inv := &scriptedInvoker{replies: map[string]string{"generate-flashcards": flashcardsReply(4)}}
		_, err := load(t, inv).Run(context.Background(), "generate-flashcards", in)
		require.Error(t, err)
		assert.ErrorIs(t, err, flow.ErrCoercion)

		var fe *flow.Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, "flashcards", fe.Path)
		assert.Contains(t, err.Error(), "exactly 5 items")
	})
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader(`
flows:
  - name: broken
    input:
      name: In
      fields:
        - name: topic
          type: string
          minLength: 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "minLength")
}

func TestBuild_RejectsUnknownStep(t *testing.T) {
	doc, err := Decode(strings.NewReader(`
composed:
  - name: orphan
    steps:
      - flow: missing
      - flow: also-missing
`))
	require.NoError(t, err)

	reg, err := flow.NewRegistry(logging.NewNop())
	require.NoError(t, err)
	err = Build(doc, &scriptedInvoker{}, reg)
	assert.ErrorContains(t, err, `unknown flow "missing"`)
}
