package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/schema"
)

func doubtSolver(t *testing.T, inv generation.Invoker) *ComposedFlow {
	t.Helper()
	c, err := NewComposed(ComposedSpec{
		Name: "doubt-solver",
		Input: &schema.Schema{
			Name: "DoubtSolverInput",
			Fields: []schema.Field{
				{Name: "photoDataUri", Kind: schema.KindString, Format: schema.FormatDataURI, MIMETypes: []string{"image/*"}},
				{Name: "language", Kind: schema.KindString, Default: "English"},
			},
		},
		Output: &schema.Schema{
			Name: "DoubtSolverOutput",
			Fields: []schema.Field{
				{Name: "question", Kind: schema.KindString},
				{Name: "answer", Kind: schema.KindString},
			},
		},
		Collect: map[string]Ref{
			"question": {Step: 0, Field: "extractedText"},
			"answer":   {Step: 1, Field: "answer"},
		},
		Steps: []Step{
			{Flow: mustDefinition(t, extractSpec(), inv)},
			{Flow: mustDefinition(t, tutorSpec(), inv), Map: map[string]string{"question": "extractedText"}},
		},
	})
	require.NoError(t, err)
	return c
}

func TestComposed_PipesOutputIntoNextStep(t *testing.T) {
	inv := new(mockInvoker)
	inv.On("Invoke", mock.Anything, forFlow("extract-text-from-image")).
		Return(&generation.Response{Text: `{"extractedText": "Solve 2x + 3 = 7"}`}, nil).Once()
	inv.On("Invoke", mock.Anything, forFlow("ai-tutor")).
		Return(&generation.Response{Text: "x = 2"}, nil).Once()

	c := doubtSolver(t, inv)
	out, err := c.Run(context.Background(), map[string]any{"photoDataUri": samplePNG, "language": "Hindi"})
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"question": "Solve 2x + 3 = 7", "answer": "x = 2"}, out)

	inv.AssertExpectations(t)
	tutorReq := inv.Calls[1].Arguments.Get(1).(*generation.Request)
	assert.Equal(t, "Answer in Hindi: Solve 2x + 3 = 7", tutorReq.Prompt)
	assert.Empty(t, tutorReq.Attachments)
}

func TestComposed_EmptyIntermediateIsContentPrecondition(t *testing.T) {
	inv := new(mockInvoker)
	inv.On("Invoke", mock.Anything, forFlow("extract-text-from-image")).
		Return(&generation.Response{Text: `{"extractedText": "   "}`}, nil)

	c := doubtSolver(t, inv)
	_, err := c.Run(context.Background(), map[string]any{"photoDataUri": samplePNG})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrContentPrecondition)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "doubt-solver", fe.Flow)
	assert.Equal(t, 1, fe.Step)
	assert.Equal(t, "ai-tutor", fe.StepName)
	assert.Equal(t, "extractedText", fe.Path)

	inv.AssertNumberOfCalls(t, "Invoke", 1)
	inv.AssertNotCalled(t, "Invoke", mock.Anything, forFlow("ai-tutor"))
}

func TestComposed_StopsAtFirstFailure(t *testing.T) {
	inv := new(mockInvoker)
	inv.On("Invoke", mock.Anything, forFlow("extract-text-from-image")).
		Return(nil, &generation.Error{Kind: generation.ErrorBackend, Backend: "test", StatusCode: 503, Err: errors.New("overloaded")})

	c := doubtSolver(t, inv)
	_, err := c.Run(context.Background(), map[string]any{"photoDataUri": samplePNG})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvoker)

	var fe *Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Step)
	assert.Equal(t, "extract-text-from-image", fe.StepName)
	assert.Contains(t, err.Error(), "doubt-solver step 1 (extract-text-from-image): invoker")

	inv.AssertNumberOfCalls(t, "Invoke", 1)
}

func TestComposed_InvalidInputFailsBeforeAnyCall(t *testing.T) {
	inv := new(mockInvoker)
	c := doubtSolver(t, inv)

	_, err := c.Run(context.Background(), map[string]any{"photoDataUri": "data:image/png,notbase64"})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	inv.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything)
}

func TestComposed_WithoutCollectReturnsLastOutput(t *testing.T) {
	inv := new(mockInvoker)
	inv.On("Invoke", mock.Anything, forFlow("extract-text-from-image")).
		Return(&generation.Response{Text: `{"extractedText": "What is a prime?"}`}, nil)
	inv.On("Invoke", mock.Anything, forFlow("ai-tutor")).
		Return(&generation.Response{Text: "A number with exactly two divisors."}, nil)

	c, err := NewComposed(ComposedSpec{
		Name: "photo-tutor",
		Steps: []Step{
			{Flow: mustDefinition(t, extractSpec(), inv)},
			{Flow: mustDefinition(t, tutorSpec(), inv), Map: map[string]string{"question": "extractedText"}},
		},
	})
	require.NoError(t, err)

	info := c.Info()
	assert.True(t, info.Composed())
	assert.Equal(t, []string{"extract-text-from-image", "ai-tutor"}, info.Steps)
	assert.Equal(t, "ExtractTextFromImageInput", info.Input.Name)
	assert.Equal(t, "AiTutorOutput", info.Output.Name)

	out, err := c.Run(context.Background(), map[string]any{"photoDataUri": samplePNG})
	require.NoError(t, err)
	assert.Equal(t, schema.Record{"answer": "A number with exactly two divisors."}, out)
}

func TestNewComposed_Rejects(t *testing.T) {
	inv := new(mockInvoker)
	extract := mustDefinition(t, extractSpec(), inv)
	tutor := mustDefinition(t, tutorSpec(), inv)
	quiz := mustDefinition(t, quizSpec(), inv)

	tests := []struct {
		name string
		spec ComposedSpec
		msg  string
	}{
		{"single step", ComposedSpec{Name: "x", Steps: []Step{{Flow: extract}}}, "at least two steps"},
		{"unknown source", ComposedSpec{Name: "x", Steps: []Step{
			{Flow: extract},
			{Flow: tutor, Map: map[string]string{"question": "text"}},
		}}, `maps from "text"`},
		{"unknown target", ComposedSpec{Name: "x", Steps: []Step{
			{Flow: extract},
			{Flow: tutor, Map: map[string]string{"prompt": "extractedText", "question": "extractedText"}},
		}}, `no input field "prompt"`},
		{"kind mismatch", ComposedSpec{Name: "x", Steps: []Step{
			{Flow: extract},
			{Flow: quiz, Map: map[string]string{"topic": "extractedText", "numberOfQuestions": "extractedText"}},
		}}, "maps string"},
		{"unsatisfied input", ComposedSpec{Name: "x", Steps: []Step{
			{Flow: extract},
			{Flow: quiz, Map: map[string]string{"topic": "extractedText"}},
		}}, `requires "numberOfQuestions"`},
		{"collect without output", ComposedSpec{Name: "x", Collect: map[string]Ref{"a": {Step: 0, Field: "extractedText"}}, Steps: []Step{
			{Flow: extract},
			{Flow: tutor, Map: map[string]string{"question": "extractedText"}},
		}}, "collect requires an output schema"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewComposed(tt.spec)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}
