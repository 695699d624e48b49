package generation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"edugenius/backend/internal/prompt"
	"edugenius/backend/internal/schema"
)

func quizOutput() *schema.Schema {
	four := 4
	zero, three := int64(0), int64(3)
	return &schema.Schema{
		Name: "GenerateQuizOutput",
		Fields: []schema.Field{
			{Name: "questions", Kind: schema.KindArray, Items: &schema.Field{
				Kind: schema.KindRecord,
				Fields: []schema.Field{
					{Name: "questionText", Kind: schema.KindString},
					{Name: "options", Kind: schema.KindArray, MinLength: &four, MaxLength: &four, Items: &schema.Field{Kind: schema.KindString}},
					{Name: "correctAnswerIndex", Kind: schema.KindInteger, Min: &zero, Max: &three},
					{Name: "difficulty", Kind: schema.KindEnum, Enum: []string{"easy", "hard"}, Optional: true},
				},
			}},
		},
	}
}

func TestGenAISchema(t *testing.T) {
	s := GenAISchema(quizOutput())

	require.Equal(t, genai.TypeObject, s.Type)
	assert.Equal(t, []string{"questions"}, s.Required)

	questions := s.Properties["questions"]
	require.Equal(t, genai.TypeArray, questions.Type)
	item := questions.Items
	require.Equal(t, genai.TypeObject, item.Type)
	assert.Equal(t, []string{"questionText", "options", "correctAnswerIndex", "difficulty"}, item.PropertyOrdering)
	assert.Equal(t, []string{"questionText", "options", "correctAnswerIndex"}, item.Required)

	options := item.Properties["options"]
	assert.Equal(t, int64(4), *options.MinItems)
	assert.Equal(t, int64(4), *options.MaxItems)

	idx := item.Properties["correctAnswerIndex"]
	assert.Equal(t, genai.TypeInteger, idx.Type)
	assert.Equal(t, 0.0, *idx.Minimum)
	assert.Equal(t, 3.0, *idx.Maximum)

	difficulty := item.Properties["difficulty"]
	assert.Equal(t, "enum", difficulty.Format)
	assert.Equal(t, []string{"easy", "hard"}, difficulty.Enum)
}

func TestGeminiBackend_BuildRequest(t *testing.T) {
	b := &GeminiBackend{model: "gemini-test", temperature: 0.3}

	contents, config := b.buildRequest(&Request{
		System:      "You are a tutor.",
		Prompt:      "Answer the question.",
		Attachments: []prompt.Attachment{{MIMEType: "image/jpeg", Data: []byte{0xff, 0xd8}}},
		Output:      quizOutput(),
	})

	require.Len(t, contents, 1)
	parts := contents[0].Parts
	require.Len(t, parts, 2)
	assert.Equal(t, "Answer the question.", parts[0].Text)
	require.NotNil(t, parts[1].InlineData)
	assert.Equal(t, "image/jpeg", parts[1].InlineData.MIMEType)

	assert.Equal(t, "application/json", config.ResponseMIMEType)
	require.NotNil(t, config.ResponseSchema)
	require.NotNil(t, config.SystemInstruction)
	assert.InDelta(t, 0.3, *config.Temperature, 1e-6)

	text := &schema.Schema{Text: true, Fields: []schema.Field{{Name: "answer", Kind: schema.KindString}}}
	_, config = b.buildRequest(&Request{Prompt: "p", Output: text})
	assert.Empty(t, config.ResponseMIMEType)
	assert.Nil(t, config.ResponseSchema)
}

func TestClassifyGeminiError(t *testing.T) {
	err := classifyGeminiError(genai.APIError{Code: 429, Message: "Resource has been exhausted"})
	assert.Equal(t, ErrorBackend, err.Kind)
	assert.Equal(t, 429, err.StatusCode)

	err = classifyGeminiError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, ErrorTransport, err.Kind)
}
