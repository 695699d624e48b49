package services

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Flow names served by StudyService.
const (
	FlowAITutor             = "ai-tutor"
	FlowExtractText         = "extract-text-from-image"
	FlowSummarizeNotes      = "summarize-notes"
	FlowHomeworkSolution    = "homework-solution"
	FlowGenerateTestPaper   = "generate-test-paper"
	FlowGenerateFlashcards  = "generate-flashcards"
	FlowGenerateQuiz        = "generate-quiz"
	FlowProjectAssistant    = "project-assistant"
	FlowEssayWriter         = "essay-writer"
	FlowPastPaperMatcher    = "past-paper-matcher"
	FlowDoubtSolver         = "doubt-solver"
	FlowHomeworkHelper      = "homework-helper"
	FlowFlashcardsFromImage = "flashcards-from-image"
	FlowNotesToFlashcards   = "notes-to-flashcards"
)

type AiTutorInput struct {
	Question string `mapstructure:"question"`
}

type AiTutorOutput struct {
	Answer string `mapstructure:"answer"`
}

type ImageInput struct {
	ImageDataURI string `mapstructure:"imageDataUri"`
}

type ExtractTextOutput struct {
	ExtractedText string `mapstructure:"extractedText"`
}

type SummarizeNotesInput struct {
	DocumentDataURI string `mapstructure:"documentDataUri"`
}

type SummarizeNotesOutput struct {
	Summary string `mapstructure:"summary"`
}

type GenerateTestPaperInput struct {
	Topics            string `mapstructure:"topics"`
	DocumentDataURI   string `mapstructure:"documentDataUri,omitempty"`
	Difficulty        string `mapstructure:"difficulty"`
	NumberOfQuestions int    `mapstructure:"numberOfQuestions"`
	TotalMarks        int    `mapstructure:"totalMarks,omitempty"`
	Language          string `mapstructure:"language,omitempty"`
}

type GenerateTestPaperOutput struct {
	TestPaper string `mapstructure:"testPaper"`
}

type Flashcard struct {
	Question string `mapstructure:"question" json:"question"`
	Answer   string `mapstructure:"answer" json:"answer"`
}

type GenerateFlashcardsInput struct {
	Content            string `mapstructure:"content"`
	NumberOfFlashcards int    `mapstructure:"numberOfFlashcards"`
}

type GenerateFlashcardsOutput struct {
	Flashcards []Flashcard `mapstructure:"flashcards"`
}

type QuizQuestion struct {
	QuestionText       string   `mapstructure:"questionText" json:"questionText"`
	Options            []string `mapstructure:"options" json:"options"`
	CorrectAnswerIndex int      `mapstructure:"correctAnswerIndex" json:"correctAnswerIndex"`
	Explanation        string   `mapstructure:"explanation" json:"explanation"`
}

type GenerateQuizInput struct {
	Topic             string `mapstructure:"topic"`
	NumberOfQuestions int    `mapstructure:"numberOfQuestions"`
}

type GenerateQuizOutput struct {
	Questions []QuizQuestion `mapstructure:"questions"`
}

type ProjectIdea struct {
	Title       string   `mapstructure:"title" json:"title"`
	Description string   `mapstructure:"description" json:"description"`
	Materials   []string `mapstructure:"materials" json:"materials"`
}

type ProjectAssistantInput struct {
	Topic string `mapstructure:"topic"`
}

type ProjectAssistantOutput struct {
	Ideas []ProjectIdea `mapstructure:"ideas"`
}

type EssayWriterInput struct {
	Topic  string `mapstructure:"topic"`
	Type   string `mapstructure:"type"`
	Length string `mapstructure:"length"`
	Tone   string `mapstructure:"tone"`
}

type EssayWriterOutput struct {
	Content string `mapstructure:"content"`
}

type PastPaperMatcherInput struct {
	ChapterContent string `mapstructure:"chapterContent"`
}

type PastPaperMatcherOutput struct {
	MatchedQuestions []string `mapstructure:"matchedQuestions"`
}

// SolvedQuestion is the result of the photo-to-answer flows.
type SolvedQuestion struct {
	Question string `mapstructure:"question"`
	Answer   string `mapstructure:"answer"`
}

type FlashcardsFromImageInput struct {
	ImageDataURI       string `mapstructure:"imageDataUri"`
	NumberOfFlashcards int    `mapstructure:"numberOfFlashcards,omitempty"`
}

type NotesToFlashcardsInput struct {
	DocumentDataURI    string `mapstructure:"documentDataUri"`
	NumberOfFlashcards int    `mapstructure:"numberOfFlashcards,omitempty"`
}

type NotesToFlashcardsOutput struct {
	Summary    string      `mapstructure:"summary"`
	Flashcards []Flashcard `mapstructure:"flashcards"`
}

// StudyService is the typed front of the flow registry: one method per flow.
type StudyService struct {
	flows FlowRunner
}

// NewStudyService creates a new StudyService.
func NewStudyService(flows FlowRunner) *StudyService {
	return &StudyService{flows: flows}
}

func (s *StudyService) AskTutor(ctx context.Context, in AiTutorInput) (*AiTutorOutput, error) {
	return runTyped[AiTutorOutput](ctx, s.flows, FlowAITutor, in)
}

func (s *StudyService) ExtractTextFromImage(ctx context.Context, in ImageInput) (*ExtractTextOutput, error) {
	return runTyped[ExtractTextOutput](ctx, s.flows, FlowExtractText, in)
}

func (s *StudyService) SummarizeNotes(ctx context.Context, in SummarizeNotesInput) (*SummarizeNotesOutput, error) {
	return runTyped[SummarizeNotesOutput](ctx, s.flows, FlowSummarizeNotes, in)
}

func (s *StudyService) SolveHomework(ctx context.Context, in AiTutorInput) (*AiTutorOutput, error) {
	return runTyped[AiTutorOutput](ctx, s.flows, FlowHomeworkSolution, in)
}

func (s *StudyService) GenerateTestPaper(ctx context.Context, in GenerateTestPaperInput) (*GenerateTestPaperOutput, error) {
	return runTyped[GenerateTestPaperOutput](ctx, s.flows, FlowGenerateTestPaper, in)
}

func (s *StudyService) GenerateFlashcards(ctx context.Context, in GenerateFlashcardsInput) (*GenerateFlashcardsOutput, error) {
	return runTyped[GenerateFlashcardsOutput](ctx, s.flows, FlowGenerateFlashcards, in)
}

func (s *StudyService) GenerateQuiz(ctx context.Context, in GenerateQuizInput) (*GenerateQuizOutput, error) {
	return runTyped[GenerateQuizOutput](ctx, s.flows, FlowGenerateQuiz, in)
}

func (s *StudyService) SuggestProjects(ctx context.Context, in ProjectAssistantInput) (*ProjectAssistantOutput, error) {
	return runTyped[ProjectAssistantOutput](ctx, s.flows, FlowProjectAssistant, in)
}

func (s *StudyService) WriteEssay(ctx context.Context, in EssayWriterInput) (*EssayWriterOutput, error) {
	return runTyped[EssayWriterOutput](ctx, s.flows, FlowEssayWriter, in)
}

func (s *StudyService) MatchPastPapers(ctx context.Context, in PastPaperMatcherInput) (*PastPaperMatcherOutput, error) {
	return runTyped[PastPaperMatcherOutput](ctx, s.flows, FlowPastPaperMatcher, in)
}

func (s *StudyService) SolveDoubt(ctx context.Context, in ImageInput) (*SolvedQuestion, error) {
	return runTyped[SolvedQuestion](ctx, s.flows, FlowDoubtSolver, in)
}

func (s *StudyService) HomeworkHelper(ctx context.Context, in ImageInput) (*SolvedQuestion, error) {
	return runTyped[SolvedQuestion](ctx, s.flows, FlowHomeworkHelper, in)
}

func (s *StudyService) FlashcardsFromImage(ctx context.Context, in FlashcardsFromImageInput) (*GenerateFlashcardsOutput, error) {
	return runTyped[GenerateFlashcardsOutput](ctx, s.flows, FlowFlashcardsFromImage, in)
}

func (s *StudyService) NotesToFlashcards(ctx context.Context, in NotesToFlashcardsInput) (*NotesToFlashcardsOutput, error) {
	return runTyped[NotesToFlashcardsOutput](ctx, s.flows, FlowNotesToFlashcards, in)
}

// runTyped converts in to a record, runs the flow and decodes the validated output.
// Flow errors are returned unchanged so callers can inspect them with errors.As.
func runTyped[Out any](ctx context.Context, flows FlowRunner, name string, in any) (*Out, error) {
	raw := map[string]any{}
	if err := mapstructure.Decode(in, &raw); err != nil {
		return nil, fmt.Errorf("%s: encode input: %w", name, err)
	}

	rec, err := flows.Run(ctx, name, raw)
	if err != nil {
		return nil, err
	}

	var out Out
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &out,
		ErrorUnused: false,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("%s: decode output: %w", name, err)
	}
	return &out, nil
}
