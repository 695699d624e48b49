package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"edugenius/backend/internal/generation"
	"edugenius/backend/internal/schema"
	"edugenius/backend/internal/services"
)

// unavailableInvoker backs registries that are only inspected.
type unavailableInvoker struct{}

func (unavailableInvoker) Invoke(context.Context, *generation.Request) (*generation.Response, error) {
	return nil, errors.New("generation backend not configured")
}

func newSolveImageCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "solve-image <file>",
		Short: "Read a question from a photo and answer it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, err := fileDataURI(args[0])
			if err != nil {
				return err
			}
			reg, err := a.registry(cmd.Context(), false)
			if err != nil {
				return err
			}
			out, err := services.NewStudyService(reg).SolveDoubt(cmd.Context(), services.ImageInput{ImageDataURI: uri})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Question:\n%s\n\nAnswer:\n%s\n", out.Question, out.Answer)
			return err
		},
	}
}

// fileDataURI encodes a file as a base64 data URI, sniffing its media type.
func fileDataURI(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%s is empty", path)
	}
	mime, _, _ := strings.Cut(http.DetectContentType(data), ";")
	return (&schema.DataURI{MIMEType: mime, Data: data}).String(), nil
}
