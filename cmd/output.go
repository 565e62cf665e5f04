package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/ragdemo/internal/models"
	"github.com/xhad/ragdemo/pkg/pipeline"
)

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
}

// index loads the configured page into the vector store and reports its size.
func index(ctx context.Context, a *app, url string) error {
	spinner := getSpinner(" Indexing " + url)
	stats, err := a.indexer.Index(ctx, url)
	spinner.Finish()
	if err != nil {
		return err
	}

	printStats(color.Output, stats)
	return nil
}

func printStats(w io.Writer, stats pipeline.IndexStats) {
	green := color.New(color.FgGreen)
	green.Fprintf(w, "✓ Total characters: %d\n", stats.Characters)
	green.Fprintf(w, "✓ Split page into %d sub-documents.\n", stats.Chunks)
}

func printState(w io.Writer, state models.State) error {
	dump, err := json.Marshal(state.Context)
	if err != nil {
		return fmt.Errorf("failed to encode context: %w", err)
	}
	fmt.Fprintf(w, "Full context=%s\n", dump)
	color.New(color.FgCyan).Fprintf(w, "\nAnswer: %s\n", state.Answer)
	return nil
}

func ask(ctx context.Context, a *app, question string) (models.State, error) {
	spinner := getSpinner(" Thinking...")
	state, err := a.controller.Invoke(ctx, question)
	spinner.Finish()
	return state, err
}
