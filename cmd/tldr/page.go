package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"tldr-buffer/internal/extract"
	"tldr-buffer/internal/model"
	"tldr-buffer/internal/spa"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	pageURL    string
	saveResult bool
	length     string
	style      string
	noStream   bool
)

func addPageCommands(root *cobra.Command) {
	extractCmd := &cobra.Command{
		Use:   "extract <file|->",
		Short: "Extract article text from a saved HTML snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  runExtract,
	}
	watchCmd := &cobra.Command{
		Use:   "watch <file>",
		Short: "Extract from a snapshot file the browser keeps rewriting, waiting for it to settle",
		Args:  cobra.ExactArgs(1),
		RunE:  runWatch,
	}
	for _, c := range []*cobra.Command{extractCmd, watchCmd} {
		c.Flags().StringVar(&pageURL, "url", "", "URL the snapshot was taken from")
		c.Flags().BoolVar(&saveResult, "save", false, "Save the extracted text as a document")
	}

	summarizeCmd := &cobra.Command{
		Use:   "summarize <file|->",
		Short: "Summarize plain text",
		Args:  cobra.ExactArgs(1),
		RunE:  runSummarize,
	}
	summarizeCmd.Flags().StringVar(&length, "length", "", "brief or medium")
	summarizeCmd.Flags().StringVar(&style, "style", "", "bullets or plain")
	summarizeCmd.Flags().BoolVar(&noStream, "no-stream", false, "Wait for the whole summary instead of streaming it")

	root.AddCommand(extractCmd, watchCmd, summarizeCmd)
}

func readInput(arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(arg)
}

func runExtract(cmd *cobra.Command, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	page, err := extract.ParsePage(bytes.NewReader(data))
	if err != nil {
		return err
	}
	res := newPipeline().Extract(cmd.Context(), page, pageURL, cfg.Extraction)
	return report(cmd.Context(), res)
}

func runWatch(cmd *cobra.Command, args []string) error {
	src, err := spa.WatchFile(args[0], logger)
	if err != nil {
		return err
	}
	defer src.Close()

	page := &extract.FilePage{Path: args[0], Source: src}
	res := newPipeline().Extract(cmd.Context(), page, pageURL, cfg.Extraction)
	return report(cmd.Context(), res)
}

func report(ctx context.Context, res model.ExtractionResult) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !saveResult || !res.Content.OK() {
		return nil
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()
	doc := model.NewDocument(res.Content)
	if err := st.Save(ctx, &doc); err != nil {
		return err
	}
	logger.Info("Document saved", zap.String("id", doc.ID), zap.String("url", doc.URL))
	return nil
}

func runSummarize(cmd *cobra.Command, args []string) error {
	data, err := readInput(args[0])
	if err != nil {
		return err
	}
	sum := newSummarizer()
	if sum == nil {
		return errors.New("no summarization provider configured: set OPENAI_API_KEY or summarization.base_url")
	}
	params := cfg.Summarization.Defaults
	if length != "" {
		params.Length = model.SummaryLength(length)
	}
	if style != "" {
		params.Style = model.SummaryStyle(style)
	}

	var res model.SummarizationResult
	if noStream {
		res, err = sum.Complete(cmd.Context(), string(data), params)
		if err != nil {
			return err
		}
	} else {
		st, err := sum.Stream(cmd.Context(), string(data), params)
		if err != nil {
			return err
		}
		for {
			chunk, err := st.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return err
			}
			fmt.Fprint(os.Stderr, chunk)
		}
		fmt.Fprintln(os.Stderr)
		if res, err = st.Result(); err != nil {
			return err
		}
	}

	for _, p := range res.KeyPoints {
		fmt.Println("- " + p)
	}
	fmt.Println()
	fmt.Println("TL;DR: " + res.TLDR)
	return nil
}
