package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/infrastructure/external/openai"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	apiKey := flag.String("key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
	receiptPath := flag.String("receipt", "", "Path to a receipt image or PDF")
	model := flag.String("model", "gpt-4o", "Vision model")
	promptsPath := flag.String("prompts", "", "Prompt file (built-in prompts when empty)")
	timeout := flag.Duration("timeout", 60*time.Second, "API call timeout")
	verbose := flag.Bool("verbose", false, "Verbose output")
	flag.Parse()

	_ = gotenv.Load()

	var logger *zap.Logger
	var err error
	if *verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if *apiKey == "" || *receiptPath == "" {
		fmt.Fprintf(os.Stderr, "Usage: test-gpt-connection --receipt <file> [--key sk-...] [--model gpt-4o] [--timeout 60s]\n")
		os.Exit(1)
	}

	data, err := os.ReadFile(*receiptPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: cannot read receipt: %v\n", err)
		os.Exit(1)
	}
	mimeType := http.DetectContentType(data)
	if strings.EqualFold(filepath.Ext(*receiptPath), ".pdf") {
		mimeType = "application/pdf"
	}

	fmt.Println("=== Receipt Extraction Test ===")
	fmt.Printf("  Receipt: %s (%s, %d bytes)\n", *receiptPath, mimeType, len(data))
	fmt.Printf("  Model: %s\n", *model)
	fmt.Printf("  Timeout: %v\n\n", *timeout)

	prompts, err := openai.LoadPrompts(*promptsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: loading prompts: %v\n", err)
		os.Exit(1)
	}

	var extractor port.ReceiptExtractor = openai.NewReceiptExtractor(*apiKey, *model, *timeout, prompts, logger)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	start := time.Now()
	draft, err := extractor.ExtractReceipt(ctx, data, mimeType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: extraction failed after %v: %v\n", time.Since(start), err)
		fmt.Fprintf(os.Stderr, "Check the API key, network access and model name.\n")
		os.Exit(1)
	}

	fmt.Printf("Response in %v\n\n", time.Since(start))
	out, _ := json.MarshalIndent(draft, "", "  ")
	fmt.Println(string(out))
}
