// Command livehtmlc compiles a single template file and renders it once
// against a JSON assigns document, printing the Outputs-contract tree
// (spec §6.2) to stdout. It is a thin illustration of the Compile/Render
// API, not a server or file-watching toolchain (spec §1 Non-goals).
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/livehtml/livehtml"
)

func main() {
	var (
		assignsPath = flag.String("assigns", "", "path to a JSON file of assigns (default: {})")
		verbose     = flag.Bool("v", os.Getenv("LIVEHTML_DEBUG") != "", "enable debug logging (env: LIVEHTML_DEBUG)")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-assigns assigns.json] template.chtml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	templatePath := flag.Arg(0)

	if err := run(templatePath, *assignsPath, logger); err != nil {
		logger.Error("compile failed", "error", err)
		os.Exit(1)
	}
}

func run(templatePath, assignsPath string, logger *slog.Logger) error {
	source, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("reading template: %w", err)
	}

	assigns := map[string]any{}
	if assignsPath != "" {
		raw, err := os.ReadFile(assignsPath)
		if err != nil {
			return fmt.Errorf("reading assigns: %w", err)
		}
		if err := json.Unmarshal(raw, &assigns); err != nil {
			return fmt.Errorf("parsing assigns: %w", err)
		}
	}

	tmpl, warnings, err := livehtml.Compile(string(source), livehtml.CompileOptions{
		File:   templatePath,
		Logger: logger,
	})
	for _, w := range warnings {
		logger.Warn(w.String())
	}
	if err != nil {
		return err
	}

	rendered := tmpl.Render(assigns, nil, false)
	out, err := json.MarshalIndent(rendered, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding rendered output: %w", err)
	}
	fmt.Println(string(out))
	return nil
}
