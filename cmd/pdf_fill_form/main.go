package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/a3tai/mcp-pdf-forms/internal/compositor"
	"github.com/a3tai/mcp-pdf-forms/internal/config"
	"github.com/a3tai/mcp-pdf-forms/internal/forms"
	"github.com/a3tai/mcp-pdf-forms/internal/logging"
	"github.com/a3tai/mcp-pdf-forms/internal/pdf"
)

// FillResult describes one filled document.
type FillResult struct {
	Input        string `json:"input"`
	Output       string `json:"output"`
	Pages        int    `json:"pages"`
	Fields       int    `json:"fields"`
	FieldsDrawn  int    `json:"fields_drawn"`
	OutputSize   int    `json:"output_size"`
	TextMode     string `json:"text_mode"`
	TemplateName string `json:"template_name,omitempty"`
}

type options struct {
	template string
	values   string
	set      []string
	out      string
	textMode string
	format   string
	verbose  bool
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := pflag.NewFlagSet("pdf_fill_form", pflag.ContinueOnError)
	flags.SetOutput(stderr)

	var opts options
	flags.StringVarP(&opts.template, "template", "t", "", "Template JSON file (a template or {\"fields\": [...]})")
	flags.StringVar(&opts.values, "values", "", "JSON file with values keyed by field id")
	flags.StringArrayVar(&opts.set, "set", nil, "Set a value as field_id=value (repeatable)")
	flags.StringVarP(&opts.out, "out", "o", "", "Output file (default <input>-filled.pdf)")
	flags.StringVar(&opts.textMode, "textmode", config.DefaultTextMode, "Text rendering: raster or native")
	flags.StringVar(&opts.format, "format", "text", "Output format: text, json")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log skipped fields to stderr")
	flags.Usage = func() { printHelp(stderr, flags) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		printHelp(stderr, flags)
		return 2
	}
	if flags.NArg() != 1 || opts.template == "" {
		fmt.Fprintf(stderr, "Error: a template and one base PDF are required\n\n")
		printHelp(stderr, flags)
		return 2
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger := logging.New(level, stderr)

	result, err := fill(ctx, flags.Arg(0), opts, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := outputResult(stdout, opts.format, result); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func fill(ctx context.Context, input string, opts options, logger *slog.Logger) (*FillResult, error) {
	mode, err := compositor.ParseTextMode(opts.textMode)
	if err != nil {
		return nil, err
	}
	tmpl, err := readTemplate(opts.template)
	if err != nil {
		return nil, err
	}
	values, err := readValues(opts.values, opts.set)
	if err != nil {
		return nil, err
	}

	pages, err := pdf.NewValidator(config.DefaultMaxFileSize).ValidateFile(input)
	if err != nil {
		return nil, err
	}
	base, err := os.ReadFile(input)
	if err != nil {
		return nil, err
	}

	loader := pdf.NewPDFCPULoader()
	doc, err := loader.Load(base)
	if err != nil {
		return nil, err
	}
	placed := compositor.PlaceFields(doc, tmpl.Fields, values, logger)

	out, err := compositor.New(loader, mode, logger).Compose(ctx, base, placed)
	if err != nil {
		return nil, err
	}

	output := opts.out
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + "-filled.pdf"
	}
	if err := os.WriteFile(output, out, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", output, err)
	}

	return &FillResult{
		Input:        input,
		Output:       output,
		Pages:        pages,
		Fields:       len(tmpl.Fields),
		FieldsDrawn:  len(placed),
		OutputSize:   len(out),
		TextMode:     string(mode),
		TemplateName: tmpl.Name,
	}, nil
}

func readTemplate(path string) (*forms.Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template: %w", err)
	}
	var t forms.Template
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("invalid template %s: %w", path, err)
	}
	for i := range t.Fields {
		if t.Fields[i].Page == 0 {
			t.Fields[i].Page = 1
		}
		if err := t.Fields[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid template %s: %w", path, err)
		}
	}
	return &t, nil
}

func readValues(path string, set []string) (map[string]string, error) {
	values := map[string]string{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read values: %w", err)
		}
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("invalid values %s: %w", path, err)
		}
	}
	for _, kv := range set {
		id, value, ok := strings.Cut(kv, "=")
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --set %q, want field_id=value", kv)
		}
		values[id] = value
	}
	return values, nil
}

func outputResult(w io.Writer, format string, result *FillResult) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	case "text":
		fmt.Fprintf(w, "Filled %s -> %s\n", result.Input, result.Output)
		fmt.Fprintf(w, "Pages: %d\n", result.Pages)
		fmt.Fprintf(w, "Fields drawn: %d of %d\n", result.FieldsDrawn, result.Fields)
		fmt.Fprintf(w, "Size: %d bytes\n", result.OutputSize)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func printHelp(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "PDF Fill Form - draw field values onto a PDF using a form template")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdf_fill_form --template template.json [--values values.json] [--set id=value] <base.pdf>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprint(w, flags.FlagUsages())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Field rectangles are fractions of the page with the origin at the top-left.")
	fmt.Fprintln(w, "Signature values are image data urls; checkboxes take true/yes/on/1/x.")
}
