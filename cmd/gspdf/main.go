package main

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/client"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/config"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/engine"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/logger"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/operation"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/pdf"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/progress"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/ratelimit"
	"github.com/jacksonkasi1/ghostscript-pdf-manipulate/retry"
)

func main() {
	cmd := &cli.Command{
		Name:  "gspdf",
		Usage: "Process PDF files with Ghostscript",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "input",
				Aliases:  []string{"i"},
				Usage:    "Input PDF file path",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file path (default: derived from the input name)",
			},
			&cli.StringFlag{
				Name:     "operation",
				Aliases:  []string{"p"},
				Usage:    "Operation to run: " + operationList(),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
			},
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Process via a remote endpoint instead of the local engine",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Suppress progress output",
			},
		},
		Action: process,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func operationList() string {
	names := make([]string, 0, len(operation.All()))
	for _, op := range operation.All() {
		names = append(names, op.String())
	}
	return strings.Join(names, ", ")
}

func process(ctx context.Context, cmd *cli.Command) error {
	// The operation name is checked before the input file is opened.
	op, err := operation.Parse(cmd.String("operation"))
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	inputPath := cmd.String("input")
	input, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	if err := pdf.Validate(input); err != nil {
		return fmt.Errorf("%s: %w", inputPath, err)
	}

	outputName := op.OutputName(inputPath)

	var output []byte
	if remote := cmd.String("remote"); remote != "" {
		output, err = processRemote(ctx, cfg, remote, op, inputPath, input)
	} else {
		output, err = processLocal(ctx, cfg, op, inputPath, input, cmd.Bool("quiet"))
	}
	if err != nil {
		return err
	}

	if outputPath := cmd.String("output"); outputPath != "" {
		outputName = outputPath
	}
	if err := os.WriteFile(outputName, output, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "%s written (%d bytes)\n", outputName, len(output))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.New(), nil
	}
	return config.Load(path)
}

// processLocal runs the operation against an in-process engine with a
// single worker.
func processLocal(ctx context.Context, cfg *config.Config, op operation.Operation, inputPath string, input []byte, quiet bool) ([]byte, error) {
	eng, err := engine.New(ctx, engine.Config{
		WasmPath:   cfg.Engine.GetWasmPath(),
		MinIdle:    1,
		MaxIdle:    1,
		MaxTotal:   1,
		RunTimeout: cfg.Engine.GetRunTimeout(),
	})
	if err != nil {
		return nil, err
	}
	defer eng.Close(context.Background())

	var tracker *progress.Tracker
	if !quiet {
		tracker = progress.NewTracker(progress.Config{
			OnTick: func(tick progress.Tick) {
				fmt.Fprintf(os.Stderr, "%s %d/%d (%.0f%%)\n",
					strings.TrimSpace(tick.Label), tick.Current/100, tick.Total/100, tick.Percent())
			},
			OnStatus: func(line string) {
				fmt.Fprintln(os.Stderr, line)
			},
		})
	}

	oc := cfg.OperationFor(op.String())
	result, err := eng.Run(ctx, engine.RunRequest{
		Operation: op,
		InputName: inputPath,
		Input:     input,
		ArgOptions: operation.ArgOptions{
			PDFSettings:        oc.PDFSettings,
			CompatibilityLevel: oc.CompatibilityLevel,
			Extra:              oc.ExtraArgs,
		},
		Tracker: tracker,
	})
	if err != nil {
		return nil, err
	}
	return result.Output, nil
}

// processRemote posts the PDF to an endpoint that runs the operation
// and answers with the finished artifact.
func processRemote(ctx context.Context, cfg *config.Config, endpoint string, op operation.Operation, inputPath string, input []byte) ([]byte, error) {
	endpoint, err := withOperationParam(endpoint, op)
	if err != nil {
		return nil, err
	}

	uploadCfg := cfg.Upload
	uploadCfg.Endpoint = endpoint

	uploader, err := client.New(uploadCfg)
	if err != nil {
		return nil, err
	}
	uploader = uploader.WithLogger(logger.NewText(os.Stderr, logger.ParseLevel("warn")))

	retrier := retry.New(uploader, ratelimit.New(uploadCfg.RateLimit), uploadCfg.Retry)

	resp, err := retrier.Upload(ctx, filepath.Base(inputPath), input)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// withOperationParam pins the operation query parameter on the remote
// endpoint unless the caller already set one.
func withOperationParam(endpoint string, op operation.Operation) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid remote endpoint: %w", err)
	}
	q := u.Query()
	if q.Get("operation") == "" {
		q.Set("operation", op.String())
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}
