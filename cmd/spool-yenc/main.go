// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// spool-yenc decodes a single yEnc-encoded article from a file or
// stdin. A debugging companion to the decode pipeline: it runs the
// same codec backends on raw article bytes and reports what the
// pipeline would have seen.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/spoolworks/spool/lib/version"
	"github.com/spoolworks/spool/lib/yenc"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "spool-yenc: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var backendName string
	var outputPath string
	var infoOnly bool

	flagSet := pflag.NewFlagSet("spool-yenc", pflag.ContinueOnError)
	flagSet.StringVar(&backendName, "backend", "chunked", "decode backend: reference or chunked")
	flagSet.StringVarP(&outputPath, "output", "o", "", "write decoded bytes to this path (default: the name from the article header, \"-\" for stdout)")
	flagSet.BoolVar(&infoOnly, "info", false, "report the decode outcome without writing payload bytes")
	flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("spool-yenc %s\n", version.String())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	raw, err := readInput(flagSet.Args())
	if err != nil {
		return err
	}

	backend, err := yenc.NewBackend(backendName)
	if err != nil {
		return err
	}

	result, err := backend.Decode(yenc.Payload{Chunks: [][]byte{raw}}, 0)
	if err != nil {
		return fmt.Errorf("decoding: %w", err)
	}

	fmt.Fprintf(os.Stderr, "outcome:  %s\n", result.Kind)
	if result.Filename != "" {
		fmt.Fprintf(os.Stderr, "filename: %s\n", result.Filename)
	}
	fmt.Fprintf(os.Stderr, "size:     %d bytes\n", len(result.Data))
	if result.Multipart {
		fmt.Fprintln(os.Stderr, "multipart: yes")
	}
	if result.ExpectedCRC != "" {
		fmt.Fprintf(os.Stderr, "crc32:    expected %s, computed %s\n",
			result.ExpectedCRC, result.ActualCRC)
	}

	switch result.Kind {
	case yenc.Malformed:
		return fmt.Errorf("input is not a yEnc article")
	case yenc.Unsupported:
		return fmt.Errorf("input uses an unsupported encoding (uuencode)")
	}

	if !infoOnly {
		if err := writeOutput(outputPath, result); err != nil {
			return err
		}
	}

	if result.Kind == yenc.CRCMismatch {
		return fmt.Errorf("checksum mismatch: expected %s, computed %s",
			result.ExpectedCRC, result.ActualCRC)
	}
	return nil
}

// readInput reads the article bytes from the positional argument, or
// stdin when the argument is absent or "-".
func readInput(args []string) ([]byte, error) {
	switch {
	case len(args) > 1:
		return nil, fmt.Errorf("expected at most one input file, got %d", len(args))
	case len(args) == 0 || args[0] == "-":
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return raw, nil
	default:
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		return raw, nil
	}
}

// writeOutput writes the decoded payload to the requested path, the
// article's own filename, or stdout for "-".
func writeOutput(outputPath string, result yenc.Result) error {
	if outputPath == "-" {
		if _, err := os.Stdout.Write(result.Data); err != nil {
			return fmt.Errorf("writing stdout: %w", err)
		}
		return nil
	}
	if outputPath == "" {
		if result.Filename == "" {
			return fmt.Errorf("article carried no filename; use --output")
		}
		outputPath = result.Filename
	}
	if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote:    %s\n", outputPath)
	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Print(`spool-yenc — decode one yEnc article

Usage:
  spool-yenc [flags] [file]

Reads a raw article from the given file (or stdin) and decodes it.
Outcome details go to stderr; decoded bytes go to the output path.

Flags:
`)
	fmt.Print(flagSet.FlagUsages())
}
