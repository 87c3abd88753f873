package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mkudfiso/mkudfiso/internal/sizeparse"
	"github.com/mkudfiso/mkudfiso/udf"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	outputPath  string
	limitStr    string
	volumeLabel string
	reportPath  string
	hashesPath  string
	gapPath     string
	forceISO    bool
	sparse      bool
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mkudfiso SOURCE_DIR",
		Short: "Author a pure UDF (OSTA UDF 1.02) filesystem image from a directory tree",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}
	flags := cmd.Flags()
	flags.StringVarP(&outputPath, "o", "o", "", "output image path (default: standard output)")
	flags.StringVar(&limitStr, "limit", "", "maximum total size of file content (accepts KB/MB/GB/TB suffixes)")
	flags.StringVarP(&volumeLabel, "volume", "v", "", "volume label")
	flags.StringVar(&reportPath, "report", "", "write a per-file report to FILE")
	flags.StringVar(&hashesPath, "hashes", "", "write per-file and whole-image hashes to FILE")
	flags.StringVar(&gapPath, "gap", "", "write the unwritten-region list to FILE")
	flags.BoolVar(&forceISO, "force-iso", false, "overwrite an existing output file")
	flags.BoolVar(&sparse, "sparse", false, "detect zero-filled runs in file content and write them without reading the host bytes")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	sourceDir := args[0]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limit, err := sizeparse.Parse(limitStr)
	if err != nil {
		return fmt.Errorf("invalid -limit: %w", err)
	}

	var out *os.File
	if outputPath == "" || outputPath == "-" {
		out = os.Stdout
	} else {
		if !forceISO {
			if _, statErr := os.Stat(outputPath); statErr == nil {
				return fmt.Errorf("output %q already exists; pass -force-iso to overwrite", outputPath)
			}
		}
		out, err = os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("creating output %q: %w", outputPath, err)
		}
		defer out.Close()
	}

	opts := udf.DefaultOptions()
	opts.VolumeLabel = volumeLabel
	opts.SizeLimit = limit
	opts.SparseDetect = sparse
	opts.AppendReport = false

	needHashes := hashesPath != ""

	var bar *progressbar.ProgressBar
	opts.Progress = func(written, total uint32) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "writing image")
		}
		bar.Set(int(written))
	}

	builder := udf.NewBuilder(opts)
	img, err := builder.Build(ctx, sourceDir, outputPath)
	if err != nil {
		return fmt.Errorf("building image: %w", err)
	}

	result, err := udf.Write(out, img, needHashes, opts.Progress)
	if err != nil {
		return fmt.Errorf("writing image: %w", err)
	}
	if bar != nil {
		bar.Finish()
	}

	if reportPath != "" {
		if err := writeSidecarFile(reportPath, func(f *os.File) error { return udf.WriteReport(f, img) }); err != nil {
			return err
		}
	}
	if hashesPath != "" {
		if err := writeSidecarFile(hashesPath, func(f *os.File) error { return udf.WriteHashes(f, img, result) }); err != nil {
			return err
		}
	}
	if gapPath != "" {
		if err := writeSidecarFile(gapPath, func(f *os.File) error { return udf.WriteGapList(f, img) }); err != nil {
			return err
		}
	}

	return nil
}

func writeSidecarFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating sidecar %q: %w", path, err)
	}
	defer f.Close()
	if err := write(f); err != nil {
		return fmt.Errorf("writing sidecar %q: %w", path, err)
	}
	return nil
}
