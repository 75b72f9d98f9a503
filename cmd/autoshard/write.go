package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jaredmtdev/autoshard"
	"github.com/jaredmtdev/autoshard/internal/config"
	"github.com/jaredmtdev/autoshard/sharding"
	"github.com/jaredmtdev/autoshard/sink"
	"github.com/jaredmtdev/autoshard/write"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const maxLineSize = 1 << 20

type writeFlags struct {
	configPath string
	input      string
	output     string
	suffix     string
	format     string
	numShards  int
	threshold  int64
	partitions int
}

func newWriteCmd() *cobra.Command {
	f := &writeFlags{}
	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write input lines as shard files named <output>-SSSSS-of-NNNNN<suffix>",
		Long: `Reads one record per line from --input (or stdin) and writes them to shard files.

Without --num-shards the shard count grows with log10 of the record count,
plus a small random number of extra shards.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			if cfg.Logging.Verbose {
				level.SetLevel(zapcore.DebugLevel)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			in := io.Reader(cmd.InOrStdin())
			if f.input != "" && f.input != "-" {
				file, err := os.Open(f.input)
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			files, err := runWrite(ctx, cfg, in, logger)
			if err != nil {
				return err
			}
			for _, name := range files {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input file, one record per line (default: stdin)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output prefix of the shard files")
	cmd.Flags().StringVar(&f.suffix, "suffix", "", "Suffix of the shard files, e.g. .txt")
	cmd.Flags().StringVar(&f.format, "format", "", "Record format: text or json")
	cmd.Flags().IntVar(&f.numShards, "num-shards", 0, "Write exactly this many shards")
	cmd.Flags().Int64Var(&f.threshold, "threshold", 0, "Record counts at or below this get one shard per record")
	cmd.Flags().IntVar(&f.partitions, "partitions", 0, "Input partitions processed in parallel")
	return cmd
}

// apply - flags set on the command line win over the config file.
func (f *writeFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("output") {
		cfg.Output.Prefix = f.output
	}
	if changed("suffix") {
		cfg.Output.Suffix = f.suffix
	}
	if changed("format") {
		cfg.Output.Format = f.format
	}
	if changed("num-shards") {
		cfg.Sharding.NumShards = f.numShards
	}
	if changed("threshold") {
		cfg.Sharding.UnshardedWriteThreshold = f.threshold
	}
	if changed("partitions") {
		cfg.Input.Partitions = f.partitions
	}
}

// readLines - every line of r without its line ending.
func readLines(r io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return lines, nil
}

// runWrite - writes every line of in as configured by cfg and returns the shard files it published, in shard order.
func runWrite(ctx context.Context, cfg *config.Config, in io.Reader, log *zap.Logger) ([]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	records, err := readLines(in)
	if err != nil {
		return nil, err
	}
	log.Info("read input", zap.Int("records", len(records)), zap.Int("partitions", cfg.Input.Partitions))

	workerOpts := []autoshard.Opt{
		autoshard.WithWorkerSize(cfg.Workers.Size),
		autoshard.WithBufferSize(cfg.Workers.Buffer),
	}
	textOpts := []sink.TextOpt[string]{sink.WithSuffix[string](cfg.Output.Suffix)}
	if cfg.Output.Format == config.FormatJSON {
		textOpts = append(textOpts, sink.WithCoder[string](sink.JSONCoder[string]))
	}
	text := sink.NewText[string](cfg.Output.Prefix, textOpts...)

	var files []string
	w := write.To[string](text,
		write.WithWorkerOpts[string](workerOpts...),
		write.OnFinalized[string](func(results []sink.Result) {
			for _, r := range results {
				files = append(files, r.Final)
			}
		}),
	)
	var step autoshard.PTransform[string] = w
	if cfg.Sharding.NumShards > 0 {
		step = w.WithNumShards(cfg.Sharding.NumShards)
	}

	factory := sharding.NewWriteWithShardingFactory[string](
		sharding.WithUnshardedWriteThreshold(cfg.Sharding.UnshardedWriteThreshold),
		sharding.WithWorkerOpts(workerOpts...),
	)
	p := autoshard.NewPipeline(autoshard.Of(records, cfg.Input.Partitions),
		autoshard.WithOverrides[string](factory),
		autoshard.WithPipelineLogger[string](log),
	)
	if err := p.Apply(step).Run(ctx); err != nil {
		return nil, err
	}

	log.Info("wrote shards", zap.Int("files", len(files)), zap.String("prefix", cfg.Output.Prefix))
	return files, nil
}
