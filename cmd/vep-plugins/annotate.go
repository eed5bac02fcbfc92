package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/stekaz/VEP-plugins/internal/annotate"
	"github.com/stekaz/VEP-plugins/internal/duckdb"
	"github.com/stekaz/VEP-plugins/internal/maf"
	"github.com/stekaz/VEP-plugins/internal/output"
	"github.com/stekaz/VEP-plugins/internal/vcf"
)

func newAnnotateCmd() *cobra.Command {
	var (
		outputFormat string
		outputFile   string
		inputFormat  string
		clearCache   bool
	)

	cmd := &cobra.Command{
		Use:   "annotate <input-file>",
		Short: "Annotate variants in a VCF or MAF file",
		Long: `Annotate every allele of a VCF or MAF file with each configured source.
Use '-' to read from stdin.`,
		Example: `  vep-plugins annotate input.vcf
  vep-plugins annotate -f vcf -o output.vcf input.vcf.gz
  vep-plugins annotate --workers 4 data_mutations.txt
  cat input.vcf | vep-plugins annotate -`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnnotate(cmd.OutOrStdout(), args[0], inputFormat, outputFormat, outputFile, clearCache)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output-format", "f", "tab", "Output format: tab, vcf")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&inputFormat, "input-format", "", "Input format: vcf, maf (auto-detected if not specified)")
	cmd.Flags().Int("workers", 0, "Annotation workers (0 = number of CPUs)")
	cmd.Flags().String("cache-db", "", "DuckDB file caching results between runs")
	cmd.Flags().BoolVar(&clearCache, "clear-cache", false, "Empty the result cache before annotating")

	viper.BindPFlag(keyWorkers, cmd.Flags().Lookup("workers"))
	viper.BindPFlag(keyCacheDB, cmd.Flags().Lookup("cache-db"))

	return cmd
}

func runAnnotate(stdout io.Writer, inputPath, inputFormat, outputFormat, outputFile string, clearCache bool) error {
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	format := inputFormat
	if format == "" {
		format = detectInputFormat(inputPath)
	}

	var (
		parser      vcf.VariantParser
		headerLines []string
	)
	switch format {
	case "maf":
		parser, err = maf.NewParser(inputPath)
	case "vcf":
		var p *vcf.Parser
		p, err = vcf.NewParser(inputPath)
		if err == nil {
			parser, headerLines = p, p.Header()
		}
	default:
		return fmt.Errorf("unknown input format %q (use --input-format vcf or maf)", format)
	}
	if err != nil {
		return err
	}
	defer parser.Close()

	sources, err := openSources(logger)
	if err != nil {
		return err
	}

	ann := annotate.NewAnnotator(sources...)
	ann.SetLogger(logger)
	ann.SetWorkers(viper.GetInt(keyWorkers))
	defer func() {
		if err := ann.Close(); err != nil {
			logger.Warn("closing sources", zap.Error(err))
		}
	}()

	if path := viper.GetString(keyCacheDB); path != "" {
		store, err := duckdb.Open(path)
		if err != nil {
			return fmt.Errorf("open result cache: %w", err)
		}
		defer store.Close()
		if clearCache {
			if err := store.ClearResults(); err != nil {
				return err
			}
		}
		meta, err := sourceMetadata(sources)
		if err != nil {
			return fmt.Errorf("describe sources: %w", err)
		}
		stale, err := store.SyncMetadata(meta)
		if err != nil {
			return err
		}
		if stale {
			logger.Info("source data changed, cleared result cache", zap.String("path", path))
		}
		queries, _, err := store.Stats()
		if err != nil {
			return err
		}
		logger.Info("using result cache", zap.String("path", path), zap.Int64("cached_queries", queries))
		ann.SetCache(store)
	}

	out := stdout
	if outputFile != "" {
		f, err := os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	var writer annotate.AnnotationWriter
	switch outputFormat {
	case "tab":
		writer = output.NewTabWriter(out)
	case "vcf":
		writer = output.NewVCFWriter(out, headerLines)
	default:
		return fmt.Errorf("unknown output format %q", outputFormat)
	}

	if err := writer.WriteHeader(ann.Fields()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return ann.AnnotateAll(parser, writer)
}

// detectInputFormat detects the input file format based on extension or content.
func detectInputFormat(path string) string {
	lowerPath := strings.ToLower(path)
	lowerPath = strings.TrimSuffix(lowerPath, ".gz")

	if strings.HasSuffix(lowerPath, ".vcf") {
		return "vcf"
	}
	if strings.HasSuffix(lowerPath, ".maf") {
		return "maf"
	}

	// cBioPortal MAF filenames
	baseName := filepath.Base(lowerPath)
	if baseName == "data_mutations.txt" || baseName == "data_mutations_extended.txt" {
		return "maf"
	}

	if path == "-" {
		return "vcf"
	}

	r, closers, err := vcf.OpenMaybeGzip(path)
	if err != nil {
		return "vcf"
	}
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	buf, _ := r.Peek(512)
	content := string(buf)

	if strings.HasPrefix(content, "##fileformat=VCF") || strings.HasPrefix(content, "#CHROM") {
		return "vcf"
	}
	if strings.Contains(content, maf.ColChromosome) && strings.Contains(content, maf.ColStartPosition) {
		return "maf"
	}
	return "vcf"
}
