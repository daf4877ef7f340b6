package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/BaSui01/migrationflow/internal/store"
	"github.com/BaSui01/migrationflow/pipeline"
	"github.com/BaSui01/migrationflow/pipeline/diagram"
	"github.com/BaSui01/migrationflow/pipeline/transfer"
)

// =============================================================================
// 🧩 compile / export 命令
// =============================================================================

func runCompile(args []string) int {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "yaml", "Output format: json or yaml")
	doImport := fs.Bool("import", false, "Import the compiled templates")
	_ = fs.Parse(args)

	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "Usage: migrationflow compile [options] <diagram-file>")
		return 1
	}

	docs, err := compileFile(fs.Arg(0), zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Compile failed: %v\n", err)
		return 1
	}

	if !*doImport {
		if err := pipeline.EncodeDocuments(os.Stdout, docs, pipeline.ParseFormat(*format)); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write templates: %v\n", err)
			return 1
		}
		return 0
	}

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	s, pool, err := openStore(cfg, logger, nil)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return 1
	}
	defer pool.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := transfer.NewImporter(s, store.NewScriptResolver(s), logger).Import(ctx, docs)
	for _, r := range results {
		if len(r.Errors) > 0 {
			fmt.Printf("FAILED  %s\n", r.Name)
			for _, e := range r.Errors {
				fmt.Printf("        %s\n", e)
			}
			continue
		}
		fmt.Printf("IMPORTED %s (%s, %d tasks)\n", r.Name, r.TemplateID, r.Tasks)
	}
	if err != nil {
		return 1
	}
	return 0
}

// compileFile 读取并编译流程图文件，全部图表合法才返回
func compileFile(path string, logger *zap.Logger) ([]pipeline.TemplateDocument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	diagrams, err := diagram.ParseReader(f)
	if err != nil {
		return nil, err
	}
	templates, err := pipeline.NewCompiler(logger).CompileAll(diagrams)
	if err != nil {
		return nil, err
	}

	docs := make([]pipeline.TemplateDocument, len(templates))
	for i, t := range templates {
		docs[i] = pipeline.FromTemplate(t)
	}
	return docs, nil
}

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	format := fs.String("format", "yaml", "Output format: json or yaml")
	out := fs.String("out", "", "Output file (default: stdout)")
	_ = fs.Parse(args)

	cfg := loadConfig(*configPath)
	logger := initLogger(cfg.Log)
	defer func() { _ = logger.Sync() }()

	s, pool, err := openStore(cfg, logger, nil)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return 1
	}
	defer pool.Close()

	docs, err := transfer.NewExporter(s, logger).Export(context.Background())
	if err != nil {
		logger.Error("Export failed", zap.Error(err))
		return 1
	}

	var w io.Writer = os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			logger.Error("Failed to create output file", zap.Error(err))
			return 1
		}
		defer f.Close()
		w = f
	}

	if err := pipeline.EncodeDocuments(w, docs, pipeline.ParseFormat(*format)); err != nil {
		logger.Error("Failed to write templates", zap.Error(err))
		return 1
	}
	logger.Info("Templates exported", zap.Int("templates", len(docs)))
	return 0
}
