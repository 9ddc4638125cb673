// Command askdata answers natural-language analytics questions against a
// relational dataset and a small policy document corpus. It runs a single
// question with -q, a JSONL batch with -input/-output, or a connectivity
// smoke test with -check.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/sweetpotato0/askdata/batch"
	"github.com/sweetpotato0/askdata/config"
	"github.com/sweetpotato0/askdata/llm"
	"github.com/sweetpotato0/askdata/llm/claude"
	"github.com/sweetpotato0/askdata/llm/ollama"
	"github.com/sweetpotato0/askdata/llm/openai"
	"github.com/sweetpotato0/askdata/pkg/logging"
	"github.com/sweetpotato0/askdata/pkg/telemetry"
	"github.com/sweetpotato0/askdata/qa"
	"github.com/sweetpotato0/askdata/reason"
	"github.com/sweetpotato0/askdata/retrieval/tfidf"
	"github.com/sweetpotato0/askdata/runlog"
	"github.com/sweetpotato0/askdata/store/sqlstore"
)

func main() {
	question := flag.String("q", "", "answer a single question and exit")
	hint := flag.String("hint", "short answer", "format hint for -q: int, float, a record shape, or free text")
	inputPath := flag.String("input", "", "JSONL question file for batch mode (default stdin)")
	outputPath := flag.String("output", "", "JSONL result file for batch mode (default stdout)")
	check := flag.Bool("check", false, "verify corpus, database, and run log connectivity, then exit")
	flag.Parse()

	if err := run(*question, *hint, *inputPath, *outputPath, *check); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(question, hint, inputPath, outputPath string, check bool) error {
	_ = godotenv.Load()
	logger := logging.WithComponent("main")
	ctx := context.Background()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: "askdata",
		Disable:     cfg.DisableTelemetry,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", "error", err)
		}
	}()

	db, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	st, err := sqlstore.New(ctx, db)
	if err != nil {
		return fmt.Errorf("prepare data store: %w", err)
	}
	st.EnsureCompatViews(ctx)

	index, err := tfidf.New(cfg.DocsDir)
	if err != nil {
		return fmt.Errorf("index document corpus: %w", err)
	}

	runLog, err := buildRunLog(cfg)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer runLog.Close()

	if check {
		return smokeTest(ctx, st, index)
	}

	pipeline := qa.New(buildReasoner(cfg), index, st, qa.WithTopK(cfg.TopK))

	if question != "" {
		return answerOne(ctx, pipeline, runLog, question, hint)
	}
	return runBatch(ctx, pipeline, runLog, cfg, inputPath, outputPath)
}

// buildReasoner selects the reasoning backend. Live backends degrade to the
// rule-based responder on error rather than failing a run.
func buildReasoner(cfg config.Config) reason.Service {
	rules := reason.NewRuleService()

	var client llm.Client
	switch cfg.Provider {
	case "openai":
		client = openai.New(openai.DefaultConfig().
			WithAPIKey(cfg.APIKey).
			WithBaseURL(cfg.BaseURL).
			WithModel(cfg.Model))
	case "claude":
		c := claude.DefaultConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		client = claude.New(c)
	case "ollama":
		c := ollama.DefaultConfig()
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		if cfg.Model != "" {
			c.Model = cfg.Model
		}
		client = ollama.New(c)
	default:
		return rules
	}
	return reason.WithFallback(reason.NewLLMService(client), rules)
}

func buildRunLog(cfg config.Config) (runlog.Store, error) {
	switch cfg.RunLog {
	case "redis":
		return runlog.NewRedisStore(&runlog.RedisConfig{Addr: cfg.RedisAddr}), nil
	case "mongo":
		return runlog.NewMongoStore(&runlog.MongoConfig{
			URI:        cfg.MongoURI,
			Database:   "askdata",
			Collection: "runlog",
		})
	default:
		return runlog.NewInMemoryStore(), nil
	}
}

func smokeTest(ctx context.Context, st *sqlstore.SQLStore, index *tfidf.Index) error {
	if err := st.Ping(ctx); err != nil {
		return fmt.Errorf("database check failed: %w", err)
	}
	outcome := st.Execute(ctx, "SELECT COUNT(*) FROM Orders")
	if !outcome.Success {
		return fmt.Errorf("database check query failed: %s", outcome.Error)
	}
	fmt.Printf("database ok: smoke query returned %d row(s)\n", outcome.RowCount())
	fmt.Printf("corpus ok: %d fragments indexed\n", index.Len())
	return nil
}

func answerOne(ctx context.Context, pipeline *qa.Pipeline, runLog runlog.Store, question, hint string) error {
	run, err := pipeline.Answer(ctx, question, hint)
	var result qa.Result
	if err != nil {
		result = qa.FailureRecord("adhoc", err)
	} else {
		result = qa.ResultRecord("adhoc", run)
	}
	if run != nil {
		if logErr := runLog.Append(ctx, runlog.NewRecord(run, result)); logErr != nil {
			logging.WithComponent("main").Warn("run log append failed", "error", logErr)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runBatch(ctx context.Context, pipeline *qa.Pipeline, runLog runlog.Store, cfg config.Config, inputPath, outputPath string) error {
	var in io.Reader = os.Stdin
	if inputPath != "" {
		f, err := os.Open(inputPath)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}

	var out io.Writer = os.Stdout
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}

	processor := batch.New(pipeline,
		batch.WithConcurrency(cfg.Concurrency),
		batch.WithRunLog(runLog),
	)
	return processor.Process(ctx, in, out)
}
