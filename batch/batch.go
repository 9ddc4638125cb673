// Package batch processes newline-delimited JSON question files through the
// question-answering pipeline, one result record per input line.
package batch

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/sweetpotato0/askdata/pkg/logging"
	"github.com/sweetpotato0/askdata/qa"
	"github.com/sweetpotato0/askdata/runlog"
)

// Question is one input record.
type Question struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

const defaultConcurrency = 4

// Processor runs batches of questions. Runs are independent, so questions are
// evaluated concurrently up to the configured limit; output order matches
// input order regardless.
type Processor struct {
	pipeline    *qa.Pipeline
	concurrency int
	runLog      runlog.Store
	logger      *slog.Logger
}

// Option customises a Processor.
type Option func(*Processor)

// WithConcurrency sets how many questions run at once.
func WithConcurrency(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithRunLog has the processor append a record for every question to the
// given run log.
func WithRunLog(s runlog.Store) Option {
	return func(p *Processor) {
		p.runLog = s
	}
}

// New builds a Processor over a pipeline.
func New(pipeline *qa.Pipeline, opts ...Option) *Processor {
	p := &Processor{
		pipeline:    pipeline,
		concurrency: defaultConcurrency,
		logger:      logging.WithComponent("batch"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process reads one JSON question per line from r and writes one JSON result
// per line to w, in input order. A question's failure never aborts the batch;
// it becomes a null-answer record and processing continues.
func (p *Processor) Process(ctx context.Context, r io.Reader, w io.Writer) error {
	questions, err := readQuestions(r)
	if err != nil {
		return err
	}
	p.logger.Info("batch started", "questions", len(questions), "concurrency", p.concurrency)

	results := make([]qa.Result, len(questions))
	pool := pond.NewPool(p.concurrency)
	for i, q := range questions {
		pool.Submit(func() {
			results[i] = p.answerOne(ctx, q)
		})
	}
	pool.StopAndWait()

	enc := json.NewEncoder(w)
	for _, res := range results {
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("write result %s: %w", res.ID, err)
		}
	}
	p.logger.Info("batch finished", "questions", len(questions))
	return nil
}

func (p *Processor) answerOne(ctx context.Context, q Question) qa.Result {
	run, err := p.pipeline.Answer(ctx, q.Question, q.FormatHint)
	if err != nil {
		p.logger.Error("question failed", "id", q.ID, "error", err)
		res := qa.FailureRecord(q.ID, err)
		p.record(ctx, q, nil, res)
		return res
	}
	p.logger.Info("question answered", "id", q.ID, "route", string(run.Route), "confidence", run.Confidence)
	res := qa.ResultRecord(q.ID, run)
	p.record(ctx, q, run, res)
	return res
}

func (p *Processor) record(ctx context.Context, q Question, run *qa.RunState, res qa.Result) {
	if p.runLog == nil {
		return
	}
	var rec runlog.Record
	if run != nil {
		rec = runlog.NewRecord(run, res)
	} else {
		rec = runlog.Record{Question: q.Question, Result: res, CreatedAt: time.Now()}
	}
	if err := p.runLog.Append(ctx, rec); err != nil {
		p.logger.Warn("run log append failed", "id", q.ID, "error", err)
	}
}

func readQuestions(r io.Reader) ([]Question, error) {
	var questions []Question
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var q Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("parse input line %d: %w", line, err)
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return questions, nil
}
