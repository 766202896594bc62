package race

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"BatchRace/internal/batch"
)

// Pipeline один вендорский пайплайн гонки: сборка запросов, отправка,
// опрос и разбор скрыты за Run.
type Pipeline struct {
	Name        string
	CostPerMTok float64
	Run         func(ctx context.Context) ([]batch.Result, error)
}

// Outcome итог одного пайплайна. Elapsed меряется от старта отправки
// до завершения разбора результатов.
type Outcome struct {
	Provider    string
	CostPerMTok float64
	Elapsed     time.Duration
	Results     []batch.Result
	Err         error
}

func (o Outcome) Success() bool { return o.Err == nil }

// Summary сводка гонки. Строится один раз по двум итогам, печатается и забывается.
type Summary struct {
	First        Outcome
	Second       Outcome
	Winner       string // пусто, если успешных пайплайнов меньше двух
	TimeDiff     time.Duration
	Speedup      float64
	Cheaper      string
	CostRatio    float64
	TotalElapsed time.Duration
}

// Driver запускает два пайплайна одновременно и собирает сводку.
type Driver struct {
	logger *zap.SugaredLogger
}

func New(logger *zap.SugaredLogger) *Driver {
	return &Driver{logger: logger}
}

// Run выполняет оба пайплайна в отдельных горутинах и ждёт завершения обоих.
// Общих изменяемых данных между пайплайнами нет, синхронизация — только ожидание.
func (d *Driver) Run(ctx context.Context, first, second Pipeline) Summary {
	raceStart := time.Now()

	outs := make([]Outcome, 2)
	var wg sync.WaitGroup
	for i, p := range []Pipeline{first, second} {
		wg.Add(1)
		go func(i int, p Pipeline) {
			defer wg.Done()
			outs[i] = d.runOne(ctx, p)
		}(i, p)
	}
	wg.Wait()

	s := Summarize(outs[0], outs[1])
	s.TotalElapsed = time.Since(raceStart)
	return s
}

func (d *Driver) runOne(ctx context.Context, p Pipeline) Outcome {
	started := time.Now()
	results, err := p.Run(ctx)
	out := Outcome{
		Provider:    p.Name,
		CostPerMTok: p.CostPerMTok,
		Elapsed:     time.Since(started),
		Results:     results,
		Err:         err,
	}
	if err != nil {
		d.logger.Errorw("Pipeline failed", "provider", p.Name, "error", err, "elapsed", out.Elapsed.Round(time.Millisecond).String())
	} else {
		d.logger.Infow("Pipeline completed", "provider", p.Name, "results", len(results), "elapsed", out.Elapsed.Round(time.Millisecond).String())
	}
	return out
}

// Summarize строит сводку по двум итогам. Победитель определяется только среди
// успешных; при равенстве времени побеждает первый по порядку сравнения.
// Стоимость сравнивается всегда — тарифы известны заранее.
func Summarize(first, second Outcome) Summary {
	s := Summary{First: first, Second: second}

	if first.Success() && second.Success() {
		winner, loser := first, second
		if second.Elapsed < first.Elapsed {
			winner, loser = second, first
		}
		s.Winner = winner.Provider
		s.TimeDiff = loser.Elapsed - winner.Elapsed
		if winner.Elapsed > 0 {
			s.Speedup = float64(loser.Elapsed) / float64(winner.Elapsed)
		} else {
			s.Speedup = 1
		}
	}

	cheap, expensive := first, second
	if second.CostPerMTok < first.CostPerMTok {
		cheap, expensive = second, first
	}
	s.Cheaper = cheap.Provider
	if cheap.CostPerMTok > 0 {
		s.CostRatio = expensive.CostPerMTok / cheap.CostPerMTok
	}

	return s
}

// survivor возвращает единственный успешный пайплайн, если такой ровно один.
func (s Summary) survivor() *Outcome {
	if s.First.Success() && !s.Second.Success() {
		return &s.First
	}
	if s.Second.Success() && !s.First.Success() {
		return &s.Second
	}
	return nil
}

// Print печатает человекочитаемую сводку. Формат не является машинным контрактом.
func (s Summary) Print(w io.Writer) {
	line := strings.Repeat("=", 70)

	fmt.Fprintln(w)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, "BATCH API RACE RESULTS")
	fmt.Fprintln(w, line)

	fmt.Fprintln(w, "\nProcessing time:")
	fmt.Fprintf(w, "  %-10s %-10s %10s\n", "Provider", "Status", "Time")
	fmt.Fprintf(w, "  %s\n", strings.Repeat("-", 32))
	for _, o := range []Outcome{s.First, s.Second} {
		status := "success"
		if !o.Success() {
			status = "failed"
		}
		fmt.Fprintf(w, "  %-10s %-10s %9.1fs\n", o.Provider, status, o.Elapsed.Seconds())
	}

	switch {
	case s.Winner != "":
		fmt.Fprintf(w, "\nWinner: %s\n", s.Winner)
		fmt.Fprintf(w, "Time difference: %.1fs\n", s.TimeDiff.Seconds())
		fmt.Fprintf(w, "%s is %.1fx faster\n", s.Winner, s.Speedup)
	case s.survivor() != nil:
		surv := s.survivor()
		fmt.Fprintf(w, "\nOnly %s finished successfully (%.1fs)\n", surv.Provider, surv.Elapsed.Seconds())
	default:
		fmt.Fprintln(w, "\nBoth pipelines failed")
	}

	fmt.Fprintln(w, "\nCost per 1M tokens (batch):")
	fmt.Fprintf(w, "  %-10s $%.4f\n", s.First.Provider, s.First.CostPerMTok)
	fmt.Fprintf(w, "  %-10s $%.4f\n", s.Second.Provider, s.Second.CostPerMTok)
	if s.CostRatio > 0 {
		fmt.Fprintf(w, "  %s is %.1fx cheaper\n", s.Cheaper, s.CostRatio)
	}

	for _, o := range []Outcome{s.First, s.Second} {
		if len(o.Results) == 0 {
			continue
		}
		fmt.Fprintf(w, "\nSample results (%s):\n", o.Provider)
		for _, r := range o.Results[:min(2, len(o.Results))] {
			fmt.Fprintf(w, "  %s: name=%q email=%q phone=%q\n", r.CallID, r.Data.CustomerName, r.Data.Email, r.Data.Phone)
		}
	}

	fmt.Fprintf(w, "\nTotal race time: %.1fs\n", s.TotalElapsed.Seconds())
	fmt.Fprintln(w, line)
}
