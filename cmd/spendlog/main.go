package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/jdelaney/spendlog/internal/config"
	"github.com/jdelaney/spendlog/internal/database"
	"github.com/jdelaney/spendlog/internal/engine"
	"github.com/jdelaney/spendlog/internal/ledger"
	"github.com/jdelaney/spendlog/internal/llm"
	"github.com/jdelaney/spendlog/internal/logger"
	"github.com/jdelaney/spendlog/internal/secrets"
	"github.com/jdelaney/spendlog/internal/session"
	"github.com/jdelaney/spendlog/internal/testdata"
)

var (
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	answerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	thinkStyle  = lipgloss.NewStyle().Faint(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("spendlog: "+err.Error()))
		os.Exit(1)
	}
}

func run() error {
	demo := flag.Bool("demo", false, "seed the ledger with sample expenses")
	flag.Parse()

	if flag.Arg(0) == "key" {
		return runKeyCommand(flag.Args()[1:])
	}

	_ = godotenv.Load()
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	loc := time.Local
	if cfg.UI.Timezone != "" && cfg.UI.Timezone != "Local" {
		loc, err = time.LoadLocation(cfg.UI.Timezone)
		if err != nil {
			return fmt.Errorf("timezone %q: %w", cfg.UI.Timezone, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("mkdir db dir: %w", err)
	}
	if err := database.RunMigrations(cfg.Database.Path); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	store := ledger.NewStore(db, loc)

	if *demo {
		if err := testdata.Seed(context.Background(), store, time.Now().In(loc)); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		fmt.Println(thinkStyle.Render("seeded demo expenses for this month and last"))
	}

	var provider llm.Provider
	modelName := "none"
	switch cfg.LLM.Provider {
	case "off":
	case "gemini":
		key := cfg.LLM.APIKey
		if key == "" {
			// fall back to the local keyring ("spendlog key set gemini ...")
			if ring, err := secrets.Open(); err == nil {
				if stored, err := ring.Get("gemini"); err == nil {
					key = stored
				}
			}
		}
		p := llm.NewGeminiProvider(key, cfg.LLM.Model)
		provider, modelName = p, p.Name()
	default:
		p := llm.NewOllamaProvider(cfg.LLM.Endpoint, cfg.LLM.Model)
		provider, modelName = p, p.Name()
	}

	recorder, err := session.NewRecorder(cfg.Session.Dir, modelName, log)
	if err != nil {
		return fmt.Errorf("session recorder: %w", err)
	}
	defer func() {
		if err := recorder.Close(); err != nil {
			log.Error().Err(err).Msg("session close failed")
		}
	}()

	opts := []engine.Option{
		engine.WithRecorder(recorder),
		engine.WithLogger(log),
		engine.WithCurrencySymbol(cfg.UI.CurrencySymbol),
		engine.WithModelTimeout(time.Duration(cfg.LLM.TimeoutSeconds) * time.Second),
		// The engine and the store must agree on where "today" and month
		// boundaries fall.
		engine.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	if provider != nil {
		opts = append(opts, engine.WithProvider(provider))
	}
	eng := engine.New(store, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(promptStyle.Render("spendlog") + " — talk to your ledger. Ctrl-D to quit.")
	return repl(ctx, eng)
}

// runKeyCommand manages provider API keys in the local keyring:
// spendlog key set <provider> <key> | unset <provider> | list.
func runKeyCommand(args []string) error {
	ring, err := secrets.Open()
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return errors.New("usage: spendlog key set <provider> <key> | unset <provider> | list")
	}

	switch args[0] {
	case "set":
		if len(args) != 3 {
			return errors.New("usage: spendlog key set <provider> <key>")
		}
		if err := ring.Set(args[1], args[2]); err != nil {
			return err
		}
		fmt.Printf("stored key for %s\n", strings.ToLower(args[1]))
		return nil
	case "unset":
		if len(args) != 2 {
			return errors.New("usage: spendlog key unset <provider>")
		}
		if err := ring.Delete(args[1]); err != nil {
			return err
		}
		fmt.Printf("removed key for %s\n", strings.ToLower(args[1]))
		return nil
	case "list":
		names, err := ring.Providers()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("no keys stored")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	default:
		return fmt.Errorf("unknown key command %q", args[0])
	}
}

// repl wires stdin to the engine through bounded channels: one reader, one
// engine worker, one printer. The single worker keeps exchanges ordered and
// the session recorder single-writer.
func repl(ctx context.Context, eng *engine.Engine) error {
	inputs := make(chan string, 4)
	results := make(chan engine.QueryResult, 4)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(inputs)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			select {
			case inputs <- line:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		defer close(results)
		for line := range inputs {
			res := eng.Process(ctx, line, nil)
			select {
			case results <- res:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		for res := range results {
			for _, step := range res.ThinkingSteps {
				fmt.Println(thinkStyle.Render("  · " + step))
			}
			fmt.Println(answerStyle.Render(res.Response))
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
