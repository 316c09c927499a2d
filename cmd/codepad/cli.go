package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Harsh-BH/codepad/internal/app"
	"github.com/Harsh-BH/codepad/internal/config"
	"github.com/Harsh-BH/codepad/internal/domain"
	"github.com/Harsh-BH/codepad/internal/relay"
	"github.com/Harsh-BH/codepad/internal/repository/memory"
)

var (
	successColor  = color.New(color.FgGreen, color.Bold)
	failureColor  = color.New(color.FgRed, color.Bold)
	progressColor = color.New(color.FgCyan)
	faintColor    = color.New(color.Faint)
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, logger *zap.Logger) *cli.App {
	cliApp := &cli.App{
		Name:    "codepad",
		Usage:   "Run and edit source files through the codepad execution chain",
		Version: Version,
		Commands: []*cli.Command{
			runCmd(cfg, logger),
			languagesCmd(cfg, logger),
			editCmd(cfg, logger),
			serveRelayCmd(cfg, logger),
		},
	}
	// Errors are returned to main instead of exiting inside the app.
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// runCmd executes one file and prints the result.
func runCmd(cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Execute a source file (use - to read stdin)",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filename", Aliases: []string{"f"}, Usage: "Filename used for language detection (defaults to the file's name)"},
			&cli.BoolFlag{Name: "json", Usage: "Print the result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: codepad run <file>", 2)
			}

			path := c.Args().First()
			text, err := readSource(path, c.App.Reader)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			if strings.TrimSpace(text) == "" {
				return cli.Exit(domain.ErrEmptySource.Error(), 1)
			}

			filename := c.String("filename")
			if filename == "" {
				filename = filepath.Base(path)
			}

			chain, err := app.NewChain(cfg, logger, app.ChainOptions{})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer chain.Close()
			orch := chain.Orchestrator(memory.NewExecutionLock(), logger)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			req := domain.NewExecutionRequest(uuid.New(), domain.SourceBuffer{Text: text, Filename: filename})
			var mu sync.Mutex
			result, err := orch.Execute(ctx, &req, func(e domain.ProgressEvent) {
				mu.Lock()
				defer mu.Unlock()
				printProgress(c.App.ErrWriter, e)
			})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			if c.Bool("json") {
				if err := outputJSON(c.App.Writer, result); err != nil {
					return err
				}
			} else {
				printResult(c.App.Writer, result)
			}
			if result.Status != domain.StatusSuccess {
				return cli.Exit(fmt.Sprintf("execution finished with status %s", result.Status), 1)
			}
			return nil
		},
	}
}

// languagesCmd lists supported languages.
func languagesCmd(cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "languages",
		Usage: "List supported languages and the local toolchain for each",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Value: "table", Usage: "Output format: table|json|yaml"},
		},
		Action: func(c *cli.Context) error {
			chain, err := app.NewChain(cfg, logger, app.ChainOptions{WithoutRelay: true})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer chain.Close()
			infos := chain.LanguageInfo()

			switch c.String("output") {
			case "json":
				return outputJSON(c.App.Writer, infos)
			case "yaml":
				enc := yaml.NewEncoder(c.App.Writer)
				enc.SetIndent(2)
				if err := enc.Encode(infos); err != nil {
					return err
				}
				return enc.Close()
			case "table":
				return outputLanguageTable(c.App.Writer, infos)
			default:
				return cli.Exit(fmt.Sprintf("unknown output format %q", c.String("output")), 2)
			}
		},
	}
}

// editCmd opens an interactive editing session.
func editCmd(cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Edit a document interactively with undo, redo and run",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			filename, text := defaultFilename, ""
			if c.NArg() > 0 {
				filename = c.Args().First()
				data, err := os.ReadFile(filename)
				if err != nil && !os.IsNotExist(err) {
					return cli.Exit(err.Error(), 1)
				}
				text = string(data)
			}

			chain, err := app.NewChain(cfg, logger, app.ChainOptions{})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer chain.Close()

			ed := newEditor(chain.Orchestrator(memory.NewExecutionLock(), logger), cfg.Session.HistoryCapacity, c.App.Writer, logger)
			defer ed.Close()
			if err := ed.Load(c.Context, filename, text); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return ed.Run(c.Context, c.App.Reader)
		},
	}
}

// serveRelayCmd answers relay requests from codepad servers.
func serveRelayCmd(cfg *config.Config, logger *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve-relay",
		Usage: "Run executions on this host for remote codepad servers",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "transport", Usage: "Relay transport: nats|amqp (defaults to RELAY_TRANSPORT)"},
			&cli.StringFlag{Name: "url", Usage: "Broker URL (defaults to RELAY_URL)"},
			&cli.StringFlag{Name: "subject", Usage: "Request subject or queue (defaults to RELAY_SUBJECT)"},
		},
		Action: func(c *cli.Context) error {
			transport := firstNonEmpty(c.String("transport"), cfg.Relay.Transport)
			url := firstNonEmpty(c.String("url"), cfg.Relay.URL)
			subject := firstNonEmpty(c.String("subject"), cfg.Relay.Subject)
			if url == "" {
				return cli.Exit("a broker URL is required (--url or RELAY_URL)", 2)
			}

			// A runner never forwards requests to another relay.
			chain, err := app.NewChain(cfg, logger, app.ChainOptions{WithoutRelay: true})
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer chain.Close()
			orch := chain.Orchestrator(memory.NewExecutionLock(), logger)

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			switch transport {
			case config.RelayNATS:
				err = relay.ServeNATS(ctx, url, subject, orch, logger)
			case config.RelayAMQP:
				err = relay.ServeAMQP(ctx, url, subject, orch, logger)
			default:
				return cli.Exit(fmt.Sprintf("unsupported relay transport %q (want nats or amqp)", transport), 2)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

func readSource(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		return string(data), err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printProgress(w io.Writer, e domain.ProgressEvent) {
	progressColor.Fprintf(w, "[%s] ", e.Strategy)
	fmt.Fprintln(w, e.Message)
}

func printResult(w io.Writer, result *domain.ExecutionResult) {
	status := successColor
	if result.Status != domain.StatusSuccess {
		status = failureColor
	}
	status.Fprint(w, result.Status)
	faintColor.Fprintf(w, " via %s (compile %dms, run %dms)\n", result.Strategy, result.CompileTimeMs, result.RunTimeMs)

	if result.CompileMessage != "" {
		fmt.Fprintln(w, result.CompileMessage)
	}
	if result.RunOutput != "" {
		fmt.Fprintln(w, result.RunOutput)
	}
	for _, d := range result.Diagnostics {
		if d == result.CompileMessage {
			continue
		}
		faintColor.Fprintln(w, d)
	}
}

func outputLanguageTable(w io.Writer, infos []domain.LanguageInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LANGUAGE\tEXTENSIONS\tLOCAL\tJUDGE ID")
	for _, info := range infos {
		local := "-"
		if info.Installed {
			local = firstNonEmpty(info.Compiler, info.Runtime)
			if info.Compiler != "" && info.Runtime != "" && info.Runtime != info.Compiler {
				local = info.Compiler + ", " + info.Runtime
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", info.Name, strings.Join(info.Extensions, ","), local, info.JudgeID)
	}
	return tw.Flush()
}

// outputJSON prints v as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

