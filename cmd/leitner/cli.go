package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/leitner/internal/card"
	"github.com/hpungsan/leitner/internal/config"
	"github.com/hpungsan/leitner/internal/errors"
	"github.com/hpungsan/leitner/internal/ops"
	"github.com/hpungsan/leitner/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.App {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	learner := ops.NewLearner(db, cfg, logger)

	app := &cli.App{
		Name:    "leitner",
		Usage:   "Flashcards learned with the Leitner box system",
		Version: Version,
		Commands: []*cli.Command{
			cardCmd(db),
			deckCmd(db),
			learnCmd(learner),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			uiCmd(db, cfg, logger),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// cardCmd creates the card command group.
func cardCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "card",
		Usage: "Add and inspect cards",
		Subcommands: []*cli.Command{
			{
				Name:  "add",
				Usage: "Add a card (reads the answer from stdin when --answer is omitted)",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Card name"},
					&cli.StringFlag{Name: "question", Aliases: []string{"q"}, Required: true, Usage: "Question (Markdown)"},
					&cli.StringFlag{Name: "answer", Aliases: []string{"a"}, Usage: "Answer (Markdown)"},
					&cli.StringSliceFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Keyword (repeatable)"},
					&cli.StringSliceFlag{Name: "link", Aliases: []string{"l"}, Usage: "Link as term=card (repeatable)"},
				},
				Action: func(c *cli.Context) error {
					answer := c.String("answer")
					if answer == "" && stdinHasData() {
						text, err := readStdin()
						if err != nil {
							return outputError(errors.NewInternal(err))
						}
						answer = text
					}

					links, err := parseLinks(c.StringSlice("link"))
					if err != nil {
						return outputError(err)
					}

					output, err := ops.AddCard(c.Context, db, ops.AddCardInput{
						Name:     c.String("name"),
						Question: c.String("question"),
						Answer:   answer,
						Keywords: c.StringSlice("keyword"),
						Links:    links,
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show a card by ID or name",
				ArgsUsage: "[id]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "Card name"},
				},
				Action: func(c *cli.Context) error {
					input := ops.GetCardInput{Name: c.String("name")}
					if c.NArg() > 0 {
						input.ID = c.Args().First()
					}
					output, err := ops.GetCard(c.Context, db, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List cards, optionally by keyword",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "keyword", Aliases: []string{"k"}, Usage: "Filter by keyword"},
					&cli.IntFlag{Name: "limit", Value: ops.DefaultListLimit, Usage: "Max results"},
					&cli.IntFlag{Name: "offset", Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListCards(c.Context, db, ops.ListCardsInput{
						Keyword: c.String("keyword"),
						Limit:   c.Int("limit"),
						Offset:  c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// deckCmd creates the deck command group.
func deckCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "deck",
		Usage: "Create and inspect decks",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a deck from existing cards",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Deck name"},
					&cli.StringFlag{Name: "cards", Aliases: []string{"c"}, Usage: "Comma-separated card names"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.CreateDeck(c.Context, db, ops.CreateDeckInput{
						Name:  c.String("name"),
						Cards: parseList(c.String("cards")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "show",
				Usage:     "Show a deck",
				ArgsUsage: "<name>",
				Action: func(c *cli.Context) error {
					output, err := ops.GetDeck(c.Context, db, c.Args().First())
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List decks",
				Action: func(c *cli.Context) error {
					output, err := ops.ListDecks(c.Context, db)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// sessionFlags address a learn session by name or by deck and algorithm.
func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "session", Aliases: []string{"s"}, Usage: "Session name, e.g. BioBoxLeitner"},
		&cli.StringFlag{Name: "deck", Aliases: []string{"d"}, Usage: "Deck name (when --session is omitted)"},
		&cli.StringFlag{Name: "algorithm", Value: "leitner", Usage: "Algorithm: leitner|random"},
	}
}

func sessionRef(c *cli.Context) ops.SessionRef {
	return ops.SessionRef{
		Session:   c.String("session"),
		Deck:      c.String("deck"),
		Algorithm: c.String("algorithm"),
	}
}

// learnCmd creates the learn command group.
func learnCmd(learner *ops.Learner) *cli.Command {
	return &cli.Command{
		Name:  "learn",
		Usage: "Learn a deck one card at a time",
		Subcommands: []*cli.Command{
			{
				Name:  "start",
				Usage: "Start a pass over a deck, or resume the pass in progress",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "deck", Aliases: []string{"d"}, Required: true, Usage: "Deck name"},
					&cli.StringFlag{Name: "algorithm", Value: "leitner", Usage: "Algorithm: leitner|random"},
					&cli.StringFlag{Name: "box", Aliases: []string{"b"}, Usage: `Single box to learn, e.g. "Box 2" (default: all boxes)`},
					&cli.StringFlag{Name: "sort", Usage: "Order within a single box: alphabetical|random"},
				},
				Action: func(c *cli.Context) error {
					output, err := learner.Start(c.Context, ops.StartInput{
						Deck:      c.String("deck"),
						Algorithm: c.String("algorithm"),
						Box:       c.String("box"),
						Sort:      c.String("sort"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "show",
				Usage: "Show the current card",
				Flags: append(sessionFlags(),
					&cli.BoolFlag{Name: "answer", Usage: "Include the answer"},
				),
				Action: func(c *cli.Context) error {
					output, err := learner.Show(c.Context, ops.ShowInput{
						SessionRef:    sessionRef(c),
						IncludeAnswer: c.Bool("answer"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "answer",
				Usage: "Grade the current card with --correct or --wrong",
				Flags: append(sessionFlags(),
					&cli.BoolFlag{Name: "correct", Usage: "The answer was right"},
					&cli.BoolFlag{Name: "wrong", Usage: "The answer was wrong"},
				),
				Action: func(c *cli.Context) error {
					if c.Bool("correct") == c.Bool("wrong") {
						return outputError(errors.NewInvalidRequest("specify exactly one of --correct or --wrong"))
					}
					output, err := learner.Answer(c.Context, ops.AnswerInput{
						SessionRef: sessionRef(c),
						Correct:    c.Bool("correct"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "next",
				Usage: "Move to the next card",
				Flags: sessionFlags(),
				Action: func(c *cli.Context) error {
					output, err := learner.Next(c.Context, sessionRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "back",
				Usage: "Move to the previous card",
				Flags: sessionFlags(),
				Action: func(c *cli.Context) error {
					output, err := learner.Back(c.Context, sessionRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "stop",
				Usage: "Suspend the session; the next start resumes the pass",
				Flags: sessionFlags(),
				Action: func(c *cli.Context) error {
					output, err := learner.Stop(c.Context, sessionRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "status",
				Usage: "Show every box of a session",
				Flags: sessionFlags(),
				Action: func(c *cli.Context) error {
					output, err := learner.Status(c.Context, sessionRef(c))
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List learn sessions, most recent first",
				Action: func(c *cli.Context) error {
					output, err := learner.ListSessions(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write all cards and decks to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Export file path (default: ~/.leitner/exports/leitner-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, cfg, ops.ExportInput{Path: c.String("path")})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import cards and decks from a JSONL export",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// uiCmd creates the ui command.
func uiCmd(db *sql.DB, cfg *config.Config, logger *slog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "ui",
		Usage: "Serve the study UI over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, err := web.NewServer(db, cfg, logger, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			return web.Run(srv, logger)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var lErr *errors.LeitnerError
	if stderrors.As(err, &lErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", lErr.Code, lErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseList splits a comma-separated string, dropping empty entries.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}

// parseLinks parses repeated term=card flags.
func parseLinks(raw []string) ([]card.Link, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	links := make([]card.Link, 0, len(raw))
	for _, s := range raw {
		l, err := card.ParseLink(s)
		if err != nil {
			return nil, errors.NewInvalidRequest(err.Error())
		}
		links = append(links, l)
	}
	return links, nil
}
