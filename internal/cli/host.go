package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/config"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/logger"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/session"
)

// NewHostCmd builds the subcommand hosting a live exam room.
func NewHostCmd(configPath, port *string) *cobra.Command {
	var code string
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a live exam room by access code",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(cmd.Context(), *configPath, *port, code)
		},
	}
	cmd.Flags().StringVar(&code, "code", "123456", "exam access code, also the room code")
	return cmd
}

func runHost(ctx context.Context, configPath, portFlag, code string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	d, err := openDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer d.close()

	exam, err := d.exams.GetExamByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("resolve exam %q: %w", code, err)
	}
	if !exam.IsPublished {
		return fmt.Errorf("exam %q is not published", code)
	}

	client := broker.NewWSClient(
		relayURL(cfg, portFlag),
		config.Duration(cfg.Relay.DialTimeout, defaultDialWait),
		log,
	)
	host := session.NewHost(client, d.submissions, session.HostConfig{
		Exam:  exam,
		Teams: domain.DefaultTeams(),
		Grace: config.Duration(cfg.Room.Grace, 0),
	}, log)

	if err := host.Open(ctx, exam.Code); err != nil {
		return err
	}
	log.Info().Str("code", exam.Code).Str("title", exam.Title).Msg("room open, waiting for players")

	boards, cancelBoards := host.Subscribe()
	go func() {
		for board := range boards {
			log.Info().
				Str("activity", board.Activity).
				Int("players", len(board.Scores)).
				Msg("live board")
			for _, entry := range board.Scores {
				log.Info().
					Str("student", entry.Name).
					Str("team", entry.Team).
					Int("score", entry.Score).
					Msg("standing")
			}
		}
	}()
	defer cancelBoards()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	lines := readLines()
	fmt.Println("commands: start | end | quit")
	for {
		select {
		case <-stop:
			return host.End(context.Background())
		case <-ctx.Done():
			return host.End(context.Background())
		case line, ok := <-lines:
			if !ok {
				return host.End(context.Background())
			}
			switch strings.ToLower(strings.TrimSpace(line)) {
			case "start":
				if err := host.Start(); err != nil {
					log.Error().Err(err).Msg("start failed")
				} else {
					log.Info().Msg("exam started")
				}
			case "end", "quit":
				return host.End(context.Background())
			case "":
			default:
				fmt.Println("commands: start | end | quit")
			}
		}
	}
}

func relayURL(cfg config.Config, portFlag string) string {
	if cfg.Relay.URL != "" {
		return cfg.Relay.URL
	}
	p := portFlag
	if p == "" {
		p = "8080"
	}
	return "ws://127.0.0.1:" + p + "/ws"
}

// readLines pumps stdin lines into a channel so command loops can
// select over them alongside signals.
func readLines() <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			out <- scanner.Text()
		}
	}()
	return out
}
