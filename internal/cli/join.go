package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/config"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/logger"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/session"
)

// NewJoinCmd builds the subcommand joining a live room as a student.
func NewJoinCmd(configPath, port *string) *cobra.Command {
	var (
		name string
		room string
		team string
	)
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a live exam room as a student",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}
			return runJoin(cmd.Context(), *configPath, *port, name, room, team)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&room, "room", "123456", "room code")
	cmd.Flags().StringVar(&team, "team", "", "team name, empty to stay unassigned")
	return cmd
}

func runJoin(ctx context.Context, configPath, portFlag, name, room, team string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)

	client := broker.NewWSClient(
		relayURL(cfg, portFlag),
		config.Duration(cfg.Relay.DialTimeout, defaultDialWait),
		log,
	)
	student := session.NewStudent(client, session.StudentConfig{
		Name:        name,
		SyncTimeout: config.Duration(cfg.Relay.SyncTimeout, 0),
	}, log)

	if err := student.Join(ctx, room); err != nil {
		return err
	}
	defer student.Exit()

	exam := student.Exam()
	log.Info().Str("exam", exam.Title).Str("room", room).Msg("joined room")
	if team != "" {
		if err := student.Ready(team); err != nil {
			return err
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	lines := readLines()
	fmt.Println("commands: <option number> | text <answer> | next | submit | status | quit")
	for {
		select {
		case <-stop:
			return nil
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if done := studentCommand(student, line); done {
				return nil
			}
		}
	}
}

func studentCommand(student *session.Student, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "quit":
		return true
	case line == "status":
		printStatus(student)
	case line == "next":
		if err := student.Next(); err != nil {
			fmt.Println("next:", err)
		} else {
			printStatus(student)
		}
	case line == "submit":
		if err := student.Submit(); err != nil {
			fmt.Println("submit:", err)
		} else if result, ok := student.Result(); ok {
			fmt.Printf("submitted: %d/%d\n", result.Score, result.MaxScore)
		}
	case strings.HasPrefix(line, "text "):
		if err := student.EnterText(strings.TrimPrefix(line, "text ")); err != nil {
			fmt.Println("answer:", err)
		}
	default:
		option, err := strconv.Atoi(line)
		if err != nil {
			fmt.Println("commands: <option number> | text <answer> | next | submit | status | quit")
			return false
		}
		if err := student.SelectOption(option); err != nil {
			fmt.Println("answer:", err)
		}
	}
	return false
}

func printStatus(student *session.Student) {
	state := student.State()
	fmt.Println("state:", state)
	if state != session.StudentAnswering {
		if result, ok := student.Result(); ok {
			fmt.Printf("result: %d/%d\n", result.Score, result.MaxScore)
		}
		return
	}
	runner := student.Runner()
	if runner == nil {
		return
	}
	q, index, ok := runner.Current()
	if !ok {
		return
	}
	fmt.Printf("question %d: %s (%ds left)\n", index+1, q.Text, runner.TimeLeft())
	for i, opt := range q.Options {
		fmt.Printf("  %d. %s\n", i, opt)
	}
}
