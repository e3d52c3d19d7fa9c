package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BaSui01/sunyadvisor/agent/orchestrator"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var chatFlags struct {
	user    string
	session string
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the counselor from the terminal",
	Long: `Starts an interactive counseling session against the configured
backends. Type /new to start a fresh chat and /quit to leave. Reusing
--session resumes an earlier conversation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		// Keep the terminal for the conversation.
		cfg.Log.OutputPaths = []string{"stderr"}
		logger := initLogger(cfg.Log)
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg, nil, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		sessionID := chatFlags.session
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		o, err := orchestrator.NewSessions(a.orchestratorFactory(), a.sessions, logger).Get(ctx, chatFlags.user, sessionID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session %s, chat %d\n", sessionID, o.Session().ChatID)
		return runREPL(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), o, logger)
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatFlags.user, "user", "local", "student user id")
	chatCmd.Flags().StringVar(&chatFlags.session, "session", "", "session id to resume (default: a new one)")
	rootCmd.AddCommand(chatCmd)
}

// conversation is the part of an orchestrator the REPL drives.
type conversation interface {
	HandleTurn(ctx context.Context, text string) (*orchestrator.TurnResult, error)
	NewChat(ctx context.Context) (int64, error)
}

// runREPL reads one student message per line until EOF, /quit or ctx ends.
// A failed turn prints the generic apology and the loop continues.
func runREPL(ctx context.Context, in io.Reader, out io.Writer, c conversation, logger *zap.Logger) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/new":
			id, err := c.NewChat(ctx)
			if err != nil {
				logger.Error("new chat failed", zap.Error(err))
				fmt.Fprintln(out, "could not start a new chat")
				continue
			}
			fmt.Fprintf(out, "started chat %d\n", id)
			continue
		}

		res, err := c.HandleTurn(ctx, line)
		if err != nil {
			logger.Error("turn failed", zap.Error(err))
			fmt.Fprintf(out, "counselor> %s\n", orchestrator.GenericErrorMessage)
			continue
		}
		fmt.Fprintf(out, "counselor> %s\n", res.Reply)
		for _, src := range res.Sources {
			fmt.Fprintf(out, "  source: %s\n", src)
		}
	}
}
