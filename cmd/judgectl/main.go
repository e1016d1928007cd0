// judgectl is a terminal client for the legal assistant chatbot and the
// AI Judge.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mahawthada/legal-assistant/internal/backend"
	"github.com/mahawthada/legal-assistant/internal/config"
	"github.com/mahawthada/legal-assistant/internal/session"
)

var (
	verbose     bool
	plain       bool
	sessionPath string

	cfg    *config.Config
	logger *logrus.Logger
	client *backend.Client
	store  *session.FileStore
	out    *printer
)

var rootCmd = &cobra.Command{
	Use:   "judgectl",
	Short: "Legal assistant chatbot and AI Judge client",
	Long: `judgectl talks to the legal assistant chat backend and the AI Judge.

Log in first, then chat about legal questions or bring a case before the
judge. Backend locations are read from CHAT_API_URL and JUDGE_API_URL.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend calls to stderr")
	rootCmd.PersistentFlags().BoolVar(&plain, "plain", false, "print replies without markdown rendering")
	rootCmd.PersistentFlags().StringVar(&sessionPath, "session", "", "path of the saved login (default: user config dir)")

	rootCmd.AddCommand(loginCmd, signupCmd, logoutCmd, whoamiCmd)
	rootCmd.AddCommand(chatCmd, historyCmd)
	rootCmd.AddCommand(caseCmd, casesCmd, downloadCmd, downloadsCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	logger = logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)

	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil && level < logrus.InfoLevel {
		logger.SetLevel(level)
	}

	if sessionPath == "" {
		sessionPath, err = session.DefaultPath()
		if err != nil {
			return err
		}
	}
	store = session.NewFileStore(sessionPath)
	client = backend.NewClient(cfg.Backend.ChatURL, cfg.Backend.JudgeURL, cfg.Backend.Timeout, logger)
	out = newPrinter(os.Stdout, plain)
	return nil
}

// requireUser returns the saved login or an error telling the user to log in.
func requireUser() error {
	if _, ok := store.CurrentUser(); !ok {
		return fmt.Errorf("not logged in: run 'judgectl login' first")
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, out.errorText(err.Error()))
		os.Exit(1)
	}
}
