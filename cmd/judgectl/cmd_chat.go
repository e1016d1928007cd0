package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mahawthada/legal-assistant/internal/cache/redis"
	"github.com/mahawthada/legal-assistant/internal/conversation"
	"github.com/mahawthada/legal-assistant/internal/types"
)

// popularQuestions are offered to start a conversation.
var popularQuestions = []string{
	"What are my rights as a tenant?",
	"How do I file for divorce?",
	"What is the process for starting a business?",
	"How do I handle a workplace dispute?",
	"What are the requirements for a will?",
	"How do I protect my intellectual property?",
}

var (
	chatMode         string
	chatConversation int64
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask the legal assistant questions",
	Long: `Starts an interactive chat with the legal assistant.

Commands inside the chat:
  /new               start a new conversation
  /history           list your conversations
  /open <id>         continue a conversation
  /rename <id> <t>   rename a conversation
  /delete <id>       delete a conversation
  /mode <m>          answer mode: online or offline
  /popular           list popular questions
  /ask <n>           ask popular question n
  /quit              leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

var historyCmd = &cobra.Command{
	Use:   "history [conversation-id]",
	Short: "List conversations or print one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMode, "mode", "m", string(types.ModeOnline), "answer mode (online|offline)")
	chatCmd.Flags().Int64VarP(&chatConversation, "conversation", "c", 0, "continue the conversation with this id")
}

func parseMode(s string) (types.Mode, error) {
	switch m := types.Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case types.ModeOnline, types.ModeOffline:
		return m, nil
	}
	return "", fmt.Errorf("mode must be online or offline, got %q", s)
}

// newChat builds a conversation client for the saved login. The redis
// history cache is used when configured.
func newChat() (*conversation.Client, func(), error) {
	if err := requireUser(); err != nil {
		return nil, nil, err
	}
	var opts []conversation.Option
	cleanup := func() {}
	if cfg.Redis.URI != "" {
		rc, err := redis.New(cfg.Redis.URI)
		if err != nil {
			logger.WithError(err).Warn("history cache unavailable")
		} else {
			opts = append(opts, conversation.WithHistoryCache(redis.NewHistoryCache(rc, cfg.Redis.TTL)))
			cleanup = func() { _ = rc.Close() }
		}
	}
	return conversation.NewClient(client, store, logger, opts...), cleanup, nil
}

func printHistory(list []types.Conversation) {
	if len(list) == 0 {
		out.info("No conversations yet.")
		return
	}
	for _, conv := range list {
		topic := conv.Topic
		if topic == "" {
			topic = "(untitled)"
		}
		fmt.Printf("%6d  %-50s %s\n", conv.ID, topic, dimStyle.Render(fmt.Sprintf("%d messages", len(conv.Messages))))
	}
}

func loadHistory(ctx context.Context, chat *conversation.Client) []types.Conversation {
	list, err := chat.LoadHistory(ctx)
	if err != nil {
		out.errorf("could not load history: %v", err)
		return chat.CachedHistory(ctx)
	}
	return list
}

func openConversation(ctx context.Context, chat *conversation.Client, id int64) bool {
	if chat.SelectByID(id) {
		return true
	}
	loadHistory(ctx, chat)
	return chat.SelectByID(id)
}

func runHistory(cmd *cobra.Command, args []string) error {
	chat, cleanup, err := newChat()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	if len(args) == 0 {
		printHistory(loadHistory(ctx, chat))
		return nil
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conversation id %q", args[0])
	}
	if !openConversation(ctx, chat, id) {
		return fmt.Errorf("conversation %d not found", id)
	}
	out.messages(chat.Messages())
	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	mode, err := parseMode(chatMode)
	if err != nil {
		return err
	}
	chat, cleanup, err := newChat()
	if err != nil {
		return err
	}
	defer cleanup()
	ctx := cmd.Context()

	if chatConversation > 0 {
		if !openConversation(ctx, chat, chatConversation) {
			return fmt.Errorf("conversation %d not found", chatConversation)
		}
		out.messages(chat.Messages())
	} else {
		loadHistory(ctx, chat)
	}

	in := bufio.NewReader(os.Stdin)
	out.info("Ask a legal question, or /popular for ideas. /quit to leave.")
	out.rule()

	for {
		line, err := prompt(in, "> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := chatCommand(ctx, chat, in, line, &mode)
			if err != nil {
				out.errorf("%v", err)
			}
			if quit {
				return nil
			}
			continue
		}
		ask(ctx, chat, line, mode)
	}
}

func ask(ctx context.Context, chat *conversation.Client, text string, mode types.Mode) {
	reply, err := chat.Send(ctx, text, mode)
	if err != nil {
		out.errorf("%v", err)
		return
	}
	out.message(reply)
	out.rule()
}

func chatCommand(ctx context.Context, chat *conversation.Client, in *bufio.Reader, line string, mode *types.Mode) (bool, error) {
	fields := strings.Fields(line)
	name, rest := fields[0], fields[1:]

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		chat.StartNew()
		out.info("Started a new conversation.")

	case "/history":
		printHistory(loadHistory(ctx, chat))

	case "/open":
		id, err := argID(rest)
		if err != nil {
			return false, err
		}
		if !openConversation(ctx, chat, id) {
			return false, fmt.Errorf("conversation %d not found", id)
		}
		out.rule()
		out.messages(chat.Messages())

	case "/delete":
		id, err := argID(rest)
		if err != nil {
			return false, err
		}
		confirmer := conversation.ConfirmFunc(func(_ context.Context, question string) bool {
			return confirm(in, question)
		})
		if err := chat.Delete(ctx, id, confirmer); err != nil {
			if errors.Is(err, conversation.ErrNotConfirmed) {
				out.info("Kept conversation %d.", id)
				return false, nil
			}
			return false, err
		}
		out.info("Deleted conversation %d.", id)

	case "/rename":
		id, err := argID(rest)
		if err != nil {
			return false, err
		}
		chat.BeginRename(id)
		title := strings.Join(rest[1:], " ")
		if title == "" {
			if title, err = prompt(in, "New title: "); err != nil {
				chat.CancelRename()
				return false, err
			}
		}
		if err := chat.Rename(ctx, id, title); err != nil {
			chat.DismissError()
			return false, err
		}
		out.info("Renamed conversation %d.", id)

	case "/mode":
		if len(rest) == 0 {
			out.info("Mode: %s", *mode)
			return false, nil
		}
		m, err := parseMode(rest[0])
		if err != nil {
			return false, err
		}
		*mode = m
		out.info("Mode set to %s.", m)

	case "/popular":
		for i, q := range popularQuestions {
			fmt.Printf("  %d. %s\n", i+1, q)
		}

	case "/ask":
		if len(rest) == 0 {
			return false, fmt.Errorf("usage: /ask <number>")
		}
		n, err := strconv.Atoi(rest[0])
		if err != nil || n < 1 || n > len(popularQuestions) {
			return false, fmt.Errorf("pick a question between 1 and %d", len(popularQuestions))
		}
		q := popularQuestions[n-1]
		fmt.Println(userStyle.Render("You") + " " + q)
		ask(ctx, chat, q, *mode)

	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

func argID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("conversation id required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid conversation id %q", args[0])
	}
	return id, nil
}
