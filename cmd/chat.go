package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/nb75km/nenavi-cli/client"
	"github.com/nb75km/nenavi-cli/credentials"
	"github.com/nb75km/nenavi-cli/pkg/history"
)

// Chat command flags.
var (
	chatModel       string
	chatOutput      string
	chatWithMinutes int64
)

// NewChatCommand creates the chat command group.
func NewChatCommand(deps *Deps) *cobra.Command {
	if deps == nil {
		deps = DefaultDeps()
	}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the assistant",
		Long: `Chat with the backend assistant.

'chat minutes' opens an interactive session about one transcript's
minutes; when the assistant edits the minutes, a new version is saved and
announced. 'chat ask' sends a single free-form question. Sessions are
mirrored locally under ~/.nenavi/history/.

Examples:
  nenavi chat minutes 42
  nenavi chat ask "what did we decide about the budget?"
  nenavi chat conversations
  nenavi chat history`,
	}

	cmd.AddCommand(newChatMinutesCommand(deps))
	cmd.AddCommand(newChatAskCommand(deps))
	cmd.AddCommand(newChatConversationsCommand(deps))
	cmd.AddCommand(newChatMessagesCommand(deps))
	cmd.AddCommand(newChatHistoryCommand(deps))

	return cmd
}

func newChatMinutesCommand(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "minutes <transcript-id>",
		Short: "Interactively edit minutes in a chat session",
		Long: `Open an interactive chat about one transcript's minutes.

Each turn sends the full conversation so the assistant keeps context.
When the assistant saves an edit, the new version id is printed. End the
session with an empty line, 'exit', or Ctrl-D.

Examples:
  nenavi chat minutes 42`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatMinutes(cmd, deps, args[0])
		},
	}
}

func runChatMinutes(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Chatting about transcript %d minutes. Empty line or 'exit' ends the session.\n", id)

	session := history.NewSession(id)
	store := historyStore()

	var turns []client.ChatMessage
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" || input == "exit" || input == "quit" {
			break
		}

		result, err := set.chat.MinutesChat(cmd.Context(), id, turns, input)
		if err != nil {
			return loginHint(err)
		}

		fmt.Fprintln(out, result.AssistantMessage)
		if result.VersionID != nil {
			fmt.Fprintf(out, "(saved minutes version %d)\n", *result.VersionID)
		}

		turns = append(turns,
			client.ChatMessage{Role: client.RoleUser, Content: input},
			client.ChatMessage{Role: client.RoleAssistant, Content: result.AssistantMessage},
		)
		session.Append(client.RoleUser, input)
		session.Append(client.RoleAssistant, result.AssistantMessage)
	}

	if len(session.Entries) > 0 && store != nil {
		if err := store.Save(session); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not save chat history: %v\n", err)
		}
	}
	return scanner.Err()
}

func newChatAskCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the assistant a single question",
		Long: `Send one free-form question to the assistant and print its reply.

With --with-minutes the latest minutes version of that transcript is
included as context, and the question is sent as an instruction on it.

Examples:
  nenavi chat ask "what did we decide about the budget?"
  nenavi chat ask "summarize last week's meetings" --model gpt-4o
  nenavi chat ask "list the open action items" --with-minutes 42`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatAsk(cmd, deps, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVar(&chatModel, "model", "", "Model override")
	cmd.Flags().Int64Var(&chatWithMinutes, "with-minutes", 0, "Include the latest minutes of this transcript as context")

	return cmd
}

func runChatAsk(cmd *cobra.Command, deps *Deps, question string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	model := chatModel
	if model == "" {
		model = set.cfg.Model
	}

	if chatWithMinutes > 0 {
		versions, err := set.minutes.ListVersions(cmd.Context(), chatWithMinutes)
		if err != nil {
			return loginHint(err)
		}
		if len(versions) == 0 {
			return fmt.Errorf("transcript %d has no minutes yet", chatWithMinutes)
		}
		question = strings.Join([]string{
			"CONTENT_START",
			versions[0].Markdown,
			"CONTENT_END",
			"INSTRUCTION:",
			question,
		}, "\n")
	}

	reply, err := set.chat.Ask(cmd.Context(), question, model)
	if err != nil {
		return loginHint(err)
	}
	if reply.Reply == "" && reply.EditedMinutes == "" {
		return fmt.Errorf("assistant returned an empty reply")
	}

	out := cmd.OutOrStdout()
	if reply.Reply != "" {
		fmt.Fprintln(out, reply.Reply)
	}
	if reply.EditedMinutes != "" {
		fmt.Fprintln(out)
		fmt.Fprintln(out, reply.EditedMinutes)
	}
	if reply.VersionNo != nil {
		fmt.Fprintf(out, "(saved minutes v%d)\n", *reply.VersionNo)
	}
	return nil
}

func newChatConversationsCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List stored conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatConversations(cmd, deps)
		},
	}

	cmd.Flags().StringVarP(&chatOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runChatConversations(cmd *cobra.Command, deps *Deps) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	conversations, err := set.chat.Conversations(cmd.Context())
	if err != nil {
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(chatOutput, set.cfg), conversations, func(w io.Writer) {
		if len(conversations) == 0 {
			fmt.Fprintln(w, "No conversations.")
			return
		}
		fmt.Fprintf(w, "%-6s %-20s %s\n", "ID", "CREATED", "TITLE")
		for _, c := range conversations {
			fmt.Fprintf(w, "%-6d %-20s %s\n", c.ID, c.CreatedAt.Local().Format("2006-01-02 15:04"), c.Title)
		}
	})
}

func newChatMessagesCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "messages <conversation-id>",
		Short: "Show a conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatMessages(cmd, deps, args[0])
		},
	}

	cmd.Flags().StringVarP(&chatOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runChatMessages(cmd *cobra.Command, deps *Deps, arg string) error {
	set, err := deps.clients()
	if err != nil {
		return err
	}

	id, err := parseID(arg)
	if err != nil {
		return err
	}

	messages, err := set.chat.Messages(cmd.Context(), id)
	if err != nil {
		return loginHint(err)
	}

	return writeOutput(cmd.OutOrStdout(), outputFormat(chatOutput, set.cfg), messages, func(w io.Writer) {
		for _, m := range messages {
			fmt.Fprintf(w, "[%s] %s\n", m.Role, m.Content)
		}
	})
}

func newChatHistoryCommand(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List locally recorded chat sessions",
		Long: `List chat sessions recorded locally under ~/.nenavi/history/.

Examples:
  nenavi chat history
  nenavi chat history -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChatHistory(cmd, deps)
		},
	}

	cmd.Flags().StringVarP(&chatOutput, "output", "o", "", "Output format: text, json, yaml")

	return cmd
}

func runChatHistory(cmd *cobra.Command, deps *Deps) error {
	cfg, err := deps.loadConfig()
	if err != nil {
		return err
	}

	store := historyStore()
	if store == nil {
		return fmt.Errorf("history directory unavailable")
	}

	sessions, err := store.List()
	if err != nil {
		return err
	}

	type summary struct {
		ID           string `json:"id" yaml:"id"`
		TranscriptID int64  `json:"transcript_id" yaml:"transcript_id"`
		StartedAt    string `json:"started_at" yaml:"started_at"`
		Turns        int    `json:"turns" yaml:"turns"`
	}
	summaries := lo.Map(sessions, func(s *history.Session, _ int) summary {
		return summary{
			ID:           s.ID,
			TranscriptID: s.TranscriptID,
			StartedAt:    s.StartedAt.Local().Format("2006-01-02 15:04"),
			Turns:        len(s.Entries) / 2,
		}
	})

	return writeOutput(cmd.OutOrStdout(), outputFormat(chatOutput, cfg), summaries, func(w io.Writer) {
		if len(summaries) == 0 {
			fmt.Fprintln(w, "No recorded sessions.")
			return
		}
		fmt.Fprintf(w, "%-38s %-12s %-18s %s\n", "SESSION", "TRANSCRIPT", "STARTED", "TURNS")
		for _, s := range summaries {
			fmt.Fprintf(w, "%-38s %-12d %-18s %d\n", s.ID, s.TranscriptID, s.StartedAt, s.Turns)
		}
	})
}

// historyStore opens the local history store, nil when the config
// directory cannot be resolved.
func historyStore() *history.Store {
	dir, err := credentials.SessionDir()
	if err != nil {
		return nil
	}
	return history.NewStore(dir)
}
