package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hrlight/shopbot/internal/botclient"
	"github.com/hrlight/shopbot/internal/config"
)

var chatSectionPattern = regexp.MustCompile(`^##\s+(\S+)\s+` + "`" + `([^` + "`" + `]+)` + "`" + `\s*$`)

type parsedChatEntry struct {
	Timestamp time.Time
	Direction string
	Actor     string
	Text      string
}

func newChatCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		userID     string
		message    string
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to a running shopbot server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			client := botclient.New(cfg.BotAPIURL, boundedTimeout(timeoutSec))

			text := strings.TrimSpace(message)
			if text == "" && len(args) > 0 {
				text = strings.TrimSpace(strings.Join(args, " "))
			}
			resolvedUserID := strings.TrimSpace(userID)
			if resolvedUserID == "" {
				resolvedUserID = "console"
			}

			if text != "" {
				ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
				defer cancel()
				response, err := client.Chat(ctx, botclient.ChatRequest{UserID: resolvedUserID, Text: text})
				if err != nil {
					return err
				}
				printBotReply(cmd, response.Segments)
				return nil
			}

			cmd.Printf("Connected as %s. Type /exit to quit.\n", resolvedUserID)
			return runInteractiveChat(cmd, client, resolvedUserID, timeoutSec)
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "console", "user id for the chat session")
	cmd.Flags().StringVarP(&message, "message", "m", "", "single message to send (non-interactive mode)")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 60, "request timeout in seconds")

	cmd.AddCommand(newChatReplayCommand(logger))
	return cmd
}

func runInteractiveChat(cmd *cobra.Command, client *botclient.Client, userID string, timeoutSec int) error {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		cmd.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/exit" || text == "/quit" {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
		response, err := client.Chat(ctx, botclient.ChatRequest{UserID: userID, Text: text})
		cancel()
		if err != nil {
			cmd.PrintErrf("chat request failed: %v\n", err)
			continue
		}
		printBotReply(cmd, response.Segments)
	}

	return scanner.Err()
}

func printBotReply(cmd *cobra.Command, segments []string) {
	if len(segments) == 0 {
		cmd.Println("bot> (no reply)")
		return
	}
	for _, segment := range segments {
		for index, line := range strings.Split(segment, "\n") {
			line = strings.TrimRight(line, "\r")
			if index == 0 {
				cmd.Printf("bot> %s\n", line)
				continue
			}
			cmd.Printf("     %s\n", line)
		}
	}
}

func newChatReplayCommand(logger *slog.Logger) *cobra.Command {
	_ = logger
	var (
		logPath    string
		userID     string
		maxTurns   int
		delayMS    int
		dryRun     bool
		timeoutSec int
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay inbound turns from a chat log through the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(logPath) == "" {
				return fmt.Errorf("--log is required")
			}
			entries, err := parseChatLogFile(logPath)
			if err != nil {
				return err
			}
			inbound := inboundEntries(entries)
			if len(inbound) == 0 {
				return fmt.Errorf("no inbound turns found in %s", logPath)
			}
			if maxTurns > 0 && len(inbound) > maxTurns {
				inbound = inbound[:maxTurns]
			}

			resolvedUserID := strings.TrimSpace(userID)
			if resolvedUserID == "" {
				resolvedUserID = "replay"
			}

			cmd.Printf("Replaying %d turn(s) as %s\n", len(inbound), resolvedUserID)
			if dryRun {
				for index, entry := range inbound {
					cmd.Printf("[%d] user: %s\n", index+1, compactLine(entry.Text, 200))
				}
				return nil
			}

			cfg := config.FromEnv()
			client := botclient.New(cfg.BotAPIURL, boundedTimeout(timeoutSec))
			failures := 0
			for index, entry := range inbound {
				cmd.Printf("[%d] user: %s\n", index+1, compactLine(entry.Text, 200))
				ctx, cancel := context.WithTimeout(context.Background(), boundedTimeout(timeoutSec))
				response, err := client.Chat(ctx, botclient.ChatRequest{UserID: resolvedUserID, Text: entry.Text})
				cancel()
				if err != nil {
					failures++
					cmd.Printf("    error: %v\n", err)
				} else {
					cmd.Printf("    bot: %s\n", compactLine(response.Reply, 200))
				}
				if delayMS > 0 {
					time.Sleep(time.Duration(delayMS) * time.Millisecond)
				}
			}
			if failures > 0 {
				return fmt.Errorf("replay finished with %d failed turn(s)", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "path to a chat markdown log")
	cmd.Flags().StringVar(&userID, "user-id", "replay", "user id to replay as")
	cmd.Flags().IntVar(&maxTurns, "max-turns", 0, "max inbound turns to replay (0 means all)")
	cmd.Flags().IntVar(&delayMS, "delay-ms", 0, "delay between replayed turns")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print planned replay turns without sending")
	cmd.Flags().IntVar(&timeoutSec, "timeout-sec", 60, "request timeout in seconds")

	return cmd
}

func inboundEntries(entries []parsedChatEntry) []parsedChatEntry {
	inbound := make([]parsedChatEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Direction == "inbound" && strings.TrimSpace(entry.Text) != "" {
			inbound = append(inbound, entry)
		}
	}
	return inbound
}

func parseChatLogFile(path string) ([]parsedChatEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseChatLogContent(string(data)), nil
}

func parseChatLogContent(content string) []parsedChatEntry {
	var entries []parsedChatEntry
	var current *parsedChatEntry
	bodyLines := make([]string, 0, 8)

	flushCurrent := func() {
		if current == nil {
			return
		}
		entry := *current
		entry.Text = strings.TrimSpace(strings.Join(bodyLines, "\n"))
		entries = append(entries, entry)
		current = nil
		bodyLines = bodyLines[:0]
	}

	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimRight(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if matches := chatSectionPattern.FindStringSubmatch(trimmed); len(matches) == 3 {
			flushCurrent()
			ts, _ := time.Parse(time.RFC3339, matches[1])
			current = &parsedChatEntry{Timestamp: ts, Direction: strings.ToLower(strings.TrimSpace(matches[2]))}
			continue
		}
		if current == nil {
			continue
		}
		if strings.HasPrefix(trimmed, "- direction:") {
			current.Direction = strings.ToLower(extractBacktickOrRemainder(trimmed, "- direction:"))
			continue
		}
		if strings.HasPrefix(trimmed, "- actor:") {
			current.Actor = extractBacktickOrRemainder(trimmed, "- actor:")
			continue
		}
		if strings.HasPrefix(trimmed, "- entry:") {
			continue
		}
		bodyLines = append(bodyLines, line)
	}
	flushCurrent()
	return entries
}

func extractBacktickOrRemainder(line, prefix string) string {
	value := strings.TrimSpace(strings.TrimPrefix(line, prefix))
	if start := strings.Index(value, "`"); start >= 0 {
		if end := strings.Index(value[start+1:], "`"); end >= 0 {
			return strings.TrimSpace(value[start+1 : start+1+end])
		}
	}
	return strings.Trim(value, "`")
}

func boundedTimeout(input int) time.Duration {
	if input < 1 {
		input = 60
	}
	if input > 600 {
		input = 600
	}
	return time.Duration(input) * time.Second
}

func compactLine(input string, maxLen int) string {
	line := strings.Join(strings.Fields(strings.TrimSpace(input)), " ")
	if maxLen < 1 || len(line) <= maxLen {
		return line
	}
	return strings.TrimSpace(line[:maxLen]) + "..."
}
