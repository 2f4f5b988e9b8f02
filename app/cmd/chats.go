package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"docchat/chatstore"
)

var chatsJSON bool

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Inspect saved chat sessions",
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List chat sessions, newest first",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print the messages of a chat session",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

func init() {
	chatsCmd.PersistentFlags().BoolVar(&chatsJSON, "json", false, "output as JSON")
	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd)
	rootCmd.AddCommand(chatsCmd)
}

// Sessions do not need the corpus or the providers, so these commands open the chat store directly.
func openChats() (*chatstore.Store, error) {
	return chatstore.New(cfg.ChatsDir, logger)
}

func runChatsList(cmd *cobra.Command, args []string) error {
	chats, err := openChats()
	if err != nil {
		return err
	}
	list, err := chats.List(context.Background())
	if err != nil {
		return err
	}
	if chatsJSON {
		return printJSON(cmd, list)
	}
	if len(list) == 0 {
		cmd.Println("No chats yet.")
		return nil
	}
	for _, s := range list {
		cmd.Printf("%s  %s  %3d  %s\n", s.ID, s.Timestamp.Format("2006-01-02 15:04"), s.MessageCount, s.Title)
	}
	return nil
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	chats, err := openChats()
	if err != nil {
		return err
	}
	sess, found, err := chats.Get(context.Background(), args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("chat %s not found", args[0])
	}
	if chatsJSON {
		return printJSON(cmd, sess)
	}
	for _, m := range sess.Messages {
		cmd.Printf("[%s] %s: %s\n", m.Timestamp.Format("15:04:05"), m.Role, m.Content)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
