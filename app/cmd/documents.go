package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"docchat/app/server"
	"docchat/types"
)

var (
	translateLang string
	askSession    string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Add documents to the corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runIngest,
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the ingested documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

var translateCmd = &cobra.Command{
	Use:   "translate [file]",
	Short: "Translate a document page by page",
	Args:  cobra.ExactArgs(1),
	RunE:  runTranslate,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest documents dropped into the watch directory",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "record the exchange in this chat session")
	translateCmd.Flags().StringVarP(&translateLang, "lang", "l", "", "target language (required)")
	_ = translateCmd.MarkFlagRequired("lang")

	rootCmd.AddCommand(ingestCmd, askCmd, translateCmd, watchCmd)
}

func interruptible() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	return withComponents(ctx, func(c *server.Components) error {
		var errs []error
		for _, path := range args {
			report, err := c.Ingester.Ingest(ctx, path)
			if err != nil {
				errs = append(errs, err)
				cmd.PrintErrf("%s: %v\n", path, err)
				continue
			}
			cmd.Printf("%s: %d pages, %d chunks (%s)\n", report.Filename, report.Pages, report.Chunks, report.Took.Round(time.Millisecond))
		}
		cmd.Printf("corpus now holds %d chunks\n", c.Store.Len())
		return errors.Join(errs...)
	})
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()
	question := strings.Join(args, " ")

	return withComponents(ctx, func(c *server.Components) error {
		var history []types.HistoryTurn
		if askSession != "" {
			sess, found, err := c.Sessions.Get(ctx, askSession)
			if err != nil {
				return err
			}
			if found {
				for _, m := range sess.Messages {
					history = append(history, types.HistoryTurn{Role: string(m.Role), Content: m.Content})
				}
			}
			if _, err := c.Sessions.Append(ctx, askSession, types.Message{Role: types.RoleUser, Content: question}); err != nil {
				return err
			}
		}

		answer, err := c.Engine.Answer(ctx, question, history)
		if err != nil {
			return err
		}
		if askSession != "" {
			if _, err := c.Sessions.Append(ctx, askSession, types.Message{Role: types.RoleAI, Content: answer}); err != nil {
				return err
			}
		}
		cmd.Println(answer)
		return nil
	})
}

func runTranslate(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	return withComponents(ctx, func(c *server.Components) error {
		pages, err := c.Translator.Translate(ctx, translateLang, args[0], func(done, total int) {
			cmd.PrintErrf("\rtranslated %d/%d pages", done, total)
		})
		cmd.PrintErrln()
		if err != nil {
			return err
		}
		for i, p := range pages {
			cmd.Printf("--- page %d ---\n%s\n", i+1, p)
		}
		return nil
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := interruptible()
	defer cancel()

	return withComponents(ctx, func(c *server.Components) error {
		w, err := c.Watcher()
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("WATCH_DIR is not configured")
		}
		return w.Run(ctx)
	})
}
