package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailsession/internal/app"
	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/session"
)

// readBody resolves a --body flag value, reading stdin for "-".
func (rt *runtime) readBody(flag string) (string, error) {
	if flag != "-" {
		return flag, nil
	}
	b, err := io.ReadAll(rt.in)
	if err != nil {
		return "", fmt.Errorf("failed to read body from stdin: %w", err)
	}
	return string(b), nil
}

// selectEmail opens id when given and returns the open email.
func selectEmail(ctx context.Context, a *app.App, id string) (*domain.Email, error) {
	if id != "" {
		if err := a.Dispatcher.SelectEmail(ctx, id); err != nil {
			return nil, err
		}
	}
	e := a.Session.SelectedEmail()
	if e == nil {
		return nil, fmt.Errorf("pass an email ID or read one first: %w", session.ErrNoEmailSelected)
	}
	return e, nil
}

// finishDraft prints the draft, or sends it when send is set.
func (rt *runtime) finishDraft(ctx context.Context, a *app.App, d *domain.Draft, action string, send bool) error {
	if send {
		return rt.sendActive(ctx, a)
	}
	if rt.jsonFlag {
		return rt.printJSON(toJSONDraft(*d))
	}
	rt.printf("Draft %s saved (%s).\n", d.ID, action)
	return nil
}

func (rt *runtime) sendActive(ctx context.Context, a *app.App) error {
	draftID := a.Session.Selection().ActiveDraftID
	sent, err := a.Dispatcher.SendEmail(ctx)
	if err != nil {
		return err
	}
	if rt.jsonFlag {
		out := jsonAction{OK: true, Action: "send", DraftID: draftID}
		if sent != nil {
			out.EmailID = sent.ID
		}
		return rt.printJSON(out)
	}
	rt.println("Email sent.")
	return nil
}

func newDraftCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draft",
		Short: "List, save and open drafts",
	}
	cmd.AddCommand(newDraftListCmd(rt))
	cmd.AddCommand(newDraftSaveCmd(rt))
	cmd.AddCommand(newDraftOpenCmd(rt))
	return cmd
}

func newDraftListCmd(rt *runtime) *cobra.Command {
	var cachedFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var drafts []domain.Draft
			activeID := ""
			if cachedFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				if drafts, err = a.DB.ListDrafts(cmd.Context(), rt.currentUserID(a)); err != nil {
					return fmt.Errorf("failed to list cached drafts: %w", err)
				}
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				snap := a.Session.Snapshot()
				drafts = snap.Drafts
				activeID = snap.Selection.ActiveDraftID
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONDrafts(drafts))
			}
			if len(drafts) == 0 {
				rt.println("No drafts.")
				return nil
			}
			w := rt.table()
			fmt.Fprintln(w, "ACTIVE\tTO\tSUBJECT\tUPDATED\tID")
			for _, d := range drafts {
				mark := " "
				if d.ID == activeID {
					mark = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					mark, truncate(strings.Join(d.Recipients, ", "), 30), truncate(d.Subject, 50),
					formatDate(d.UpdatedAt, "Jan 2, 2006"), d.ID,
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read the local mirror instead of the backend")
	return cmd
}

func newDraftSaveCmd(rt *runtime) *cobra.Command {
	var idFlag, toFlag, subjectFlag, bodyFlag string
	var completeFlag bool

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Save a draft",
		Long: `Save a draft and make it the active one.

Without --id the active draft is overwritten, or a new draft is created when
none is active. With --complete the assistant continues the body before it
is saved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := rt.readBody(bodyFlag)
			if err != nil {
				return err
			}
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if completeFlag {
				more, err := a.Assistant.CompleteText(cmd.Context(), body, subjectFlag)
				if err != nil {
					fmt.Fprintf(rt.errOut, "Warning: %v\n", err)
				} else if more != "" {
					body = strings.TrimRight(body, " ") + " " + more
				}
			}
			d, err := a.Dispatcher.SaveDraft(cmd.Context(), session.DraftFields{
				ID:         idFlag,
				Subject:    subjectFlag,
				Body:       body,
				Recipients: splitList(toFlag),
			})
			if err != nil {
				return err
			}
			return rt.finishDraft(cmd.Context(), a, d, "saved", false)
		},
	}

	cmd.Flags().StringVar(&idFlag, "id", "", "draft ID to overwrite")
	cmd.Flags().StringVar(&toFlag, "to", "", "recipient addresses (comma-separated)")
	cmd.Flags().StringVar(&subjectFlag, "subject", "", "subject")
	cmd.Flags().StringVar(&bodyFlag, "body", "", "body (use '-' to read from stdin)")
	cmd.Flags().BoolVar(&completeFlag, "complete", false, "let the assistant continue the body")
	return cmd
}

func newDraftOpenCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <draft-id>",
		Short: "Resume composing a saved draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dispatcher.OpenDraft(args[0]); err != nil {
				return err
			}
			d := a.Session.ActiveDraft()
			if rt.jsonFlag {
				return rt.printJSON(toJSONDraft(*d))
			}
			rt.printf("To: %s\n", strings.Join(d.Recipients, ", "))
			rt.printf("Subject: %s\n", d.Subject)
			rt.println(strings.Repeat("─", 60))
			rt.println(d.Body)
			return nil
		},
	}
	return cmd
}

func newComposeCmd(rt *runtime) *cobra.Command {
	var toFlag, subjectFlag, bodyFlag, aiFlag, toneFlag string
	var sendFlag bool

	cmd := &cobra.Command{
		Use:   "compose",
		Short: "Compose a new email",
		Long: `Start a new draft. With --ai the assistant writes the body from a short
brief; with --send the draft is sent right away.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if aiFlag != "" && bodyFlag != "" {
				return fmt.Errorf("--ai and --body are mutually exclusive")
			}
			if sendFlag && toFlag == "" {
				return fmt.Errorf("--to is required with --send")
			}
			body, err := rt.readBody(bodyFlag)
			if err != nil {
				return err
			}
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}

			// A new email never overwrites the draft that was active.
			a.Dispatcher.CloseComposer()

			var d *domain.Draft
			switch {
			case aiFlag != "":
				if !a.Assistant.Available() {
					return fmt.Errorf("--ai needs an assistant; set [assistant] provider in the config")
				}
				d, err = a.Dispatcher.ComposeWithAssistant(cmd.Context(), session.ComposeRequest{
					Subject:    subjectFlag,
					Context:    aiFlag,
					Tone:       toneFlag,
					Recipients: splitList(toFlag),
				})
			case toFlag == "" && subjectFlag == "" && body == "":
				d, err = a.Dispatcher.StartCompose(cmd.Context())
			default:
				d, err = a.Dispatcher.SaveDraft(cmd.Context(), session.DraftFields{
					Subject:    subjectFlag,
					Body:       body,
					Recipients: splitList(toFlag),
				})
			}
			if err != nil {
				return err
			}
			return rt.finishDraft(cmd.Context(), a, d, "compose", sendFlag)
		},
	}

	cmd.Flags().StringVar(&toFlag, "to", "", "recipient addresses (comma-separated)")
	cmd.Flags().StringVar(&subjectFlag, "subject", "", "subject")
	cmd.Flags().StringVar(&bodyFlag, "body", "", "body (use '-' to read from stdin)")
	cmd.Flags().StringVar(&aiFlag, "ai", "", "brief for the assistant to write the body from")
	cmd.Flags().StringVar(&toneFlag, "tone", "professional", "tone of the assistant's body")
	cmd.Flags().BoolVar(&sendFlag, "send", false, "send the draft immediately")
	return cmd
}

func newReplyCmd(rt *runtime) *cobra.Command {
	var bodyFlag string
	var sendFlag bool

	cmd := &cobra.Command{
		Use:   "reply [email-id]",
		Short: "Reply to an email",
		Long:  "Draft a reply quoting the email. Without an ID the open email is replied to.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := rt.readBody(bodyFlag)
			if err != nil {
				return err
			}
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := selectEmail(cmd.Context(), a, firstArg(args)); err != nil {
				return err
			}
			d, err := a.Dispatcher.Reply(cmd.Context())
			if err != nil {
				return err
			}
			if body != "" {
				if d, err = a.Dispatcher.SaveDraft(cmd.Context(), session.DraftFields{
					ID:         d.ID,
					Subject:    d.Subject,
					Body:       body + d.Body,
					Recipients: d.Recipients,
				}); err != nil {
					return err
				}
			}
			return rt.finishDraft(cmd.Context(), a, d, "reply", sendFlag)
		},
	}

	cmd.Flags().StringVar(&bodyFlag, "body", "", "reply text above the quote (use '-' to read from stdin)")
	cmd.Flags().BoolVar(&sendFlag, "send", false, "send the reply immediately")
	return cmd
}

func newForwardCmd(rt *runtime) *cobra.Command {
	var toFlag, bodyFlag string
	var sendFlag bool

	cmd := &cobra.Command{
		Use:   "forward [email-id]",
		Short: "Forward an email",
		Long:  "Draft a forward of the email. Without an ID the open email is forwarded.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sendFlag && toFlag == "" {
				return fmt.Errorf("--to is required with --send")
			}
			body, err := rt.readBody(bodyFlag)
			if err != nil {
				return err
			}
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := selectEmail(cmd.Context(), a, firstArg(args)); err != nil {
				return err
			}
			d, err := a.Dispatcher.Forward(cmd.Context())
			if err != nil {
				return err
			}
			if toFlag != "" || body != "" {
				if d, err = a.Dispatcher.SaveDraft(cmd.Context(), session.DraftFields{
					ID:         d.ID,
					Subject:    d.Subject,
					Body:       body + d.Body,
					Recipients: splitList(toFlag),
				}); err != nil {
					return err
				}
			}
			return rt.finishDraft(cmd.Context(), a, d, "forward", sendFlag)
		},
	}

	cmd.Flags().StringVar(&toFlag, "to", "", "recipient addresses (comma-separated)")
	cmd.Flags().StringVar(&bodyFlag, "body", "", "note above the forwarded message (use '-' for stdin)")
	cmd.Flags().BoolVar(&sendFlag, "send", false, "send the forward immediately")
	return cmd
}

func newSendCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "send [draft-id]",
		Short: "Send a draft",
		Long:  "Send the given draft, or the active draft when no ID is passed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if id := firstArg(args); id != "" {
				if err := a.Dispatcher.OpenDraft(id); err != nil {
					return err
				}
			}
			return rt.sendActive(cmd.Context(), a)
		},
	}
	return cmd
}

func newSuggestCmd(rt *runtime) *cobra.Command {
	var summaryFlag, sentimentFlag bool

	cmd := &cobra.Command{
		Use:   "suggest [email-id]",
		Short: "Suggest replies to an email",
		Long: `Ask the assistant for three short replies to the email. --summary adds a
summary of the message and --sentiment its tone. Without a configured
assistant a generic reply is suggested.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			e, err := selectEmail(cmd.Context(), a, firstArg(args))
			if err != nil {
				return err
			}

			sender := e.From.Name
			if sender == "" {
				sender = e.From.Email
			}
			out := jsonSuggestion{
				EmailID:     e.ID,
				Suggestions: a.Assistant.ReplySuggestions(cmd.Context(), e.Body, sender),
			}
			if summaryFlag {
				if out.Summary, err = a.Assistant.SummarizeThread(cmd.Context(), e.Body); err != nil {
					fmt.Fprintf(rt.errOut, "Warning: %v\n", err)
				}
			}
			if sentimentFlag {
				out.Sentiment = a.Assistant.AnalyzeSentiment(cmd.Context(), e.Body).Sentiment
			}

			if rt.jsonFlag {
				return rt.printJSON(out)
			}
			for i, s := range out.Suggestions {
				rt.printf("%d. %s\n", i+1, s)
			}
			if out.Summary != "" {
				rt.println()
				rt.println("Summary:")
				rt.println(out.Summary)
			}
			if out.Sentiment != "" {
				rt.println()
				rt.printf("Sentiment: %s\n", out.Sentiment)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&summaryFlag, "summary", false, "also summarize the email")
	cmd.Flags().BoolVar(&sentimentFlag, "sentiment", false, "also classify the email's sentiment")
	return cmd
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
