package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailsession/internal/domain"
	"github.com/lu-zhengda/mailsession/internal/gateway"
	"github.com/lu-zhengda/mailsession/internal/session"
	"github.com/lu-zhengda/mailsession/internal/store"
)

// filterFlags are the search narrowing flags shared by list and search.
type filterFlags struct {
	since          string
	hasAttachments bool
	withLabels     []string
	ai             bool
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.since, "since", "", "only emails from the last day, week, month or year (today, week, month, year, all)")
	cmd.Flags().BoolVar(&f.hasAttachments, "has-attachments", false, "only emails with attachments")
	cmd.Flags().StringSliceVar(&f.withLabels, "with-label", nil, "only emails carrying this label ID (repeatable)")
	cmd.Flags().BoolVar(&f.ai, "ai", false, "ask the backend for semantic matching")
}

func (f *filterFlags) set() bool {
	return f.since != "" || f.hasAttachments || len(f.withLabels) > 0 || f.ai
}

func (f *filterFlags) request(query string) (session.SearchRequest, error) {
	since, err := gateway.ParseDateRange(f.since)
	if err != nil {
		return session.SearchRequest{}, err
	}
	return session.SearchRequest{
		Query: query,
		Filter: gateway.SearchFilter{
			DateRange:      since,
			HasAttachments: f.hasAttachments,
			LabelIDs:       f.withLabels,
		},
		UseAI: f.ai,
	}, nil
}

func newListCmd(rt *runtime) *cobra.Command {
	var folderFlag string
	var labelFlag string
	var queryFlag string
	var cachedFlag bool
	var limitFlag int
	var filter filterFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List emails",
		Long:  "List the emails of a folder or label. Without flags the current view is listed (the configured default folder).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if folderFlag != "" && labelFlag != "" {
				return fmt.Errorf("--folder and --label are mutually exclusive")
			}
			var folder domain.Folder
			if folderFlag != "" {
				f, err := domain.ParseFolder(folderFlag)
				if err != nil {
					return err
				}
				folder = f
			}

			if cachedFlag && filter.set() {
				return fmt.Errorf("search filters need the backend, drop --cached")
			}

			var emails []domain.Email
			if cachedFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				if folder == "" && labelFlag == "" {
					if folder, err = a.Config.DefaultFolder(); err != nil {
						return err
					}
				}
				emails, err = a.DB.ListEmails(cmd.Context(), store.ListEmailOptions{
					UserID:  rt.currentUserID(a),
					Folder:  folder,
					LabelID: labelFlag,
					Limit:   limitFlag,
				})
				if err != nil {
					return fmt.Errorf("failed to list cached emails: %w", err)
				}
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				switch {
				case labelFlag != "":
					err = a.Dispatcher.SelectLabel(cmd.Context(), labelFlag)
				case folder != "":
					err = a.Dispatcher.SelectFolder(cmd.Context(), folder)
				}
				if err != nil {
					return err
				}
				if queryFlag != "" || filter.set() {
					req, err := filter.request(queryFlag)
					if err != nil {
						return err
					}
					if err := a.Dispatcher.SearchWith(cmd.Context(), req); err != nil {
						return err
					}
				}
				emails = a.Session.Snapshot().Emails
				if limitFlag > 0 && len(emails) > limitFlag {
					emails = emails[:limitFlag]
				}
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONEmails(emails))
			}
			return rt.printEmails(emails, "No messages found.")
		},
	}

	cmd.Flags().StringVar(&folderFlag, "folder", "", "folder to list (inbox, starred, snoozed, sent, drafts, spam, trash)")
	cmd.Flags().StringVar(&labelFlag, "label", "", "label ID to list")
	cmd.Flags().StringVarP(&queryFlag, "query", "q", "", "narrow the list to emails matching a query")
	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read the local mirror instead of the backend")
	cmd.Flags().IntVar(&limitFlag, "limit", 25, "max emails to show")
	filter.bind(cmd)
	return cmd
}

func newReadCmd(rt *runtime) *cobra.Command {
	var cachedFlag bool

	cmd := &cobra.Command{
		Use:   "read <email-id>",
		Short: "Read an email",
		Long:  "Open an email by ID and display it. Inside the shell the email stays open for reply, forward and suggest.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var e *domain.Email
			if cachedFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				if e, err = a.DB.GetEmail(cmd.Context(), rt.currentUserID(a), args[0]); err != nil {
					return fmt.Errorf("failed to get cached email: %w", err)
				}
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.Dispatcher.SelectEmail(cmd.Context(), args[0]); err != nil {
					return err
				}
				snap := a.Session.Snapshot()
				if e = snap.SelectedEmail(); e == nil {
					return fmt.Errorf("email %s was not loaded", args[0])
				}
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONEmail(*e, true))
			}
			rt.printEmail(e)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read the local mirror instead of the backend")
	return cmd
}

func newSearchCmd(rt *runtime) *cobra.Command {
	var localFlag bool
	var folderFlag string
	var labelFlag string
	var limitFlag int
	var filter filterFlags

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search emails",
		Long: `Search emails by subject, body and sender.

By default the backend is searched within the current view (or --folder /
--label). The results can be narrowed by date, attachments and labels, and
--ai asks for semantic matching where the backend supports it. With --local
the full-text index of the local mirror is searched instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			if folderFlag != "" && labelFlag != "" {
				return fmt.Errorf("--folder and --label are mutually exclusive")
			}
			if localFlag && filter.set() {
				return fmt.Errorf("search filters need the backend, drop --local")
			}
			req, err := filter.request(query)
			if err != nil {
				return err
			}

			var emails []domain.Email
			if localFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				emails, err = a.DB.SearchEmails(cmd.Context(), query, rt.currentUserID(a))
				if err != nil {
					return fmt.Errorf("failed to search: %w", err)
				}
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				switch {
				case labelFlag != "":
					err = a.Dispatcher.SelectLabel(cmd.Context(), labelFlag)
				case folderFlag != "":
					f, perr := domain.ParseFolder(folderFlag)
					if perr != nil {
						return perr
					}
					err = a.Dispatcher.SelectFolder(cmd.Context(), f)
				}
				if err != nil {
					return err
				}
				if err := a.Dispatcher.SearchWith(cmd.Context(), req); err != nil {
					return err
				}
				emails = a.Session.Snapshot().Emails
			}

			if limitFlag > 0 && len(emails) > limitFlag {
				emails = emails[:limitFlag]
			}
			if rt.jsonFlag {
				return rt.printJSON(toJSONEmails(emails))
			}
			return rt.printEmails(emails, "No results found.")
		},
	}

	cmd.Flags().BoolVar(&localFlag, "local", false, "search the local mirror")
	cmd.Flags().StringVar(&folderFlag, "folder", "", "folder to search in")
	cmd.Flags().StringVar(&labelFlag, "label", "", "label ID to search in")
	cmd.Flags().IntVar(&limitFlag, "limit", 25, "max results to show")
	filter.bind(cmd)
	return cmd
}

func newLabelsCmd(rt *runtime) *cobra.Command {
	var cachedFlag bool
	var allFlag bool
	var statsFlag bool

	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List labels",
		Long:  "List labels. With --stats the backend is asked for the total and unread email count of each label.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if statsFlag {
				if cachedFlag {
					return fmt.Errorf("--stats needs the backend, drop --cached")
				}
				return rt.printLabelStats(cmd)
			}

			var labels []domain.Label
			if cachedFlag {
				a, err := rt.local(cmd.Context())
				if err != nil {
					return err
				}
				if labels, err = a.DB.ListLabels(cmd.Context(), rt.currentUserID(a)); err != nil {
					return fmt.Errorf("failed to list cached labels: %w", err)
				}
			} else {
				a, err := rt.session(cmd.Context())
				if err != nil {
					return err
				}
				labels = a.Session.Snapshot().Labels
			}

			if !allFlag {
				shown := make([]domain.Label, 0, len(labels))
				for _, l := range labels {
					if !l.Hidden() {
						shown = append(shown, l)
					}
				}
				labels = shown
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONLabels(labels))
			}
			if len(labels) == 0 {
				rt.println("No labels found.")
				return nil
			}
			w := rt.table()
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tCOLOR")
			for _, l := range labels {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Type, l.Color)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&cachedFlag, "cached", false, "read the local mirror instead of the backend")
	cmd.Flags().BoolVar(&allFlag, "all", false, "include hidden labels")
	cmd.Flags().BoolVar(&statsFlag, "stats", false, "show total and unread counts per label")
	return cmd
}

func (rt *runtime) printLabelStats(cmd *cobra.Command) error {
	a, err := rt.session(cmd.Context())
	if err != nil {
		return err
	}
	if err := a.Dispatcher.LoadLabelStats(cmd.Context()); err != nil {
		return err
	}
	stats := a.Session.Snapshot().LabelStats

	if rt.jsonFlag {
		return rt.printJSON(toJSONLabelStats(stats))
	}
	if len(stats) == 0 {
		rt.println("No labels found.")
		return nil
	}
	w := rt.table()
	fmt.Fprintln(w, "NAME\tTOTAL\tUNREAD\tCOLOR")
	for _, st := range stats {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", st.Name, st.Total, st.Unread, st.Color)
	}
	return w.Flush()
}

func (rt *runtime) printEmails(emails []domain.Email, empty string) error {
	if len(emails) == 0 {
		rt.println(empty)
		return nil
	}
	w := rt.table()
	fmt.Fprintln(w, "UNREAD\tSTAR\tFROM\tSUBJECT\tDATE\tID")
	for _, e := range emails {
		unread := " "
		if !e.IsRead {
			unread = "*"
		}
		star := " "
		if e.IsStarred {
			star = "★"
		}
		from := e.From.Name
		if from == "" {
			from = e.From.Email
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			unread, star, truncate(from, 30), truncate(e.Subject, 50),
			formatDate(e.Date, "Jan 2, 2006"), e.ID,
		)
	}
	return w.Flush()
}

func (rt *runtime) printEmail(e *domain.Email) {
	st := rt.style()
	rt.println(st.header.Render("Subject: " + e.Subject))
	rt.printf("From: %s\n", e.From)
	if len(e.To) > 0 {
		to := make([]string, len(e.To))
		for i, a := range e.To {
			to[i] = a.String()
		}
		rt.printf("To: %s\n", strings.Join(to, ", "))
	}
	if d := formatDate(e.Date, "Mon, Jan 2 2006 3:04 PM"); d != "" {
		rt.printf("Date: %s\n", d)
	}
	rt.printf("Folder: %s\n", e.Folder)
	if len(e.LabelIDs) > 0 {
		rt.printf("Labels: %s\n", strings.Join(e.LabelIDs, ", "))
	}
	rt.println(st.muted.Render("Email ID: " + e.ID))
	rt.println(st.muted.Render(strings.Repeat("─", 60)))
	rt.println(e.Body)
	if len(e.Attachments) > 0 {
		rt.println()
		rt.printf("Attachments (%d):\n", len(e.Attachments))
		for _, att := range e.Attachments {
			rt.printf("  %s (%d bytes)\n", att.Name, att.Size)
		}
	}
}
