package cli

import (
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

func newStarCmd(rt *runtime, starred bool) *cobra.Command {
	use, short, action, done := "star", "Star an email", "star", "Email starred."
	if !starred {
		use, short, action, done = "unstar", "Remove the star from an email", "unstar", "Star removed."
	}

	cmd := &cobra.Command{
		Use:   use + " <email-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dispatcher.StarEmail(cmd.Context(), args[0], starred); err != nil {
				return err
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: action, EmailID: args[0]})
			}
			rt.println(done)
			return nil
		},
	}
	return cmd
}

func newMoveCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "move <email-id> <folder>",
		Short: "Move an email to another folder",
		Long:  "Move an email to inbox, sent, drafts, spam or trash. If the email is open it is closed.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			folder, err := domain.ParseFolder(args[1])
			if err != nil {
				return err
			}
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dispatcher.MoveEmail(cmd.Context(), args[0], folder); err != nil {
				return err
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: "move", EmailID: args[0], Folder: string(folder)})
			}
			rt.printf("Email moved to %s.\n", folder)
			return nil
		},
	}
	return cmd
}

func newLabelCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Create, delete, apply and remove labels",
	}
	cmd.AddCommand(newLabelCreateCmd(rt))
	cmd.AddCommand(newLabelDeleteCmd(rt))
	cmd.AddCommand(newLabelApplyCmd(rt, true))
	cmd.AddCommand(newLabelApplyCmd(rt, false))
	return cmd
}

func newLabelCreateCmd(rt *runtime) *cobra.Command {
	var colorFlag string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			label, err := a.Dispatcher.CreateLabel(cmd.Context(), args[0], colorFlag)
			if err != nil {
				return err
			}

			if rt.jsonFlag {
				return rt.printJSON(toJSONLabels([]domain.Label{*label})[0])
			}
			rt.printf("Label %q created (%s).\n", label.Name, label.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&colorFlag, "color", "", "label color as #rrggbb")
	return cmd
}

func newLabelDeleteCmd(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <label-id>",
		Short: "Delete a label",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Dispatcher.DeleteLabel(cmd.Context(), args[0]); err != nil {
				return err
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: "label_delete", LabelID: args[0]})
			}
			rt.println("Label deleted.")
			return nil
		},
	}
	return cmd
}

func newLabelApplyCmd(rt *runtime, apply bool) *cobra.Command {
	use, short, action, done := "apply", "Apply a label to an email", "label_apply", "Label applied."
	if !apply {
		use, short, action, done = "remove", "Remove a label from an email", "label_remove", "Label removed."
	}

	cmd := &cobra.Command{
		Use:   use + " <email-id> <label-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.session(cmd.Context())
			if err != nil {
				return err
			}
			if apply {
				err = a.Dispatcher.ApplyLabel(cmd.Context(), args[0], args[1])
			} else {
				err = a.Dispatcher.RemoveLabel(cmd.Context(), args[0], args[1])
			}
			if err != nil {
				return err
			}

			if rt.jsonFlag {
				return rt.printJSON(jsonAction{OK: true, Action: action, EmailID: args[0], LabelID: args[1]})
			}
			rt.println(done)
			return nil
		},
	}
	return cmd
}
