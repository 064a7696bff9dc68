package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/lu-zhengda/mailsession/internal/app"
	"github.com/lu-zhengda/mailsession/internal/config"
)

// version is set via ldflags at build time.
var version = "dev"

// runtime is the state shared by every command of one root: the parsed
// persistent flags and the lazily opened App. Inside the shell the App
// outlives single commands, so selection carries over.
type runtime struct {
	cfgFile  string
	jsonFlag bool
	verbose  bool
	userFlag string

	out    io.Writer
	errOut io.Writer
	in     io.Reader

	// open builds the App. Tests replace it to inject a fake gateway.
	open func(ctx context.Context, rt *runtime) (*app.App, error)

	app    *app.App
	loaded bool
	shared bool
	styles *styles
}

func newRuntime() *runtime {
	return &runtime{
		out:    os.Stdout,
		errOut: os.Stderr,
		in:     os.Stdin,
		open:   openApp,
	}
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(newRuntime())
}

func newRootCmd(rt *runtime) *cobra.Command {
	root := &cobra.Command{
		Use:           "mailsession",
		Short:         "Email session controller",
		Long:          "Work with a remote mailbox from the command line: list, read, label, draft and send email.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(fmt.Sprintf("mailsession %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(rt.out)
	root.SetErr(rt.errOut)
	root.PersistentFlags().StringVar(&rt.cfgFile, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&rt.jsonFlag, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&rt.verbose, "verbose", "v", false, "log debug output to stderr")
	root.PersistentFlags().StringVar(&rt.userFlag, "user", "", "user to act as when no one is signed in")

	root.AddCommand(newUserCmd(rt))
	root.AddCommand(newListCmd(rt))
	root.AddCommand(newReadCmd(rt))
	root.AddCommand(newSearchCmd(rt))
	root.AddCommand(newLabelsCmd(rt))
	root.AddCommand(newLabelCmd(rt))
	root.AddCommand(newStarCmd(rt, true))
	root.AddCommand(newStarCmd(rt, false))
	root.AddCommand(newMoveCmd(rt))
	root.AddCommand(newDraftCmd(rt))
	root.AddCommand(newComposeCmd(rt))
	root.AddCommand(newReplyCmd(rt))
	root.AddCommand(newForwardCmd(rt))
	root.AddCommand(newSendCmd(rt))
	root.AddCommand(newSuggestCmd(rt))
	root.AddCommand(newShellCmd(rt))
	return root
}

func Execute() {
	rt := newRuntime()
	err := newRootCmd(rt).Execute()
	rt.release()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// openApp loads the configuration and builds the App it describes.
func openApp(ctx context.Context, rt *runtime) (*app.App, error) {
	path := rt.cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if rt.userFlag != "" {
		cfg.Users.Default = rt.userFlag
	}

	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	log := logrus.New()
	log.SetOutput(rt.errOut)
	log.SetLevel(level)
	if rt.verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		log.SetOutput(f)
	}

	a, err := app.New(cfg, log, app.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return a, nil
}

// local returns the App without touching the network.
func (rt *runtime) local(ctx context.Context) (*app.App, error) {
	if rt.app != nil {
		return rt.app, nil
	}
	a, err := rt.open(ctx, rt)
	if err != nil {
		return nil, err
	}
	rt.app = a
	return a, nil
}

// session returns the App with its session loaded from the backend.
func (rt *runtime) session(ctx context.Context) (*app.App, error) {
	a, err := rt.local(ctx)
	if err != nil {
		return nil, err
	}
	if rt.loaded {
		return a, nil
	}
	if err := a.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	rt.loaded = true
	return a, nil
}

// release closes the App unless a shell still owns it.
func (rt *runtime) release() {
	if rt.app == nil || rt.shared {
		return
	}
	if err := rt.app.Close(); err != nil {
		fmt.Fprintln(rt.errOut, "Warning: failed to close:", err)
	}
	rt.app = nil
	rt.loaded = false
}

// currentUserID is the user the local mirror is read for.
func (rt *runtime) currentUserID(a *app.App) string {
	if cur := a.Session.Snapshot().CurrentUser; cur != nil {
		return cur.ID
	}
	return a.CurrentUserID()
}
