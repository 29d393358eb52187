// Package cli implements the totpkeeper command line: one cobra command per
// store operation, with prompts for disambiguation and confirmation.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atinyakov/totpkeeper/internal/config"
	"github.com/atinyakov/totpkeeper/internal/db"
	"github.com/atinyakov/totpkeeper/internal/logger"
	"github.com/atinyakov/totpkeeper/internal/repository"
	"github.com/atinyakov/totpkeeper/internal/service"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// App carries the process environment shared by every command.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Now is the clock used for codes and timestamps.
	Now func() time.Time

	Version   string
	BuildDate string

	opts     *config.Options
	log      *logger.Logger
	prompter *Prompter
}

// NewApp returns an App bound to the process standard streams.
func NewApp(version, buildDate string) *App {
	return &App{
		In:        os.Stdin,
		Out:       os.Stdout,
		Err:       os.Stderr,
		Now:       time.Now,
		Version:   version,
		BuildDate: buildDate,
	}
}

// NewRootCommand builds the command tree.
func (a *App) NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "totpkeeper",
		Short:         "Keep TOTP secrets and print the current codes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	root.SetIn(a.In)
	root.SetOut(a.Out)
	root.SetErr(a.Err)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.newGetCommand(),
		a.newListCommand(),
		a.newAddCommand(),
		a.newUpdateCommand(),
		a.newDeleteCommand(),
		a.newVersionCommand(),
	)
	return root
}

// Run executes the command line args and returns the process exit code.
func (a *App) Run(ctx context.Context, args []string) int {
	root := a.NewRootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err != nil {
		st := newStyles(a.Err)
		fmt.Fprintln(a.Err, st.errorS.Render("✗ Error: "+err.Error()))
	}
	if a.log != nil {
		_ = a.log.Log.Sync()
	}
	return ExitCode(err)
}

func (a *App) setup(cmd *cobra.Command) error {
	opts, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	log := logger.New()
	if err := log.Init(opts.LogLevel); err != nil {
		return err
	}
	a.opts = opts
	a.log = log
	return nil
}

func (a *App) prompt() *Prompter {
	if a.prompter == nil {
		a.prompter = NewPrompter(a.In, a.Out)
	}
	return a.prompter
}

// withStore opens the configured backend, runs fn against a loaded store and
// releases the backend whatever fn returns.
func (a *App) withStore(ctx context.Context, fn func(*service.Store) error) (err error) {
	repo, closer, err := a.openRepository(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", service.ErrPersistence, err)
	}
	defer func() {
		if cerr := closer.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: close: %w", service.ErrPersistence, cerr))
		}
	}()

	params, err := a.opts.Params()
	if err != nil {
		return err
	}
	storeOpts := []service.Option{
		service.WithParams(params),
		service.WithClock(a.Now),
	}
	if a.opts.IgnoreCase {
		storeOpts = append(storeOpts, service.WithCaseInsensitiveIdentities())
	}

	store, err := service.NewStore(ctx, repo, storeOpts...)
	if err != nil {
		return err
	}
	return fn(store)
}

func (a *App) openRepository(ctx context.Context) (service.Repository, io.Closer, error) {
	log := a.log.Log

	if a.opts.DatabaseDSN != "" {
		log.Debug("opening database store")
		conn, err := db.InitPostgres(a.opts.DatabaseDSN)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresRepository(conn), conn, nil
	}

	fileOpts := []repository.FileOption{
		repository.WithLogger(log),
		repository.WithLockTimeout(a.opts.LockTimeout),
	}
	if a.opts.KeyFile != "" {
		aead, err := repository.NewAEADFromKeyFile(a.opts.KeyFile)
		if err != nil {
			return nil, nil, err
		}
		fileOpts = append(fileOpts, repository.WithAEAD(aead))
	}

	log.Debug("opening file store", zap.String("path", a.opts.Store))
	repo, err := repository.OpenFile(ctx, a.opts.Store, fileOpts...)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo, nil
}
