package cli

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/namedb/internal/config"
	"github.com/roach88/namedb/internal/dispatch"
	"github.com/roach88/namedb/internal/logging"
	"github.com/roach88/namedb/internal/store"
)

// closeTimeout bounds how long Close waits for queued operations.
const closeTimeout = 30 * time.Second

// session is one command's view of the store: the resolved config, a logger,
// an open handle and the dispatcher serializing work on it.
type session struct {
	cfg    config.Config
	logger *slog.Logger
	store  *store.Store
	client *dispatch.Client
	disp   *dispatch.Dispatcher

	runDone   chan error
	logCloser io.Closer
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}

// loadConfig merges the config file, environment and any flags the user
// actually set.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	var flags config.FlagOverrides
	if cmd.Flags().Changed("data-dir") {
		flags.DataDir = &opts.DataDir
	}
	if cmd.Flags().Changed("db") {
		flags.Database = &opts.Database
	}
	if opts.Verbose {
		debug := "debug"
		flags.LogLevel = &debug
	}
	return config.Load(config.LoadOptions{
		ConfigPath: opts.ConfigPath,
		Env:        opts.env,
		Flags:      flags,
	})
}

// openSession opens the configured database and starts the dispatcher.
// The caller must Close the session.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Logging: cfg.Logging,
		Verbose: opts.Verbose,
		Stderr:  cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, err
	}

	st := store.New(cfg.DataDir,
		store.WithLogger(logger),
		store.WithBusyTimeout(cfg.BusyTimeout()),
	)
	h, err := st.Open(cmd.Context(), cfg.Database)
	if err != nil {
		_ = st.Close()
		_ = logCloser.Close()
		return nil, err
	}

	disp := dispatch.New(dispatch.WithLogger(logger))
	s := &session{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		client:    dispatch.NewClient(disp, h),
		disp:      disp,
		runDone:   make(chan error, 1),
		logCloser: logCloser,
	}
	go func() { s.runDone <- disp.Run(context.Background()) }()

	logger.Debug("session opened", "data_dir", cfg.DataDir, "database", cfg.Database)
	return s, nil
}

// Close releases the handle after all queued operations have run.
func (s *session) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var firstErr error
	if f, err := s.client.Close(); err == nil {
		if _, err := f.Wait(ctx); err != nil && !store.IsStale(err) {
			firstErr = err
		}
	}
	s.disp.Close()
	select {
	case <-s.runDone:
	case <-ctx.Done():
		if firstErr == nil {
			firstErr = ctx.Err()
		}
	}

	if err := s.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.logCloser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// withSession runs fn against an open session and reports setup failures.
func withSession(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, s *session, out *OutputFormatter) error) (err error) {
	out := newFormatter(cmd, opts)
	s, err := openSession(cmd, opts)
	if err != nil {
		return fail(out, err)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			s.logger.Error("error closing database", "error", closeErr)
			if err == nil {
				err = WrapExitError(ExitCommandError, "close database", closeErr)
			}
		}
	}()
	return fn(cmd.Context(), s, out)
}
