package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/stevemurr/bizstore/config"
	"github.com/stevemurr/bizstore/handler"
	"github.com/stevemurr/bizstore/identity"
)

const shutdownTimeout = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Host    string
	Port    int
	Origins string
}

func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local JSON API used by the UI",
		Long: `Run the local JSON API used by the UI.

Requests are authenticated with "Authorization: Bearer <token>" when a JWT
secret is configured. Requests without a token run as --user, or anonymous.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.run(cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVar(&opts.Port, "port", 0, "listen port (default from config)")
	cmd.Flags().StringVar(&opts.Origins, "origins", "", "comma separated CORS origins")

	return cmd
}

func (o *ServeOptions) apply(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("host") {
		o.cfg.Host = o.Host
	}
	if flags.Changed("port") {
		o.cfg.Port = o.Port
	}
	if flags.Changed("origins") {
		o.cfg.AllowedOrigins = config.SplitOrigins(o.Origins)
	}
}

// Handler builds the full middleware chain around the API.
func (o *ServeOptions) Handler(cmd *cobra.Command) (http.Handler, func() error, error) {
	o.apply(cmd)
	log, err := o.logger(cmd)
	if err != nil {
		return nil, nil, err
	}
	s, err := o.openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	var verifier *identity.TokenVerifier
	if o.cfg.JWTSecret != "" {
		verifier = identity.NewTokenVerifier([]byte(o.cfg.JWTSecret))
	}
	var h http.Handler = handler.New(s, log)
	h = handler.Authenticate(h, verifier, o.identity())
	h = handler.CORS(h, o.cfg.AllowedOrigins)
	h = handler.LogRequests(h, log)
	return h, s.Close, nil
}

func (o *ServeOptions) run(cmd *cobra.Command) error {
	h, closeStore, err := o.Handler(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	log, err := o.logger(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              o.cfg.Addr(),
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "bizstore listening",
			"addr", srv.Addr,
			"store", o.cfg.Backend,
			"data", o.cfg.DataDir,
			"auth", o.cfg.JWTSecret != "",
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "server error", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
