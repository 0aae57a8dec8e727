package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Ramsey-B/fern/internal/app"
	"github.com/Ramsey-B/fern/internal/startup"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		migrate bool
		passes  bool
		consume bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := newEnv(ctx)
			if err != nil {
				return err
			}
			defer e.Close(context.Background())
			log := e.logger.WithContext(ctx)

			var (
				a        *app.App
				server   *echo.Echo
				consumer *kafka.Consumer
			)
			serverErr := make(chan error, 1)

			st := startup.NewStartup(e.logger, e.cfg.StartupMaxAttempts)
			st.AddDependency(&startup.Dependency{
				Name: "database",
				StartFn: func(ctx context.Context) error {
					var err error
					a, err = app.New(ctx, e.cfg, e.logger)
					return err
				},
				StopFn: func(context.Context) error { return a.Close() },
			})
			st.AddDependency(&startup.Dependency{
				Name:  "migrations",
				Needs: []string{"database"},
				StartFn: func(context.Context) error {
					if !migrate {
						return nil
					}
					return a.Migrate()
				},
			})
			if consume {
				st.AddDependency(&startup.Dependency{
					Name:  "consumer",
					Needs: []string{"migrations"},
					StartFn: func(ctx context.Context) error {
						consumer = a.Consumer()
						return consumer.Start(ctx)
					},
					StopFn: func(context.Context) error { return consumer.Stop() },
				})
			}
			st.AddDependency(&startup.Dependency{
				Name:  "http",
				Needs: []string{"migrations"},
				StartFn: func(context.Context) error {
					if e.cfg.KafkaPublish {
						a.EnablePublishing()
					}
					srv, checker, err := a.Server(passes)
					if err != nil {
						return err
					}
					server = srv
					go func() {
						log.Infof("Listening on %s", server.Server.Addr)
						if err := server.StartServer(server.Server); err != nil && !errors.Is(err, http.ErrServerClosed) {
							serverErr <- err
						}
					}()
					checker.SetReady(true)
					return nil
				},
				StopFn: func(ctx context.Context) error { return server.Shutdown(ctx) },
			})

			if err := st.Start(ctx); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				log.Info("Shutting down")
			case err = <-serverErr:
				log.WithError(err).Error("HTTP server stopped")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return errors.Join(err, st.Stop(shutdownCtx))
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply migrations before serving")
	cmd.Flags().BoolVar(&passes, "passes", true, "expose the pass endpoints")
	cmd.Flags().BoolVar(&consume, "consume", false, "also consume records from Kafka")
	return cmd
}

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume",
		Short: "Ingest records from Kafka until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)

			return withApp(cmd, func(ctx context.Context, e *env, a *app.App) error {
				consumer := a.Consumer()
				if err := consumer.Start(ctx); err != nil {
					return err
				}
				<-ctx.Done()
				return consumer.Stop()
			})
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, _ *env, a *app.App) error {
				return a.Migrate()
			})
		},
	}
}
