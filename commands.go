package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"pixelweave-server/modules/common/apperr"
	"pixelweave-server/modules/common/database"
	"pixelweave-server/modules/common/model"
	"pixelweave-server/modules/notification"
	"pixelweave-server/modules/worker"
)

const shutdownTimeout = 30 * time.Second

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newServeCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and websocket notification server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			hub := notification.NewHub()
			go func() {
				if err := hub.RelayFrom(ctx, a.rdb); err != nil && ctx.Err() == nil {
					log.Errorf("❌ Notification relay stopped: %v", err)
				}
			}()

			// 단일 프로세스 모드는 hub 로 바로, 아니면 Redis 경유
			var publisher notification.Publisher = notification.NewRedisPublisher(a.rdb)
			var runner *worker.Runner
			runDone := make(chan struct{})
			if withWorker {
				publisher = notification.NewLocalPublisher(hub)
				processor, err := a.newProcessor(ctx, publisher)
				if err != nil {
					return err
				}
				runner = newRunner(a, processor)
				go func() {
					defer close(runDone)
					_ = runner.Run(ctx)
				}()
			} else {
				close(runDone)
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           newRouter(a, hub, publisher, runner),
				ReadHeaderTimeout: 10 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				log.Printf("🚀 PixelWeave server starting on port %s", cfg.Port)
				log.Printf("📡 WebSocket endpoint: ws://localhost:%s/ws", cfg.Port)
				log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
				log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server failed to start: %w", err)
				}
			case <-ctx.Done():
			}

			log.Println("🛑 Shutting down...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warnf("⚠️  HTTP shutdown: %v", err)
			}
			if runner != nil {
				<-runDone
				runner.Stop(shutdownCtx)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "also consume the job queue in this process")
	return cmd
}

func newRunner(a *app, processor worker.TaskProcessor) *worker.Runner {
	return worker.NewRunner(a.queue, processor, worker.Config{
		Concurrency: a.cfg.WorkerConcurrency,
		TaskTimeout: a.cfg.JobBudget(),
	})
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume the job queue and run image generations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext()
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			processor, err := a.newProcessor(ctx, notification.NewRedisPublisher(a.rdb))
			if err != nil {
				return err
			}

			log.Println("🔄 Redis Queue Worker starting...")
			runner := newRunner(a, processor)
			if err := runner.Run(ctx); err != nil {
				return err
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GatewayTimeout+shutdownTimeout)
			defer cancel()
			runner.Stop(shutdownCtx)
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.NewClient(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Migrate(cmd.Context())
		},
	}
}

func newSweepCmd() *cobra.Command {
	var staleAfter time.Duration

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Recover jobs and staging blobs left behind by crashed workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			if staleAfter <= cfg.JobBudget() {
				return fmt.Errorf("--stale-after %s must exceed %s or live jobs would be failed", staleAfter, cfg.JobBudget())
			}
			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.close()

			sweeper := worker.NewSweeper(a.db, a.store, a.jobs, notification.NewRedisPublisher(a.rdb), staleAfter)
			report, err := sweeper.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(report)
		},
	}
	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "treat jobs untouched for this long as abandoned (default STALE_JOB_AFTER)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		if staleAfter <= 0 {
			staleAfter = cfg.StaleJobAfter
		}
	}
	return cmd
}

func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		name   string
		credit int
		create bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user (optionally creating the user)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			var u *model.User
			switch {
			case userID != "":
				u, err = a.db.FetchUser(ctx, userID)
			case email != "":
				u, err = a.db.FetchUserByEmail(ctx, email)
				if errors.Is(err, apperr.ErrNotFound) && create {
					u = &model.User{UserName: name, Email: email, Credit: credit}
					err = a.db.CreateUser(ctx, u)
				}
			default:
				return errors.New("either --user or --email is required")
			}
			if err != nil {
				return err
			}

			token, err := a.tokens.Issue(u.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "user:  %s (%s, credit %d)\ntoken: %s\n", u.ID, u.Email, u.Credit, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&name, "name", "user", "user name when creating")
	cmd.Flags().IntVar(&credit, "credit", 0, "starting credit when creating")
	cmd.Flags().BoolVar(&create, "create", false, "create the user if the email is unknown")
	return cmd
}
