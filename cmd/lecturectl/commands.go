package main

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lecturely/backend/config"
	"github.com/lecturely/backend/internal/auth"
	"github.com/lecturely/backend/internal/bootstrap"
	"github.com/lecturely/backend/internal/models"
	"github.com/lecturely/backend/pkg/database"
	"github.com/lecturely/backend/pkg/queue"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			pool, err := database.NewPostgresPool(cmd.Context(), cfg.Database.DSN(), 2, ctx.log())
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := database.Migrate(cmd.Context(), pool, ctx.log()); err != nil {
				return err
			}
			files, err := database.Migrations()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied (%d known)\n", len(files))
			return nil
		},
	}
}

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var inline bool
	cmd := &cobra.Command{
		Use:   "process <session-id>",
		Short: "Start processing a session (queued, or in this process with --inline)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return ctx.withInfra(runCtx, func(cfg *config.Config, infra *bootstrap.Infra) error {
				deps := infra.Deps()
				if inline {
					deps, err = bootstrap.WithStages(runCtx, cfg, deps, ctx.log())
					if err != nil {
						return err
					}
					// Skip the queue: the claimed run happens here.
					deps.Queue = discardQueue{}
				}
				orchestrator := bootstrap.Orchestrator(cfg, deps, ctx.log())

				// uuid.Nil: operators may process any user's session.
				session, err := orchestrator.Start(runCtx, sessionID, uuid.Nil, queue.TriggerCLI)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !inline {
					fmt.Fprintf(out, "Session %s queued (status %s)\n", session.ID, session.Status)
					return nil
				}

				fmt.Fprintf(out, "Processing session %s...\n", session.ID)
				started := time.Now()
				if err := orchestrator.Run(runCtx, session.ID); err != nil {
					return fmt.Errorf("session %s failed after %s: %w", session.ID, time.Since(started).Round(time.Second), err)
				}
				fmt.Fprintf(out, "Session %s completed in %s\n", session.ID, time.Since(started).Round(time.Second))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&inline, "inline", false, "Run the pipeline in this process instead of queueing it")
	return cmd
}

// discardQueue satisfies the orchestrator's enqueuer for inline runs.
type discardQueue struct{}

func (discardQueue) EnqueuePipeline(context.Context, queue.PipelinePayload) error { return nil }

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session counts by status and pipeline queue depth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInfra(cmd.Context(), func(_ *config.Config, infra *bootstrap.Infra) error {
				counts, err := infra.Sessions.StatusCounts(cmd.Context())
				if err != nil {
					return err
				}
				pending, dead, err := infra.Queue.Depth(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStatus(counts, pending, dead))
				return nil
			})
		},
	}
}

func renderStatus(counts map[string]int, pending, dead int64) string {
	statuses := []string{
		models.SessionStatusRecording,
		models.SessionStatusProcessing,
		models.SessionStatusCompleted,
		models.SessionStatusFailed,
	}
	rows := make([][]string, 0, len(statuses)+2)
	for _, s := range statuses {
		rows = append(rows, []string{"sessions." + s, strconv.Itoa(counts[s])})
	}
	rows = append(rows,
		[]string{"queue.pending", strconv.FormatInt(pending, 10)},
		[]string{"queue.dead", strconv.FormatInt(dead, 10)},
	)
	return renderTable([]string{"Metric", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
}

func newFailStaleCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "fail-stale",
		Short: "Mark sessions stuck in processing as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withInfra(cmd.Context(), func(cfg *config.Config, infra *bootstrap.Infra) error {
				age := olderThan
				if age <= 0 {
					age = cfg.Pipeline.Timeout
				}
				n, err := infra.Sessions.FailStale(cmd.Context(), age)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d session(s) marked failed\n", n)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Minimum time in processing (default: PIPELINE_TIMEOUT)")
	return cmd
}

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var (
		userFlag string
		email    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a user (development)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			userID, err := uuid.Parse(userFlag)
			if err != nil {
				return fmt.Errorf("invalid --user %q", userFlag)
			}
			token, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours).Issue(userID, email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userFlag, "user", "", "User ID (uuid)")
	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
