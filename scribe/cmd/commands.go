package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"scribe/scribe/config"
	"scribe/scribe/services/meetings"
	"scribe/scribe/services/summary"
	"scribe/scribe/sessions"
	"scribe/scribe/sources/psql"
	"scribe/scribe/sources/psql/dao"
	"scribe/scribe/sources/psql/models"
	"scribe/scribe/utils/color"
	"scribe/scribe/utils/jsonutils"
	"scribe/scribe/utils/metrics"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

type app struct {
	cfg          config.Config
	openDB       func(ctx context.Context) (*psql.Database, error)
	newCompleter func(ctx context.Context) (summary.Completer, error)
	out          io.Writer
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "scribectl",
		Short:         "Administer the scribe meeting transcription backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(a.migrateCmd(), a.recoverCmd(), a.summarizeCmd(), a.meetingsCmd())
	return root
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			if err := psql.Migrate(cmd.Context(), db.DB); err != nil {
				return err
			}
			fmt.Fprintln(a.out, color.ColorInfo("schema up to date"))
			return nil
		},
	}
}

// generator builds a summary generator on its own metrics registry; the CLI
// exports nothing.
func (a *app) generator(ctx context.Context, db *psql.Database, m *metrics.Metrics) (*summary.Generator, error) {
	completer, err := a.newCompleter(ctx)
	if err != nil {
		return nil, err
	}
	return summary.NewGenerator(dao.NewTranscriptDAO(db.DB), dao.NewMeetingSummaryDAO(db.DB), completer, a.cfg.Policy, m), nil
}

func (a *app) recoverCmd() *cobra.Command {
	var grace time.Duration
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Finalize active meetings left silent past the grace period",
		Long: "Finalize active meetings whose last activity is older than --grace, " +
			"for example after the server crashed mid-meeting. Summaries are generated before returning.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			m := metrics.New(prometheus.NewRegistry())
			gen, err := a.generator(ctx, db, m)
			if err != nil {
				return err
			}
			meetingDAO := dao.NewMeetingDAO(db.DB)
			lifecycle := meetings.NewLifecycle(meetings.Options{
				Meetings:    meetingDAO,
				Transcripts: dao.NewTranscriptDAO(db.DB),
				Registry:    sessions.NewRegistry(m),
				Summarizer:  gen,
				Policy:      a.cfg.Policy,
				Metrics:     m,
			})
			monitor := meetings.NewInactivityMonitor(meetingDAO, lifecycle, a.cfg.Policy, m)

			n := monitor.Recover(ctx, grace)
			lifecycle.Wait()
			if n == 0 {
				fmt.Fprintln(a.out, color.ColorInfo("no stranded meetings"))
				return nil
			}
			fmt.Fprintln(a.out, color.ColorWarning(fmt.Sprintf("finalized %d stranded meeting(s)", n)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&grace, "grace", a.cfg.Policy.GracePeriod, "silence after which an active meeting counts as stranded")
	return cmd
}

func (a *app) summarizeCmd() *cobra.Command {
	var retry bool
	cmd := &cobra.Command{
		Use:   "summarize <meeting-id>",
		Short: "Generate a meeting's summary and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid meeting id %q", args[0])
			}
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			m, err := dao.NewMeetingDAO(db.DB).GetMeetingByID(ctx, id)
			if err != nil {
				return err
			}
			if m == nil {
				return meetings.ErrMeetingNotFound
			}
			gen, err := a.generator(ctx, db, metrics.New(prometheus.NewRegistry()))
			if err != nil {
				return err
			}
			s, err := gen.Generate(ctx, id, retry)
			if s != nil {
				fmt.Fprintln(a.out, jsonutils.ToJSON(s))
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&retry, "retry", false, "regenerate even if a summary exists")
	return cmd
}

func (a *app) meetingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meetings",
		Short: "Inspect meetings",
	}

	var (
		username string
		status   string
		limit    int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List a user's meetings, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			db, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			user, err := dao.NewUserDAO(db.DB).GetUserByUsername(ctx, username)
			if err != nil {
				return err
			}
			if user == nil {
				return fmt.Errorf("user %q not found", username)
			}
			rows, err := dao.NewMeetingDAO(db.DB).ListMeetings(ctx, user.ID, models.MeetingStatus(status), 0, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, color.ColorHeader("ID\tSTATUS\tSTARTED\tTITLE"))
			for _, m := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.ID, color.ColorStatus(string(m.Status)),
					m.StartTime.Local().Format(time.DateTime), m.Title)
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&username, "user", "", "owner's username")
	list.Flags().StringVar(&status, "status", "", "only meetings in this status")
	list.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	_ = list.MarkFlagRequired("user")

	cmd.AddCommand(list)
	return cmd
}
