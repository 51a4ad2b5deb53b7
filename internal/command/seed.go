package command

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/repository"
)

var SeedEventNames = []string{
	"Product Launch",
	"Tech Conference",
	"Team Offsite",
	"Customer Webinar",
	"Hackathon",
}

type SeedOptions struct {
	Count  int
	Window time.Duration
	Now    time.Time
	Rand   *rand.Rand
}

type SeedResult struct {
	Events    []models.Event
	Feedbacks int
}

// Seed ensures the sample events exist and inserts Count random feedbacks
// with creation times spread over the Window before Now.
func Seed(ctx context.Context, store repository.Store, opts SeedOptions) (SeedResult, error) {
	if opts.Now.IsZero() {
		opts.Now = models.Now()
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(uint64(opts.Now.UnixNano()), 0))
	}

	res := SeedResult{Events: make([]models.Event, 0, len(SeedEventNames))}
	for _, name := range SeedEventNames {
		ev, err := store.Events.EnsureEvent(ctx, name)
		if err != nil {
			return res, fmt.Errorf("ensure event %q: %w", name, err)
		}
		res.Events = append(res.Events, ev)
	}

	for i := range opts.Count {
		ev := res.Events[opts.Rand.IntN(len(res.Events))]
		rating := opts.Rand.IntN(5) + 1
		var ago time.Duration
		if opts.Window > 0 {
			ago = time.Duration(opts.Rand.Int64N(int64(opts.Window)))
		}

		_, err := store.Feedbacks.Create(ctx, repository.NewFeedback{
			EventID:   ev.ID,
			Rating:    rating,
			Text:      fmt.Sprintf("Sample feedback %d: rating %d", i+1, rating),
			CreatedAt: opts.Now.Add(-ago),
		})
		if err != nil {
			return res, fmt.Errorf("create feedback %d: %w", i+1, err)
		}
		res.Feedbacks++
	}
	return res, nil
}

// NewSeedCmd creates the seed command.
func NewSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create sample events and random feedback",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, _ := cmd.Flags().GetString("storage")
			dsn, _ := cmd.Flags().GetString("dsn")
			dbName, _ := cmd.Flags().GetString("db-name")
			count, _ := cmd.Flags().GetInt("count")
			window, _ := cmd.Flags().GetDuration("window")

			ctx := cmd.Context()
			store, err := repository.Open(ctx, storage, dsn, dbName)
			if err != nil {
				return err
			}
			defer store.Close(context.Background())

			res, err := Seed(ctx, store, SeedOptions{Count: count, Window: window})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d events and %d feedbacks into %s\n", len(res.Events), res.Feedbacks, storage)
			return nil
		},
	}

	defaultDSN := envOr("DATABASE_URL", "")
	if envOr("STORAGE", "mongo") == "mongo" {
		defaultDSN = envOr("MONGODB_URI", "")
	}
	cmd.Flags().String("storage", envOr("STORAGE", "mongo"), "storage backend: mongo, sqlite, postgres or memory")
	cmd.Flags().String("dsn", defaultDSN, "connection string (MONGODB_URI or DATABASE_URL)")
	cmd.Flags().String("db-name", envOr("DB_NAME", "feedback_board"), "mongo database name")
	cmd.Flags().Int("count", 250, "number of feedbacks to create")
	cmd.Flags().Duration("window", 72*time.Hour, "spread creation times over this window")
	return cmd
}
