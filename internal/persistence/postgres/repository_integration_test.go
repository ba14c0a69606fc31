//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/itinerary/internal/domain"
)

func setupRepository(t *testing.T, ctx context.Context) *Repository {
	t.Helper()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("itinerary"),
		postgrescontainer.WithUsername("itinerary"),
		postgrescontainer.WithPassword("itinerary"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return NewRepository(pool)
}

// seedPlan creates a plan with two days holding the requested number of
// activities each, and returns the plan tree as stored.
func seedPlan(t *testing.T, ctx context.Context, repo *Repository, perDay ...int) *domain.PlanTree {
	t.Helper()

	now := time.Now().UTC()
	plan := domain.Plan{
		ID:        uuid.NewString(),
		OwnerID:   uuid.NewString(),
		Title:     "integration",
		StartsOn:  now.Truncate(24 * time.Hour),
		EndsOn:    now.Truncate(24 * time.Hour).AddDate(0, 0, len(perDay)-1),
		CreatedAt: now,
		UpdatedAt: now,
	}

	days := make([]domain.Day, 0, len(perDay))
	for i := range perDay {
		days = append(days, domain.Day{
			ID:     uuid.NewString(),
			PlanID: plan.ID,
			Seq:    i + 1,
			Date:   plan.StartsOn.AddDate(0, 0, i),
		})
	}
	require.NoError(t, repo.CreatePlan(ctx, plan, days))

	for i, count := range perDay {
		for j := 0; j < count; j++ {
			_, err := repo.CreateActivity(ctx, domain.Activity{
				ID:          uuid.NewString(),
				DayID:       days[i].ID,
				Title:       "activity",
				DurationMin: 60,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			require.NoError(t, err)
		}
	}

	tree, err := repo.GetPlanTree(ctx, plan.ID)
	require.NoError(t, err)
	require.NotNil(t, tree)
	return tree
}

func requireContiguous(t *testing.T, day domain.DayTree) {
	t.Helper()
	for i, a := range day.Activities {
		require.Equalf(t, i+1, a.Position, "day %s positions not contiguous: %+v", day.Day.ID, day.Activities)
	}
}

func activityIDs(day domain.DayTree) []string {
	out := make([]string, 0, len(day.Activities))
	for _, a := range day.Activities {
		out = append(out, a.ID)
	}
	return out
}

func TestMoveActivityCrossDayKeepsInvariant(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 3, 2)

	moved := tree.Days[0].Activities[1] // position 2 of day 1

	updated, err := repo.MoveActivity(ctx, moved.ID, tree.Days[1].Day.ID, 1)
	require.NoError(t, err)
	require.Equal(t, tree.Days[1].Day.ID, updated.DayID)
	require.Equal(t, 1, updated.Position)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Len(t, after.Days[0].Activities, 2)
	require.Len(t, after.Days[1].Activities, 3)
	requireContiguous(t, after.Days[0])
	requireContiguous(t, after.Days[1])
	require.Equal(t, moved.ID, after.Days[1].Activities[0].ID)
}

func TestMoveActivityRoundTripRestoresOrdering(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 3, 2)

	original := activityIDs(tree.Days[0])
	moved := tree.Days[0].Activities[1]

	_, err := repo.MoveActivity(ctx, moved.ID, tree.Days[1].Day.ID, 1)
	require.NoError(t, err)
	_, err = repo.MoveActivity(ctx, moved.ID, tree.Days[0].Day.ID, 2)
	require.NoError(t, err)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Equal(t, original, activityIDs(after.Days[0]))
	requireContiguous(t, after.Days[0])
	requireContiguous(t, after.Days[1])
}

func TestMoveActivitySameSlotIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 3)

	before := activityIDs(tree.Days[0])
	target := tree.Days[0].Activities[1]

	_, err := repo.MoveActivity(ctx, target.ID, tree.Days[0].Day.ID, target.Position)
	require.NoError(t, err)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Equal(t, before, activityIDs(after.Days[0]))
	requireContiguous(t, after.Days[0])
}

func TestSequentialMovesOnOneDayKeepInvariant(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 4)

	dayID := tree.Days[0].Day.ID

	_, err := repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, dayID, 4)
	require.NoError(t, err)
	_, err = repo.MoveActivity(ctx, tree.Days[0].Activities[3].ID, dayID, 1)
	require.NoError(t, err)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Len(t, after.Days[0].Activities, 4)
	requireContiguous(t, after.Days[0])
}

func TestMoveActivityRejectsCrossPlanTarget(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 2)
	other := seedPlan(t, ctx, repo, 1)

	_, err := repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, other.Days[0].Day.ID, 1)
	require.ErrorIs(t, err, domain.ErrValidation)

	// Nothing may have shifted in either plan.
	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Equal(t, activityIDs(tree.Days[0]), activityIDs(after.Days[0]))
}

func TestMoveActivityUnknownTargets(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 1)

	_, err := repo.MoveActivity(ctx, uuid.NewString(), tree.Days[0].Day.ID, 1)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, uuid.NewString(), 1)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMoveActivityRejectsSlotBeyondDayCount(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 3, 1)

	// Same-day: a 3-activity day has no slot 4 and certainly no slot 50.
	// Accepting either would commit a positions gap and leave MAX+1 past the
	// cap, breaking every later append to the day.
	for _, pos := range []int{4, 50} {
		_, err := repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, tree.Days[0].Day.ID, pos)
		require.ErrorIsf(t, err, domain.ErrValidation, "position %d", pos)
	}

	// Cross-day: the last legal slot is count+1. One past it is a gap.
	_, err := repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, tree.Days[1].Day.ID, 3)
	require.ErrorIs(t, err, domain.ErrValidation)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Equal(t, activityIDs(tree.Days[0]), activityIDs(after.Days[0]))
	requireContiguous(t, after.Days[0])
	requireContiguous(t, after.Days[1])

	// count+1 itself is the append slot and must still work.
	moved, err := repo.MoveActivity(ctx, tree.Days[0].Activities[0].ID, tree.Days[1].Day.ID, 2)
	require.NoError(t, err)
	require.Equal(t, 2, moved.Position)

	final, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	requireContiguous(t, final.Days[0])
	requireContiguous(t, final.Days[1])
}

func TestMoveActivityIntoFullDayFailsValidation(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 50, 1)

	// Slot 51 is the append slot of a full day, so the occupancy check lets
	// it through and the storage CHECK rejects it. The repository surfaces
	// the CHECK violation as validation.
	_, err := repo.MoveActivity(ctx, tree.Days[1].Activities[0].ID, tree.Days[0].Day.ID, 51)
	require.ErrorIs(t, err, domain.ErrValidation)

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Len(t, after.Days[0].Activities, 50)
	require.Len(t, after.Days[1].Activities, 1)
	requireContiguous(t, after.Days[0])
}

func TestDeleteActivityCompactsDay(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 3)

	require.NoError(t, repo.DeleteActivity(ctx, tree.Days[0].Activities[1].ID))

	after, err := repo.GetPlanTree(ctx, tree.Plan.ID)
	require.NoError(t, err)
	require.Len(t, after.Days[0].Activities, 2)
	requireContiguous(t, after.Days[0])
}

func TestCreateActivityAppendsAtEnd(t *testing.T) {
	ctx := context.Background()
	repo := setupRepository(t, ctx)
	tree := seedPlan(t, ctx, repo, 2)

	created, err := repo.CreateActivity(ctx, domain.Activity{
		ID:          uuid.NewString(),
		DayID:       tree.Days[0].Day.ID,
		Title:       "appended",
		DurationMin: 30,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	require.Equal(t, 3, created.Position)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_plan_event_log.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
