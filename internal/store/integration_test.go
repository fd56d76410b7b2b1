//go:build integration

package store_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sldstore/internal/database"
	"github.com/JonMunkholm/sldstore/internal/flatline"
	"github.com/JonMunkholm/sldstore/internal/store"
)

// getTestPool migrates and truncates the database named by
// TEST_DATABASE_URL. The test is skipped when the variable is unset.
func getTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	migrator := database.NewMigrator(slog.Default(), database.MigrationConfig{})
	require.NoError(t, migrator.Migrate(dsn))

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(context.Background(),
		`TRUNCATE config_values, configs, params, param_types, rules, feature_types, templates RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
	return pool
}

func countRows(t *testing.T, pool *pgxpool.Pool, table string) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestIntegration_IngestAndRead(t *testing.T) {
	pool := getTestPool(t)
	s := store.New(pool, store.Options{})
	ctx := context.Background()

	lines, err := flatline.ParseString("FeatureType\nRule\tR;Title;Abstract\nField\t\t\t3\tpoint-color\t#ff0000\n")
	require.NoError(t, err)

	id, err := s.IngestTemplate(ctx, "<StyledLayerDescriptor/>", "T1", lines)
	require.NoError(t, err)

	tree, err := s.GetTemplateTree(ctx, id)
	require.NoError(t, err)
	require.Len(t, tree.FeatureTypes, 1)
	require.Len(t, tree.FeatureTypes[0].Rules, 1)
	require.Len(t, tree.FeatureTypes[0].Rules[0].Params, 1)

	p := tree.FeatureTypes[0].Rules[0].Params[0]
	assert.Equal(t, 3, p.Offset)
	assert.Equal(t, "#ff0000", p.Default)
	assert.Equal(t, "point-color", tree.ParamTypes[p.ParamTypeID].Symbolizer)
}

func TestIntegration_OrphanLeavesNothing(t *testing.T) {
	pool := getTestPool(t)
	s := store.New(pool, store.Options{})

	_, err := s.IngestTemplate(context.Background(), "", "orphan", []flatline.Line{
		flatline.FeatureType("roads", ""),
		flatline.Field(0, "stroke", "#000"),
	})
	var orphan *store.OrphanFieldError
	require.ErrorAs(t, err, &orphan)

	for _, table := range []string{"templates", "feature_types", "rules", "params", "param_types"} {
		assert.Zero(t, countRows(t, pool, table), table)
	}
}

func TestIntegration_AdvisoryLockingDedupsAcrossIngests(t *testing.T) {
	pool := getTestPool(t)
	s := store.New(pool, store.Options{CatalogLocking: store.LockingAdvisory})
	ctx := context.Background()

	const ingests = 8
	var wg sync.WaitGroup
	errs := make(chan error, ingests)
	for i := 0; i < ingests; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.IngestTemplate(ctx, "", fmt.Sprintf("t%d", i), []flatline.Line{
				flatline.FeatureType("roads", ""),
				flatline.Rule("R", "", ""),
				flatline.Field(0, "stroke", "#000"),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, ingests, countRows(t, pool, "templates"))
	assert.Equal(t, 1, countRows(t, pool, "param_types"))
}

func TestIntegration_ReplaceConfigValues(t *testing.T) {
	pool := getTestPool(t)
	s := store.New(pool, store.Options{})
	ctx := context.Background()

	id, err := s.IngestTemplate(ctx, "", "cfg", []flatline.Line{
		flatline.FeatureType("roads", ""),
		flatline.Rule("R", "", ""),
		flatline.Field(0, "stroke", "#000"),
		flatline.Field(1, "stroke-width", "1"),
	})
	require.NoError(t, err)

	cfg, err := s.CreateConfig(ctx, store.NewConfig{TemplateID: id, Owner: uuid.New(), Name: "mine"})
	require.NoError(t, err)

	tree, err := s.GetTemplateTree(ctx, id)
	require.NoError(t, err)
	params := tree.FeatureTypes[0].Rules[0].Params

	first := []store.ConfigValue{{ParamID: params[0].ID, Value: "#f00"}, {ParamID: params[1].ID, Value: "3"}}
	require.NoError(t, s.ReplaceConfigValues(ctx, cfg.ID, first))

	// An unknown param id violates the foreign key; the first set survives.
	err = s.ReplaceConfigValues(ctx, cfg.ID, []store.ConfigValue{{ParamID: params[0].ID + 1000, Value: "x"}})
	require.Error(t, err)

	got, err := s.GetConfigValues(ctx, cfg.ID)
	require.NoError(t, err)
	assert.Equal(t, first, got)

	owner, found, err := s.GetConfigOwner(ctx, cfg.ID)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, cfg.UUID, owner)
}
