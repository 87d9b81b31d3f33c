package store

import (
	"context"
	"database/sql"
	"rarebird/lib/observation"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func setup(t testing.TB) *Store {
	s, err := Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSchemaFailureClosesDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	require.NoError(t, db.PingContext(ctx))

	_, err = openOwned(ctx, db, "CREATE TABLE broken (")
	require.ErrorContains(t, err, "create schema")
	require.ErrorContains(t, db.PingContext(ctx), "database is closed")
}

func snowyOwl(submission string, count int) observation.Observation {
	o := observation.Default()
	o.SpeciesCode = "snoowl1"
	o.CommonName = "Snowy Owl"
	o.LocationName = "Jones Beach SP"
	o.SubmissionID = submission
	o.Count = observation.KnownCount(count)
	lat, lng := 40.7, -73.9
	o.Latitude = &lat
	o.Longitude = &lng
	return o
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open(context.Background(), "")
	require.Error(t, err)
	require.True(t, isRemote("libsql://birds.turso.io"))
	require.True(t, isRemote("http://127.0.0.1:8080"))
	require.False(t, isRemote("history.db"))
}

func TestSaveAndRecent(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	gull := observation.Default()
	gull.CommonName = "Ivory Gull"
	gull.HasMedia = true

	first := time.Unix(1704441600, 0)
	require.NoError(t, s.Save(ctx, "run-1", first, []observation.Observation{snowyOwl("S1", 1), gull}))

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// newest insert first within a run
	require.Equal(t, "Ivory Gull", records[0].CommonName)
	require.Equal(t, "unknown", records[0].Count.String())
	require.Nil(t, records[0].Latitude)
	require.True(t, records[0].HasMedia)
	require.True(t, records[0].Valid)

	require.Equal(t, "run-1", records[1].RunID)
	require.True(t, first.Equal(records[1].FetchedAt))
	require.Empty(t, cmp.Diff(snowyOwl("S1", 1), records[1].Observation, cmp.AllowUnexported(observation.Count{})))
}

func TestUpsertBySubmission(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	first := time.Unix(1704441600, 0)
	second := first.Add(time.Hour)

	require.NoError(t, s.Save(ctx, "run-1", first, []observation.Observation{snowyOwl("S1", 1), observation.Default()}))
	require.NoError(t, s.Save(ctx, "run-2", second, []observation.Observation{snowyOwl("S1", 3), observation.Default()}))

	records, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	// the S1 owl is replaced, rows without a submission id accumulate
	require.Len(t, records, 3)

	var owls []Record
	for _, r := range records {
		if r.SubmissionID == "S1" {
			owls = append(owls, r)
		}
	}
	require.Len(t, owls, 1)
	require.Equal(t, "run-2", owls[0].RunID)
	require.Equal(t, "3", owls[0].Count.String())

	limited, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "run-2", limited[0].RunID)
}

func TestRuns(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Empty(t, runs)

	first := time.Unix(1704441600, 0)
	require.NoError(t, s.Save(ctx, NewRunID(), first, []observation.Observation{snowyOwl("S1", 1)}))
	latest := NewRunID()
	require.NoError(t, s.Save(ctx, latest, first.Add(time.Minute), nil))

	runs, err = s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, latest, runs[0].ID)
	require.Equal(t, 0, runs[0].Records)
	require.Equal(t, 1, runs[1].Records)

	require.Error(t, s.Save(ctx, latest, first, nil), "run ids are unique")
}
