package postgres

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/op-import/internal/core/jobstatus"
)

func findJob(snap jobstatus.Snapshot, id string) (jobstatus.Job, bool) {
	for _, j := range snap.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return jobstatus.Job{}, false
}

const testSchema = `
CREATE TABLE events (
	id uuid PRIMARY KEY,
	creation_order serial NOT NULL,
	topic varchar NOT NULL,
	project_name varchar,
	user_name varchar,
	depends_on uuid,
	status varchar NOT NULL,
	description text,
	created_at timestamptz NOT NULL DEFAULT now(),
	updated_at timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE anatomy_presets (
	name varchar PRIMARY KEY,
	is_primary boolean NOT NULL DEFAULT false
);
`

// startPostgres はテスト用のPostgreSQLコンテナを起動します
// Docker が利用できない環境ではスキップする
func startPostgres(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker is not available: %v", err)
	}
	pool.MaxWait = 60 * time.Second

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=ayon",
			"POSTGRES_PASSWORD=secret",
			"POSTGRES_DB=ayon",
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Purge(resource) })
	_ = resource.Expire(120)

	port, err := strconv.Atoi(resource.GetPort("5432/tcp"))
	require.NoError(t, err)

	params := ConnectionParams{
		Host:     "localhost",
		Port:     port,
		User:     "ayon",
		Password: "secret",
		DBName:   "ayon",
		SSLMode:  "disable",
	}

	var db *DB
	err = pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		db, err = New(ctx, params)
		return err
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	_, err = db.Pool.Exec(context.Background(), testSchema)
	require.NoError(t, err)
	return db
}

func TestRegistry_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	insert := func(id, topic, project, dependsOn, status, description string) {
		var dep any
		if dependsOn != "" {
			dep = dependsOn
		}
		_, err := db.Pool.Exec(ctx,
			`INSERT INTO events (id, topic, project_name, user_name, depends_on, status, description)
			 VALUES ($1, $2, $3, 'admin', $4, $5, $6)`,
			id, topic, project, dep, status, description)
		require.NoError(t, err)
	}

	const (
		upload1  = "00000000-0000-0000-0000-000000000001"
		upload2  = "00000000-0000-0000-0000-000000000002"
		upload3  = "00000000-0000-0000-0000-000000000003"
		process1 = "00000000-0000-0000-0000-0000000000a1"
	)
	insert(upload1, UploadTopic, "shot_010", "", "finished", "Uploading a project file")
	insert(process1, "openpype_import.process", "shot_010", upload1, "failed", "Import failed")
	insert(upload2, UploadTopic, "shot_020", "", "failed", "Upload failed")
	insert(upload3, UploadTopic, "shot_030", "", "in_progress", "Uploading a project file")
	insert("00000000-0000-0000-0000-0000000000ff", "other.topic", "x", "", "finished", "")

	_, err := db.Pool.Exec(ctx, `INSERT INTO anatomy_presets (name, is_primary) VALUES ('studio', true), ('commercial', false)`)
	require.NoError(t, err)

	registry := NewRegistry(db.Pool, 10)

	t.Run("ListJobs", func(t *testing.T) {
		records, err := registry.ListJobs(ctx)
		require.NoError(t, err)
		require.Len(t, records, 3)

		// 新しい順
		assert.Equal(t, upload3, records[0].ID)
		assert.Equal(t, "in_progress", records[0].Status)
		assert.Equal(t, upload2, records[1].ID)
		assert.Equal(t, "failed", records[1].Status)
		assert.True(t, records[1].ProcessID.IsAbsent())

		assert.Equal(t, upload1, records[2].ID)
		assert.Equal(t, "failed", records[2].Status)
		assert.Equal(t, "Import failed", records[2].Description)
		assert.Equal(t, "shot_010", records[2].Project)
		assert.Equal(t, "admin", records[2].User)
		pid, ok := records[2].ProcessID.Get()
		require.True(t, ok)
		assert.Equal(t, process1, pid)
		assert.True(t, jobstatus.IsRestartable(records[2]))
	})

	t.Run("SetStatus", func(t *testing.T) {
		require.NoError(t, registry.SetStatus(ctx, process1, jobstatus.StatusRestarted))

		var status string
		require.NoError(t, db.Pool.QueryRow(ctx, `SELECT status FROM events WHERE id = $1`, process1).Scan(&status))
		assert.Equal(t, "restarted", status)

		err := registry.SetStatus(ctx, "00000000-0000-0000-0000-00000000dead", jobstatus.StatusRestarted)
		assert.ErrorIs(t, err, jobstatus.ErrJobNotFound)
	})

	t.Run("ListAnatomyPresets", func(t *testing.T) {
		presets, err := registry.ListAnatomyPresets(ctx)
		require.NoError(t, err)
		require.Len(t, presets, 2)
		assert.Equal(t, "commercial", presets[0].Name)
		assert.False(t, presets[0].Primary)
		assert.Equal(t, "studio", presets[1].Name)
		assert.True(t, presets[1].Primary)
	})

	t.Run("PollerOverPostgres", func(t *testing.T) {
		poller := jobstatus.NewPoller(registry)
		snap := poller.Refresh(ctx)
		require.False(t, snap.Stale, fmt.Sprintf("unexpected error: %s", snap.LastError))

		job, ok := findJob(snap, upload1)
		require.True(t, ok)
		assert.Equal(t, jobstatus.CategoryInProgress, job.Category)
		assert.False(t, job.Restartable)
	})
}
