package ayon_test

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/op-import/internal/core/jobstatus"
	"github.com/jinford/op-import/internal/core/upload"
	"github.com/jinford/op-import/internal/infra/ayon"
	"github.com/jinford/op-import/internal/testing/fakebackend"
)

func newClient(t *testing.T, srv *fakebackend.Server) *ayon.Client {
	t.Helper()
	client, err := ayon.NewClient(ayon.Config{
		ServerURL:    srv.URL,
		APIKey:       srv.APIKey,
		AddonName:    srv.AddonName,
		AddonVersion: srv.AddonVersion,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_Validation(t *testing.T) {
	_, err := ayon.NewClient(ayon.Config{AddonName: "openpype_import", AddonVersion: "1.0.0"})
	assert.Error(t, err)

	_, err = ayon.NewClient(ayon.Config{ServerURL: "http://localhost:5000", AddonName: "openpype_import"})
	assert.Error(t, err)
}

func TestClient_Send(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.APIKey = "secret"

	client := newClient(t, srv)
	data := bytes.Repeat([]byte("x"), 64*1024)

	var lastSent int64
	err := client.Send(context.Background(), upload.SendRequest{
		JobName:  "shot_010",
		FileName: "shot_010.zip",
		Size:     int64(len(data)),
		Body:     bytes.NewReader(data),
		Headers: map[string]string{
			upload.HeaderContentType:   upload.ContentTypeOctetStream,
			upload.HeaderProjectName:   "shot_010",
			upload.HeaderAnatomyPreset: "studio",
		},
	}, func(sent, total int64) {
		assert.GreaterOrEqual(t, sent, lastSent)
		assert.Equal(t, int64(len(data)), total)
		lastSent = sent
	})
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), lastSent)

	imports := srv.Imports()
	require.Len(t, imports, 1)
	assert.Equal(t, "shot_010", imports[0].ProjectName)
	assert.Equal(t, "studio", imports[0].AnatomyPreset)
	assert.Equal(t, "application/octet-stream", imports[0].ContentType)
	assert.Equal(t, len(data), imports[0].Size)
}

func TestClient_Send_ErrorResponse(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.FailImport("broken", http.StatusInternalServerError)

	client := newClient(t, srv)
	err := client.Send(context.Background(), upload.SendRequest{
		JobName: "broken",
		Size:    3,
		Body:    bytes.NewReader([]byte("abc")),
		Headers: map[string]string{upload.HeaderProjectName: "broken"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "import of broken failed")
}

func TestClient_Send_Unauthorized(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.APIKey = "secret"

	client, err := ayon.NewClient(ayon.Config{
		ServerURL:    srv.URL,
		APIKey:       "wrong",
		AddonName:    srv.AddonName,
		AddonVersion: srv.AddonVersion,
	})
	require.NoError(t, err)

	err = client.Send(context.Background(), upload.SendRequest{
		Body:    bytes.NewReader(nil),
		Headers: map[string]string{upload.HeaderProjectName: "x"},
	}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Send_Cancelled(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()

	client := newClient(t, srv)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Send(ctx, upload.SendRequest{
		Body:    bytes.NewReader([]byte("abc")),
		Headers: map[string]string{upload.HeaderProjectName: "x"},
	}, nil)
	require.Error(t, err)
	assert.Empty(t, srv.Imports())
}

func TestClient_ListJobs(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)
	srv.SetJobs(
		fakebackend.Job{
			Project:   "shot_010",
			User:      "admin",
			UploadID:  "u1",
			ProcessID: fakebackend.StringPtr("p1"),
			Status:    "finished",
			CreatedAt: created,
			UpdatedAt: updated,
		},
		fakebackend.Job{
			Project:   "shot_020",
			UploadID:  "u2",
			Status:    "in_progress",
			CreatedAt: created,
			UpdatedAt: updated,
		},
	)

	client := newClient(t, srv)
	records, err := client.ListJobs(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "u1", records[0].ID)
	assert.Equal(t, "finished", records[0].Status)
	assert.Equal(t, "shot_010", records[0].Project)
	assert.True(t, created.Equal(records[0].CreatedAt))
	assert.True(t, updated.Equal(records[0].UpdatedAt))
	pid, ok := records[0].ProcessID.Get()
	assert.True(t, ok)
	assert.Equal(t, "p1", pid)

	assert.True(t, records[1].ProcessID.IsAbsent())
	assert.True(t, jobstatus.IsRestartable(records[0]))
	assert.False(t, jobstatus.IsRestartable(records[1]))
}

func TestClient_ListJobs_Error(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.FailList(http.StatusBadGateway)

	client := newClient(t, srv)
	_, err := client.ListJobs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestClient_SetStatus(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.SetJobs(fakebackend.Job{UploadID: "u1", ProcessID: fakebackend.StringPtr("p1"), Status: "failed"})

	client := newClient(t, srv)

	require.NoError(t, client.SetStatus(context.Background(), "p1", jobstatus.StatusRestarted))
	assert.Equal(t, "restarted", srv.Patches()["p1"])

	err := client.SetStatus(context.Background(), "missing", jobstatus.StatusRestarted)
	require.Error(t, err)
	assert.ErrorIs(t, err, jobstatus.ErrJobNotFound)

	srv.FailPatch(http.StatusForbidden)
	err = client.SetStatus(context.Background(), "p1", jobstatus.StatusRestarted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestClient_ListAnatomyPresets(t *testing.T) {
	srv := fakebackend.New("openpype_import", "1.0.0")
	defer srv.Close()
	srv.SetPresets(
		fakebackend.Preset{Name: "studio", Primary: true},
		fakebackend.Preset{Name: "commercial"},
	)

	client := newClient(t, srv)
	presets, err := client.ListAnatomyPresets(context.Background())
	require.NoError(t, err)
	require.Len(t, presets, 2)
	assert.Equal(t, "studio", presets[0].Name)
	assert.True(t, presets[0].Primary)
	assert.False(t, presets[1].Primary)
}
