package jobstatus_test

import (
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jinford/op-import/internal/core/jobstatus"
)

func TestMapStatus(t *testing.T) {
	tests := []struct {
		raw         string
		category    jobstatus.Category
		icon        string
		restartable bool
	}{
		{raw: "pending", category: jobstatus.CategoryPending, icon: "timer"},
		{raw: "in_progress", category: jobstatus.CategoryInProgress, icon: "spinner"},
		{raw: "restarted", category: jobstatus.CategoryInProgress, icon: "history"},
		{raw: "finished", category: jobstatus.CategorySucceeded, icon: "check", restartable: true},
		{raw: "failed", category: jobstatus.CategoryFailed, icon: "error", restartable: true},
		{raw: "aborted", category: jobstatus.CategoryAborted, icon: "times", restartable: true},
		{raw: " FINISHED ", category: jobstatus.CategorySucceeded, icon: "check", restartable: true},
		{raw: "", category: jobstatus.CategoryUnknown, icon: "help"},
		{raw: "exploded", category: jobstatus.CategoryUnknown, icon: "help"},
		{raw: "in progress", category: jobstatus.CategoryUnknown, icon: "help"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m := jobstatus.MapStatus(tt.raw)
			assert.Equal(t, tt.category, m.Category)
			assert.Equal(t, tt.icon, m.Icon)
			assert.Equal(t, tt.restartable, m.Restartable)
		})
	}
}

func TestMapStatus_Total(t *testing.T) {
	inputs := []string{"\x00", "日本語", "FAILED!!", "null", "pending ", "\t"}
	for _, raw := range inputs {
		assert.NotPanics(t, func() {
			m := jobstatus.MapStatus(raw)
			assert.NotEmpty(t, m.Category)
			assert.NotEmpty(t, m.Icon)
		})
	}
}

func TestIsRestartable(t *testing.T) {
	statuses := []string{"pending", "in_progress", "restarted", "finished", "failed", "aborted", "", "weird"}

	for _, status := range statuses {
		t.Run(status, func(t *testing.T) {
			// processId がなければ常に再実行不可
			assert.False(t, jobstatus.IsRestartable(jobstatus.JobRecord{Status: status}))
			assert.False(t, jobstatus.IsRestartable(jobstatus.JobRecord{Status: status, ProcessID: mo.Some("")}))
			assert.False(t, jobstatus.IsRestartable(jobstatus.JobRecord{Status: status, ProcessID: mo.Some("  ")}))

			withProcess := jobstatus.JobRecord{Status: status, ProcessID: mo.Some("p1")}
			assert.Equal(t, jobstatus.MapStatus(status).Restartable, jobstatus.IsRestartable(withProcess))
		})
	}
}

func TestReconcile(t *testing.T) {
	now := time.Now()
	records := []jobstatus.JobRecord{
		{ID: "2", Status: "failed", Project: "b", ProcessID: mo.Some("p2"), CreatedAt: now, UpdatedAt: now},
		{ID: "1", Status: "in_progress", Project: "a", CreatedAt: now, UpdatedAt: now},
		{ID: "3", Status: "bogus"},
	}

	jobs := jobstatus.Reconcile(records)
	require.Len(t, jobs, 3)

	assert.Equal(t, "2", jobs[0].ID)
	assert.Equal(t, jobstatus.CategoryFailed, jobs[0].Category)
	assert.True(t, jobs[0].Restartable)
	assert.Equal(t, "b", jobs[0].Project)

	assert.Equal(t, "1", jobs[1].ID)
	assert.Equal(t, jobstatus.CategoryInProgress, jobs[1].Category)
	assert.False(t, jobs[1].Restartable)

	assert.Equal(t, jobstatus.CategoryUnknown, jobs[2].Category)

	assert.Empty(t, jobstatus.Reconcile(nil))
}

func findJob(snap jobstatus.Snapshot, id string) (jobstatus.Job, bool) {
	for _, j := range snap.Jobs {
		if j.ID == id {
			return j, true
		}
	}
	return jobstatus.Job{}, false
}

func TestSnapshot_Helpers(t *testing.T) {
	snap := jobstatus.Snapshot{Jobs: jobstatus.Reconcile([]jobstatus.JobRecord{
		{ID: "1", Status: "finished", ProcessID: mo.Some("p1")},
		{ID: "2", Status: "in_progress"},
	})}

	job, ok := findJob(snap, "2")
	require.True(t, ok)
	assert.Equal(t, jobstatus.CategoryInProgress, job.Category)

	_, ok = findJob(snap, "9")
	assert.False(t, ok)

	restartable := snap.Restartable()
	require.Len(t, restartable, 1)
	assert.Equal(t, "1", restartable[0].ID)

	clone := snap.Clone()
	clone.Jobs[0].Status = "mutated"
	assert.Equal(t, "finished", snap.Jobs[0].Status)
}
