package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback_Valid(t *testing.T) {
	body := `{
		"event": "job.finished",
		"job": {
			"id": "job-1",
			"tasks": [
				{"operation": "import/base64", "result": {"files": []}},
				{"operation": "export/url", "result": {"files": [{"filename": "out.pdf", "url": "https://x/out.pdf"}]}}
			]
		}
	}`

	cb, err := ParseCallback([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, "job-1", cb.Job.ID)

	task, ok := cb.Job.ExportTask()
	require.True(t, ok)
	require.Len(t, task.Result.Files, 1)
	assert.Equal(t, "out.pdf", task.Result.Files[0].Filename)
	require.NotNil(t, task.Result.Files[0].URL)
	assert.Equal(t, "https://x/out.pdf", *task.Result.Files[0].URL)
}

func TestParseCallback_FileWithoutURL(t *testing.T) {
	body := `{"event":"job.finished","job":{"id":"job-1","tasks":[{"operation":"export/url","result":{"files":[{"filename":"out.pdf"}]}}]}}`

	cb, err := ParseCallback([]byte(body))
	require.NoError(t, err)
	task, ok := cb.Job.ExportTask()
	require.True(t, ok)
	assert.Nil(t, task.Result.Files[0].URL)
}

func TestParseCallback_Rejects(t *testing.T) {
	for name, body := range map[string]string{
		"garbage":     `nope`,
		"wrong event": `{"event":"job.created","job":{"id":"job-1","tasks":[]}}`,
		"no job":      `{"event":"job.finished"}`,
		"no id":       `{"event":"job.finished","job":{"tasks":[]}}`,
		"no tasks":    `{"event":"job.finished","job":{"id":"job-1"}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCallback([]byte(body))
			assert.ErrorIs(t, err, ErrMalformedCallback)
		})
	}
}

func TestExportTask_Absent(t *testing.T) {
	job := CallbackJob{ID: "job-1", Tasks: []CallbackTask{{Operation: "convert"}}}
	_, ok := job.ExportTask()
	assert.False(t, ok)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "pending", StatusPending.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "completed", StatusCompleted.String())
}
