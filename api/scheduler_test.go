package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitroom/uniform-engine/uniform"
	"github.com/kitroom/uniform-engine/uniform/store"
)

func TestScheduler_RefreshesActiveSchoolsOnStart(t *testing.T) {
	mem := store.NewMemory()
	seedSchool(t, mem)
	seedStudent(t, mem)

	inactive := uniform.School{ID: "sch-2", Name: "Closed School", Status: uniform.SchoolInactive}
	require.NoError(t, mem.SaveSchool(context.Background(), inactive))

	scheduler := NewRefreshScheduler(NewHandler(mem))
	scheduler.Interval = time.Hour
	scheduler.Start()
	scheduler.Stop()

	// The first refresh runs synchronously relative to Stop's wait.
	report, err := mem.SchoolReport(context.Background(), "sch-1")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 1, report.StudentsWithDeficit)

	skipped, err := mem.SchoolReport(context.Background(), "sch-2")
	require.NoError(t, err)
	assert.Nil(t, skipped, "inactive schools are skipped")
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	mem := store.NewMemory()
	seedSchool(t, mem)

	scheduler := NewRefreshScheduler(NewHandler(mem))
	scheduler.Enabled = false
	scheduler.Start()
	scheduler.Stop()

	report, err := mem.SchoolReport(context.Background(), "sch-1")
	require.NoError(t, err)
	assert.Nil(t, report)
}
