package uniform_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitroom/uniform-engine/uniform"
	"github.com/kitroom/uniform-engine/uniform/store"
)

func newIssueService(t *testing.T) (*uniform.IssueService, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	ledger := uniform.NewStockLedger(mem)
	ledger.Backoff = time.Millisecond

	svc := uniform.NewIssueService(mem, ledger)
	svc.Now = func() time.Time {
		return time.Date(2026, time.April, 2, 10, 0, 0, 0, time.UTC)
	}
	next := 0
	svc.NewID = func() string {
		next++
		return "log-" + strconv.Itoa(next)
	}
	return svc, mem
}

func shirtRef() uniform.UniformRef {
	return uniform.UniformRef{ID: "shirt", Name: "White Shirt", Type: "shirt"}
}

func TestLogReceived_DeductsStockAndAppendsEntry(t *testing.T) {
	svc, mem := newIssueService(t)
	ctx := context.Background()

	require.NoError(t, mem.AddStudent(ctx, juniorBoy("stu-1", "Asha")))
	require.NoError(t, mem.SaveBatch(ctx, shirtBatch("b1", time.Now(),
		uniform.SizeStock{Size: "M", Quantity: 3})))

	entry, err := svc.LogReceived(ctx, uniform.IssueInput{
		StudentID: "stu-1",
		Uniform:   shirtRef(),
		Quantity:  2,
		Size:      "M",
		Actor:     "staff-7",
	})
	require.NoError(t, err)

	assert.False(t, entry.IsSizeRequest())
	assert.Equal(t, 2, entry.QuantityReceived)
	assert.Equal(t, "M", entry.SizeReceived)
	assert.Equal(t, "staff-7", entry.LoggedBy)

	student, err := mem.Student(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, student.UniformLog, 1)
	assert.Equal(t, entry, student.UniformLog[0])

	batch, err := mem.Batch(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Items[0].Sizes[0].Quantity)
}

func TestLogReceived_InsufficientStock_LeavesLogUntouched(t *testing.T) {
	svc, mem := newIssueService(t)
	ctx := context.Background()

	require.NoError(t, mem.AddStudent(ctx, juniorBoy("stu-1", "Asha")))
	require.NoError(t, mem.SaveBatch(ctx, shirtBatch("b1", time.Now(),
		uniform.SizeStock{Size: "M", Quantity: 1})))

	_, err := svc.LogReceived(ctx, uniform.IssueInput{
		StudentID: "stu-1",
		Uniform:   shirtRef(),
		Quantity:  2,
		Size:      "M",
	})
	assert.ErrorIs(t, err, uniform.ErrInsufficientStock)

	student, err := mem.Student(ctx, "stu-1")
	require.NoError(t, err)
	assert.Empty(t, student.UniformLog)
}

func TestLogReceived_SizeUnavailable_SkipsStock(t *testing.T) {
	// GIVEN: no batches at all
	// WHEN: logging with sizeUnavailable=true
	// THEN: a size request is appended and no stock error surfaces

	svc, mem := newIssueService(t)
	ctx := context.Background()

	require.NoError(t, mem.AddStudent(ctx, juniorBoy("stu-1", "Asha")))

	entry, err := svc.LogReceived(ctx, uniform.IssueInput{
		StudentID:       "stu-1",
		Uniform:         shirtRef(),
		SizeUnavailable: true,
		SizeWanted:      "XL",
		Actor:           "staff-7",
	})
	require.NoError(t, err)

	assert.True(t, entry.IsSizeRequest())
	assert.Equal(t, "XL", entry.SizeWanted)
	assert.Equal(t, 0, entry.QuantityReceived)
	assert.Empty(t, entry.SizeReceived)

	student, err := mem.Student(ctx, "stu-1")
	require.NoError(t, err)
	require.Len(t, student.UniformLog, 1)
	assert.True(t, student.UniformLog[0].IsSizeRequest())
}

func TestLogReceived_TrimsSizeWanted(t *testing.T) {
	svc, mem := newIssueService(t)
	ctx := context.Background()

	require.NoError(t, mem.AddStudent(ctx, juniorBoy("stu-1", "Asha")))

	entry, err := svc.LogReceived(ctx, uniform.IssueInput{
		StudentID:       "stu-1",
		Uniform:         shirtRef(),
		SizeUnavailable: true,
		SizeWanted:      "  XL  ",
	})
	require.NoError(t, err)
	assert.Equal(t, "XL", entry.SizeWanted)
}

func TestLogReceived_Validation(t *testing.T) {
	svc, mem := newIssueService(t)
	ctx := context.Background()
	require.NoError(t, mem.AddStudent(ctx, juniorBoy("stu-1", "Asha")))

	cases := []struct {
		name  string
		input uniform.IssueInput
	}{
		{"missing student", uniform.IssueInput{Uniform: shirtRef(), Quantity: 1, Size: "M"}},
		{"missing uniform", uniform.IssueInput{StudentID: "stu-1", Quantity: 1, Size: "M"}},
		{"missing size", uniform.IssueInput{StudentID: "stu-1", Uniform: shirtRef(), Quantity: 1}},
		{"zero quantity", uniform.IssueInput{StudentID: "stu-1", Uniform: shirtRef(), Size: "M"}},
		{"size request without wanted size", uniform.IssueInput{StudentID: "stu-1", Uniform: shirtRef(), SizeUnavailable: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.LogReceived(ctx, tc.input)
			assert.ErrorIs(t, err, uniform.ErrValidation)
			assert.True(t, uniform.IsClientError(err))
		})
	}
}

func TestLogReceived_UnknownStudent(t *testing.T) {
	svc, _ := newIssueService(t)

	_, err := svc.LogReceived(context.Background(), uniform.IssueInput{
		StudentID: "ghost",
		Uniform:   shirtRef(),
		Quantity:  1,
		Size:      "M",
	})
	assert.ErrorIs(t, err, uniform.ErrStudentNotFound)
	assert.True(t, uniform.IsNotFound(err))
}
