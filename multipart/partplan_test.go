package multipart

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPlanParts_SimpleDivision(t *testing.T) {
	plan, err := PlanParts(25*1024*1024, 10*1024*1024)
	require.NoError(t, err)
	require.Equal(t, int64(10*1024*1024), plan.PartSize)
	require.Equal(t, 3, plan.NumParts)
}

func TestPlanParts_RecomputesWhenOverThousandParts(t *testing.T) {
	total := int64(1001) * MinPartSize
	plan, err := PlanParts(total, MinPartSize)
	require.NoError(t, err)
	require.LessOrEqual(t, plan.NumParts, MaxParts)
	require.GreaterOrEqual(t, plan.PartSize, int64(MinPartSize))
}

func TestPlanParts_AbortsWhenRecomputedSizeBelowMinimum(t *testing.T) {
	const total = 500 * 1024 * 1024 // 500MiB, with a pathologically small target part size
	_, err := PlanParts(total, 1024)
	require.Error(t, err, "500MiB at ~999 parts recomputes to well under the 5MiB minimum")
}

func TestPlanParts_PartBoundsCoverWholeObjectContiguously(t *testing.T) {
	plan, err := PlanParts(25*1024*1024, 10*1024*1024)
	require.NoError(t, err)
	var prevEnd int64
	for i := 1; i <= plan.NumParts; i++ {
		start, end := plan.PartBounds(i, 25*1024*1024)
		require.Equal(t, prevEnd, start)
		prevEnd = end
	}
	require.Equal(t, int64(25*1024*1024), prevEnd)
}

func TestBuildCompleteManifest_SortsByPartNumber(t *testing.T) {
	body := BuildCompleteManifest([]CompletedPart{
		{PartNumber: 2, ETag: `"b"`},
		{PartNumber: 1, ETag: `"a"`},
	})
	s := string(body)
	require.True(t, indexOf(s, "<PartNumber>1</PartNumber>") < indexOf(s, "<PartNumber>2</PartNumber>"))
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
