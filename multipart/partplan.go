// Package multipart implements MultipartCoordinator (spec.md §4.8): part
// sizing, upload-id lifecycle, a bounded worker pool, per-part retry, and
// manifest construction for S3MultiPartComplete.
package multipart

import "github.com/pkg/errors"

// MinPartSize is the smallest a computed part may be (spec.md §4.8, the "5
// MiB minimum part").
const MinPartSize = 5 * 1024 * 1024

// MaxParts is the hard ceiling on part count (spec.md §4.8, "1000 parts").
const MaxParts = 1000

// PartPlan describes the fixed part size and count an upload of totalSize
// bytes will use.
type PartPlan struct {
	PartSize int64
	NumParts int
}

// PlanParts validates totalSize against targetPartSize, recomputing a larger
// part size if the naive plan would exceed MaxParts (spec.md §4.8 step 1:
// "if computed part count would exceed 1000, recompute part size as
// ceil(total/999). If the resulting part size drops below 5 MiB, abort to
// single-PUT").
func PlanParts(totalSize, targetPartSize int64) (PartPlan, error) {
	if targetPartSize <= 0 {
		targetPartSize = MinPartSize
	}

	numParts := ceilDivCount(totalSize, targetPartSize)
	if numParts > MaxParts {
		targetPartSize = ceilDivSize(totalSize, int64(MaxParts-1))
		numParts = ceilDivCount(totalSize, targetPartSize)
	}
	if targetPartSize < MinPartSize {
		return PartPlan{}, errors.New("multipart: computed part size is below the 5 MiB minimum; use single PUT")
	}

	if numParts == 0 {
		numParts = 1
	}
	return PartPlan{PartSize: targetPartSize, NumParts: numParts}, nil
}

func ceilDivCount(a, b int64) int {
	if a <= 0 {
		return 0
	}
	return int((a + b - 1) / b)
}

func ceilDivSize(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// PartBounds returns the [start, end) byte range (within the whole object)
// for 1-based partNumber under plan.
func (p PartPlan) PartBounds(partNumber int, totalSize int64) (start, end int64) {
	start = int64(partNumber-1) * p.PartSize
	end = start + p.PartSize
	if end > totalSize {
		end = totalSize
	}
	return start, end
}
