package uploadlimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeBatchPlan(t *testing.T) {
	quota := TierQuota{BatchSize: 10, BatchInterval: time.Second}

	tests := []struct {
		name       string
		fileCount  int
		totalBytes int64
		wantSize   int
		wantBatch  int
		wantTotal  time.Duration
	}{
		{
			name:       "full batches",
			fileCount:  25,
			totalBytes: 25 * mib, // 1MiB avg: 100ms is under the 300ms floor
			wantSize:   10,
			wantBatch:  3,
			wantTotal:  3*time.Second + 25*300*time.Millisecond,
		},
		{
			name:       "fewer files than batch size",
			fileCount:  4,
			totalBytes: 0,
			wantSize:   4,
			wantBatch:  1,
			wantTotal:  time.Second + 4*300*time.Millisecond,
		},
		{
			name:       "large files scale per-file time",
			fileCount:  2,
			totalBytes: 20 * mib, // 10MiB avg → 1s per file
			wantSize:   2,
			wantBatch:  1,
			wantTotal:  time.Second + 2*time.Second,
		},
		{
			name:       "degenerate request clamps to one file",
			fileCount:  0,
			totalBytes: -5,
			wantSize:   1,
			wantBatch:  1,
			wantTotal:  time.Second + 300*time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := computeBatchPlan(tt.fileCount, tt.totalBytes, quota)
			assert.Equal(t, tt.wantSize, plan.RecommendedBatchSize)
			assert.Equal(t, tt.wantBatch, plan.TotalBatches)
			assert.Equal(t, tt.wantTotal, plan.EstimatedTotalTime)
		})
	}
}

func TestSessionStatusTerminal(t *testing.T) {
	assert.False(t, StatusActive.Terminal())
	assert.False(t, StatusPaused.Terminal())
	assert.True(t, StatusCompleted.Terminal())
	assert.True(t, StatusFailed.Terminal())
}
