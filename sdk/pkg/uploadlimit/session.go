package uploadlimit

import (
	"time"
)

// SessionStatus is the lifecycle state of an upload session:
// Active → {Paused ⇄ Active} → {Completed | Failed}. Terminal states are
// final. The idle reaper removes abandoned sessions without transitioning
// them through a terminal state.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusPaused    SessionStatus = "paused"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
)

func (s SessionStatus) String() string {
	return string(s)
}

// Terminal reports whether the status ends the session lifecycle.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UploadSession is a tracked in-progress multi-file upload. Instances are
// owned exclusively by the SessionRegistry; read accessors hand out copies.
type UploadSession struct {
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId"`
	Tier          Tier          `json:"tier"`
	StartTime     time.Time     `json:"startTime"`
	LastActivity  time.Time     `json:"lastActivity"`
	FileCount     int           `json:"fileCount"`
	TotalBytes    int64         `json:"totalBytes"`
	CurrentBatch  int           `json:"currentBatch"`
	TotalBatches  int           `json:"totalBatches"`
	BatchSize     int           `json:"batchSize"`
	PriorityLevel int           `json:"priorityLevel"`
	IsVIP         bool          `json:"isVip"`
	Status        SessionStatus `json:"status"`

	UploadedFiles int   `json:"uploadedFiles"`
	UploadedBytes int64 `json:"uploadedBytes"`
	Percent       int   `json:"percent"`
}

// BatchPlan is the recommended grouping of files into sequential
// sub-uploads.
type BatchPlan struct {
	RecommendedBatchSize int           `json:"recommendedBatchSize"`
	TotalBatches         int           `json:"totalBatches"`
	EstimatedTotalTime   time.Duration `json:"estimatedTotalTime"`
}

const (
	// baselinePerFileTime is the floor for the per-file transfer estimate.
	baselinePerFileTime = 300 * time.Millisecond
	// perMiBTime is the estimated transfer time per MiB of average file size.
	perMiBTime = 100 * time.Millisecond
)

// computeBatchPlan derives the recommended batching for a request. Inputs
// are clamped so degenerate requests cannot divide by zero.
func computeBatchPlan(fileCount int, totalBytes int64, quota TierQuota) BatchPlan {
	if fileCount < 1 {
		fileCount = 1
	}
	if totalBytes < 0 {
		totalBytes = 0
	}

	size := quota.BatchSize
	if size > fileCount {
		size = fileCount
	}
	if size < 1 {
		size = 1
	}
	batches := (fileCount + size - 1) / size

	avgFileBytes := totalBytes / int64(fileCount)
	perFile := time.Duration(avgFileBytes * int64(perMiBTime) / mib)
	if perFile < baselinePerFileTime {
		perFile = baselinePerFileTime
	}

	total := time.Duration(batches)*quota.BatchInterval + time.Duration(fileCount)*perFile

	return BatchPlan{
		RecommendedBatchSize: size,
		TotalBatches:         batches,
		EstimatedTotalTime:   total,
	}
}
