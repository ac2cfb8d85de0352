package uploadlimit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	jxtjson "github.com/DiDuV5/cosv5-core/sdk/pkg/json"
)

// Report is a read-only projection of one user's standing against their
// tier limits, for diagnostics and admin tooling.
type Report struct {
	GeneratedAt    time.Time       `json:"generatedAt"`
	UserID         string          `json:"userId"`
	Tier           Tier            `json:"tier"`
	VIP            bool            `json:"vip"`
	Quota          TierQuota       `json:"quota"`
	Usage          UserUsage       `json:"usage"`
	ActiveSessions []UploadSession `json:"activeSessions"`
	QueueDepth     int             `json:"queueDepth"`
}

// buildLimitReport assembles the report from the provider and registry.
func buildLimitReport(tiers *TierConfigProvider, registry *SessionRegistry, userID string, tier Tier, now time.Time) Report {
	usage, ok := registry.GetUserUsage(userID)
	if !ok {
		usage = UserUsage{}.rotated(now)
	}

	sessions := registry.GetUserActiveSessions(userID)
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartTime.Before(sessions[j].StartTime)
	})

	return Report{
		GeneratedAt:    now,
		UserID:         userID,
		Tier:           tier,
		VIP:            tiers.IsVIPEligible(tier),
		Quota:          tiers.GetEffectiveQuota(tier),
		Usage:          usage,
		ActiveSessions: sessions,
		QueueDepth:     registry.QueueDepth(),
	}
}

// String renders the report as a human-readable block.
func (r Report) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Upload limit report for user %s (tier=%s vip=%v)\n", r.UserID, r.Tier, r.VIP)
	fmt.Fprintf(&b, "Generated: %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Concurrency: %d/%d active\n", len(r.ActiveSessions), r.Quota.MaxConcurrentUploads)
	fmt.Fprintf(&b, "Minute window: %d/%d files, %s/%s\n",
		r.Usage.Minute.Count, r.Quota.MaxFilesPerMinute,
		formatBytes(r.Usage.Minute.Bytes), formatBytes(r.Quota.MaxBytesPerMinute))
	fmt.Fprintf(&b, "Hour window: %d/%d files, %s/%s\n",
		r.Usage.Hour.Count, r.Quota.MaxFilesPerHour,
		formatBytes(r.Usage.Hour.Bytes), formatBytes(r.Quota.MaxBytesPerHour))
	fmt.Fprintf(&b, "Batching: %d files every %s\n", r.Quota.BatchSize, r.Quota.BatchInterval)
	fmt.Fprintf(&b, "Queue depth: %d\n", r.QueueDepth)
	if r.Quota.SkipExpensiveChecks {
		b.WriteString("Content checks: skipped for this tier\n")
	}

	for _, s := range r.ActiveSessions {
		fmt.Fprintf(&b, "  session %s: %s, %d/%d files (%d%%), batch %d/%d\n",
			s.SessionID, s.Status, s.UploadedFiles, s.FileCount, s.Percent, s.CurrentBatch, s.TotalBatches)
	}

	return b.String()
}

// ToJSON renders the report as indented JSON.
func (r Report) ToJSON() (string, error) {
	data, err := jxtjson.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("uploadlimit: failed to marshal report: %w", err)
	}
	return string(data), nil
}

func formatBytes(n int64) string {
	switch {
	case n >= gib:
		return fmt.Sprintf("%.1fGiB", float64(n)/float64(gib))
	case n >= mib:
		return fmt.Sprintf("%.1fMiB", float64(n)/float64(mib))
	case n >= kib:
		return fmt.Sprintf("%.1fKiB", float64(n)/float64(kib))
	default:
		return fmt.Sprintf("%dB", n)
	}
}
