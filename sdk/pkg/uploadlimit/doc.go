/*
Package uploadlimit implements tiered admission control for multi-file
uploads.

# Components

  - TierConfigProvider: read-mostly table mapping a user tier to its quota
    template, with a VIP bonus rule applied exactly once on lookup.
  - SessionRegistry: owns all mutable runtime state (active upload
    sessions, per-user sliding minute/hour usage counters and a
    priority-ordered session queue) plus two background tasks: the
    idle-session reaper and the queue housekeeper.
  - AdmissionChecker: stateless decision function combining the effective
    quota with the registry's current state into an allow/deny Decision
    with a recommended batch plan and retry hints.
  - Manager: composition-root facade tying the three together with a
    New/Close lifecycle.

A denial is a plain Decision value, never an error; callers branch on
Decision.Allowed. All state is process-local and is not persisted across
restarts.

# Usage

	m := uploadlimit.NewManager()
	defer m.Close()

	d := m.Check(userID, uploadlimit.TierUser, fileCount, totalBytes)
	if !d.Allowed {
		// surface d.Reason / d.RetryAfterSeconds to the caller
		return
	}
	id := m.CreateSession(userID, uploadlimit.TierUser, fileCount, totalBytes)
	// ... transfer bytes, periodically:
	m.UpdateProgress(id, uploadedFiles, uploadedBytes)
	// on completion or failure:
	m.UpdateStatus(id, uploadlimit.StatusCompleted)
	m.EndSession(id)
*/
package uploadlimit
