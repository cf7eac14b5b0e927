package services

import (
	"testing"

	"fitness-progress-system/models"
	"fitness-progress-system/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// preemptNextProgressUpdate registers a one-shot hook that runs an out-of-band
// write against the progress row just before the next guarded UPDATE executes,
// reproducing a concurrent writer landing between load and write.
func preemptNextProgressUpdate(t *testing.T, db *gorm.DB, name, sql string, args ...interface{}) {
	t.Helper()
	fired := false
	require.NoError(t, db.Callback().Update().Before("gorm:update").Register(name, func(d *gorm.DB) {
		if fired {
			return
		}
		if _, ok := d.Statement.Model.(*models.UserProgress); !ok {
			return
		}
		fired = true
		d.Session(&gorm.Session{NewDB: true}).Exec(sql, args...)
	}))
	t.Cleanup(func() {
		require.NoError(t, db.Callback().Update().Remove(name))
	})
}

func TestCASUpdateRejectsStaleVersion(t *testing.T) {
	db, svc := newProgressService(t)
	fresh, err := svc.EnsureProgressRecord("cas-user")
	require.NoError(t, err)

	first := *fresh
	stale := *fresh

	first.TotalPoints = 10
	require.NoError(t, casUpdateProgress(db, &first))
	assert.Equal(t, int64(1), first.Version)

	// The stale copy still carries the old version and must lose.
	stale.TotalPoints = 99
	err = casUpdateProgress(db, &stale)
	require.Error(t, err)
	assert.True(t, IsConflictError(err))

	reloaded, err := svc.GetProgress("cas-user")
	require.NoError(t, err)
	assert.Equal(t, int64(10), reloaded.TotalPoints)
	assert.Equal(t, int64(1), reloaded.Version)
}

func TestWithConflictRetryRecoversFromTransientConflict(t *testing.T) {
	attempts := 0
	err := withConflictRetry(func() error {
		attempts++
		if attempts < 3 {
			return NewConflictError("row moved")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithConflictRetryExhaustionBecomesPersistenceError(t *testing.T) {
	attempts := 0
	err := withConflictRetry(func() error {
		attempts++
		return NewConflictError("row keeps moving")
	})
	require.Error(t, err)
	assert.True(t, IsPersistenceError(err))
	assert.Equal(t, maxConflictRetries+1, attempts)
}

func TestWithConflictRetryPassesThroughOtherErrors(t *testing.T) {
	attempts := 0
	err := withConflictRetry(func() error {
		attempts++
		return NewValidationError("bad input", nil)
	})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 1, attempts, "non-conflict errors must not be retried")
}

func TestCreditPointsRetriesPastConcurrentWriter(t *testing.T) {
	db, svc := newProgressService(t)
	_, err := svc.EnsureProgressRecord("race-credit")
	require.NoError(t, err)

	// First CAS attempt finds the version bumped underneath it, fails with a
	// conflict, and the retry reloads and succeeds.
	preemptNextProgressUpdate(t, db, "credit_race",
		"UPDATE user_progresses SET version = version + 1 WHERE external_user_id = ?",
		"race-credit")

	prog, err := svc.CreditPoints("race-credit", 10, models.ActivityWorkout, "after contention", nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), prog.TotalPoints)
	assert.Equal(t, int64(1), ledgerCount(t, db, "race-credit"), "exactly one ledger entry despite the retry")
}

func TestSweepLosesRaceToLiveWorkout(t *testing.T) {
	db, svc := newProgressService(t)
	_, err := svc.RecordActivity("race-sweep", models.ActivityWorkout, day(1), "morning run", nil)
	require.NoError(t, err)

	// Between the sweep's candidate read and its guarded write, the user logs
	// a workout: streak extends, version moves. The sweep's UPDATE re-checks
	// version and last_qualifying_date, affects zero rows, and walks away.
	liveDay := utils.DayUTC(day(2))
	preemptNextProgressUpdate(t, db, "sweep_race",
		"UPDATE user_progresses SET version = version + 1, current_streak = current_streak + 1, last_qualifying_date = ? WHERE external_user_id = ?",
		liveDay, "race-sweep")

	broken, err := svc.RunDailySweep(day(3))
	require.NoError(t, err)
	assert.Equal(t, 0, broken)

	prog, err := svc.GetProgress("race-sweep")
	require.NoError(t, err)
	assert.Equal(t, 2, prog.CurrentStreak, "the live workout's streak survives the sweep")
	assert.Empty(t, eventsOfKind(t, db, "race-sweep", models.EventStreakBroken),
		"no broken-streak event for a streak that is in fact alive")
}
