package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/shiftline/notifier/gateway"
	"github.com/shiftline/notifier/models"
	"github.com/shiftline/notifier/utils"
	"gorm.io/gorm"
)

// permanentError menandai kegagalan yang tidak perlu di-retry (payload rusak).
type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Dispatcher converts due scheduled jobs into live notifications. It runs on
// a single-flight periodic tick: overlapping ticks return immediately, and
// every job is claimed with an atomic conditional status transition so two
// dispatcher instances can never double-process the same job.
type Dispatcher struct {
	DB          *gorm.DB
	Hub         *gateway.Hub
	Interval    time.Duration
	MaxAttempts int
	JobTimeout  time.Duration
	BackoffBase time.Duration
	BackoffCap  time.Duration
	StopChan    chan struct{}

	tickMu sync.Mutex
}

func NewDispatcher(db *gorm.DB, hub *gateway.Hub) *Dispatcher {
	d := &Dispatcher{
		DB:          db,
		Hub:         hub,
		Interval:    30 * time.Second,
		MaxAttempts: 5,
		JobTimeout:  10 * time.Second,
		BackoffBase: 30 * time.Second,
		BackoffCap:  time.Hour,
		StopChan:    make(chan struct{}),
	}

	if v := os.Getenv("DISPATCH_INTERVAL_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			d.Interval = time.Duration(secs) * time.Second
		}
	}
	if v := os.Getenv("DISPATCH_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			d.MaxAttempts = n
		}
	}

	return d
}

func (d *Dispatcher) Start() {
	go func() {
		ticker := time.NewTicker(d.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				d.Tick(time.Now())
			case <-d.StopChan:
				return
			}
		}
	}()
	utils.InfoLogger.Printf("Dispatcher started (interval %s)", d.Interval)
}

func (d *Dispatcher) Stop() {
	close(d.StopChan)
}

// Tick processes all jobs due at now, oldest run_at first. Jobs are
// independent: one failure never aborts the batch.
func (d *Dispatcher) Tick(now time.Time) {
	if !d.tickMu.TryLock() {
		// Previous tick still in flight.
		return
	}
	defer d.tickMu.Unlock()

	d.recoverStaleClaims(now)

	var jobs []models.ScheduledNotification
	if err := d.DB.Where("status = ? AND run_at <= ?", models.JobStatusPending, now).
		Order("run_at ASC").
		Limit(100).
		Find(&jobs).Error; err != nil {
		utils.ErrorLogger.Printf("Error scanning due jobs: %v", err)
		return
	}

	if len(jobs) > 0 {
		utils.InfoLogger.Printf("Found %d due scheduled notifications", len(jobs))
	}

	for _, job := range jobs {
		if !d.claim(job.ID) {
			// Another tick or a cancel got there first.
			continue
		}
		d.processJob(job)
	}
}

// recoverStaleClaims requeues jobs stranded in processing by a crash between
// the claim and the materialization transaction. A live claim settles within
// JobTimeout, so anything untouched for twice that no longer has an owner.
// Requeueing is safe: a half-committed attempt is caught by the idempotency
// check in dispatch.
func (d *Dispatcher) recoverStaleClaims(now time.Time) {
	cutoff := now.Add(-2 * d.JobTimeout)
	res := d.DB.Model(&models.ScheduledNotification{}).
		Where("status = ? AND updated_at < ?", models.JobStatusProcessing, cutoff).
		Update("status", models.JobStatusPending)
	if res.Error != nil {
		utils.ErrorLogger.Printf("Error recovering stale claims: %v", res.Error)
		return
	}
	if res.RowsAffected > 0 {
		utils.InfoLogger.Printf("Requeued %d stale processing jobs", res.RowsAffected)
	}
}

// claim atomically moves a job pending -> processing. A canceled job fails
// the WHERE guard and is skipped.
func (d *Dispatcher) claim(jobID uint) bool {
	res := d.DB.Model(&models.ScheduledNotification{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusPending).
		Update("status", models.JobStatusProcessing)
	if res.Error != nil {
		utils.ErrorLogger.Printf("Error claiming job %d: %v", jobID, res.Error)
		return false
	}
	return res.RowsAffected == 1
}

func (d *Dispatcher) processJob(job models.ScheduledNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), d.JobTimeout)
	defer cancel()

	notif, err := d.dispatch(ctx, job)
	if err != nil {
		d.markFailed(job, err)
		return
	}

	if notif != nil {
		utils.InfoLogger.Printf("Job %d materialized notification %d", job.ID, notif.ID)
		d.Hub.Publish(*notif)
	}
}

// dispatch validates the payload, resolves recipients and materializes the
// notification, its fan-out rows and the job's terminal status in a single
// transaction. A crash before commit leaves the job retry-safe; a crash
// after commit is covered by the idempotency check on the next attempt.
func (d *Dispatcher) dispatch(ctx context.Context, job models.ScheduledNotification) (*models.Notification, error) {
	payload, err := DecodePayload(job.Payload)
	if err != nil {
		return nil, permanentError{err: err}
	}

	db := d.DB.WithContext(ctx)

	// A previous attempt may have committed the notification but crashed
	// before advancing its own status. Skip creation, only advance the job.
	var existing models.Notification
	err = db.Where("scheduled_notification_id = ?", job.ID).First(&existing).Error
	if err == nil {
		if err := db.Model(&models.ScheduledNotification{}).
			Where("id = ?", job.ID).
			Update("status", models.JobStatusSent).Error; err != nil {
			return nil, err
		}
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	jobID := job.ID
	notif := models.Notification{
		Title:                   payload.Title,
		Message:                 payload.Message,
		Type:                    payload.Type,
		Priority:                payload.Priority,
		Metadata:                string(payload.Metadata),
		ActionURL:               payload.ActionURL,
		Icon:                    payload.Icon,
		ExpiresAt:               payload.ExpiresAt,
		Status:                  models.StatusUnread,
		ScheduledNotificationID: &jobID,
	}

	var recipients []uint
	if job.EmployeeID != nil {
		var emp models.Employee
		if err := db.First(&emp, *job.EmployeeID).Error; err != nil {
			return nil, fmt.Errorf("recipient %d not found: %w", *job.EmployeeID, err)
		}
		notif.EmployeeID = job.EmployeeID
	} else {
		notif.IsBroadcast = true
		notif.CenterID = job.CenterID
		notif.StoreID = job.StoreID
		recipients, err = ResolveBroadcastRecipients(db, job.CenterID, job.StoreID)
		if err != nil {
			return nil, fmt.Errorf("resolving recipients: %w", err)
		}
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notif).Error; err != nil {
			return err
		}
		for _, empID := range recipients {
			userNotif := models.UserNotification{
				NotificationID: notif.ID,
				EmployeeID:     empID,
				Status:         models.StatusUnread,
			}
			if err := tx.Create(&userNotif).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.ScheduledNotification{}).
			Where("id = ?", job.ID).
			Update("status", models.JobStatusSent).Error
	})
	if err != nil {
		return nil, err
	}

	return &notif, nil
}

// markFailed records the error on the job and either requeues it with
// exponential backoff or leaves it terminally failed for operator follow-up.
func (d *Dispatcher) markFailed(job models.ScheduledNotification, cause error) {
	attempts := job.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"last_error": cause.Error(),
	}

	var perm permanentError
	if errors.As(cause, &perm) || attempts >= d.MaxAttempts {
		updates["status"] = models.JobStatusFailed
		utils.ErrorLogger.Printf("Job %d failed terminally after %d attempts: %v", job.ID, attempts, cause)
	} else {
		updates["status"] = models.JobStatusPending
		updates["run_at"] = time.Now().Add(d.backoff(attempts))
		utils.ErrorLogger.Printf("Job %d failed (attempt %d/%d), requeued: %v", job.ID, attempts, d.MaxAttempts, cause)
	}

	if err := d.DB.Model(&models.ScheduledNotification{}).
		Where("id = ?", job.ID).
		Updates(updates).Error; err != nil {
		utils.ErrorLogger.Printf("Error recording failure for job %d: %v", job.ID, err)
	}
}

func (d *Dispatcher) backoff(attempts int) time.Duration {
	dur := d.BackoffBase << uint(attempts-1)
	if dur > d.BackoffCap {
		dur = d.BackoffCap
	}
	return dur
}

// ResolveBroadcastRecipients returns the employee ids in the broadcast
// scope. An unscoped broadcast resolves to every employee.
func ResolveBroadcastRecipients(db *gorm.DB, centerID, storeID *uint) ([]uint, error) {
	q := db.Model(&models.Employee{})
	if centerID != nil {
		q = q.Where("center_id = ?", *centerID)
	} else if storeID != nil {
		q = q.Where("store_id = ?", *storeID)
	}

	var ids []uint
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
