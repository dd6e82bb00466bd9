// Package scheduler implements the Refresh Loop (§4.I): a single
// cooperative task that periodically re-ingests the manga with the most
// active readers and notifies on new chapters, plus the lazy
// refresh-on-read path.
package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/arimura/mangawatch/internal/ingestion"
	"github.com/arimura/mangawatch/internal/models"
	"github.com/arimura/mangawatch/internal/notifications"
)

const defaultAutoUpdateMax = 10

type Config struct {
	UpdateInterval time.Duration
	AutoUpdateMax  int
}

type Refresher struct {
	db       *sql.DB
	pipeline *ingestion.Pipeline
	notifier notifications.Notifier
	cfg      Config
	logger   *slog.Logger
	stopCh   chan struct{}
}

func New(db *sql.DB, pipeline *ingestion.Pipeline, notifier notifications.Notifier, cfg Config, logger *slog.Logger) *Refresher {
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = time.Hour
	}
	if cfg.AutoUpdateMax <= 0 {
		cfg.AutoUpdateMax = defaultAutoUpdateMax
	}
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = notifications.NoopNotifier{}
	}
	return &Refresher{db: db, pipeline: pipeline, notifier: notifier, cfg: cfg, logger: logger, stopCh: make(chan struct{})}
}

// Start runs the loop until ctx is cancelled, ticking every cfg.UpdateInterval.
func (r *Refresher) Start(ctx context.Context) {
	r.logger.Info("refresh loop started", "interval", r.cfg.UpdateInterval.String())
	ticker := time.NewTicker(r.cfg.UpdateInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				r.logger.Info("refresh loop stopped")
				close(r.stopCh)
				return
			case <-ticker.C:
				r.RunOnce(ctx)
			}
		}
	}()
}

func (r *Refresher) StopWait(timeout time.Duration) {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	select {
	case <-r.stopCh:
	case <-time.After(timeout):
	}
}

// RunOnce runs a single refresh cycle: per-manga errors are logged, never
// propagated, so the loop never dies.
func (r *Refresher) RunOnce(ctx context.Context) {
	priority, err := r.collectPriorityManga(ctx)
	if err != nil {
		r.logger.Warn("collect priority manga failed", "error", err)
		return
	}

	for _, entry := range priority {
		if err := r.refreshOne(ctx, entry); err != nil {
			r.logger.Warn("refresh failed", "mangaId", entry.MangaID, "error", err)
		}
	}
}

// collectPriorityManga mirrors the original's collect_priority_manga: a
// LEFT JOIN against reading, filtered to manga last updated more than
// 2*interval ago with at least one reader, ordered by reader count
// descending, bounded by AutoUpdateMax.
func (r *Refresher) collectPriorityManga(ctx context.Context) ([]models.PriorityManga, error) {
	staleBefore := time.Now().UTC().Add(-2 * r.cfg.UpdateInterval)

	rows, err := r.db.QueryContext(ctx, `
		SELECT m.id, m.url, m.title, COUNT(rd.user_id) AS reader_count, m.updated_at
		FROM manga m
		LEFT JOIN reading rd ON rd.manga_id = m.id
		WHERE m.updated_at <= ?
		GROUP BY m.id
		HAVING COUNT(rd.user_id) > 0
		ORDER BY reader_count DESC
		LIMIT ?
	`, staleBefore, r.cfg.AutoUpdateMax)
	if err != nil {
		return nil, fmt.Errorf("query priority manga: %w", err)
	}
	defer rows.Close()

	var result []models.PriorityManga
	for rows.Next() {
		var entry models.PriorityManga
		if err := rows.Scan(&entry.MangaID, &entry.URL, &entry.Title, &entry.ReaderCount, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan priority manga: %w", err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (r *Refresher) refreshOne(ctx context.Context, entry models.PriorityManga) error {
	var before int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM chapter WHERE manga_id = ?`, entry.MangaID).Scan(&before); err != nil {
		return fmt.Errorf("count chapters before refresh: %w", err)
	}

	id := entry.MangaID
	summary, err := r.pipeline.SaveManga(ctx, &id, entry.URL)
	if err != nil {
		return err
	}

	if summary.ChapterCount == before {
		return nil
	}

	return r.notifyReaders(ctx, entry)
}

// notifyReaders collects the union of device tokens across every reader of
// entry and delivers one batched Notify call, matching the original's
// fan-in-then-fan-out-once notification shape rather than one push per
// reader.
func (r *Refresher) notifyReaders(ctx context.Context, entry models.PriorityManga) error {
	readers, err := r.readersOf(ctx, entry.MangaID)
	if err != nil {
		return err
	}

	var deviceTokens []string
	for _, reader := range readers {
		if reader.DeviceToken == "" {
			continue
		}
		deviceTokens = append(deviceTokens, reader.DeviceToken)
	}
	if len(deviceTokens) == 0 {
		return nil
	}

	message := notifications.MangaUpdated(entry.MangaID, entry.Title, deviceTokens)
	if err := r.notifier.Notify(ctx, message); err != nil {
		r.logger.Warn("notify readers failed", "mangaId", entry.MangaID, "deviceCount", len(deviceTokens), "error", err)
	}
	return nil
}

func (r *Refresher) readersOf(ctx context.Context, mangaID int64) ([]models.Reader, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT u.id, COALESCE(u.device_token, '')
		FROM reading rd
		JOIN user u ON u.id = rd.user_id
		WHERE rd.manga_id = ?
	`, mangaID)
	if err != nil {
		return nil, fmt.Errorf("query readers: %w", err)
	}
	defer rows.Close()

	var readers []models.Reader
	for rows.Next() {
		var reader models.Reader
		if err := rows.Scan(&reader.UserID, &reader.DeviceToken); err != nil {
			return nil, fmt.Errorf("scan reader: %w", err)
		}
		readers = append(readers, reader)
	}
	return readers, rows.Err()
}

// RefreshIfStale implements the lazy read-path trigger: if manga's
// updated_at is older than UpdateInterval, it refreshes inline before
// returning, matching the original's get(manga_id) staleness check.
func (r *Refresher) RefreshIfStale(ctx context.Context, mangaID int64, url string, updatedAt time.Time) error {
	if time.Since(updatedAt) < r.cfg.UpdateInterval {
		return nil
	}
	id := mangaID
	_, err := r.pipeline.SaveManga(ctx, &id, url)
	return err
}
