// Package service implements the dead-letter operations: keyset listing,
// the stats dashboard, optimistic claim-replay-settle, acknowledgement,
// and retention purge
package service

import (
	"context"
	"encoding/json"
	"time"

	"taplist/internal/modkit/repokit"
	perr "taplist/internal/platform/errors"
	"taplist/internal/platform/logger"
	"taplist/internal/platform/metrics"
	"taplist/internal/platform/queue"
	ptime "taplist/internal/platform/time"

	"taplist/internal/services/analytics"
	dom "taplist/internal/services/dlq/domain"
	drepo "taplist/internal/services/dlq/repo"
)

// Listing bounds; callers above the cap are clamped, not rejected
const (
	defaultListLimit = 50
	maxListLimit     = 100
)

// Replayer re-enqueues dead-lettered payloads on their source topics
type Replayer interface {
	Send(ctx context.Context, topic string, body any, opts ...queue.SendOption) error
}

// Config tunes the service
type Config struct {
	// StatsTopN bounds the leaderboards in Stats (default 10)
	StatsTopN int
	// PurgeAge is how long settled rows are kept (default 30 days)
	PurgeAge time.Duration
	// PurgeBatch is rows per delete statement during a purge (default 1000)
	PurgeBatch int
	// Emitter streams replay and ingest events; nil drops them
	Emitter analytics.Emitter
}

// Svc implements domain.Port plus the worker and janitor entry points
type Svc struct {
	repo drepo.Repo
	send Replayer
	emit analytics.Emitter
	cfg  Config

	// injected for tests
	now func() time.Time
}

// New constructs the service
func New(db repokit.TxRunner, send Replayer, cfg Config) *Svc {
	if db == nil {
		panic("dlq: nil db")
	}
	if send == nil {
		panic("dlq: nil replayer")
	}
	if cfg.StatsTopN <= 0 {
		cfg.StatsTopN = 10
	}
	if cfg.PurgeAge <= 0 {
		cfg.PurgeAge = 30 * 24 * time.Hour
	}
	if cfg.PurgeBatch <= 0 {
		cfg.PurgeBatch = 1000
	}
	emit := cfg.Emitter
	if emit == nil {
		emit = analytics.Noop{}
	}
	return &Svc{repo: drepo.NewPG().Bind(db), send: send, emit: emit, cfg: cfg, now: time.Now}
}

// List pages dead-letter rows, newest failures first
func (s *Svc) List(ctx context.Context, p dom.ListParams) (dom.ListPage, error) {
	status := p.Status
	if status == "" {
		status = dom.StatusPending
	}
	if !status.OK() {
		return dom.ListPage{}, perr.InvalidArgf("dlq: unknown status %q", string(status))
	}
	limit := p.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := drepo.ListQuery{Status: status, BeerID: p.BeerID, Limit: limit + 1}
	if p.Cursor != "" {
		cur, err := dom.DecodeCursor(p.Cursor)
		if err != nil {
			return dom.ListPage{}, err
		}
		q.After = &cur
	}

	rows, err := s.repo.List(ctx, q)
	if err != nil {
		return dom.ListPage{}, err
	}

	var page dom.ListPage
	if len(rows) > limit {
		page.HasMore = true
		rows = rows[:limit]
	}
	if !p.IncludeRaw {
		for i := range rows {
			rows[i].RawMessage = ""
		}
	}
	page.Messages = rows
	if page.HasMore {
		last := rows[len(rows)-1]
		page.NextCursor = dom.Cursor{FailedAt: last.FailedAt, ID: last.ID}.Encode()
	}
	return page, nil
}

// Stats assembles the dead-letter dashboard
func (s *Svc) Stats(ctx context.Context) (dom.Stats, error) {
	nowMs := ptime.ToMs(s.now())

	by, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return dom.Stats{}, err
	}
	oldest, err := s.repo.OldestPendingFailedAt(ctx)
	if err != nil {
		return dom.Stats{}, err
	}
	top, err := s.repo.TopFailingBrewers(ctx, s.cfg.StatsTopN)
	if err != nil {
		return dom.Stats{}, err
	}
	roll, err := s.repo.Rollup(ctx, nowMs-24*time.Hour.Milliseconds())
	if err != nil {
		return dom.Stats{}, err
	}
	most, err := s.repo.MostReplayed(ctx, s.cfg.StatsTopN)
	if err != nil {
		return dom.Stats{}, err
	}

	stats := dom.Stats{ByStatus: by, TopBrewers: top, Last24h: roll, MostReplayed: most}
	if oldest != nil {
		age := nowMs - *oldest
		if age < 0 {
			age = 0
		}
		stats.OldestPendingAgeMs = &age
	}
	return stats, nil
}

// Replay claims up to MaxReplayIDs pending rows and re-enqueues each on its
// source topic. Claims are optimistic: rows a concurrent call already took,
// or that are not pending, simply do not count. Re-enqueue failures roll the
// row back to pending so nothing is lost
func (s *Svc) Replay(ctx context.Context, ids []int64, delay time.Duration) (dom.ReplayResult, error) {
	res := dom.ReplayResult{RequestedCount: len(ids)}
	if len(ids) == 0 {
		return res, perr.InvalidArgf("dlq: no ids to replay")
	}
	if len(ids) > dom.MaxReplayIDs {
		return res, perr.InvalidArgf("dlq: at most %d ids per replay", dom.MaxReplayIDs)
	}
	ids = dedupe(ids)

	claimed, err := s.repo.Claim(ctx, ids)
	if err != nil {
		return res, err
	}
	res.ClaimedCount = int(claimed)
	if claimed == 0 {
		return res, nil
	}

	rows, err := s.repo.FetchClaimed(ctx, ids)
	if err != nil {
		// the claim landed but the read back failed; release the rows so
		// they are not stranded in replaying
		if rerr := s.repo.Rollback(ctx, ids); rerr != nil {
			logger.C(ctx).Error().Err(rerr).Msg("dlq rollback after failed fetch")
		}
		return res, err
	}

	nowMs := ptime.ToMs(s.now())
	var okIDs, failIDs []int64
	for _, row := range rows {
		if err := s.resend(ctx, row, delay); err != nil {
			logger.C(ctx).Warn().Err(err).
				Int64("dlq_id", row.ID).
				Str("beer_id", row.BeerID).
				Msg("dlq replay enqueue failed")
			failIDs = append(failIDs, row.ID)
			metrics.DlqReplayed.WithLabelValues("failed").Inc()
			s.emit.Emit(ctx, analytics.Event{
				Event: analytics.EventDlqReplayed, BeerID: row.BeerID,
				Outcome: "failed", Source: string(row.SourceQueue), Ts: nowMs,
			})
			continue
		}
		okIDs = append(okIDs, row.ID)
		metrics.DlqReplayed.WithLabelValues("replayed").Inc()
		s.emit.Emit(ctx, analytics.Event{
			Event: analytics.EventDlqReplayed, BeerID: row.BeerID,
			Outcome: "replayed", Source: string(row.SourceQueue), Ts: nowMs,
		})
	}

	if len(okIDs) > 0 {
		if err := s.repo.MarkReplayed(ctx, okIDs, nowMs); err != nil {
			// messages are already enqueued; the janitor's release sweep
			// returns these rows to pending, which only risks a duplicate
			logger.C(ctx).Error().Err(err).Ints64("ids", okIDs).Msg("dlq mark replayed failed")
			return res, err
		}
		res.ReplayedCount = len(okIDs)
	}
	if len(failIDs) > 0 {
		res.FailedCount = len(failIDs)
		if err := s.repo.Rollback(ctx, failIDs); err != nil {
			logger.C(ctx).Error().Err(err).Ints64("ids", failIDs).Msg("dlq rollback failed")
		}
	}
	return res, nil
}

// resend validates the stored payload and re-enqueues it verbatim
func (s *Svc) resend(ctx context.Context, row dom.Message, delay time.Duration) error {
	if !row.SourceQueue.OK() {
		return perr.InvalidArgf("dlq: unknown source queue %q", string(row.SourceQueue))
	}
	if !json.Valid([]byte(row.RawMessage)) {
		return perr.InvalidArgf("dlq: stored payload is not valid json")
	}
	return s.send.Send(ctx, string(row.SourceQueue), json.RawMessage(row.RawMessage), queue.WithDelay(delay))
}

// Acknowledge closes up to MaxAcknowledgeIDs pending rows without replaying
func (s *Svc) Acknowledge(ctx context.Context, ids []int64) (dom.AckResult, error) {
	res := dom.AckResult{RequestedCount: len(ids)}
	if len(ids) == 0 {
		return res, perr.InvalidArgf("dlq: no ids to acknowledge")
	}
	if len(ids) > dom.MaxAcknowledgeIDs {
		return res, perr.InvalidArgf("dlq: at most %d ids per acknowledge", dom.MaxAcknowledgeIDs)
	}
	ids = dedupe(ids)

	n, err := s.repo.Acknowledge(ctx, ids, ptime.ToMs(s.now()))
	if err != nil {
		return res, err
	}
	res.AcknowledgedCount = int(n)
	return res, nil
}

// PurgeSettled deletes replayed and acknowledged rows past retention, one
// batch at a time until a batch comes back short
func (s *Svc) PurgeSettled(ctx context.Context) (int64, error) {
	cutoff := ptime.ToMs(s.now().Add(-s.cfg.PurgeAge))
	var total int64
	for _, st := range []dom.Status{dom.StatusReplayed, dom.StatusAcknowledged} {
		for {
			n, err := s.repo.PurgeBatch(ctx, st, cutoff, s.cfg.PurgeBatch)
			if err != nil {
				return total, err
			}
			total += n
			if n < int64(s.cfg.PurgeBatch) {
				break
			}
			if err := ctx.Err(); err != nil {
				return total, err
			}
		}
	}
	return total, nil
}

// ReleaseStuck returns crashed replays to pending. A live replay holds the
// replaying status for seconds while the janitor sweeps on hours, so the
// worst case is one duplicate delivery
func (s *Svc) ReleaseStuck(ctx context.Context) (int64, error) {
	return s.repo.ReleaseReplaying(ctx)
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
