package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"DealScanner/internal/domain"
	"DealScanner/internal/message"
	"DealScanner/internal/ports"
	"DealScanner/internal/scoring"
)

// State names the phase a scan cycle is in.
type State string

const (
	StateNeedCredential State = "need_credential"
	StateFetching       State = "fetching"
	StateScoring        State = "scoring"
	StateNotifying      State = "notifying"
	StateSleeping       State = "sleeping"
)

// Thresholds gate which scored listings become alerts.
type Thresholds struct {
	MinScore          int
	MinDiscount       float64
	MinSellerPositive float64
	MinSellerFeedback float64
	TopN              int
}

// ScanOptions configures the scan loop.
type ScanOptions struct {
	Query             domain.SearchQuery
	Thresholds        Thresholds
	DryRun            bool
	MarkSeenOnFailure bool
	RefreshMargin     time.Duration
}

// ScanDeps wires all driven adapters into the scan loop.
type ScanDeps struct {
	Search    ports.SearchProvider
	Tokens    ports.TokenProvider
	Notifier  ports.Notifier
	Seen      ports.SeenStore
	Snapshots ports.SnapshotWriter
	Logger    *slog.Logger
	Now       func() time.Time
	NewID     func() string
}

// CycleReport summarizes one scan cycle.
type CycleReport struct {
	CycleID      string
	Refreshed    bool
	Fetched      int
	Median       float64
	Candidates   int
	Notified     int
	SnapshotPath string
}

// Scanner owns the credential, the seen-set and the configuration across cycles.
// It is not safe for concurrent use; one cycle runs at a time.
type Scanner struct {
	search    ports.SearchProvider
	tokens    ports.TokenProvider
	notifier  ports.Notifier
	seenStore ports.SeenStore
	snapshots ports.SnapshotWriter
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string

	opts       ScanOptions
	credential *domain.Credential
	seen       map[string]struct{}
}

// NewScanner constructs the orchestration component.
func NewScanner(deps ScanDeps, opts ScanOptions) *Scanner {
	s := &Scanner{
		search:    deps.Search,
		tokens:    deps.Tokens,
		notifier:  deps.Notifier,
		seenStore: deps.Seen,
		snapshots: deps.Snapshots,
		logger:    deps.Logger,
		now:       deps.Now,
		newID:     deps.NewID,
		opts:      opts,
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.opts.Thresholds.TopN <= 0 {
		s.opts.Thresholds.TopN = 10
	}
	return s
}

// Cycle runs one scan and logs any failure; nothing escapes it.
func (s *Scanner) Cycle(ctx context.Context) {
	report, err := s.RunCycle(ctx)
	log := s.logger.With("cycle", report.CycleID)
	if err != nil {
		log.Error("scan cycle failed", "error", err)
	}
	log.Debug("state", "state", StateSleeping)
}

// RunCycle performs credential refresh, fetch, scoring, notification and persistence.
func (s *Scanner) RunCycle(ctx context.Context) (CycleReport, error) {
	report := CycleReport{CycleID: s.newID()}
	log := s.logger.With("cycle", report.CycleID)

	if err := s.ensureSeen(ctx); err != nil {
		return report, err
	}

	log.Debug("state", "state", StateNeedCredential)
	refreshed, err := s.ensureCredential(ctx)
	if err != nil {
		return report, fmt.Errorf("refresh credential: %w", err)
	}
	report.Refreshed = refreshed
	if refreshed {
		log.Info("credential refreshed", "expires_at", s.credential.ExpiresAt.Format(time.RFC3339))
	}

	log.Debug("state", "state", StateFetching)
	listings, err := s.search.Search(ctx, s.credential.Token, s.opts.Query)
	if err != nil {
		return report, fmt.Errorf("search: %w", err)
	}
	report.Fetched = len(listings)
	if len(listings) == 0 {
		log.Info("scan returned 0 items")
		return report, nil
	}

	log.Debug("state", "state", StateScoring)
	report.Median = scoring.MedianPrice(listings)
	scored, candidates := s.scoreAll(listings, report.Median)
	report.Candidates = len(candidates)

	if s.snapshots != nil {
		snapshot := domain.Snapshot{CycleID: report.CycleID, TakenAt: s.now(), Median: report.Median, Items: scored}
		if path, err := s.snapshots.WriteSnapshot(ctx, snapshot); err != nil {
			log.Error("snapshot write failed", "error", err)
		} else {
			report.SnapshotPath = path
		}
	}

	log.Debug("state", "state", StateNotifying)
	alerts := rank(candidates, s.opts.Thresholds.TopN)
	added := s.notify(ctx, log, alerts)
	report.Notified = added

	log.Info("scan finished",
		"items", report.Fetched,
		"median", report.Median,
		"candidates", report.Candidates,
		"notified", report.Notified,
		"snapshot", report.SnapshotPath,
	)

	if added == 0 {
		return report, nil
	}
	if err := s.seenStore.Save(ctx, s.seen); err != nil {
		return report, fmt.Errorf("save seen set: %w", err)
	}
	return report, nil
}

// LoadSeen reads the persisted seen-set at process start. If it fails, the
// first cycle retries the load before fetching.
func (s *Scanner) LoadSeen(ctx context.Context) error {
	return s.ensureSeen(ctx)
}

// Seen reports whether the listing id was already notified.
func (s *Scanner) Seen(id string) bool {
	_, ok := s.seen[id]
	return ok
}

func (s *Scanner) ensureSeen(ctx context.Context) error {
	if s.seen != nil {
		return nil
	}
	seen, err := s.seenStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("load seen set: %w", err)
	}
	if seen == nil {
		seen = map[string]struct{}{}
	}
	s.seen = seen
	s.logger.Info("seen set loaded", "ids", len(seen))
	return nil
}

func (s *Scanner) ensureCredential(ctx context.Context) (bool, error) {
	if !s.credential.NeedsRefresh(s.now(), s.opts.RefreshMargin) {
		return false, nil
	}
	if s.tokens == nil {
		return false, errors.New("no token provider configured")
	}
	token, life, err := s.tokens.Token(ctx)
	if err != nil {
		return false, err
	}
	s.credential = &domain.Credential{Token: token, ExpiresAt: s.now().Add(life)}
	return true, nil
}

// scoreAll scores every listing for the snapshot and collects alert candidates in fetch order.
func (s *Scanner) scoreAll(listings []domain.Listing, median float64) ([]domain.ScoredListing, []domain.ScoredListing) {
	th := s.opts.Thresholds
	scored := make([]domain.ScoredListing, 0, len(listings))
	var candidates []domain.ScoredListing
	batch := make(map[string]struct{}, len(listings))

	for _, l := range listings {
		_, breakdown := scoring.Score(l, median)
		item := domain.ScoredListing{Listing: l, Breakdown: breakdown}
		scored = append(scored, item)

		if l.ID == "" || s.Seen(l.ID) {
			continue
		}
		if _, dup := batch[l.ID]; dup {
			continue
		}
		if breakdown.DiscountPercent < th.MinDiscount ||
			breakdown.SellerPositive < th.MinSellerPositive ||
			breakdown.SellerFeedback < th.MinSellerFeedback {
			continue
		}
		if breakdown.Total < th.MinScore {
			continue
		}
		batch[l.ID] = struct{}{}
		candidates = append(candidates, item)
	}
	return scored, candidates
}

// rank orders candidates by score, keeping fetch order for ties, and keeps the top n.
func rank(candidates []domain.ScoredListing, n int) []domain.ScoredListing {
	ranked := append([]domain.ScoredListing(nil), candidates...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score() > ranked[j].Score()
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// notify delivers (or logs, in dry-run) the alerts and returns how many ids were marked seen.
func (s *Scanner) notify(ctx context.Context, log *slog.Logger, alerts []domain.ScoredListing) int {
	if len(alerts) == 0 {
		return 0
	}
	text := message.FormatAlerts(alerts)

	delivered := true
	switch {
	case s.opts.DryRun:
		log.Info("dry run, alert not sent", "alerts", len(alerts), "message", message.PlainText(text))
	case s.notifier == nil:
		log.Error("notification failed", "alerts", len(alerts), "error", "no notifier configured")
		delivered = false
	default:
		if err := s.notifier.Send(ctx, text); err != nil {
			log.Error("notification failed", "alerts", len(alerts), "error", err)
			delivered = false
		} else {
			log.Info("alerts sent", "alerts", len(alerts))
		}
	}

	if !delivered && !s.opts.MarkSeenOnFailure {
		return 0
	}
	for _, a := range alerts {
		s.seen[a.Listing.ID] = struct{}{}
	}
	return len(alerts)
}
