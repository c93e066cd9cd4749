package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"rentwatch/models"
	"rentwatch/notify"
	"rentwatch/scraper"
)

// SeenStore holds the last link each user was notified about, per source.
// An empty string means the source was never polled for that user.
type SeenStore interface {
	LastSeen(ctx context.Context, userID int64, sourceID string) (string, error)
	Advance(ctx context.Context, userID int64, sourceID, link string) error
	Reset(ctx context.Context, userID int64) error
}

// CriteriaStore returns DefaultCriteria for users that never set a filter.
type CriteriaStore interface {
	GetCriteria(ctx context.Context, userID int64) (models.Criteria, error)
	PutCriteria(ctx context.Context, userID int64, c models.Criteria) error
}

// RunRecorder persists tick history. Optional.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.TickRun) error
	LogTick(ctx context.Context, entry models.TickLog) error
}

// PageArchiver keeps the raw body of pages that could not be parsed.
type PageArchiver interface {
	ArchivePage(ctx context.Context, sourceID string, body []byte) (string, error)
}

// Site pairs a source with the fetcher that loads its pages. URL is the
// site's homepage as shown to users.
type Site struct {
	Name    string
	URL     string
	Source  scraper.Source
	Fetcher scraper.Fetcher
}

type MonitorOptions struct {
	FirstPollCap int
	Concurrency  int
	Runs         RunRecorder
	Archive      PageArchiver
	Logger       *slog.Logger
}

// MonitorService runs ticks: fetch every source for a user, diff against the
// seen state, advance it and send one message per new listing.
type MonitorService struct {
	sites     []Site
	seen      SeenStore
	criteria  CriteriaStore
	transport notify.Transport

	firstPollCap int
	concurrency  int
	runs         RunRecorder
	archive      PageArchiver
	logger       *slog.Logger
}

func NewMonitorService(sites []Site, seen SeenStore, criteria CriteriaStore, transport notify.Transport, opts MonitorOptions) *MonitorService {
	if opts.FirstPollCap <= 0 {
		opts.FirstPollCap = DefaultFirstPollCap
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = len(sites)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &MonitorService{
		sites:        sites,
		seen:         seen,
		criteria:     criteria,
		transport:    transport,
		firstPollCap: opts.FirstPollCap,
		concurrency:  opts.Concurrency,
		runs:         opts.Runs,
		archive:      opts.Archive,
		logger:       opts.Logger,
	}
}

// SourceLinks lists the monitored sites in the order ticks visit them.
func (m *MonitorService) SourceLinks() []notify.SourceLink {
	links := make([]notify.SourceLink, len(m.sites))
	for i, s := range m.sites {
		links[i] = notify.SourceLink{Name: s.Name, URL: s.URL}
	}
	return links
}

// Reset forgets every marker of the user, so the next tick is a first poll.
func (m *MonitorService) Reset(ctx context.Context, userID int64) error {
	if err := m.seen.Reset(ctx, userID); err != nil {
		return fmt.Errorf("reset seen state: %w", err)
	}
	return nil
}

type fetchOutcome struct {
	url    string
	body   []byte
	result *scraper.ParseResult
	err    error
}

// RunTick performs one pass for userID. Failures of single sources are
// recorded in the returned run and never abort the others; the error is only
// non-nil when the tick could not start.
func (m *MonitorService) RunTick(ctx context.Context, userID int64) (*models.TickRun, error) {
	run := &models.TickRun{
		ID:        uuid.New(),
		UserID:    userID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	log := m.logger.With("user_id", userID, "run_id", run.ID.String()[:8])

	criteria, err := m.criteria.GetCriteria(ctx, userID)
	if err != nil {
		m.finish(ctx, run, models.RunStatusFailed)
		return run, fmt.Errorf("get criteria: %w", err)
	}

	outcomes := m.fetchAll(ctx, criteria)

	failed := 0
	for i, site := range m.sites {
		stats := m.processSource(ctx, log, userID, site, outcomes[i])
		if stats.Error != "" {
			failed++
		}
		run.Sources = append(run.Sources, stats)
	}

	status := models.RunStatusCompleted
	switch {
	case len(m.sites) > 0 && failed == len(m.sites):
		status = models.RunStatusFailed
	case failed > 0:
		status = models.RunStatusPartial
	}
	m.finish(ctx, run, status)

	log.Info("tick finished", "status", run.Status, "new", run.TotalNew(), "failed_sources", failed)
	return run, nil
}

// fetchAll loads and parses every source concurrently. Outcomes keep the
// order of m.sites.
func (m *MonitorService) fetchAll(ctx context.Context, criteria models.Criteria) []fetchOutcome {
	outcomes := make([]fetchOutcome, len(m.sites))

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i, site := range m.sites {
		g.Go(func() error {
			out := &outcomes[i]
			out.url = site.Source.BuildQuery(criteria)

			body, err := site.Fetcher.Fetch(ctx, out.url)
			if err != nil {
				out.err = err
				return nil
			}
			out.body = body
			out.result, out.err = site.Source.Parse(body)
			return nil
		})
	}
	g.Wait()

	return outcomes
}

func (m *MonitorService) processSource(ctx context.Context, log *slog.Logger, userID int64, site Site, out fetchOutcome) models.SourceStats {
	sourceID := site.Source.ID()
	stats := models.SourceStats{SourceID: sourceID}
	log = log.With("source", sourceID)

	if out.err != nil {
		stats.Error = out.err.Error()
		switch {
		case scraper.IsNetworkError(out.err):
			log.Warn("fetch failed", "url", out.url, "error", out.err)
		case scraper.IsPageParseError(out.err):
			log.Warn("page not recognized", "url", out.url, "error", out.err)
			m.archivePage(ctx, log, sourceID, out.body)
		default:
			log.Error("source failed", "url", out.url, "error", out.err)
		}
		m.logTick(ctx, userID, models.LogLevelWarn, sourceID, stats.Error)
		return stats
	}

	result := out.result
	stats.ListingsFound = len(result.Listings)
	stats.CardsSkipped = result.Skipped
	if result.Skipped > 0 {
		log.Debug("skipped unrecognized cards", "count", result.Skipped)
	}
	if result.NoResults {
		log.Debug("no listings match criteria")
	}

	lastSeen, err := m.seen.LastSeen(ctx, userID, sourceID)
	if err != nil {
		stats.Error = fmt.Sprintf("load seen state: %v", err)
		log.Error("load seen state failed", "error", err)
		return stats
	}

	diff := Diff(result.Listings, lastSeen, m.firstPollCap)
	stats.ListingsNew = len(diff.New)
	if !diff.Advanced {
		log.Debug("no new listings", "found", stats.ListingsFound)
		return stats
	}

	// A marker that cannot be stored would make the next tick report the
	// same listings again, so nothing is sent.
	if err := m.seen.Advance(ctx, userID, sourceID, diff.Marker); err != nil {
		stats.Error = fmt.Sprintf("advance seen state: %v", err)
		log.Error("advance seen state failed", "error", err)
		return stats
	}

	for _, l := range diff.New {
		if err := m.transport.Send(ctx, userID, notify.FormatListing(site.Name, l)); err != nil {
			stats.SendErrors++
			log.Warn("send failed", "link", l.Link, "error", err)
			continue
		}
		stats.Notified++
	}
	if stats.SendErrors > 0 {
		m.logTick(ctx, userID, models.LogLevelWarn, sourceID, fmt.Sprintf("%d of %d notifications failed", stats.SendErrors, len(diff.New)))
	}

	log.Info("new listings", "found", stats.ListingsFound, "new", stats.ListingsNew, "notified", stats.Notified)
	return stats
}

func (m *MonitorService) archivePage(ctx context.Context, log *slog.Logger, sourceID string, body []byte) {
	if m.archive == nil || len(body) == 0 {
		return
	}
	key, err := m.archive.ArchivePage(ctx, sourceID, body)
	if err != nil {
		log.Warn("archive page failed", "error", err)
		return
	}
	log.Info("archived unrecognized page", "key", key)
}

func (m *MonitorService) logTick(ctx context.Context, userID int64, level models.LogLevel, sourceID, message string) {
	if m.runs == nil {
		return
	}
	entry := models.TickLog{UserID: userID, Timestamp: time.Now(), Level: level, Message: message, SourceID: sourceID}
	if err := m.runs.LogTick(ctx, entry); err != nil {
		m.logger.Warn("write tick log failed", "error", err)
	}
}

func (m *MonitorService) finish(ctx context.Context, run *models.TickRun, status models.RunStatus) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	if m.runs == nil {
		return
	}
	if err := m.runs.SaveRun(ctx, run); err != nil {
		m.logger.Warn("save tick run failed", "user_id", run.UserID, "error", err)
	}
}
