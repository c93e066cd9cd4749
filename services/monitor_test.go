package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"rentwatch/models"
	"rentwatch/scraper"
	"rentwatch/storage"
)

type fixtureFetcher struct {
	body []byte
	err  error

	mu   sync.Mutex
	urls []string
}

func (f *fixtureFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	return f.body, f.err
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "scraper", "testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

type sentMessage struct {
	userID int64
	text   string
}

type recordingTransport struct {
	mu     sync.Mutex
	sent   []sentMessage
	failOn func(text string) bool
}

func (r *recordingTransport) Send(ctx context.Context, userID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn != nil && r.failOn(text) {
		return errors.New("transport unavailable")
	}
	r.sent = append(r.sent, sentMessage{userID, text})
	return nil
}

func (r *recordingTransport) countContaining(s string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.sent {
		if strings.Contains(m.text, s) {
			n++
		}
	}
	return n
}

type pageSource struct {
	id    string
	links []string
	err   error
}

func (s *pageSource) ID() string { return s.id }

func (s *pageSource) BuildQuery(c models.Criteria) string {
	return "https://example.pl/" + s.id + "?max=" + string(rune('0'+c.MaxPrice%10))
}

func (s *pageSource) Parse(body []byte) (*scraper.ParseResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	res := &scraper.ParseResult{}
	for _, l := range s.links {
		res.Listings = append(res.Listings, models.Listing{SourceID: s.id, Link: l, Title: l})
	}
	return res, nil
}

type memoryRuns struct {
	runs []*models.TickRun
	logs []models.TickLog
}

func (m *memoryRuns) SaveRun(ctx context.Context, run *models.TickRun) error {
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryRuns) LogTick(ctx context.Context, entry models.TickLog) error {
	m.logs = append(m.logs, entry)
	return nil
}

type memoryArchive struct {
	pages map[string][]byte
}

func (a *memoryArchive) ArchivePage(ctx context.Context, sourceID string, body []byte) (string, error) {
	key := "pages/" + sourceID
	a.pages[key] = body
	return key, nil
}

func TestRunTick_PartialFailureStillDelivers(t *testing.T) {
	store := storage.NewMemoryStore()
	transport := &recordingTransport{}
	runs := &memoryRuns{}

	sites := []Site{
		{Name: "Otodom", Source: scraper.NewOtodomSource("", ""), Fetcher: &fixtureFetcher{body: readFixture(t, "otodom_results.html")}},
		{Name: "OLX", Source: scraper.NewOLXSource("", ""), Fetcher: &fixtureFetcher{err: &scraper.NetworkError{URL: "https://www.olx.pl", StatusCode: 503}}},
		{Name: "Nieruchomości Online", Source: scraper.NewNieruchomosciSource("", ""), Fetcher: &fixtureFetcher{body: readFixture(t, "nieruchomosci_results.html")}},
	}
	m := NewMonitorService(sites, store, store, transport, MonitorOptions{Runs: runs})

	run, err := m.RunTick(context.Background(), 1)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if run.Status != models.RunStatusPartial {
		t.Fatalf("expected partial run, got %s", run.Status)
	}
	if transport.countContaining("New offer found on Otodom!") != 3 {
		t.Fatalf("expected 3 otodom messages, got %d", transport.countContaining("Otodom!"))
	}
	if transport.countContaining("New offer found on Nieruchomości Online!") != 2 {
		t.Fatalf("expected 2 nieruchomosci messages")
	}
	if transport.countContaining("OLX") != 0 {
		t.Fatalf("failed source must not notify")
	}

	ctx := context.Background()
	if link, _ := store.LastSeen(ctx, 1, "olx"); link != "" {
		t.Fatalf("failed source must not advance, got %q", link)
	}
	if link, _ := store.LastSeen(ctx, 1, "otodom"); link != "https://www.otodom.pl/pl/oferta/mieszkanie-mokotow-ID4" {
		t.Fatalf("unexpected otodom marker %q", link)
	}
	if link, _ := store.LastSeen(ctx, 1, "nieruchomosci_online"); link == "" {
		t.Fatalf("nieruchomosci marker not advanced")
	}

	if len(run.Sources) != 3 || run.Sources[1].Error == "" || run.Sources[0].CardsSkipped != 1 {
		t.Fatalf("unexpected source stats %+v", run.Sources)
	}
	if len(runs.runs) != 1 || runs.runs[0].FinishedAt == nil {
		t.Fatalf("expected finished run to be recorded")
	}
	if len(runs.logs) != 1 || runs.logs[0].SourceID != "olx" {
		t.Fatalf("expected one tick log for olx, got %+v", runs.logs)
	}

	// Same pages again: nothing new anywhere.
	run, _ = m.RunTick(ctx, 1)
	if run.TotalNew() != 0 {
		t.Fatalf("second tick should find nothing new, got %d", run.TotalNew())
	}
}

func TestRunTick_SourcesAndUsersAreIsolated(t *testing.T) {
	store := storage.NewMemoryStore()
	transport := &recordingTransport{}
	a := &pageSource{id: "a", links: []string{"X", "Y"}}
	b := &pageSource{id: "b", links: []string{"Y", "X"}}
	sites := []Site{
		{Name: "A", Source: a, Fetcher: &fixtureFetcher{body: []byte("ok")}},
		{Name: "B", Source: b, Fetcher: &fixtureFetcher{body: []byte("ok")}},
	}
	m := NewMonitorService(sites, store, store, transport, MonitorOptions{})
	ctx := context.Background()

	if _, err := m.RunTick(ctx, 1); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if la, _ := store.LastSeen(ctx, 1, "a"); la != "X" {
		t.Fatalf("expected marker X for a, got %q", la)
	}
	if lb, _ := store.LastSeen(ctx, 1, "b"); lb != "Y" {
		t.Fatalf("expected marker Y for b, got %q", lb)
	}

	// New listing on a only.
	a.links = []string{"Z", "X", "Y"}
	run, _ := m.RunTick(ctx, 1)
	if run.Sources[0].ListingsNew != 1 || run.Sources[1].ListingsNew != 0 {
		t.Fatalf("expected only a to report one new listing, got %+v", run.Sources)
	}

	// Another user starts from scratch.
	run, _ = m.RunTick(ctx, 2)
	if run.Sources[0].ListingsNew != 3 || run.Sources[1].ListingsNew != 2 {
		t.Fatalf("user 2 should see a first poll, got %+v", run.Sources)
	}
}

func TestRunTick_TransportFailureContinues(t *testing.T) {
	store := storage.NewMemoryStore()
	transport := &recordingTransport{failOn: func(text string) bool { return strings.Contains(text, "Link: L1\n") }}
	sites := []Site{
		{Name: "A", Source: &pageSource{id: "a", links: []string{"L1", "L2", "L3"}}, Fetcher: &fixtureFetcher{body: []byte("ok")}},
		{Name: "B", Source: &pageSource{id: "b", links: []string{"M1"}}, Fetcher: &fixtureFetcher{body: []byte("ok")}},
	}
	m := NewMonitorService(sites, store, store, transport, MonitorOptions{})

	run, err := m.RunTick(context.Background(), 1)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if run.Sources[0].SendErrors != 1 || run.Sources[0].Notified != 2 {
		t.Fatalf("expected 1 failed and 2 sent, got %+v", run.Sources[0])
	}
	if run.Sources[1].Notified != 1 {
		t.Fatalf("later sources must still be notified, got %+v", run.Sources[1])
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("send errors do not fail the source, got %s", run.Status)
	}
	if link, _ := store.LastSeen(context.Background(), 1, "a"); link != "L1" {
		t.Fatalf("marker advances before sending, got %q", link)
	}
}

func TestRunTick_NotificationsKeepPageOrder(t *testing.T) {
	store := storage.NewMemoryStore()
	transport := &recordingTransport{}
	sites := []Site{{Name: "A", Source: &pageSource{id: "a", links: []string{"N1", "N2", "N3"}}, Fetcher: &fixtureFetcher{body: []byte("ok")}}}
	m := NewMonitorService(sites, store, store, transport, MonitorOptions{})

	m.RunTick(context.Background(), 1)
	for i, want := range []string{"N1", "N2", "N3"} {
		if !strings.Contains(transport.sent[i].text, "Link: "+want+"\n") {
			t.Fatalf("message %d should be for %s: %q", i, want, transport.sent[i].text)
		}
	}
}

func TestRunTick_UnrecognizedPageIsArchived(t *testing.T) {
	store := storage.NewMemoryStore()
	archive := &memoryArchive{pages: make(map[string][]byte)}
	body := readFixture(t, "unrecognized.html")
	sites := []Site{{Name: "OLX", Source: scraper.NewOLXSource("", ""), Fetcher: &fixtureFetcher{body: body}}}
	m := NewMonitorService(sites, store, store, &recordingTransport{}, MonitorOptions{Archive: archive})

	run, err := m.RunTick(context.Background(), 1)
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if run.Status != models.RunStatusFailed {
		t.Fatalf("only source failed, expected failed run, got %s", run.Status)
	}
	if string(archive.pages["pages/olx"]) != string(body) {
		t.Fatalf("expected page body archived")
	}
}

func TestRunTick_NoResultsIsNotAFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	sites := []Site{{Name: "OLX", Source: scraper.NewOLXSource("", ""), Fetcher: &fixtureFetcher{body: readFixture(t, "olx_no_results.html")}}}
	m := NewMonitorService(sites, store, store, &recordingTransport{}, MonitorOptions{})

	run, _ := m.RunTick(context.Background(), 1)
	if run.Status != models.RunStatusCompleted || run.TotalNew() != 0 {
		t.Fatalf("expected completed empty run, got %s with %d new", run.Status, run.TotalNew())
	}
}

func TestRunTick_UsesStoredCriteria(t *testing.T) {
	store := storage.NewMemoryStore()
	c := models.DefaultCriteria()
	c.MaxPrice = 2507
	store.PutCriteria(context.Background(), 1, c)

	fetcher := &fixtureFetcher{body: []byte("ok")}
	sites := []Site{{Name: "A", Source: &pageSource{id: "a"}, Fetcher: fetcher}}
	m := NewMonitorService(sites, store, store, &recordingTransport{}, MonitorOptions{})

	m.RunTick(context.Background(), 1)
	if len(fetcher.urls) != 1 || fetcher.urls[0] != "https://example.pl/a?max=7" {
		t.Fatalf("expected query built from stored criteria, got %v", fetcher.urls)
	}
}

type failingCriteria struct{}

func (failingCriteria) GetCriteria(ctx context.Context, userID int64) (models.Criteria, error) {
	return models.Criteria{}, errors.New("db down")
}

func (failingCriteria) PutCriteria(ctx context.Context, userID int64, c models.Criteria) error {
	return nil
}

func TestRunTick_CriteriaErrorFailsTick(t *testing.T) {
	store := storage.NewMemoryStore()
	sites := []Site{{Name: "A", Source: &pageSource{id: "a"}, Fetcher: &fixtureFetcher{}}}
	m := NewMonitorService(sites, store, failingCriteria{}, &recordingTransport{}, MonitorOptions{})

	run, err := m.RunTick(context.Background(), 1)
	if err == nil || run.Status != models.RunStatusFailed {
		t.Fatalf("expected failed tick, got %v / %s", err, run.Status)
	}
}

func TestMonitorService_Reset(t *testing.T) {
	store := storage.NewMemoryStore()
	transport := &recordingTransport{}
	links := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	sites := []Site{{Name: "A", Source: &pageSource{id: "a", links: links}, Fetcher: &fixtureFetcher{body: []byte("ok")}}}
	m := NewMonitorService(sites, store, store, transport, MonitorOptions{FirstPollCap: 5})
	ctx := context.Background()

	m.RunTick(ctx, 1)
	m.RunTick(ctx, 1)
	if len(transport.sent) != 5 {
		t.Fatalf("expected 5 messages before reset, got %d", len(transport.sent))
	}
	if err := m.Reset(ctx, 1); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	m.RunTick(ctx, 1)
	if len(transport.sent) != 10 {
		t.Fatalf("reset should re-apply the first-poll cap, got %d messages", len(transport.sent))
	}
}
