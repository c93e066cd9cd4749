package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

// BrowserFetcher loads pages in headless Chromium for sites that render
// their results client-side. Pages are fetched one at a time.
type BrowserFetcher struct {
	userAgent string
	timeout   time.Duration

	mu          sync.Mutex
	pw          *playwright.Playwright
	browser     playwright.Browser
	context     playwright.BrowserContext
	initialized bool
}

func NewBrowserFetcher(userAgent string, timeout time.Duration) *BrowserFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BrowserFetcher{userAgent: userAgent, timeout: timeout}
}

func (f *BrowserFetcher) ensureBrowser() error {
	if f.initialized {
		return nil
	}

	var err error
	f.pw, err = playwright.Run()
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	f.browser, err = f.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		f.pw.Stop()
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	f.context, err = f.browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(f.userAgent),
		Locale:    playwright.String("pl-PL"),
	})
	if err != nil {
		f.browser.Close()
		f.pw.Stop()
		return fmt.Errorf("failed to create browser context: %w", err)
	}

	f.initialized = true
	slog.Info("browser fetcher started")
	return nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if err := f.ensureBrowser(); err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	page, err := f.context.NewPage()
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer page.Close()

	timeout := f.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	if resp != nil && (resp.Status() < 200 || resp.Status() > 299) {
		return nil, &NetworkError{URL: url, StatusCode: resp.Status()}
	}

	content, err := page.Content()
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	return []byte(content), nil
}

func (f *BrowserFetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.context != nil {
		f.context.Close()
	}
	if f.browser != nil {
		f.browser.Close()
	}
	if f.pw != nil {
		f.pw.Stop()
	}
	f.initialized = false
}
