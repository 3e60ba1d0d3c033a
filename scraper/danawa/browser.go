package danawa

import (
	"context"
	"os/exec"

	"github.com/chromedp/chromedp"

	"led-scraper/utils"
)

// browserUserAgent mirrors the identity the HTTP transport presents.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// NewBrowserFetch returns a FetchFunc backed by a headless browser, for
// pages the source only renders client-side. The returned cleanup releases
// the browser; call it once the run is over.
func NewBrowserFetch(logger *utils.Logger) (FetchFunc, func()) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(browserUserAgent),
	)
	if bin := findChromeBinary(); bin != "" {
		logger.Info("[browser] using binary: %s", bin)
		opts = append(opts, chromedp.ExecPath(bin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	fetch := func(ctx context.Context, pageURL string) (string, error) {
		runCtx, cancel := context.WithCancel(browserCtx)
		defer cancel()

		if deadline, ok := ctx.Deadline(); ok {
			runCtx, cancel = context.WithDeadline(runCtx, deadline)
			defer cancel()
		}

		var html string
		err := chromedp.Run(runCtx,
			chromedp.Navigate(pageURL),
			chromedp.WaitReady("body"),
			chromedp.OuterHTML("html", &html),
		)
		if err != nil {
			return "", err
		}
		return html, nil
	}

	cleanup := func() {
		cancelBrowser()
		cancelAlloc()
	}
	return fetch, cleanup
}

func findChromeBinary() string {
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "chrome"} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	return ""
}
