package moneyforward

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// The login page refuses to render for a default headless user agent.
const spoofedUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Session is one authenticated browser against MoneyForward. The page
// is the only shared mutable resource of a sync run: every mutating
// call waits for the page to settle before returning, because each
// mutation shifts the row positions later lookups depend on.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	settleWait  time.Duration
	log         zerolog.Logger
}

// SessionConfig controls browser startup and pacing.
type SessionConfig struct {
	Headful    bool          // show the browser window (debugging)
	SettleWait time.Duration // wait after each mutating action, default 3s
}

// NewSession launches Chrome and installs the dialog auto-accepter.
// MoneyForward confirms destructive actions with JS dialogs; they are
// accepted as they appear so actuations stay synchronous.
func NewSession(parent context.Context, cfg SessionConfig, log zerolog.Logger) (*Session, error) {
	if cfg.SettleWait == 0 {
		cfg.SettleWait = 3 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(spoofedUserAgent),
	)
	if cfg.Headful {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, cancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		settleWait:  cfg.SettleWait,
		log:         log.With().Str("component", "moneyforward").Logger(),
	}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventJavascriptDialogOpening); ok {
			go func() {
				if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil && !isBenignDialogError(err) {
					s.log.Warn().Err(err).Msg("dialog accept failed")
				}
			}()
		}
	})

	// Start the browser now so a broken Chrome install fails fast.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	return s, nil
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.cancel()
	s.allocCancel()
}

// Login navigates to the institution page and walks the two-step
// MoneyForward ID flow: email, submit, password, submit.
func (s *Session) Login(url, email, password string) error {
	err := chromedp.Run(s.ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`#mfid_user\[email\]`, chromedp.ByQuery),
		chromedp.SendKeys(`#mfid_user\[email\]`, email, chromedp.ByQuery),
		chromedp.Click(`#submitto`, chromedp.ByQuery),
		chromedp.WaitVisible(`#mfid_user\[password\]`, chromedp.ByQuery),
		chromedp.SendKeys(`#mfid_user\[password\]`, password, chromedp.ByQuery),
		chromedp.Click(`#submitto`, chromedp.ByQuery),
		chromedp.Sleep(s.settleWait),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil && !isBenignDialogError(err) {
		return fmt.Errorf("moneyforward login: %w", err)
	}
	s.log.Info().Msg("logged in")
	return nil
}

// HTML returns the current rendered document.
func (s *Session) HTML() (string, error) {
	var html string
	if err := chromedp.Run(s.ctx,
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("read page html: %w", err)
	}
	return html, nil
}

// settle waits out the page transition a mutating click triggers.
func (s *Session) settle() chromedp.Action {
	return chromedp.Tasks{
		chromedp.Sleep(s.settleWait),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
}

// isBenignDialogError matches the one actuation failure that is safe to
// swallow: racing the auto-accepter to a dialog that is already gone.
func isBenignDialogError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "already handled")
}
