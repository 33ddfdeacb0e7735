// Package capture validates watch URLs and drives a headless browser to scrape
// video metadata and screenshot the player.
//
// The browser is reached through the Session interface so the page logic in
// Adapter is testable without Chrome. ChromeLauncher opens real sessions via
// chromedp; LazySession defers the launch until the first browser call and
// lets the pipeline release it on every exit path.
package capture
