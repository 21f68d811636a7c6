package schemas

import (
	"context"
	"time"
)

// -- Browser Interfaces --

// Page is the live page of one fill request. Element arguments are XPath
// addresses; every call re-resolves its address against the live document,
// so no element handle outlives a single operation.
//
//go:generate mockery --name Page --output ../../internal/mocks --outpkg mocks
type Page interface {
	Navigate(ctx context.Context, url string) error                          // Loads url and waits for the document to parse.
	WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error // Waits until no request is in flight for quiet.
	Snapshot(ctx context.Context) (string, error)                            // Serializes the current document as HTML.
	Resolve(ctx context.Context, address string) (bool, error)               // Reports whether address matches an element now.
	Focus(ctx context.Context, address string) error
	Clear(ctx context.Context, address string) error
	// TypeText sends text one character at a time with delay between keys.
	TypeText(ctx context.Context, address, text string, delay time.Duration) error
	SelectOption(ctx context.Context, address, value string) error // Selects the option matching value.
	Click(ctx context.Context, address string) error
	Screenshot(ctx context.Context) ([]byte, error)            // Captures a full-page PNG.
	FetchBytes(ctx context.Context, url string) ([]byte, error) // Fetches url from inside the page, with its cookies.
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

// BrowserManager owns the shared browser process and hands out isolated
// pages, one per request.
type BrowserManager interface {
	NewPage(ctx context.Context) (Page, error)
	Shutdown(ctx context.Context) error
}
