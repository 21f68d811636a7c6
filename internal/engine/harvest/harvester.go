// Package harvest locates and downloads the document a portal produces after
// a successful submission.
package harvest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/xkilldash9x/autoform/api/schemas"
	"github.com/xkilldash9x/autoform/internal/browser/dom"
	"github.com/xkilldash9x/autoform/internal/config"
)

// Harvester finds a document link on the page and fetches it with the
// page's own cookies.
type Harvester struct {
	cfg     config.HarvestConfig
	quiet   time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a Harvester. The network config supplies the idle wait used
// after an exploratory click.
func New(cfg config.HarvestConfig, netCfg config.NetworkConfig, logger *zap.Logger) *Harvester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Extension == "" {
		cfg.Extension = ".pdf"
	}
	cfg.Extension = strings.ToLower(cfg.Extension)
	return &Harvester{
		cfg:     cfg,
		quiet:   netCfg.QuietPeriod,
		timeout: netCfg.HarvestSettleTimeout,
		logger:  logger.Named("harvest"),
	}
}

// Harvest returns the document artifact, or nil when the page offers none.
// Failures are carried in Artifact.Error; Harvest never aborts the flow.
func (h *Harvester) Harvest(ctx context.Context, page schemas.Page) *schemas.Artifact {
	doc, base, err := h.snapshot(ctx, page)
	if err != nil {
		return &schemas.Artifact{Kind: schemas.ArtifactDocument, Error: err.Error()}
	}
	if href, ok := h.documentLink(doc, base); ok {
		return h.fetch(ctx, page, href)
	}

	addr, ok := h.downloadTrigger(doc)
	if !ok {
		return nil
	}
	h.logger.Debug("No direct document link, following download trigger.", zap.String("address", addr.String()))
	if err := page.Click(ctx, addr.String()); err != nil {
		return &schemas.Artifact{Kind: schemas.ArtifactDocument, Error: fmt.Sprintf("download trigger click failed: %v", err)}
	}
	if err := page.WaitNetworkIdle(ctx, h.quiet, h.timeout); err != nil {
		h.logger.Debug("Network did not settle after download trigger.", zap.Error(err))
	}

	doc, base, err = h.snapshot(ctx, page)
	if err != nil {
		return &schemas.Artifact{Kind: schemas.ArtifactDocument, Error: err.Error()}
	}
	if href, ok := h.documentLink(doc, base); ok {
		return h.fetch(ctx, page, href)
	}
	return nil
}

func (h *Harvester) snapshot(ctx context.Context, page schemas.Page) (*html.Node, *url.URL, error) {
	source, err := page.Snapshot(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to snapshot page for harvest: %w", err)
	}
	doc, err := dom.ParseSnapshot(source)
	if err != nil {
		return nil, nil, err
	}
	var base *url.URL
	if current, err := page.URL(ctx); err == nil {
		base, _ = url.Parse(current)
	}
	return doc, base, nil
}

func (h *Harvester) fetch(ctx context.Context, page schemas.Page, href string) *schemas.Artifact {
	artifact := &schemas.Artifact{Kind: schemas.ArtifactDocument, Reference: href}
	data, err := page.FetchBytes(ctx, href)
	if err != nil {
		artifact.Error = err.Error()
		h.logger.Warn("Document fetch failed.", zap.String("href", href), zap.Error(err))
		return artifact
	}
	artifact.Payload = data
	h.logger.Info("Document harvested.", zap.String("href", href), zap.Int("bytes", len(data)))
	return artifact
}

// documentLink returns the absolute URL of the first anchor whose path ends
// in the document extension.
func (h *Harvester) documentLink(doc *html.Node, base *url.URL) (href string, ok bool) {
	goquery.NewDocumentFromNode(doc).Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		ref, err := url.Parse(strings.TrimSpace(a.AttrOr("href", "")))
		if err != nil {
			return true
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}
		if strings.HasSuffix(strings.ToLower(ref.Path), h.cfg.Extension) {
			href, ok = ref.String(), true
			return false
		}
		return true
	})
	return href, ok
}

// downloadTrigger returns the first anchor whose text mentions a download.
func (h *Harvester) downloadTrigger(doc *html.Node) (addr dom.Address, ok bool) {
	goquery.NewDocumentFromNode(doc).Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.ToLower(dom.VisibleText(a.Get(0)))
		for _, term := range h.cfg.LinkTerms {
			if term != "" && strings.Contains(text, strings.ToLower(term)) {
				addr, ok = dom.AddressOf(a.Get(0)), true
				return false
			}
		}
		return true
	})
	return addr, ok
}
