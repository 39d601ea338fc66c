package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hazard-alert-feed/internal/domain"
	"github.com/couchcryptid/hazard-alert-feed/internal/selector"
)

// Specification binds an endpoint to the selectors that project its items
// into draft alerts. It is built once per source and never mutated.
type Specification struct {
	SourceName  string
	EndpointURL string
	Format      selector.Format

	// Items locates the item nodes. selector.Root() over JSON means the
	// document itself is the array of items.
	Items selector.Selector

	Title         selector.Selector
	Link          selector.Selector
	UniqueID      selector.Selector
	PublishedDate selector.Selector
	Summary       selector.Selector

	// AdditionalAttributes are evaluated per item and stored by name on the
	// draft alert for the source's post-processing.
	AdditionalAttributes map[string]selector.Selector

	DefaultAlertType  domain.AlertType
	UseLinkForSummary bool
}

// Validate reports configuration mistakes that would make every item fail.
func (s Specification) Validate() error {
	var errs []error
	if s.SourceName == "" {
		errs = append(errs, errors.New("source name is required"))
	}
	if s.EndpointURL == "" {
		errs = append(errs, errors.New("endpoint url is required"))
	}
	if s.Format != selector.FormatJSON && s.Format != selector.FormatXML {
		errs = append(errs, fmt.Errorf("unsupported format %q", s.Format))
	}
	if s.UniqueID.IsZero() {
		errs = append(errs, errors.New("unique id selector is required"))
	}
	if s.PublishedDate.IsZero() {
		errs = append(errs, errors.New("published date selector is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("specification %q: %w", s.SourceName, err)
	}
	return nil
}

// project builds a draft alert from one item node. The level is left
// unclassified for the source's post-processing.
func (s Specification) project(item selector.Node) (domain.Alert, error) {
	uniqueID, ok := selector.Evaluate(item, s.UniqueID)
	if !ok || uniqueID == "" {
		return domain.Alert{}, fmt.Errorf("%w: unique id (%s)", domain.ErrFieldMissing, s.UniqueID)
	}
	rawPublished, ok := selector.Evaluate(item, s.PublishedDate)
	if !ok || rawPublished == "" {
		return domain.Alert{}, fmt.Errorf("%w: published date (%s) for %s", domain.ErrFieldMissing, s.PublishedDate, uniqueID)
	}
	published, err := domain.ParseTimestamp(rawPublished)
	if err != nil {
		return domain.Alert{}, fmt.Errorf("item %s: %w", uniqueID, err)
	}

	a := domain.Alert{
		Title:             optional(item, s.Title),
		Source:            s.SourceName,
		Type:              s.DefaultAlertType,
		Level:             domain.LevelUnclassified,
		Link:              optional(item, s.Link),
		UniqueID:          uniqueID,
		PublishedDate:     published,
		Summary:           optional(item, s.Summary),
		UseLinkForSummary: s.UseLinkForSummary,
	}
	if len(s.AdditionalAttributes) > 0 {
		a.AdditionalAttributes = make(map[string]string, len(s.AdditionalAttributes))
		for name, sel := range s.AdditionalAttributes {
			if v, ok := selector.Evaluate(item, sel); ok {
				a.AdditionalAttributes[name] = v
			}
		}
	}
	return a, nil
}

func optional(item selector.Node, sel selector.Selector) string {
	if sel.IsZero() {
		return ""
	}
	v, _ := selector.Evaluate(item, sel)
	return v
}

// fetchDrafts runs the shared fetch, parse, and projection steps. Items whose
// required fields are missing are dropped and logged at debug level.
func fetchDrafts(ctx context.Context, f Fetcher, spec Specification, logger *slog.Logger) ([]domain.Alert, error) {
	data, err := f.Fetch(ctx, spec.EndpointURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.SourceName, err)
	}

	doc, err := selector.Parse(spec.Format, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.SourceName, err)
	}

	items := selector.Items(doc, spec.Items)
	drafts := make([]domain.Alert, 0, len(items))
	for _, item := range items {
		a, err := spec.project(item)
		if err != nil {
			logger.Debug("dropping feed item", "source", spec.SourceName, "error", err)
			continue
		}
		drafts = append(drafts, a)
	}
	return drafts, nil
}
