package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-digest/internal/core/domain"
	"github.com/custodia-labs/sercha-digest/internal/logger"
)

// Router assembles one delivery payload per recipient profile.
//
// Profiles are filled in a fixed order: tag-restricted profiles first, then
// catch-all profiles, each group in configuration order. Every profile is
// routed independently, so a document may reach several profiles.
type Router struct {
	passThreshold int
	exclusiveTags []string
	typeCaps      map[domain.SourceType]int

	// guard is optional; without it every document counts as fresh.
	guard *HistoryGuard
}

// NewRouter creates a router from the pipeline configuration.
func NewRouter(cfg domain.PipelineConfig, guard *HistoryGuard) *Router {
	return &Router{
		passThreshold: cfg.PassThreshold,
		exclusiveTags: cfg.ExclusiveTags,
		typeCaps:      cfg.SourceTypeCaps,
		guard:         guard,
	}
}

// Order returns profiles in routing order.
func (r *Router) Order(profiles []domain.RecipientProfile) []domain.RecipientProfile {
	ordered := make([]domain.RecipientProfile, len(profiles))
	copy(ordered, profiles)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !ordered[i].IsCatchAll() && ordered[j].IsCatchAll()
	})
	return ordered
}

// Route builds payloads for every profile. analyzed must be in rank order;
// related is the run-level overflow list appended to each payload.
func (r *Router) Route(ctx context.Context, analyzed []domain.AnalyzedDocument, related []domain.RelatedRef, profiles []domain.RecipientProfile, now time.Time) (domain.Routing, error) {
	routing := domain.Routing{Payloads: make(map[string]domain.DeliveryPayload, len(profiles))}
	for _, p := range r.Order(profiles) {
		payload, err := r.RouteProfile(ctx, analyzed, related, p, now)
		if err != nil {
			return routing, err
		}
		routing.Order = append(routing.Order, p.ID)
		routing.Payloads[p.ID] = payload
	}
	return routing, nil
}

// RouteProfile builds the payload for one profile.
func (r *Router) RouteProfile(ctx context.Context, analyzed []domain.AnalyzedDocument, related []domain.RelatedRef, p domain.RecipientProfile, now time.Time) (domain.DeliveryPayload, error) {
	var eligible, broader []domain.AnalyzedDocument
	for _, d := range analyzed {
		switch {
		case !r.reachable(d, p):
		case p.IsCatchAll() || p.Accepts(d.Tags()):
			eligible = append(eligible, d)
		default:
			broader = append(broader, d)
		}
	}

	fresh, repeats, err := r.filter(ctx, eligible, p, now)
	if err != nil {
		return domain.DeliveryPayload{}, err
	}
	fresh = byAffinity(fresh, p.Keywords)

	quota := make(map[domain.SourceType]int)
	var items []domain.DeliveredItem
	var cut []domain.RelatedRef
	for _, d := range fresh {
		if !r.fits(quota, d) {
			cut = append(cut, domain.RefOf(d.ScoredDocument))
			continue
		}
		items = append(items, domain.DeliveredItem{AnalyzedDocument: d})
	}

	if len(items) < p.MinItems && len(broader) > 0 {
		extra, _, err := r.filter(ctx, broader, p, now)
		if err != nil {
			return domain.DeliveryPayload{}, err
		}
		for _, d := range extra {
			if len(items) >= p.MinItems {
				break
			}
			if !r.fits(quota, d) {
				continue
			}
			logger.Debug("route %s: top-up with %s", p.ID, d.ID)
			items = append(items, domain.DeliveredItem{AnalyzedDocument: d, TopUp: true})
		}
	}

	if r.guard != nil {
		items = r.guard.Backfill(items, repeats, p.MinItems, len(analyzed))
	}

	if p.MaxItems > 0 && len(items) > p.MaxItems {
		for _, it := range items[p.MaxItems:] {
			cut = append(cut, domain.RefOf(it.ScoredDocument))
		}
		items = items[:p.MaxItems]
	}

	payload := domain.DeliveryPayload{ProfileID: p.ID, Primary: items}
	payload.Related = mergeRelated(payload.DocumentIDs(), cut, related)

	logger.Debug("route %s: %d primary, %d related", p.ID, len(payload.Primary), len(payload.Related))
	return payload, nil
}

// reachable applies the pass threshold and exclusive tags.
func (r *Router) reachable(d domain.AnalyzedDocument, p domain.RecipientProfile) bool {
	if d.Score < r.passThreshold {
		return false
	}
	tags := d.Tags()
	for _, ex := range r.exclusiveTags {
		if hasTag(tags, ex) && !p.AcceptsTag(ex) {
			return false
		}
	}
	return true
}

func (r *Router) filter(ctx context.Context, docs []domain.AnalyzedDocument, p domain.RecipientProfile, now time.Time) (fresh, repeats []domain.AnalyzedDocument, err error) {
	if r.guard == nil {
		return docs, nil, nil
	}
	return r.guard.FilterUnseen(ctx, docs, p, now)
}

// fits counts d against the source-type caps and reports whether it fits.
func (r *Router) fits(quota map[domain.SourceType]int, d domain.AnalyzedDocument) bool {
	if limit, ok := r.typeCaps[d.SourceType]; ok && quota[d.SourceType] >= limit {
		return false
	}
	quota[d.SourceType]++
	return true
}

// byAffinity orders equally scored documents by how many profile keywords
// they mention, keeping rank order otherwise.
func byAffinity(docs []domain.AnalyzedDocument, keywords []string) []domain.AnalyzedDocument {
	if len(keywords) == 0 || len(docs) < 2 {
		return docs
	}
	folded := foldAll(keywords)
	affinity := make(map[string]int, len(docs))
	for _, d := range docs {
		text := foldText(d.Title + " " + d.Excerpt)
		for _, k := range folded {
			if containsPhrase(text, k) {
				affinity[d.ID]++
			}
		}
	}

	ordered := make([]domain.AnalyzedDocument, len(docs))
	copy(ordered, docs)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Score != ordered[j].Score {
			return ordered[i].Score > ordered[j].Score
		}
		return affinity[ordered[i].ID] > affinity[ordered[j].ID]
	})
	return ordered
}

func mergeRelated(primary []string, lists ...[]domain.RelatedRef) []domain.RelatedRef {
	seen := make(map[string]bool, len(primary))
	for _, id := range primary {
		seen[id] = true
	}
	var out []domain.RelatedRef
	for _, list := range lists {
		for _, ref := range list {
			if seen[ref.DocumentID] {
				continue
			}
			seen[ref.DocumentID] = true
			out = append(out, ref)
		}
	}
	return out
}

func hasTag(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
