package contentful

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

type loaderKey struct{}

// QueryParams are the arguments of a collection query
type QueryParams struct {
	// Q is a raw delivery API query string, e.g. "fields.title=Hello&order=-sys.createdAt"
	Q     string
	Skip  *int
	Limit *int
}

// memo is a request scoped store of resolved resources. A nil value
// records a resource that is known not to exist.
type memo[T any] struct {
	mx    sync.Mutex
	items map[string]*T
}

func (m *memo[T]) missing(ids []string) []string {
	m.mx.Lock()
	defer m.mx.Unlock()

	seen := map[string]bool{}
	missing := []string{}
	for _, id := range ids {
		if _, ok := m.items[id]; ok || seen[id] {
			continue
		}
		seen[id] = true
		missing = append(missing, id)
	}
	return missing
}

func (m *memo[T]) prime(id string, item *T) {
	m.mx.Lock()
	defer m.mx.Unlock()
	m.items[id] = item
}

func (m *memo[T]) resolve(requested []string, found map[string]*T) {
	m.mx.Lock()
	defer m.mx.Unlock()

	for _, id := range requested {
		m.items[id] = found[id]
	}
}

func (m *memo[T]) get(ids []string) []*T {
	m.mx.Lock()
	defer m.mx.Unlock()

	items := make([]*T, 0, len(ids))
	for _, id := range ids {
		if item := m.items[id]; item != nil {
			items = append(items, item)
		}
	}
	return items
}

// Loader resolves entries and assets for the duration of one GraphQL
// request. Every id is fetched at most once per loader and lookups of many
// ids are batched into sys.id[in] queries.
type Loader struct {
	client  *Client
	entries *memo[Entry]
	assets  *memo[Asset]
}

func newLoader(c *Client) *Loader {
	return &Loader{
		client:  c,
		entries: &memo[Entry]{items: map[string]*Entry{}},
		assets:  &memo[Asset]{items: map[string]*Asset{}},
	}
}

// Entry loads a single entry. A missing entry is returned as nil without
// an error.
func (l *Loader) Entry(ctx context.Context, id string) (*Entry, error) {
	entries, err := l.Entries(ctx, []string{id})
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return entries[0], nil
}

// Entries loads entries by id, preserving the requested order and
// dropping entries that do not exist
func (l *Loader) Entries(ctx context.Context, ids []string) ([]*Entry, error) {
	missing := l.entries.missing(ids)
	if len(missing) > 0 {
		found, err := fetchByID(ctx, l.client, "/entries", missing, func(e *Entry) string { return e.Sys.ID })
		if err != nil {
			return nil, err
		}
		l.entries.resolve(missing, found)
	}
	return l.entries.get(ids), nil
}

// Asset loads a single asset. A missing asset is returned as nil without
// an error.
func (l *Loader) Asset(ctx context.Context, id string) (*Asset, error) {
	assets, err := l.Assets(ctx, []string{id})
	if err != nil || len(assets) == 0 {
		return nil, err
	}
	return assets[0], nil
}

// Assets loads assets by id, preserving the requested order and dropping
// assets that do not exist
func (l *Loader) Assets(ctx context.Context, ids []string) ([]*Asset, error) {
	missing := l.assets.missing(ids)
	if len(missing) > 0 {
		found, err := fetchByID(ctx, l.client, "/assets", missing, func(a *Asset) string { return a.Sys.ID })
		if err != nil {
			return nil, err
		}
		l.assets.resolve(missing, found)
	}
	return l.assets.get(ids), nil
}

// Query fetches a page of entries of one content type. Linked entries and
// assets delivered with the page are kept for later lookups.
func (l *Loader) Query(ctx context.Context, contentTypeID string, params QueryParams) ([]*Entry, error) {
	query, err := collectionQuery(contentTypeID, params.Q)
	if err != nil {
		return nil, err
	}

	query.Set("include", "1")
	if params.Skip != nil {
		if *params.Skip < 0 {
			return nil, fmt.Errorf("skip must not be negative")
		}
		query.Set("skip", strconv.Itoa(*params.Skip))
	}
	if params.Limit != nil {
		if *params.Limit < 0 {
			return nil, fmt.Errorf("limit must not be negative")
		}
		query.Set("limit", strconv.Itoa(clampLimit(*params.Limit)))
	}

	page, err := l.fetchEntries(ctx, query)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// Count returns the number of entries of a content type matching q
func (l *Loader) Count(ctx context.Context, contentTypeID, q string) (int, error) {
	query, err := collectionQuery(contentTypeID, q)
	if err != nil {
		return 0, err
	}

	query.Set("limit", "0")
	query.Del("skip")

	body, err := l.client.get(ctx, deliveryAPI, "/entries", query)
	if err != nil {
		return 0, err
	}

	page, err := decodeCollection[*Entry](body)
	if err != nil {
		return 0, fmt.Errorf("failed to decode entries: %w", err)
	}
	return page.Total, nil
}

// Backrefs fetches the entries of a content type whose field links to the
// given entry
func (l *Loader) Backrefs(ctx context.Context, contentTypeID, fieldID, entryID string) ([]*Entry, error) {
	query := url.Values{}
	query.Set("content_type", contentTypeID)
	query.Set(fmt.Sprintf("fields.%s.sys.id", fieldID), entryID)
	query.Set("limit", strconv.Itoa(MaxLimit))
	query.Set("include", "1")

	page, err := l.fetchEntries(ctx, query)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

func (l *Loader) fetchEntries(ctx context.Context, query url.Values) (*collection[*Entry], error) {
	body, err := l.client.get(ctx, deliveryAPI, "/entries", query)
	if err != nil {
		return nil, err
	}

	page, err := decodeCollection[*Entry](body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode entries: %w", err)
	}

	l.prime(page.Items, page.Includes)
	return page, nil
}

func (l *Loader) prime(items []*Entry, inc includes) {
	for _, e := range items {
		if e != nil {
			l.entries.prime(e.Sys.ID, e)
		}
	}
	for _, e := range inc.Entry {
		if e != nil {
			l.entries.prime(e.Sys.ID, e)
		}
	}
	for _, a := range inc.Asset {
		if a != nil {
			l.assets.prime(a.Sys.ID, a)
		}
	}
}

// fetchByID fetches resources in chunks of maxIDsPerRequest ids, running
// the chunks concurrently
func fetchByID[T any](ctx context.Context, c *Client, path string, ids []string, idOf func(*T) string) (map[string]*T, error) {
	var mx sync.Mutex
	found := map[string]*T{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentBatches)

	for start := 0; start < len(ids); start += maxIDsPerRequest {
		end := start + maxIDsPerRequest
		if end > len(ids) {
			end = len(ids)
		}
		chunk := ids[start:end]

		g.Go(func() error {
			query := url.Values{}
			query.Set("sys.id[in]", strings.Join(chunk, ","))
			query.Set("limit", strconv.Itoa(len(chunk)))

			body, err := c.get(gctx, deliveryAPI, path, query)
			if err != nil {
				return err
			}

			page, err := decodeCollection[*T](body)
			if err != nil {
				return fmt.Errorf("failed to decode %s: %w", strings.TrimPrefix(path, "/"), err)
			}

			mx.Lock()
			defer mx.Unlock()
			for _, item := range page.Items {
				if item != nil {
					found[idOf(item)] = item
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

func collectionQuery(contentTypeID, q string) (url.Values, error) {
	query := url.Values{}
	if q != "" {
		parsed, err := url.ParseQuery(strings.TrimPrefix(q, "?"))
		if err != nil {
			return nil, fmt.Errorf("invalid query string %q: %w", q, err)
		}
		query = parsed
	}

	query.Set("content_type", contentTypeID)
	return query, nil
}

func clampLimit(limit int) int {
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// WithLoader attaches a loader to the context
func WithLoader(ctx context.Context, l *Loader) context.Context {
	return context.WithValue(ctx, loaderKey{}, l)
}

// LoaderFromContext returns the loader attached to the context
func LoaderFromContext(ctx context.Context) (*Loader, bool) {
	if ctx == nil {
		return nil, false
	}

	l, ok := ctx.Value(loaderKey{}).(*Loader)
	return l, ok && l != nil
}
