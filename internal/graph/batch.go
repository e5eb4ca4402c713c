package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Graph accepts at most 20 requests in one $batch call.
const maxBatchSize = 20

const batchConcurrency = 4

type batchRequest struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	URL    string `json:"url"`
}

type batchResponse struct {
	Responses []struct {
		ID     string          `json:"id"`
		Status int             `json:"status"`
		Body   json.RawMessage `json:"body"`
	} `json:"responses"`
}

// chunk splits ids into slices of at most size elements.
func chunk(ids []uuid.UUID, size int) [][]uuid.UUID {
	var chunks [][]uuid.UUID
	for size < len(ids) {
		ids, chunks = ids[size:], append(chunks, ids[:size])
	}
	if len(ids) > 0 {
		chunks = append(chunks, ids)
	}
	return chunks
}

// batchGet runs one GET per key through $batch calls and decodes every 200
// answer as a User. 404 answers are skipped, other failures abort.
func (c *Client) batchGet(ctx context.Context, paths map[uuid.UUID]string) (map[uuid.UUID]User, error) {
	ids := make([]uuid.UUID, 0, len(paths))
	for id := range paths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var mu sync.Mutex
	result := make(map[uuid.UUID]User, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchConcurrency)
	for _, part := range chunk(ids, c.batchSize) {
		part := part
		g.Go(func() error {
			requests := make([]batchRequest, len(part))
			for i, id := range part {
				requests[i] = batchRequest{ID: strconv.Itoa(i), Method: http.MethodGet, URL: paths[id]}
			}

			var resp batchResponse
			if err := c.do(gctx, http.MethodPost, "/$batch", map[string]any{"requests": requests}, &resp); err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			for _, r := range resp.Responses {
				idx, err := strconv.Atoi(r.ID)
				if err != nil || idx < 0 || idx >= len(part) {
					continue
				}
				if r.Status == http.StatusNotFound {
					continue
				}
				if r.Status >= 300 {
					return parseError(r.Status, r.Body)
				}
				var u User
				if err := json.Unmarshal(r.Body, &u); err != nil {
					return err
				}
				result[part[idx]] = u
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
