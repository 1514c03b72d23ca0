package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/lucas-luzj/magic-crm/engine"
	"github.com/lucas-luzj/magic-crm/internal/metrickeys"
	"github.com/lucas-luzj/magic-crm/metrics"
)

// graphCache caches compiled process graphs (the set of user-task node ids
// per process definition) with a TTL.
type graphCache struct {
	engine engine.Engine
	mc     metrics.Client
	c      *ttlcache.Cache[string, map[string]struct{}]
}

func newGraphCache(e engine.Engine, mc metrics.Client, size int, ttl time.Duration) *graphCache {
	c := ttlcache.New(
		ttlcache.WithCapacity[string, map[string]struct{}](uint64(size)),
		ttlcache.WithTTL[string, map[string]struct{}](ttl),
	)

	c.OnEviction(func(ctx context.Context, er ttlcache.EvictionReason, i *ttlcache.Item[string, map[string]struct{}]) {
		reason := ""
		switch er {
		case ttlcache.EvictionReasonExpired:
			reason = "expired"
		case ttlcache.EvictionReasonCapacityReached:
			reason = "capacity"
		}

		mc.Counter(metrickeys.GraphCacheEviction, metrics.Tags{metrickeys.EvictionReason: reason}, 1)
	})

	return &graphCache{
		engine: e,
		mc:     mc,
		c:      c,
	}
}

func (gc *graphCache) get(ctx context.Context, processDefinitionID string) (map[string]struct{}, error) {
	if item := gc.c.Get(processDefinitionID); item != nil {
		return item.Value(), nil
	}

	graph, err := gc.engine.CompiledGraph(ctx, processDefinitionID)
	if err != nil {
		return nil, fmt.Errorf("reading compiled graph: %w", err)
	}

	gc.c.Set(processDefinitionID, graph, ttlcache.DefaultTTL)

	gc.mc.Gauge(metrickeys.GraphCacheSize, metrics.Tags{}, int64(gc.c.Len()))

	return graph, nil
}
