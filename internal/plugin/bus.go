package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"golang.org/x/sync/errgroup"

	"github.com/opencode-ai/opencode/internal/logging"
)

// cacheKey identifies a memoized Trigger result for a cacheable event.
type cacheKey struct {
	event HookEvent
	hash  string
}

// HookBus dispatches named, prioritized hooks per event, in parallel, with
// memoization for deterministic events and detached fire-and-forget
// dispatch for notification events. It uses watermill's gochannel for
// transport infrastructure while keeping direct Go-function dispatch for the
// actual hook invocation, the same split internal/event's Bus uses.
type HookBus struct {
	mu    sync.RWMutex
	hooks map[HookEvent][]*Hook

	cacheMu sync.RWMutex
	cache   map[cacheKey][]HookResult

	// pubsub carries a notification of every Trigger/TriggerFireAndForget
	// call onto its event's topic, for future subscribers (e.g. a remote
	// plugin host) that want transport-level visibility without being a
	// registered Hook.
	pubsub *gochannel.GoChannel
}

// NewHookBus creates an empty hook bus.
func NewHookBus() *HookBus {
	return &HookBus{
		hooks: make(map[HookEvent][]*Hook),
		cache: make(map[cacheKey][]HookResult),
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
	}
}

// Register adds a hook, keeping its event's list sorted by descending
// priority (stable, so equal-priority hooks still run in registration
// order).
func (b *HookBus) Register(hook *Hook) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := append(b.hooks[hook.Event], hook)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Priority > list[j].Priority
	})
	b.hooks[hook.Event] = list
}

// Remove drops the named hook from event's list. Returns false if no such
// hook was registered.
func (b *HookBus) Remove(event HookEvent, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	list, ok := b.hooks[event]
	if !ok {
		return false
	}
	for i, h := range list {
		if h.Name == name {
			b.hooks[event] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// HookInfo describes a registered hook for introspection (List).
type HookInfo struct {
	Event   HookEvent
	Name    string
	Enabled bool
}

// List returns every registered hook across all events.
func (b *HookBus) List() []HookInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []HookInfo
	for event, list := range b.hooks {
		for _, h := range list {
			out = append(out, HookInfo{Event: event, Name: h.Name, Enabled: h.Enabled})
		}
	}
	return out
}

// enabledHooks snapshots the enabled hooks for an event under the read lock.
func (b *HookBus) enabledHooks(event HookEvent) []*Hook {
	b.mu.RLock()
	defer b.mu.RUnlock()

	list := b.hooks[event]
	if len(list) == 0 {
		return nil
	}
	enabled := make([]*Hook, 0, len(list))
	for _, h := range list {
		if h.Enabled {
			enabled = append(enabled, h)
		}
	}
	return enabled
}

// contextDataHash hashes ctx.Data over its sorted keys, so the same logical
// data always produces the same cache key regardless of map iteration order.
func contextDataHash(data map[string]any) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		h.Write([]byte(k))
		v, _ := json.Marshal(data[k])
		h.Write(v)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Trigger runs every enabled hook for hctx.Event in parallel and waits for
// all to complete (join_all semantics: a failing handler does not cancel
// its siblings). Results for the closed set of cacheable events
// (config.loaded, shell.env) are memoized by a hash of hctx.Data and
// returned without re-invoking handlers.
func (b *HookBus) Trigger(ctx context.Context, hctx HookContext) []HookResult {
	enabled := b.enabledHooks(hctx.Event)
	if len(enabled) == 0 {
		b.publishTransport(hctx)
		return nil
	}

	var key cacheKey
	if cacheableEvents[hctx.Event] {
		key = cacheKey{event: hctx.Event, hash: contextDataHash(hctx.Data)}
		b.cacheMu.RLock()
		cached, ok := b.cache[key]
		b.cacheMu.RUnlock()
		if ok {
			return cached
		}
	}

	results := make([]HookResult, len(enabled))
	var g errgroup.Group
	for i, hook := range enabled {
		i, hook := i, hook
		g.Go(func() error {
			output, err := hook.Handler(ctx, hctx)
			results[i] = HookResult{Output: output, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	if cacheableEvents[hctx.Event] {
		b.cacheMu.Lock()
		b.cache[key] = results
		b.cacheMu.Unlock()
	}

	b.publishTransport(hctx)
	return results
}

// TriggerFireAndForget spawns every enabled hook for hctx.Event detached and
// returns immediately; a handler's error is logged, not surfaced. Intended
// for the closed set of notification events (session.compacting, error,
// file.change, session.end) where the caller has no use for the result.
func (b *HookBus) TriggerFireAndForget(ctx context.Context, hctx HookContext) {
	enabled := b.enabledHooks(hctx.Event)
	b.publishTransport(hctx)

	for _, hook := range enabled {
		hook := hook
		go func() {
			if _, err := hook.Handler(ctx, hctx); err != nil {
				logging.Warn().
					Str("hook", hook.Name).
					Str("event", string(hctx.Event)).
					Err(err).
					Msg("fire-and-forget hook error")
			}
		}()
	}
}

// InvalidateCache clears every memoized result for event.
func (b *HookBus) InvalidateCache(event HookEvent) {
	b.cacheMu.Lock()
	defer b.cacheMu.Unlock()
	for key := range b.cache {
		if key.event == event {
			delete(b.cache, key)
		}
	}
}

// publishTransport emits hctx onto the watermill topic named for its event,
// for any future subscriber wired against the raw GoChannel transport.
func (b *HookBus) publishTransport(hctx HookContext) {
	payload, err := json.Marshal(hctx)
	if err != nil {
		return
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	_ = b.pubsub.Publish(string(hctx.Event), msg)
}

// PubSub returns the underlying watermill GoChannel for advanced use cases
// (middleware, routing, or swapping in a distributed backend).
func (b *HookBus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// Close releases the bus's transport resources.
func (b *HookBus) Close() error {
	return b.pubsub.Close()
}
