// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package pool manages a set of concurrent peer sessions (spec §4.5):
// adding and removing configured peers, fairly scheduling requests across
// whichever sessions are connected, aggregating the peaks sessions
// report, and serving get_block_by_height/get_blocks_range with
// retry-against-a-different-session on failure. A Session (package peer)
// never knows about any other session; Pool is the only layer that sees
// more than one at a time (spec §6).
package pool

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"
	"time"

	"github.com/jrick/bitset"

	"github.com/dig-network/chialisten/blockchain"
	"github.com/dig-network/chialisten/bloom"
	"github.com/dig-network/chialisten/chaincfg"
	"github.com/dig-network/chialisten/connmgr"
	"github.com/dig-network/chialisten/container/apbf"
	"github.com/dig-network/chialisten/peer"
	"github.com/dig-network/chialisten/wire"
)

// peakDedupRotateEvery is how many distinct peaks the dedup filter
// observes before it rotates its oldest generation (spec §C.4); it is
// unrelated to how often the pool's own aggregate peak is allowed to
// advance, which has no such limit.
const peakDedupRotateEvery = 4096

// seenPeaksCapacity sizes each session's single-generation dedup filter;
// a session's peak only ever advances, so a few hundred slots comfortably
// outlives any one connection's lifetime without needing to age out.
const seenPeaksCapacity = 256

type peerEntry struct {
	key       PeerKey
	host      string
	port      uint16
	networkID string

	session *peer.Session

	busy         bool
	earliestNext time.Time

	failures    int
	lastFailure time.Time

	// seenPeaks deduplicates a single session repeating the exact same
	// header hash (spec doesn't forbid a peer re-announcing; it's just
	// wasted work downstream). Plain, non-aging bloom.Filter is enough
	// here since it's scoped to one connection's lifetime, unlike the
	// pool-wide, cross-session apbf.Filter below.
	seenPeaks *bloom.Filter
}

// Pool owns every peer session the caller has configured and schedules
// requests fairly across them.
type Pool struct {
	cfg       Config
	params    *chaincfg.Params
	tlsConfig *tls.Config
	local     peer.LocalIdentity
	dialCfg   connmgr.Config

	mu       sync.Mutex
	peers    map[PeerKey]*peerEntry
	order    []PeerKey
	sched    *scheduler
	changeCh chan struct{}
	closed   bool
	done     chan struct{}

	aggregatePeak *peer.Peak
	dedup         *apbf.Filter
	observeCount  int

	// resolver supplies blockchain.ParseBlock with the generator bytes a
	// block's back-references point at (spec §4.4.5); it is backed by
	// this same pool's fetchRawBlock, never the parsing GetBlockByHeight,
	// so resolving one block's back-references can never recurse into
	// parsing another.
	resolver blockchain.BackRefResolver

	bus *eventBus
}

// New constructs a Pool with no peers yet added.
func New(params *chaincfg.Params, tlsConfig *tls.Config, local peer.LocalIdentity, cfg Config) *Pool {
	p := &Pool{
		cfg:       cfg,
		params:    params,
		tlsConfig: tlsConfig,
		local:     local,
		dialCfg:   connmgr.DefaultConfig(),
		peers:     make(map[PeerKey]*peerEntry),
		sched:     newScheduler(),
		changeCh:  make(chan struct{}),
		done:      make(chan struct{}),
		dedup:     apbf.New(4, 2048, 0.01),
		bus:       newEventBus(),
	}
	p.resolver = newCachingResolver(p, cfg.BackRefCacheSize, cfg.RequestTimeout)
	return p
}

// AddPeer registers host:port under networkID and begins connecting to it
// in the background; calling it again with the same host and port is a
// no-op that returns the existing key (spec §4.5.1, idempotent on
// duplicate).
func (p *Pool) AddPeer(host string, port uint16, networkID string) PeerKey {
	key := peerKey(host, port)

	p.mu.Lock()
	if _, exists := p.peers[key]; exists {
		p.mu.Unlock()
		return key
	}
	pe := &peerEntry{key: key, host: host, port: port, networkID: networkID, seenPeaks: bloom.NewFilter(seenPeaksCapacity, 0.01)}
	p.peers[key] = pe
	p.order = append(p.order, key)
	p.sched.setOrder(p.order)
	p.mu.Unlock()

	go p.connectPeer(pe)
	return key
}

func (p *Pool) connectPeer(pe *peerEntry) {
	url := fmt.Sprintf("wss://%s:%d/ws", pe.host, pe.port)
	params := &chaincfg.Params{Name: p.params.Name, NetworkID: pe.networkID, ProtocolVersion: p.params.ProtocolVersion}
	sessCfg := peer.Config{
		MaxFrameBytes:     p.cfg.MaxFrameBytes,
		HandshakeTimeout:  p.cfg.HandshakeTimeout,
		OutgoingQueueSize: 64,
	}
	cb := peer.Callbacks{
		OnNewPeak: func(pk peer.Peak) { p.onNewPeak(pe.key, pk) },
		OnEjected: func(err error) { p.onSessionEjected(pe.key, err) },
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.HandshakeTimeout*2)
	defer cancel()
	sess, err := peer.Connect(ctx, url, p.tlsConfig, p.local, params, sessCfg, p.dialCfg, cb)
	if err != nil {
		log.Warnf("connect to %s: %v", pe.key, err)
		p.mu.Lock()
		delete(p.peers, pe.key)
		p.removeFromOrderLocked(pe.key)
		p.mu.Unlock()
		return
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		sess.Close("pool shutting down")
		return
	}
	pe.session = sess
	p.mu.Unlock()

	p.bus.publish(Event{Kind: EventPeerConnected, PeerKey: pe.key})
}

// RemovePeer disconnects and forgets key, returning false if it was not
// present (spec §4.5.1).
func (p *Pool) RemovePeer(key PeerKey) bool {
	p.mu.Lock()
	pe, ok := p.peers[key]
	if !ok {
		p.mu.Unlock()
		return false
	}
	delete(p.peers, key)
	p.removeFromOrderLocked(key)
	p.broadcastChangeLocked()
	p.mu.Unlock()

	if pe.session != nil {
		pe.session.Close("removed")
	}
	p.bus.publish(Event{Kind: EventPeerDisconnected, PeerKey: key, Reason: "removed"})
	return true
}

// ConnectedPeers returns the keys of peers with a live session, in the
// order they were added.
func (p *Pool) ConnectedPeers() []PeerKey {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PeerKey, 0, len(p.order))
	for _, key := range p.order {
		if pe := p.peers[key]; pe != nil && pe.session != nil {
			out = append(out, key)
		}
	}
	return out
}

func (p *Pool) removeFromOrderLocked(key PeerKey) {
	for i, k := range p.order {
		if k == key {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	p.sched.setOrder(p.order)
}

// broadcastChangeLocked wakes every goroutine blocked in pickSession,
// e.g. because a session just freed up or a peer was added or removed.
// Must be called with p.mu held.
func (p *Pool) broadcastChangeLocked() {
	close(p.changeCh)
	p.changeCh = make(chan struct{})
}

// pickSession implements spec §4.5.2's fair scheduler: it returns the
// next session not in exclude that is connected, not already serving a
// request, and past its per-peer rate limit, blocking the caller until
// one qualifies, every eligible session is excluded, or the pool shuts
// down. Multiple callers may race to pick concurrently; each wakes on any
// state change and re-evaluates, so fairness is round-robin among
// whichever callers win the race, not strict FIFO across callers.
func (p *Pool) pickSession(ctx context.Context, exclude map[PeerKey]bool) (*peerEntry, error) {
	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, newError(ErrShuttingDown, "pool closed")
		}

		now := time.Now()
		elig := bitset.NewBytes(len(p.order))
		anyCandidate := false
		minWait := time.Duration(-1)
		for i, key := range p.order {
			pe := p.peers[key]
			if pe == nil || pe.session == nil || exclude[key] {
				continue
			}
			anyCandidate = true
			if pe.busy {
				continue
			}
			if pe.earliestNext.After(now) {
				if w := pe.earliestNext.Sub(now); minWait < 0 || w < minWait {
					minWait = w
				}
				continue
			}
			elig.Set(i)
		}

		key, ok := p.sched.pick(elig)
		if ok {
			pe := p.peers[key]
			pe.busy = true
			pe.earliestNext = now.Add(p.cfg.PerPeerMinInterval)
			p.mu.Unlock()
			return pe, nil
		}

		changeCh := p.changeCh
		p.mu.Unlock()

		if !anyCandidate {
			return nil, newError(ErrNoPeerCouldServe, "no eligible peer sessions")
		}

		var timer *time.Timer
		var timerCh <-chan time.Time
		if minWait >= 0 {
			timer = time.NewTimer(minWait)
			timerCh = timer.C
		}
		select {
		case <-changeCh:
		case <-timerCh:
		case <-p.done:
		case <-ctx.Done():
		}
		if timer != nil {
			timer.Stop()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.done:
			return nil, newError(ErrShuttingDown, "pool closed")
		default:
		}
	}
}

// releaseSession marks key's session as free to receive another request
// and, on failure, applies spec §4.5.3's misbehavior tracking.
func (p *Pool) releaseSession(key PeerKey, success bool) {
	p.mu.Lock()
	pe, ok := p.peers[key]
	if !ok {
		p.mu.Unlock()
		return
	}
	pe.busy = false

	var misbehaving bool
	if success {
		pe.failures = 0
	} else {
		now := time.Now()
		if pe.failures > 0 && now.Sub(pe.lastFailure) > p.cfg.FailureWindow {
			pe.failures = 0
		}
		pe.failures++
		pe.lastFailure = now
		misbehaving = pe.failures >= p.cfg.MisbehaveThreshold
	}
	p.broadcastChangeLocked()
	p.mu.Unlock()

	if misbehaving {
		p.ejectMisbehaving(key)
	}
}

func (p *Pool) ejectMisbehaving(key PeerKey) {
	p.mu.Lock()
	pe, ok := p.peers[key]
	if ok {
		delete(p.peers, key)
		p.removeFromOrderLocked(key)
	}
	p.broadcastChangeLocked()
	p.mu.Unlock()
	if !ok {
		return
	}
	log.Infof("ejecting %s: exceeded misbehave threshold", key)
	if pe.session != nil {
		pe.session.Close("misbehaving")
	}
	p.bus.publish(Event{Kind: EventPeerDisconnected, PeerKey: key, Reason: "misbehaving"})
}

func (p *Pool) onSessionEjected(key PeerKey, err error) {
	p.mu.Lock()
	pe, ok := p.peers[key]
	if ok {
		pe.session = nil
	}
	p.broadcastChangeLocked()
	p.mu.Unlock()
	if !ok {
		return
	}
	reason := "transport lost"
	if err != nil {
		reason = err.Error()
	}
	p.bus.publish(Event{Kind: EventPeerDisconnected, PeerKey: key, Reason: reason})
}

// onNewPeak folds a session's reported peak into the pool's aggregate
// peak (spec §4.5.4): the aggregate is the maximum by weight of every
// session-local peak ever observed, so it never decreases even if the
// session that reported the maximum later disconnects.
func (p *Pool) onNewPeak(key PeerKey, pk peer.Peak) {
	hashKey := append([]byte(nil), pk.HeaderHash[:]...)

	p.mu.Lock()
	if pe, ok := p.peers[key]; ok && pe.seenPeaks != nil {
		if pe.seenPeaks.Contains(hashKey) {
			p.mu.Unlock()
			log.Tracef("%s repeated its own already-announced peak %s", key, pk.HeaderHash)
			return
		}
		pe.seenPeaks.Add(hashKey)
	}

	seen := p.dedup.Contains(hashKey)
	if !seen {
		p.dedup.Add(hashKey)
		p.observeCount++
		if p.observeCount%peakDedupRotateEvery == 0 {
			p.dedup.Rotate()
		}
	}
	var old *peer.Peak
	changed := p.aggregatePeak == nil || pk.Weight.GreaterThan(p.aggregatePeak.Weight)
	if changed {
		old = p.aggregatePeak
		cp := pk
		p.aggregatePeak = &cp
	}
	p.mu.Unlock()

	if seen {
		log.Tracef("%s re-observed a peak %s already seen from another session", key, pk.HeaderHash)
	}
	if changed {
		p.bus.publish(Event{Kind: EventNewPeak, OldPeak: old, NewPeak: &pk, Observer: key})
	}
}

// PeakSnapshot returns the pool's current aggregate peak, or nil if no
// session has reported one yet.
func (p *Pool) PeakSnapshot() *peer.Peak {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.aggregatePeak == nil {
		return nil
	}
	cp := *p.aggregatePeak
	return &cp
}

// fetchRawBlock requests the raw FullBlock bytes at height off the wire,
// retrying against a different session on failure up to
// MaxAttemptsPerBlock times before returning NoPeerCouldServe (spec
// §4.5.5, B3). It never parses the block; that is GetBlockByHeight's job,
// and the caching resolver needs the raw bytes, not a ParsedBlock, to
// resolve a back-reference.
func (p *Pool) fetchRawBlock(ctx context.Context, height uint32, includeTxBlock bool) (*wire.RespondBlock, error) {
	exclude := make(map[PeerKey]bool)
	var lastErr error

	for attempt := 0; attempt < p.cfg.MaxAttemptsPerBlock; attempt++ {
		pe, err := p.pickSession(ctx, exclude)
		if err != nil {
			if attempt == 0 {
				return nil, wrapError(ErrNoPeerCouldServe, err, "height %d", height)
			}
			lastErr = err
			break
		}
		exclude[pe.key] = true

		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		body, err := pe.session.RequestBlock(reqCtx, height, includeTxBlock, p.cfg.RequestTimeout)
		cancel()
		if err != nil {
			p.releaseSession(pe.key, false)
			lastErr = err
			continue
		}

		switch b := body.(type) {
		case *wire.RespondBlock:
			p.releaseSession(pe.key, true)
			p.bus.publish(Event{Kind: EventBlockReceived, PeerKey: pe.key, Height: height})
			return b, nil
		case *wire.RejectBlock:
			p.releaseSession(pe.key, false)
			lastErr = newError(ErrBlockParse, "peer rejected height %d", height)
		default:
			p.releaseSession(pe.key, false)
			lastErr = newError(ErrBlockParse, "unexpected response type %T for height %d", body, height)
		}
	}

	return nil, wrapError(ErrNoPeerCouldServe, lastErr, "height %d: no peer could serve after %d attempt(s)", height, p.cfg.MaxAttemptsPerBlock)
}

// fetchRawBlocks requests [startHeight, endHeight] in one round trip, with
// the same retry-against-a-different-session behavior as fetchRawBlock.
func (p *Pool) fetchRawBlocks(ctx context.Context, startHeight, endHeight uint32, includeTxBlock bool) (*wire.RespondBlocks, error) {
	exclude := make(map[PeerKey]bool)
	var lastErr error

	for attempt := 0; attempt < p.cfg.MaxAttemptsPerBlock; attempt++ {
		pe, err := p.pickSession(ctx, exclude)
		if err != nil {
			if attempt == 0 {
				return nil, wrapError(ErrNoPeerCouldServe, err, "range %d-%d", startHeight, endHeight)
			}
			lastErr = err
			break
		}
		exclude[pe.key] = true

		reqCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
		body, err := pe.session.RequestBlocks(reqCtx, startHeight, endHeight, includeTxBlock, p.cfg.RequestTimeout)
		cancel()
		if err != nil {
			p.releaseSession(pe.key, false)
			lastErr = err
			continue
		}

		switch b := body.(type) {
		case *wire.RespondBlocks:
			p.releaseSession(pe.key, true)
			return b, nil
		case *wire.RejectBlocks:
			p.releaseSession(pe.key, false)
			lastErr = newError(ErrBlockParse, "peer rejected range %d-%d", startHeight, endHeight)
		default:
			p.releaseSession(pe.key, false)
			lastErr = newError(ErrBlockParse, "unexpected response type %T for range %d-%d", body, startHeight, endHeight)
		}
	}

	return nil, wrapError(ErrNoPeerCouldServe, lastErr, "range %d-%d: no peer could serve after %d attempt(s)", startHeight, endHeight, p.cfg.MaxAttemptsPerBlock)
}

// parseFetchedBlock runs the block interpreter over raw off-the-wire
// bytes, surfacing a parse failure as a pool-level BlockParseError (spec
// §6/§7) rather than the blockchain package's own *blockchain.Error.
func (p *Pool) parseFetchedBlock(blockBytes []byte) (*blockchain.ParsedBlock, error) {
	pb, err := blockchain.ParseBlock(blockBytes, p.resolver, p.cfg.GeneratorCostLimit, p.cfg.PerSpendCostLimit)
	if err != nil {
		return nil, wrapError(ErrBlockParse, err, "parse block")
	}
	return pb, nil
}

// GetBlockByHeight fetches the block at height and runs it through the
// block interpreter, returning the decoded ParsedBlock (spec §2 "interpreter
// parses the block and returns a ParsedBlock", §6 Pool::get_block_by_height).
func (p *Pool) GetBlockByHeight(ctx context.Context, height uint32, includeTxBlock bool) (*blockchain.ParsedBlock, error) {
	resp, err := p.fetchRawBlock(ctx, height, includeTxBlock)
	if err != nil {
		return nil, err
	}
	return p.parseFetchedBlock(resp.Block)
}

// GetBlocksRange fetches [startHeight, endHeight] in one round trip and
// runs every returned block through the block interpreter, returning
// ParsedBlock in height order.
func (p *Pool) GetBlocksRange(ctx context.Context, startHeight, endHeight uint32, includeTxBlock bool) ([]*blockchain.ParsedBlock, error) {
	resp, err := p.fetchRawBlocks(ctx, startHeight, endHeight, includeTxBlock)
	if err != nil {
		return nil, err
	}
	out := make([]*blockchain.ParsedBlock, 0, len(resp.Blocks))
	for _, blockBytes := range resp.Blocks {
		pb, err := p.parseFetchedBlock(blockBytes)
		if err != nil {
			return nil, err
		}
		out = append(out, pb)
	}
	return out, nil
}

// Subscribe returns an event stream filtered to kinds (every kind, if
// none given) and a function to stop receiving (spec §4.5.6).
func (p *Pool) Subscribe(kinds ...EventKind) (<-chan Event, func()) {
	return p.bus.subscribe(kinds...)
}

// Shutdown cancels every in-flight pick, closes every session, and
// prevents new ones from completing (spec §4.5.7): callers blocked in
// GetBlockByHeight/GetBlocksRange observe ShuttingDown.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.done)
	sessions := make([]*peer.Session, 0, len(p.peers))
	for _, pe := range p.peers {
		if pe.session != nil {
			sessions = append(sessions, pe.session)
		}
	}
	p.broadcastChangeLocked()
	p.mu.Unlock()

	for _, s := range sessions {
		s.Close("pool shutting down")
	}
}
