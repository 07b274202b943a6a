package fake

import (
	"sync"
	"time"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

type gatewayProvider struct {
	p *Platform

	mu       sync.Mutex
	gateways map[uint32]*gatewayClient
}

func (g *gatewayProvider) Gateway(appID uint32) (steam.GatewayClient, bool) {
	g.p.mu.Lock()
	cfg, ok := g.p.apps[appID]
	g.p.mu.Unlock()
	if !ok {
		return nil, false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gateways == nil {
		g.gateways = make(map[uint32]*gatewayClient)
	}
	if gw, ok := g.gateways[appID]; ok {
		return gw, true
	}
	gw := &gatewayClient{cfg: cfg}
	g.gateways[appID] = gw
	return gw, true
}

type gatewayClient struct {
	cfg *appConfig

	mu      sync.Mutex
	playing bool
	upAt    time.Time
	readyAt time.Time
}

func (g *gatewayClient) Play() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.playing {
		return
	}
	g.playing = true
	g.upAt = time.Now()
	g.readyAt = g.upAt.Add(g.cfg.payloadDelay)
}

func (g *gatewayClient) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.playing = false
}

func (g *gatewayClient) SessionUp() (bool, time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.playing, g.upAt
}

func (g *gatewayClient) Info() steam.GatewayInfo {
	g.mu.Lock()
	defer g.mu.Unlock()
	return steam.GatewayInfo{
		Connected: g.playing,
		Premium:   g.cfg.premium,
		Slots:     g.cfg.slots,
	}
}

func (g *gatewayClient) Snapshot() ([]steam.Item, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.playing || time.Now().Before(g.readyAt) {
		return nil, false
	}
	return append([]steam.Item(nil), g.cfg.payload...), true
}

func (g *gatewayClient) Inspect(link string, cb func(steam.InspectResult)) {
	r, ok := g.cfg.inspectResults[link]
	if !ok {
		return
	}
	delay := g.cfg.inspectDelay
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		cb(r)
	}()
}
