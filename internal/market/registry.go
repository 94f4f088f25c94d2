package market

import (
	"fmt"
	"sort"

	"tradehistory/config"
)

// Kind distinguishes the two supported venue protocols.
type Kind string

const (
	Spot      Kind = "spot"
	Perpetual Kind = "perpetual"
)

// DefaultPriceScale is the documented fallback used by /tv/symbols when a
// symbol is not configured. It is logged at the call site, never applied
// silently to configured markets.
const DefaultPriceScale = 100

// Descriptor describes one configured market. Immutable after startup.
type Descriptor struct {
	Symbol        string
	Kind          Kind
	ProgramID     string
	Address       string
	EventQueue    string // resolved at LoadMarket time for spot markets when empty
	BaseDecimals  int
	QuoteDecimals int
	PriceScale    int64
}

// Registry is the immutable lookup structure built once at startup and passed
// to every component that needs market metadata.
type Registry struct {
	bySymbol  map[string]Descriptor
	byAddress map[string]Descriptor
	symbols   []string
}

// NewRegistry validates the configured markets and builds the registry.
// Any market missing required fields aborts startup rather than being
// silently defaulted.
func NewRegistry(configs []config.MarketConfig) (*Registry, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no markets configured")
	}

	r := &Registry{
		bySymbol:  make(map[string]Descriptor, len(configs)),
		byAddress: make(map[string]Descriptor, len(configs)),
	}

	for _, mc := range configs {
		d := Descriptor{
			Symbol:        mc.Symbol,
			Kind:          Kind(mc.Kind),
			ProgramID:     mc.ProgramID,
			Address:       mc.Address,
			EventQueue:    mc.EventQueue,
			BaseDecimals:  mc.BaseDecimals,
			QuoteDecimals: mc.QuoteDecimals,
			PriceScale:    mc.PriceScale,
		}

		if err := validate(d); err != nil {
			return nil, fmt.Errorf("market %q: %w", mc.Symbol, err)
		}
		if _, dup := r.bySymbol[d.Symbol]; dup {
			return nil, fmt.Errorf("market %q: duplicate symbol", d.Symbol)
		}
		if _, dup := r.byAddress[d.Address]; dup {
			return nil, fmt.Errorf("market %q: duplicate address %s", d.Symbol, d.Address)
		}

		r.bySymbol[d.Symbol] = d
		r.byAddress[d.Address] = d
		r.symbols = append(r.symbols, d.Symbol)
	}

	sort.Strings(r.symbols)
	return r, nil
}

func validate(d Descriptor) error {
	if d.Symbol == "" {
		return fmt.Errorf("missing symbol")
	}
	if d.Address == "" {
		return fmt.Errorf("missing address")
	}
	switch d.Kind {
	case Spot:
		if d.ProgramID == "" {
			return fmt.Errorf("spot market requires program_id")
		}
	case Perpetual:
		if d.EventQueue == "" {
			return fmt.Errorf("perpetual market requires event_queue")
		}
	default:
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	if d.BaseDecimals < 0 || d.QuoteDecimals < 0 {
		return fmt.Errorf("negative decimals")
	}
	if d.PriceScale <= 0 {
		return fmt.Errorf("price_scale must be positive")
	}
	return nil
}

// BySymbol looks a market up by its display symbol (e.g. "SOL/USDC").
func (r *Registry) BySymbol(symbol string) (Descriptor, bool) {
	d, ok := r.bySymbol[symbol]
	return d, ok
}

// ByAddress looks a market up by its on-chain account address.
func (r *Registry) ByAddress(address string) (Descriptor, bool) {
	d, ok := r.byAddress[address]
	return d, ok
}

// Symbols returns all configured symbols in sorted order.
func (r *Registry) Symbols() []string {
	out := make([]string, len(r.symbols))
	copy(out, r.symbols)
	return out
}

// All returns every configured descriptor, ordered by symbol.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, 0, len(r.symbols))
	for _, s := range r.symbols {
		out = append(out, r.bySymbol[s])
	}
	return out
}
