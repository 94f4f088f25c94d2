// Package venue adapts on-chain trading programs to the ingestion loop: it
// resolves a market's event-queue account and fetches its raw bytes.
package venue

import (
	"context"
	"fmt"

	"tradehistory/internal/market"

	"github.com/mr-tron/base58"
)

// eventQueueOffset is where the event-queue pubkey sits in a spot market
// account (after flags, own address, vaults, mints and the request queue).
const eventQueueOffset = 253

const pubkeyLen = 32

// Handle is a loaded market: everything the poll loop needs to fetch its
// queue on every iteration without re-resolving accounts.
type Handle struct {
	Symbol     string
	EventQueue string
}

// Venue abstracts one market kind's account mechanics.
type Venue interface {
	LoadMarket(ctx context.Context, d market.Descriptor) (*Handle, error)
	FetchRawEventQueue(ctx context.Context, h *Handle) ([]byte, error)
}

type queueFetcher struct {
	rpc *RPCClient
}

func (f queueFetcher) FetchRawEventQueue(ctx context.Context, h *Handle) ([]byte, error) {
	raw, err := f.rpc.AccountData(ctx, h.EventQueue)
	if err != nil {
		return nil, fmt.Errorf("fetch event queue for %s: %w", h.Symbol, err)
	}
	return raw, nil
}

// SpotVenue serves order-book spot markets. When the descriptor omits the
// event-queue address it is read out of the market account itself.
type SpotVenue struct {
	queueFetcher
}

func NewSpotVenue(rpc *RPCClient) *SpotVenue {
	return &SpotVenue{queueFetcher{rpc: rpc}}
}

func (v *SpotVenue) LoadMarket(ctx context.Context, d market.Descriptor) (*Handle, error) {
	if d.EventQueue != "" {
		return &Handle{Symbol: d.Symbol, EventQueue: d.EventQueue}, nil
	}

	data, err := v.rpc.AccountData(ctx, d.Address)
	if err != nil {
		return nil, fmt.Errorf("load market %s: %w", d.Symbol, err)
	}
	if len(data) < eventQueueOffset+pubkeyLen {
		return nil, fmt.Errorf("load market %s: account too short (%d bytes)", d.Symbol, len(data))
	}

	queue := base58.Encode(data[eventQueueOffset : eventQueueOffset+pubkeyLen])
	return &Handle{Symbol: d.Symbol, EventQueue: queue}, nil
}

// PerpVenue serves perpetual-futures markets, whose descriptors carry the
// event-queue address directly.
type PerpVenue struct {
	queueFetcher
}

func NewPerpVenue(rpc *RPCClient) *PerpVenue {
	return &PerpVenue{queueFetcher{rpc: rpc}}
}

func (v *PerpVenue) LoadMarket(ctx context.Context, d market.Descriptor) (*Handle, error) {
	if d.EventQueue == "" {
		return nil, fmt.Errorf("load market %s: perpetual descriptor missing event queue", d.Symbol)
	}
	return &Handle{Symbol: d.Symbol, EventQueue: d.EventQueue}, nil
}
