package fake

import (
	"fmt"
	"sync"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

type tradeClient struct {
	p        *Platform
	username string

	mu       sync.Mutex
	shutdown int
	offerSeq int
}

func (t *tradeClient) SetCookies(cookies []string) (string, error) {
	if len(cookies) == 0 {
		return "", fmt.Errorf("no cookies given")
	}

	acct := t.p.account(t.username)
	if acct != nil {
		if acct.FailAPIKey != nil {
			return "", acct.FailAPIKey
		}
		if acct.APIKey != "" {
			return acct.APIKey, nil
		}
	}
	return "FAKEKEY-" + t.username, nil
}

func (t *tradeClient) GetOffer(id string) (*steam.TradeOffer, error) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	o, ok := t.p.offers[id]
	if !ok {
		return nil, fmt.Errorf("offer %s not found", id)
	}
	return o, nil
}

func (t *tradeClient) GetActiveOffers() (sent, received []*steam.TradeOffer, err error) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	for _, o := range t.p.offers {
		if o.IsOurOffer {
			sent = append(sent, o)
		} else {
			received = append(received, o)
		}
	}
	return sent, received, nil
}

func (t *tradeClient) AcceptOffer(id string) (string, error) {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	o, ok := t.p.offers[id]
	if !ok {
		return "", fmt.Errorf("offer %s not found", id)
	}
	o.Status = "accepted"
	return o.Status, nil
}

func (t *tradeClient) CancelOffer(id string) error {
	t.p.mu.Lock()
	defer t.p.mu.Unlock()

	o, ok := t.p.offers[id]
	if !ok {
		return fmt.Errorf("offer %s not found", id)
	}
	o.Status = "cancelled"
	return nil
}

func (t *tradeClient) GetEscrow(draft *steam.OfferDraft) (*steam.EscrowDetails, error) {
	acct := t.p.account(t.username)
	if acct == nil {
		return &steam.EscrowDetails{}, nil
	}
	escrow := acct.Escrow
	return &escrow, nil
}

func (t *tradeClient) SendOffer(draft *steam.OfferDraft) (*steam.TradeOffer, error) {
	t.mu.Lock()
	t.offerSeq++
	id := fmt.Sprintf("%s-offer-%d", t.username, t.offerSeq)
	t.mu.Unlock()

	o := &steam.TradeOffer{
		ID:             id,
		IsOurOffer:     true,
		ItemsToGive:    draft.ItemsFromBot,
		ItemsToReceive: draft.ItemsFromUser,
		Partner:        draft.Partner,
		Message:        draft.Message,
		Status:         "sent",
	}

	t.p.mu.Lock()
	t.p.offers[id] = o
	t.p.mu.Unlock()
	return o, nil
}

func (t *tradeClient) GetOfferToken() (string, error) {
	acct := t.p.account(t.username)
	if acct == nil || acct.OfferToken == "" {
		return "", fmt.Errorf("no offer token for %s", t.username)
	}
	return acct.OfferToken, nil
}

func (t *tradeClient) Shutdown() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.shutdown++
	return nil
}
