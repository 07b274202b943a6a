package fake

import (
	"sync"

	"github.com/lk2023060901/steamfleet/app/fleet/internal/steam"
)

type communityClient struct {
	p        *Platform
	username string

	mu             sync.Mutex
	cookies        []string
	checkerStopped int
}

func (c *communityClient) SetCookies(cookies []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cookies = append([]string(nil), cookies...)
}

func (c *communityClient) GetConfirmations(keyTime int64, key string) ([]*steam.Confirmation, error) {
	c.mu.Lock()
	hasCookies := len(c.cookies) > 0
	c.mu.Unlock()

	if !hasCookies {
		return nil, steam.NewError(steam.CauseUnknown, "Not Logged In")
	}

	c.p.mu.Lock()
	defer c.p.mu.Unlock()
	if err := c.p.confirmErr[c.username]; err != nil {
		return nil, err
	}
	return append([]*steam.Confirmation(nil), c.p.confirmations[c.username]...), nil
}

func (c *communityClient) AcceptConfirmation(conf *steam.Confirmation, keyTime int64, allowKey string) error {
	c.p.mu.Lock()
	defer c.p.mu.Unlock()

	if err := c.p.acceptErr[conf.ID]; err != nil {
		return err
	}

	pending := c.p.confirmations[c.username]
	for i, pc := range pending {
		if pc.ID == conf.ID {
			c.p.confirmations[c.username] = append(pending[:i:i], pending[i+1:]...)
			break
		}
	}
	c.p.acceptedConfs[c.username] = append(c.p.acceptedConfs[c.username], conf.ID)
	return nil
}

func (c *communityClient) LoadInventory(steamID string, opts *steam.InventoryOptions) (*steam.Inventory, error) {
	acct := c.p.account(c.username)
	if acct == nil {
		return &steam.Inventory{}, nil
	}

	items := acct.Inventory
	if opts.Count > 0 && len(items) > opts.Count {
		return &steam.Inventory{
			Items:      append([]steam.Item(nil), items[:opts.Count]...),
			TotalCount: len(items),
			MoreStart:  "next",
		}, nil
	}
	return &steam.Inventory{
		Items:      append([]steam.Item(nil), items...),
		TotalCount: len(items),
	}, nil
}

func (c *communityClient) LoadInventoryContext(steamID string) (map[string]any, error) {
	return map[string]any{"steam_id": steamID}, nil
}

func (c *communityClient) StopConfirmationChecker() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkerStopped++
	return nil
}
