package identity

import (
	"context"
	"sync"
)

type change struct {
	id *Identity
	// target - единственный получатель (первый вызов Observe), nil - все
	target func(*Identity)
}

// Client хранит текущую сессию поверх Provider и оповещает наблюдателей
// о каждой смене учетной записи (nil - не вошли). Оповещения идут по одному
// в порядке изменений; изменение, сделанное из колбэка, доставляется после него.
type Client struct {
	provider Provider

	mu          sync.Mutex
	current     *Identity
	observers   map[uint64]func(*Identity)
	nextID      uint64
	queue       []change
	dispatching bool
}

func NewClient(provider Provider) *Client {
	return &Client{
		provider:  provider,
		observers: make(map[uint64]func(*Identity)),
	}
}

func (c *Client) Provider() Provider {
	return c.provider
}

func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyIdentity(c.current)
}

// Observe сообщает текущее состояние, затем каждое изменение.
// Возвращает функцию отписки.
func (c *Client) Observe(fn func(*Identity)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[id] = fn
	current := copyIdentity(c.current)
	c.mu.Unlock()

	c.dispatch(change{id: current, target: fn})

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Establish делает id текущей сессией. Нужен, когда учетную запись
// создают через Provider напрямую и профиль готовится до оповещения.
func (c *Client) Establish(id Identity) {
	c.set(&id)
}

// SignOut завершает сессию у провайдера; локальное состояние сбрасывается всегда
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Current()
	var err error
	if current != nil {
		err = c.provider.EndSession(ctx, *current)
	}
	c.set(nil)
	return err
}

func (c *Client) set(id *Identity) {
	c.mu.Lock()
	c.current = copyIdentity(id)
	c.mu.Unlock()
	c.dispatch(change{id: copyIdentity(id)})
}

func (c *Client) dispatch(ch change) {
	c.mu.Lock()
	c.queue = append(c.queue, ch)
	if c.dispatching {
		c.mu.Unlock()
		return
	}
	c.dispatching = true
	for len(c.queue) > 0 {
		next := c.queue[0]
		c.queue = c.queue[1:]
		var targets []func(*Identity)
		if next.target != nil {
			targets = append(targets, next.target)
		} else {
			for _, fn := range c.observers {
				targets = append(targets, fn)
			}
		}
		c.mu.Unlock()
		for _, fn := range targets {
			fn(copyIdentity(next.id))
		}
		c.mu.Lock()
	}
	c.dispatching = false
	c.mu.Unlock()
}

func copyIdentity(id *Identity) *Identity {
	if id == nil {
		return nil
	}
	out := *id
	return &out
}
