// bus.go
package bus

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// -----------------------------------------------------------------------------
// Tokens + Topics
// -----------------------------------------------------------------------------

// Topic is a sequence of tokens. Tokens are comparable scalars
// (strings, integers, bools); build topics with T to validate them.
type Topic []any

// T builds a Topic and panics if a token is not a comparable scalar.
// Non-comparable tokens (slices, maps) would panic later inside the
// trie map, far from the call site that produced them.
func T(tokens ...any) Topic {
	for _, tok := range tokens {
		switch tok.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64:
		default:
			panic("bus: topic token must be a string, bool or integer")
		}
	}
	return Topic(tokens)
}

func (t Topic) Len() int     { return len(t) }
func (t Topic) At(i int) any { return t[i] }

// -----------------------------------------------------------------------------
// Message
// -----------------------------------------------------------------------------

type Message struct {
	Topic    Topic
	Payload  any
	Retained bool
	ReplyTo  Topic
}

// CanReply reports whether the sender asked for a reply.
func (m *Message) CanReply() bool { return len(m.ReplyTo) > 0 }

var ErrNoReplyTo = errors.New("bus: message has no reply topic")
var ErrClosed = errors.New("bus: subscription closed")

// -----------------------------------------------------------------------------
// Subscription
// -----------------------------------------------------------------------------

type Subscription struct {
	topic Topic
	ch    chan *Message
	bus   *Bus
	conn  *Connection // owning connection
}

func (s *Subscription) Topic() Topic             { return s.topic }
func (s *Subscription) Channel() <-chan *Message { return s.ch }
func (s *Subscription) Unsubscribe()             { s.conn.Unsubscribe(s) }

// push enqueues without blocking, dropping the oldest queued message
// when the subscriber is full. Sends are serialised by the bus lock,
// so the retry always terminates.
func (s *Subscription) push(m *Message) {
	for {
		select {
		case s.ch <- m:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// -----------------------------------------------------------------------------
// Trie node
// -----------------------------------------------------------------------------

type node struct {
	children map[any]*node
	subs     []*Subscription
	retained *Message
}

// -----------------------------------------------------------------------------
// Bus
// -----------------------------------------------------------------------------

type Bus struct {
	mu   sync.RWMutex
	root *node
	qLen int

	single any // matches exactly one level
	multi  any // matches the rest of the topic, including zero levels

	seq atomic.Uint32 // reply topic uniquifier
}

// NewBus creates a bus with the given subscription queue length.
// The optional wildcards override the MQTT-style defaults: the first
// matches a single level, the second any remaining levels.
func NewBus(queueLen int, wildcards ...string) *Bus {
	if queueLen <= 0 {
		queueLen = 8 // safe default
	}
	b := &Bus{
		root:   &node{},
		qLen:   queueLen,
		single: "+",
		multi:  "#",
	}
	if len(wildcards) > 0 {
		b.single = wildcards[0]
	}
	if len(wildcards) > 1 {
		b.multi = wildcards[1]
	}
	return b
}

// NewMessage builds a message for this bus.
func (b *Bus) NewMessage(topic Topic, payload any, retained bool) *Message {
	return &Message{Topic: topic, Payload: payload, Retained: retained}
}

// addSubscription inserts a subscription into the trie, with wildcard
// tokens stored as ordinary keys, then replays matching retained
// messages.
func (b *Bus) addSubscription(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[any]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}

	n.subs = append(n.subs, sub)

	b.replayRetained(b.root, topic, sub)
}

// Publish delivers a message to every matching subscriber and updates
// retained state at the exact topic node.
func (b *Bus) Publish(msg *Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.deliver(b.root, msg.Topic, msg)

	if msg.Retained {
		if msg.Payload == nil {
			b.clearRetained(msg.Topic)
		} else {
			b.setRetained(msg.Topic, msg)
		}
	}
}

// deliver walks the trie matching tokens against exact children, the
// single-level wildcard, and the multi-level wildcard. A multi-level
// node matches the remaining tokens including none of them.
func (b *Bus) deliver(n *node, tokens Topic, msg *Message) {
	if h, ok := n.children[b.multi]; ok {
		for _, sub := range h.subs {
			sub.push(msg)
		}
	}
	if len(tokens) == 0 {
		for _, sub := range n.subs {
			sub.push(msg)
		}
		return
	}
	tok := tokens[0]
	if tok != b.single && tok != b.multi {
		if child, ok := n.children[tok]; ok {
			b.deliver(child, tokens[1:], msg)
		}
	}
	if child, ok := n.children[b.single]; ok {
		b.deliver(child, tokens[1:], msg)
	}
}

func (b *Bus) setRetained(topic Topic, msg *Message) {
	n := b.root
	for _, tok := range topic {
		if n.children == nil {
			n.children = make(map[any]*node)
		}
		child, ok := n.children[tok]
		if !ok {
			child = &node{}
			n.children[tok] = child
		}
		n = child
	}
	n.retained = msg
}

func (b *Bus) clearRetained(topic Topic) {
	n := b.root
	for _, tok := range topic {
		child, ok := n.children[tok]
		if !ok {
			return
		}
		n = child
	}
	n.retained = nil
}

// replayRetained walks the subscription pattern against stored
// retained messages. Wildcard expansion skips wildcard-keyed children;
// those are subscription paths, not publication levels.
func (b *Bus) replayRetained(n *node, pattern Topic, sub *Subscription) {
	if len(pattern) == 0 {
		if n.retained != nil {
			sub.push(n.retained)
		}
		return
	}
	switch tok := pattern[0]; tok {
	case b.single:
		for key, child := range n.children {
			if key == b.single || key == b.multi {
				continue
			}
			b.replayRetained(child, pattern[1:], sub)
		}
	case b.multi:
		b.replayAllUnder(n, sub)
	default:
		if child, ok := n.children[tok]; ok {
			b.replayRetained(child, pattern[1:], sub)
		}
	}
}

func (b *Bus) replayAllUnder(n *node, sub *Subscription) {
	if n.retained != nil {
		sub.push(n.retained)
	}
	for key, child := range n.children {
		if key == b.single || key == b.multi {
			continue
		}
		b.replayAllUnder(child, sub)
	}
}

// unsubscribe removes a subscription from the trie.
func (b *Bus) unsubscribe(topic Topic, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := b.root
	var stack []*node
	for _, tok := range topic {
		if n.children == nil {
			return
		}
		child, ok := n.children[tok]
		if !ok {
			return
		}
		stack = append(stack, n)
		n = child
	}

	// Remove subscription.
	for i, s := range n.subs {
		if s == sub {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			break
		}
	}

	// Prune empty nodes.
	for i := len(topic) - 1; i >= 0; i-- {
		parent := stack[i]
		key := topic[i]
		child := parent.children[key]
		if len(child.subs) == 0 && len(child.children) == 0 && child.retained == nil {
			delete(parent.children, key)
		} else {
			break
		}
	}
}

// -----------------------------------------------------------------------------
// Connection
// -----------------------------------------------------------------------------

type Connection struct {
	bus  *Bus
	subs []*Subscription
	mu   sync.Mutex
	id   string
}

// NewConnection creates a new connection bound to this bus.
func (b *Bus) NewConnection(id string) *Connection {
	return &Connection{
		bus: b,
		id:  id,
	}
}

// NewMessage builds a message for this connection's bus.
func (c *Connection) NewMessage(topic Topic, payload any, retained bool) *Message {
	return c.bus.NewMessage(topic, payload, retained)
}

// Publish sends a message via the bus.
func (c *Connection) Publish(msg *Message) {
	c.bus.Publish(msg)
}

// Subscribe registers a subscription owned by this connection.
func (c *Connection) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan *Message, c.bus.qLen),
		bus:   c.bus,
		conn:  c,
	}
	c.bus.addSubscription(topic, sub)
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return sub
}

// Unsubscribe removes a subscription owned by this connection. The
// trie entry goes first so no publish can race the channel close.
func (c *Connection) Unsubscribe(sub *Subscription) {
	c.bus.unsubscribe(sub.topic, sub)
	c.mu.Lock()
	for i, s := range c.subs {
		if s == sub {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	close(sub.ch)
}

// Disconnect closes all subscriptions and clears them.
func (c *Connection) Disconnect() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		c.bus.unsubscribe(sub.topic, sub)
		close(sub.ch)
	}
}

// Reply publishes payload to the request's reply topic.
func (c *Connection) Reply(req *Message, payload any, retained bool) error {
	if !req.CanReply() {
		return ErrNoReplyTo
	}
	c.Publish(c.NewMessage(req.ReplyTo, payload, retained))
	return nil
}

// Request stamps a unique reply topic onto req, subscribes to it, and
// publishes the request. The caller owns the returned subscription and
// must Unsubscribe it.
func (c *Connection) Request(req *Message) *Subscription {
	seq := c.bus.seq.Add(1)
	req.ReplyTo = Topic{"$reply", c.id, seq}
	sub := c.Subscribe(req.ReplyTo)
	c.Publish(req)
	return sub
}

// RequestWait performs Request and blocks for the first reply or
// context cancellation.
func (c *Connection) RequestWait(ctx context.Context, req *Message) (*Message, error) {
	sub := c.Request(req)
	defer c.Unsubscribe(sub)

	select {
	case m, ok := <-sub.Channel():
		if !ok {
			return nil, ErrClosed
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
