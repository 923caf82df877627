// internal/protocol/link.go
package protocol

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tamzrod/isp-bridge/internal/transport"
)

// Link is the single owner of one physical device's transport and lock.
// Every logical device (virtual channel) on that transport holds the same
// *Link, so their operations are serialized by one mutex.
type Link struct {
	mu  sync.Mutex
	tr  transport.Transport
	cfg Config
	key string

	chMu     sync.Mutex
	channels map[int]struct{}
}

// NewLink wraps a transport. A nil transport is accepted here and rejected
// by every operation with ErrInvalidArgument.
func NewLink(key string, tr transport.Transport, cfg Config) *Link {
	return &Link{
		tr:       tr,
		cfg:      cfg.normalize(),
		key:      key,
		channels: make(map[int]struct{}),
	}
}

// Key identifies the physical device, e.g. "/dev/i2c-1@0x48".
func (l *Link) Key() string { return l.key }

// Config returns the normalized link configuration.
func (l *Link) Config() Config { return l.cfg }

// Channels lists the virtual channels bound to this link.
func (l *Link) Channels() []int {
	l.chMu.Lock()
	defer l.chMu.Unlock()

	out := make([]int, 0, len(l.channels))
	for vc := range l.channels {
		out = append(out, vc)
	}
	sort.Ints(out)
	return out
}

func (l *Link) bind(vc int) {
	l.chMu.Lock()
	l.channels[vc] = struct{}{}
	l.chMu.Unlock()
}

// Do runs fn while holding the link lock. The lock is taken before fn
// starts and released when Do returns, panics included.
func (l *Link) Do(op string, fn func(s *Session) error) error {
	if l == nil || l.tr == nil {
		return invalid(op, "nil transport")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	s := &Session{
		tr:   l.tr,
		cfg:  l.cfg,
		regs: l.cfg.Registers,
		op:   op,
		log:  l.cfg.Logger.With().Str("link", l.key).Str("op", op).Logger(),
	}
	return fn(s)
}

// Exec runs one complete operation: open, optional data phase, close.
// buf is the destination for reads and the source for writes; its length
// must equal d.Length.
func (l *Link) Exec(op string, d Descriptor, buf []byte) error {
	if _, err := d.Options(); err != nil {
		return invalid(op, "%v", err)
	}
	if len(buf) != int(d.Length) {
		return invalid(op, "buffer length %d does not match descriptor length %d", len(buf), d.Length)
	}

	return l.Do(op, func(s *Session) error {
		if err := s.Open(d); err != nil {
			return err
		}

		switch d.Direction() {
		case DirRead:
			if err := s.ReadData(buf); err != nil {
				return err
			}
		case DirWrite:
			if err := s.WriteData(buf); err != nil {
				return err
			}
		}

		return s.Close()
	})
}

// Registry maps physical devices to their Link. It is created by the
// caller at startup and closed at shutdown.
type Registry struct {
	mu    sync.Mutex
	cfg   Config
	links map[string]*Link
	log   zerolog.Logger
}

// NewRegistry creates an empty registry. cfg is applied to every link.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:   cfg,
		links: make(map[string]*Link),
		log:   cfg.Logger,
	}
}

// Attach binds virtual channel vc of the physical device key. The first
// attach for a key calls open to create the transport; later attaches,
// whatever their channel, share that link.
func (r *Registry) Attach(key string, vc int, open func() (transport.Transport, error)) (*Link, error) {
	if vc < 0 {
		return nil, fmt.Errorf("registry: negative virtual channel %d", vc)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.links == nil {
		return nil, fmt.Errorf("registry: closed")
	}

	if l, ok := r.links[key]; ok {
		l.bind(vc)
		r.log.Debug().Str("link", key).Int("vc", vc).Msg("virtual channel joined shared link")
		return l, nil
	}

	if open == nil {
		return nil, fmt.Errorf("registry: no transport factory for %s", key)
	}
	tr, err := open()
	if err != nil {
		return nil, fmt.Errorf("registry: open %s: %w", key, err)
	}

	l := NewLink(key, tr, r.cfg)
	l.bind(vc)
	r.links[key] = l
	r.log.Info().Str("link", key).Int("vc", vc).Msg("link opened")
	return l, nil
}

// Lookup returns the link for key, if attached.
func (r *Registry) Lookup(key string) (*Link, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[key]
	return l, ok
}

// Close closes every transport that implements io.Closer. The registry
// cannot be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var last error
	for key, l := range r.links {
		c, ok := l.tr.(io.Closer)
		if !ok {
			continue
		}
		// wait for an in-flight operation before pulling the transport
		l.mu.Lock()
		err := c.Close()
		l.mu.Unlock()
		if err != nil {
			r.log.Warn().Err(err).Str("link", key).Msg("link close failed")
			last = err
		}
	}
	r.links = nil
	return last
}
