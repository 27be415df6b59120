package catalogclient

import (
	"context"
	"sync"
	"time"

	"toolcatalog/internal/domain"
	"toolcatalog/internal/filter"

	"go.uber.org/zap"
)

// DefaultSearchDebounce is how long search input must settle before it is sent
const DefaultSearchDebounce = 400 * time.Millisecond

// ProductLister is the part of Client a Session needs
type ProductLister interface {
	ListProducts(ctx context.Context, opts ListOptions) ([]domain.Product, error)
}

// Result is one completed listing. Products are already in display order.
type Result struct {
	Selection filter.Selection
	Products  []domain.Product
	Err       error
}

type SessionOption func(*Session)

// WithSearchDebounce overrides DefaultSearchDebounce
func WithSearchDebounce(d time.Duration) SessionOption {
	return func(s *Session) { s.debounce = d }
}

// WithListOptions sets the secondary filters sent with every listing
func WithListOptions(opts ListOptions) SessionOption {
	return func(s *Session) { s.base = opts }
}

// Session holds the filter state of one browsing user. Category and letter
// changes fetch immediately; search changes are debounced. Only the result of
// the latest change is delivered.
type Session struct {
	lister   ProductLister
	logger   *zap.Logger
	debounce time.Duration
	base     ListOptions
	results  chan Result

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      filter.State
	generation uint64
	pending    *time.Timer
	inflight   context.CancelFunc
	closed     bool
	wg         sync.WaitGroup
}

func NewSession(lister ProductLister, logger *zap.Logger, opts ...SessionOption) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		lister:   lister,
		logger:   logger,
		debounce: DefaultSearchDebounce,
		results:  make(chan Result, 1),
		ctx:      ctx,
		cancel:   cancel,
		state:    filter.NewState(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Results delivers listings in the order changes were made, skipping superseded ones
func (s *Session) Results() <-chan Result { return s.results }

// State returns the current filter cells
func (s *Session) State() filter.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh refetches the current selection immediately
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.scheduleLocked(0)
	}
}

func (s *Session) SetCategory(name string) {
	s.apply(func(st filter.State) (filter.State, error) { return st.SetCategory(name), nil }, 0)
}

func (s *Session) SetLetter(ch string) error {
	return s.apply(func(st filter.State) (filter.State, error) { return st.SetLetter(ch) }, 0)
}

func (s *Session) SetSearch(term string) {
	s.apply(func(st filter.State) (filter.State, error) { return st.SetSearch(term), nil }, s.debounce)
}

func (s *Session) Clear() {
	s.apply(func(st filter.State) (filter.State, error) { return st.Clear(), nil }, 0)
}

// Close stops pending and in-flight fetches and closes Results
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.generation++
	if s.pending != nil {
		s.pending.Stop()
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	close(s.results)
}

func (s *Session) apply(transition func(filter.State) (filter.State, error), delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	next, err := transition(s.state)
	if err != nil {
		return err
	}
	if next.Selection() == s.state.Selection() {
		return nil
	}
	s.state = next
	s.scheduleLocked(delay)
	return nil
}

// scheduleLocked supersedes any pending or in-flight fetch
func (s *Session) scheduleLocked(delay time.Duration) {
	s.generation++
	gen := s.generation
	sel := s.state.Selection()

	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	if s.inflight != nil {
		s.inflight()
		s.inflight = nil
	}

	if delay <= 0 {
		s.startLocked(gen, sel)
		return
	}
	s.pending = time.AfterFunc(delay, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen != s.generation || s.closed {
			return
		}
		s.pending = nil
		s.startLocked(gen, sel)
	})
}

func (s *Session) startLocked(gen uint64, sel filter.Selection) {
	ctx, cancel := context.WithCancel(s.ctx)
	s.inflight = cancel
	s.wg.Add(1)
	go s.fetch(ctx, cancel, gen, sel)
}

func (s *Session) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, sel filter.Selection) {
	defer s.wg.Done()
	defer cancel()

	opts := s.base
	opts.Selection = sel
	products, err := s.lister.ListProducts(ctx, opts)
	result := Result{Selection: sel, Products: SortForDisplay(products), Err: err}

	if !s.deliver(gen, result) {
		return
	}
	if err != nil {
		s.logger.Warn("Product listing failed",
			zap.String("filter", string(sel.Kind())),
			zap.String("value", sel.Value()),
			zap.Error(err),
		)
	}
}

// deliver publishes result if gen is still the latest change. The buffered slot is
// only written under mu, so after draining it the send cannot block.
func (s *Session) deliver(gen uint64, result Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return false
	}
	s.inflight = nil

	// Replace an undelivered result so a slow reader only sees the latest listing
	select {
	case <-s.results:
	default:
	}
	s.results <- result
	return true
}
