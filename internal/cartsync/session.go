// Package cartsync keeps a shopper's cart on the device and mirrors it to the
// server while they are signed in.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/crochet_shop/internal/cart"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/shipping"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	writeTimeout    = 10 * time.Second
)

var (
	ErrUnauthenticated = errors.New("cartsync: not signed in")
	ErrNoProductID     = errors.New("cartsync: item has no product id")
	ErrUnknownItem     = errors.New("cartsync: item not in cart")
	ErrNothingToOrder  = errors.New("cartsync: nothing to order")
	ErrClosed          = errors.New("cartsync: session closed")
)

// CheckoutError names the products an order could not be placed for.
type CheckoutError struct {
	ProductIDs []string
	Err        error
}

func (e *CheckoutError) Error() string {
	return fmt.Sprintf("checkout failed for %s: %v", strings.Join(e.ProductIDs, ", "), e.Err)
}

func (e *CheckoutError) Unwrap() error { return e.Err }

// Remote is the server side of the cart. *cartclient.Client satisfies it.
type Remote interface {
	GetCart(ctx context.Context, token string, userID uuid.UUID) (*models.Cart, error)
	SaveCart(ctx context.Context, token string, userID uuid.UUID, req transport.SaveCartRequest) (*models.Cart, error)
	PlaceOrder(ctx context.Context, token string, req transport.PlaceOrderRequest) (*models.Order, error)
}

type Option func(*Session)

func WithDebounce(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.debounce = d
		}
	}
}

// WithSyncErrorHandler receives failures of background writes.
func WithSyncErrorHandler(fn func(error)) Option {
	return func(s *Session) { s.onSyncError = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// Session is one shopper's cart. It is safe for concurrent use.
type Session struct {
	remote      Remote
	store       LocalStore
	debounce    time.Duration
	onSyncError func(error)
	log         *slog.Logger

	// writeMu keeps remote writes in mutation order.
	writeMu sync.Mutex

	mu        sync.Mutex
	state     State
	confirmed State
	userID    uuid.UUID
	token     string
	timer     *time.Timer
	gen       uint64
	version   uint64
	closed    bool
}

// NewSession hydrates a guest session from the local store.
func NewSession(ctx context.Context, remote Remote, store LocalStore, opts ...Option) (*Session, error) {
	s := &Session{
		remote:   remote,
		store:    store,
		debounce: DefaultDebounce,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	st, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load local cart: %w", err)
	}
	s.state = st.clone()
	return s, nil
}

func (s *Session) Items() []cart.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.state.Items)
}

func (s *Session) Shipping() Shipping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone().Shipping
}

func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated()
}

func (s *Session) authenticated() bool {
	return s.token != "" && s.userID != uuid.Nil
}

func (s *Session) indexOf(id string) int {
	return slices.IndexFunc(s.state.Items, func(it cart.Item) bool { return it.ProductID == id })
}

// Add puts qty of item into the cart, adding to an existing line with the
// same product id.
func (s *Session) Add(item cart.Item, qty int) error {
	id := cart.ResolveProductID(item)
	if id == "" {
		return ErrNoProductID
	}
	qty = cart.NormalizeQuantity(qty)

	return s.mutate(func() error {
		if i := s.indexOf(id); i >= 0 {
			s.state.Items[i].Quantity += qty
			return nil
		}
		item.DatabaseID, item.ID, item.ProductID = "", "", id
		item.Quantity = qty
		s.state.Items = append(s.state.Items, item)
		return nil
	})
}

// UpdateQuantity sets a line's quantity. Zero or less removes the line.
func (s *Session) UpdateQuantity(productID string, qty int) error {
	if qty <= 0 {
		return s.Remove(productID)
	}
	return s.mutate(func() error {
		i := s.indexOf(productID)
		if i < 0 {
			return ErrUnknownItem
		}
		s.state.Items[i].Quantity = qty
		return nil
	})
}

func (s *Session) Remove(productID string) error {
	return s.mutate(func() error {
		i := s.indexOf(productID)
		if i < 0 {
			return ErrUnknownItem
		}
		s.state.Items = slices.Delete(s.state.Items, i, i+1)
		return nil
	})
}

func (s *Session) Clear() error {
	return s.mutate(func() error {
		s.state.Items = []cart.Item{}
		return nil
	})
}

func (s *Session) SetShipping(sh Shipping) error {
	if sh.Region != "" || sh.City != "" {
		if _, err := shipping.Fee(sh.Region, sh.City); err != nil {
			return fmt.Errorf("cartsync: %w: %s/%s", err, sh.Region, sh.City)
		}
	}
	return s.mutate(func() error {
		s.state.Shipping = State{Shipping: sh}.clone().Shipping
		return nil
	})
}

// mutate applies fn, saves the result on the device and, when signed in,
// schedules a debounced write of the whole cart.
func (s *Session) mutate(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := fn(); err != nil {
		return err
	}
	s.version++
	if s.authenticated() {
		s.scheduleLocked()
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return s.saveLocked(ctx)
}

func (s *Session) saveLocked(ctx context.Context) error {
	return s.store.Save(ctx, s.state)
}

func (s *Session) scheduleLocked() {
	s.gen++
	g := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		if err := s.write(ctx, g, true); err != nil {
			s.log.Warn("cart_sync_error", "error", err)
			if s.onSyncError != nil {
				s.onSyncError(err)
			}
		}
	})
}

// cancelPendingLocked drops a scheduled write and invalidates one that has
// fired but not yet started.
func (s *Session) cancelPendingLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// write sends the current state if generation g is still the latest. On
// failure with rollback set and no newer change pending, the cart returns to
// what the server last confirmed.
func (s *Session) write(ctx context.Context, g uint64, rollback bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if g != s.gen || !s.authenticated() || s.closed {
		s.mu.Unlock()
		return nil
	}
	snapshot := s.state.clone()
	userID, token := s.userID, s.token
	s.mu.Unlock()

	stored, err := s.remote.SaveCart(ctx, token, userID, saveRequest(snapshot))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if rollback && g == s.gen {
			s.state = s.confirmed.clone()
			if serr := s.saveLocked(ctx); serr != nil {
				s.log.Warn("cart_local_save_error", "error", serr)
			}
		}
		return fmt.Errorf("save cart: %w", err)
	}
	s.confirmed = stateFromCart(stored, snapshot.Shipping)
	return nil
}

// Flush writes the cart now instead of waiting for the debounce.
func (s *Session) Flush(ctx context.Context) error {
	return s.flush(ctx, true)
}

func (s *Session) flush(ctx context.Context, rollback bool) error {
	s.mu.Lock()
	if !s.authenticated() {
		s.mu.Unlock()
		return nil
	}
	s.cancelPendingLocked()
	g := s.gen
	s.mu.Unlock()
	return s.write(ctx, g, rollback)
}

// Login merges the device cart into the server cart (server items first),
// stores the result on the server and adopts it. On error the session stays
// a guest session.
func (s *Session) Login(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil || token == "" {
		return ErrUnauthenticated
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	local := s.state.clone()
	seen := s.version
	s.mu.Unlock()

	server, err := s.remote.GetCart(ctx, token, userID)
	if err != nil {
		return fmt.Errorf("load server cart: %w", err)
	}

	serverState := stateFromCart(server, Shipping{})
	merged := mergeLogin(serverState, local)

	stored, err := s.remote.SaveCart(ctx, token, userID, saveRequest(merged))
	if err != nil {
		return fmt.Errorf("save merged cart: %w", err)
	}
	adopted := stateFromCart(stored, merged.Shipping)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
	s.userID, s.token = userID, token
	s.confirmed = adopted.clone()
	if s.version == seen {
		s.state = adopted.clone()
	} else {
		// The device cart changed while signing in: merge its latest state
		// with the server cart instead and send that.
		s.state = mergeLogin(serverState, s.state)
		if !s.closed {
			s.scheduleLocked()
		}
	}
	return s.saveLocked(ctx)
}

// mergeLogin puts server items first. The device's shipping choice wins
// unless it has none.
func mergeLogin(server, local State) State {
	merged := State{
		Items:    cart.Merge(server.Items, local.Items),
		Shipping: local.Shipping,
	}
	if merged.Shipping.IsZero() {
		merged.Shipping = server.Shipping
	}
	return merged.clone()
}

// Logout drops any pending write and keeps the cart on the device only.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelPendingLocked()
	s.userID, s.token = uuid.Nil, ""
	s.confirmed = State{}
	return s.saveLocked(ctx)
}

// Checkout places one order for productIDs, or for the whole cart when none
// are given. The cart is written first so the server sees what is ordered.
// Ordered lines leave the cart only when the order succeeds.
func (s *Session) Checkout(ctx context.Context, productIDs []string, address *models.ShippingAddress) (*models.Order, error) {
	s.mu.Lock()
	if !s.authenticated() {
		s.mu.Unlock()
		return nil, ErrUnauthenticated
	}
	lines := selectItems(s.state.Items, productIDs)
	sh := s.state.clone().Shipping
	s.mu.Unlock()

	ids := make([]string, len(lines))
	for i, it := range lines {
		ids[i] = it.ProductID
	}
	if len(lines) == 0 {
		return nil, &CheckoutError{ProductIDs: productIDs, Err: ErrNothingToOrder}
	}

	if err := s.flush(ctx, false); err != nil {
		s.mu.Lock()
		if s.authenticated() && !s.closed {
			s.scheduleLocked()
		}
		s.mu.Unlock()
		return nil, &CheckoutError{ProductIDs: ids, Err: err}
	}

	req, err := orderRequest(lines, sh, address)
	if err != nil {
		return nil, &CheckoutError{ProductIDs: ids, Err: err}
	}

	s.mu.Lock()
	userID, token := s.userID, s.token
	s.mu.Unlock()
	req.UserID = userID.String()

	order, err := s.remote.PlaceOrder(ctx, token, req)
	if err != nil {
		return nil, &CheckoutError{ProductIDs: ids, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Items = withoutIDs(s.state.Items, ids)
	s.confirmed.Items = withoutIDs(s.confirmed.Items, ids)
	if err := s.saveLocked(ctx); err != nil {
		s.log.Warn("cart_local_save_error", "error", err)
	}
	return order, nil
}

// Close stops background writes. A write already in flight finishes first.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.cancelPendingLocked()
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
}

func selectItems(items []cart.Item, ids []string) []cart.Item {
	if len(ids) == 0 {
		return slices.Clone(items)
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[strings.TrimSpace(id)] = struct{}{}
	}
	var out []cart.Item
	for _, it := range items {
		if _, ok := want[it.ProductID]; ok {
			out = append(out, it)
		}
	}
	return out
}

func withoutIDs(items []cart.Item, ids []string) []cart.Item {
	return slices.DeleteFunc(slices.Clone(items), func(it cart.Item) bool {
		return slices.Contains(ids, it.ProductID)
	})
}

func toTransport(items []cart.Item) []transport.CartItem {
	out := make([]transport.CartItem, len(items))
	for i, it := range items {
		q := it.Quantity
		out[i] = transport.CartItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  &q,
			Variation: it.Variation,
			Image:     it.Image,
		}
	}
	return out
}

func saveRequest(st State) transport.SaveCartRequest {
	req := transport.SaveCartRequest{
		Items:  toTransport(st.Items),
		Region: st.Shipping.Region,
		City:   st.Shipping.City,
	}
	if req.Region == "" && req.City == "" {
		req.ShippingAddress = st.Shipping.Address
		req.ShippingFee = st.Shipping.Fee
	}
	return req
}

func orderRequest(lines []cart.Item, sh Shipping, address *models.ShippingAddress) (transport.PlaceOrderRequest, error) {
	req := transport.PlaceOrderRequest{
		Products:        toTransport(lines),
		ShippingAddress: sh.Address,
		Region:          sh.Region,
		City:            sh.City,
	}
	if address != nil {
		req.ShippingAddress = address
	}

	fee := decimal.Zero
	switch {
	case sh.Region != "" || sh.City != "":
		f, err := shipping.Fee(sh.Region, sh.City)
		if err != nil {
			return req, err
		}
		fee = f
	case sh.Fee != nil:
		fee = *sh.Fee
		req.ShippingFee = &fee
	}

	total := fee
	for _, it := range lines {
		total = total.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	req.Total = &total
	return req, nil
}

func stateFromCart(c *models.Cart, fallback Shipping) State {
	st := State{Items: make([]cart.Item, 0, len(c.Items))}
	for _, it := range c.Items {
		st.Items = append(st.Items, cart.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Variation: it.Variation,
			Image:     it.Image,
		})
	}
	switch {
	case c.Region != "" || c.City != "":
		st.Shipping = Shipping{Region: c.Region, City: c.City}
	case !c.ShippingAddress.IsZero():
		addr := c.ShippingAddress
		fee := c.ShippingFee
		st.Shipping = Shipping{Address: &addr, Fee: &fee}
	default:
		st.Shipping = fallback
	}
	return st.clone()
}
