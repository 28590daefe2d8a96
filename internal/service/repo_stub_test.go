package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmeshcher/ink-panels/internal/media"
	"github.com/mmeshcher/ink-panels/internal/model"
	"github.com/mmeshcher/ink-panels/internal/payment"
	"github.com/mmeshcher/ink-panels/internal/repository"
)

// memRepo хранит данные в памяти и повторяет семантику PostgresRepository.
type memRepo struct {
	mu sync.Mutex

	users    map[string]*model.User
	wishlist map[string][]string
	manga    map[string]model.Manga
	orders   map[string]*model.Order
	otps     []*model.OTPVerification

	createMangaErr error
	createOrderErr error
	attachErr      error
	// otpRace отдаёт код конкурирующему запросу: MarkOTPUsed помечает запись и возвращает false.
	otpRace bool
	closed  bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		users:    make(map[string]*model.User),
		wishlist: make(map[string][]string),
		manga:    make(map[string]model.Manga),
		orders:   make(map[string]*model.Order),
	}
}

func (r *memRepo) Ping(context.Context) error { return nil }

func (r *memRepo) Close() error {
	r.closed = true
	return nil
}

func (r *memRepo) CreateUser(_ context.Context, u *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if existing.Email == u.Email {
			return nil, repository.ErrUserExists
		}
		if u.Username != "" && existing.Username == u.Username {
			return nil, repository.ErrUsernameTaken
		}
	}

	c := *u
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.users[c.ID] = &c

	res := c
	return &res, nil
}

func (r *memRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (r *memRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memRepo) UpdateUserProfile(_ context.Context, id, email, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	for otherID, other := range r.users {
		if otherID == id {
			continue
		}
		if other.Email == email {
			return nil, repository.ErrUserExists
		}
		if username != "" && other.Username == username {
			return nil, repository.ErrUsernameTaken
		}
	}

	u.EmailVerified = u.EmailVerified && u.Email == email
	u.Email = email
	u.Username = username
	c := *u
	return &c, nil
}

func (r *memRepo) MarkUserVerified(_ context.Context, id, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u.EmailVerified = true
	if username != "" {
		u.Username = username
	}
	c := *u
	return &c, nil
}

func (r *memRepo) UsernameTaken(_ context.Context, username, exceptID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.Username == username && u.ID != exceptID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) AddToWishlist(_ context.Context, userID, mangaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.manga[mangaID]; !ok {
		return repository.ErrMangaNotFound
	}
	for _, id := range r.wishlist[userID] {
		if id == mangaID {
			return nil
		}
	}
	r.wishlist[userID] = append(r.wishlist[userID], mangaID)
	return nil
}

func (r *memRepo) RemoveFromWishlist(_ context.Context, userID, mangaID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.wishlist[userID]
	for i, id := range list {
		if id == mangaID {
			r.wishlist[userID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) GetWishlist(_ context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.wishlist[userID]...), nil
}

func (r *memRepo) ListManga(context.Context) ([]model.Manga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Manga
	for _, m := range r.manga {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memRepo) GetManga(_ context.Context, id string) (*model.Manga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.manga[id]
	if !ok {
		return nil, repository.ErrMangaNotFound
	}
	return &m, nil
}

func (r *memRepo) GetMangaByIDs(_ context.Context, ids []string) (map[string]model.Manga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make(map[string]model.Manga)
	for _, id := range ids {
		if m, ok := r.manga[id]; ok {
			res[id] = m
		}
	}
	return res, nil
}

func (r *memRepo) CreateManga(_ context.Context, m *model.Manga) (*model.Manga, error) {
	if r.createMangaErr != nil {
		return nil, r.createMangaErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := *m
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now()
	r.manga[c.ID] = c
	return &c, nil
}

// addManga добавляет позицию с заданной ценой и возвращает её идентификатор.
func (r *memRepo) addManga(title string, priceCents int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.NewString()
	r.manga[id] = model.Manga{
		ID:         id,
		Title:      title,
		Author:     "Author",
		PriceCents: priceCents,
		ImageURL:   "https://img.example/" + id + ".png",
		Volumes:    1,
		CreatedAt:  time.Now().Add(time.Duration(len(r.manga)) * time.Second),
	}
	return id
}

func (r *memRepo) UpdateManga(_ context.Context, id string, p model.MangaPatch) (*model.Manga, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.manga[id]
	if !ok {
		return nil, repository.ErrMangaNotFound
	}
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.PriceCents != nil {
		m.PriceCents = *p.PriceCents
	}
	if p.Stock != nil {
		m.Stock = *p.Stock
	}
	if p.Genre != nil {
		m.Genre = *p.Genre
	}
	r.manga[id] = m
	return &m, nil
}

func (r *memRepo) DeleteManga(_ context.Context, id string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.manga[id]
	if !ok {
		return "", repository.ErrMangaNotFound
	}
	delete(r.manga, id)
	return m.ImageKey, nil
}

func (r *memRepo) CreateOrder(_ context.Context, o *model.Order) (*model.Order, error) {
	if r.createOrderErr != nil {
		return nil, r.createOrderErr
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	c := *o
	c.ID = uuid.NewString()
	c.CreatedAt = time.Now().Add(time.Duration(len(r.orders)) * time.Second)
	c.Items = append([]model.OrderItem(nil), o.Items...)
	r.orders[c.ID] = &c

	res := c
	return &res, nil
}

func (r *memRepo) AttachPaymentIntent(_ context.Context, orderID, intentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.attachErr != nil {
		return r.attachErr
	}
	o, ok := r.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentIntentID = intentID
	return nil
}

func (r *memRepo) SetPaymentStatus(_ context.Context, orderID string, status model.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.PaymentStatus = status
	return nil
}

func (r *memRepo) MarkPaymentCompletedByIntent(_ context.Context, intentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	found := false
	for _, o := range r.orders {
		if o.PaymentIntentID == intentID {
			o.PaymentStatus = model.PaymentStatusCompleted
			found = true
		}
	}
	return found, nil
}

func (r *memRepo) MarkPaymentCompletedByOrder(_ context.Context, orderID, intentID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || (o.PaymentIntentID != "" && o.PaymentIntentID != intentID) {
		return false, nil
	}
	o.PaymentIntentID = intentID
	o.PaymentStatus = model.PaymentStatusCompleted
	return true, nil
}

func (r *memRepo) GetOrdersByUser(_ context.Context, userID string) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			res = append(res, *o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

func (r *memRepo) UpdateOrderStatus(_ context.Context, id string, status model.OrderStatus) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	o.OrderStatus = status
	c := *o
	return &c, nil
}

func (r *memRepo) order(id string) model.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.orders[id]
}

func (r *memRepo) CreateOTPIfAllowed(_ context.Context, rec *model.OTPVerification, notBefore time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.otps {
		if o.Email == rec.Email && o.CreatedAt.After(notBefore) {
			return false, nil
		}
	}

	rec.ID = uuid.NewString()
	c := *rec
	r.otps = append(r.otps, &c)
	return true, nil
}

func (r *memRepo) DeleteOTP(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, o := range r.otps {
		if o.ID == id {
			r.otps = append(r.otps[:i], r.otps[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) RecentUnusedOTPs(_ context.Context, email string, limit int) ([]model.OTPVerification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.OTPVerification
	for _, o := range r.otps {
		if o.Email == email && !o.Used {
			res = append(res, *o)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

func (r *memRepo) IncrementOTPAttempts(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.otps {
		if o.ID == id {
			o.Attempts++
		}
	}
	return nil
}

func (r *memRepo) MarkOTPUsed(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, o := range r.otps {
		if o.ID == id && !o.Used {
			o.Used = true
			return !r.otpRace, nil
		}
	}
	return false, nil
}

func (r *memRepo) DeleteExpiredOTPs(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		kept    []*model.OTPVerification
		removed int64
	)
	for _, o := range r.otps {
		if o.ExpiresAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, o)
	}
	r.otps = kept
	return removed, nil
}

func (r *memRepo) otpsFor(email string) []model.OTPVerification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.OTPVerification
	for _, o := range r.otps {
		if o.Email == email {
			res = append(res, *o)
		}
	}
	return res
}

type stubTokens struct{}

func (stubTokens) IssueToken(userID string, role model.Role) (string, error) {
	return "token-" + userID + "-" + string(role), nil
}

type stubMailer struct {
	mu    sync.Mutex
	err   error
	sent  []string
	codes []string
}

func (m *stubMailer) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, to)
	m.codes = append(m.codes, code)
	return nil
}

type stubMedia struct {
	uploadErr error
	deleteErr error
	uploaded  []string
	deleted   []string
}

func (m *stubMedia) Upload(_ context.Context, f media.File) (*media.Object, error) {
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	key := "manga/" + f.Name
	m.uploaded = append(m.uploaded, key)
	return &media.Object{URL: "https://cdn.example/" + key, Key: key}, nil
}

func (m *stubMedia) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	return m.deleteErr
}

type stubPayments struct {
	intentErr error
	requests  []payment.IntentRequest
	event     *payment.Event
	eventErr  error
}

func (p *stubPayments) CreateIntent(_ context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	p.requests = append(p.requests, req)
	if p.intentErr != nil {
		return nil, p.intentErr
	}
	id := "pi_" + req.Metadata["order_id"]
	return &payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (p *stubPayments) ParseEvent([]byte, string) (*payment.Event, error) {
	return p.event, p.eventErr
}

type stubCache struct {
	list        []model.Manga
	filled      bool
	getErr      error
	version     int64
	sets        int
	invalidated int

	// afterVersion вызывается после чтения поколения, до загрузки каталога из базы.
	afterVersion func()
}

func (c *stubCache) Get(context.Context) ([]model.Manga, bool, error) {
	return c.list, c.filled, c.getErr
}

func (c *stubCache) Version(context.Context) (int64, error) {
	v := c.version
	if c.afterVersion != nil {
		c.afterVersion()
	}
	return v, nil
}

func (c *stubCache) Set(_ context.Context, version int64, list []model.Manga) error {
	if version != c.version {
		return nil
	}
	c.sets++
	c.list = list
	c.filled = true
	return nil
}

func (c *stubCache) Invalidate(context.Context) error {
	c.invalidated++
	c.version++
	c.list = nil
	c.filled = false
	return nil
}
