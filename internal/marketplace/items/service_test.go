package items

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/events"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/storage"
	"github.com/stretchr/testify/require"
)

type capture struct {
	mu    sync.Mutex
	types []string
}

func (c *capture) Publish(ctx context.Context, key string, env events.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, env.EventType)
	return nil
}
func (c *capture) Close() error { return nil }

var (
	seller = Actor{UserID: "seller"}
	buyer  = Actor{UserID: "buyer"}
	admin  = Actor{UserID: "admin", IsAdmin: true}
)

func newService() (*Service, *storage.MemoryStore, *capture) {
	st := storage.NewMemoryStore("http://minio.local/marketplace")
	c := &capture{}
	return NewService(NewMemoryRepository(), st, c), st, c
}

func TestCreateValidation(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()

	for _, in := range []CreateInput{
		{Title: "", Price: 1},
		{Title: "Lamp", Price: 0},
		{Title: "Lamp", Price: -3},
		{Title: "Lamp", Price: 3, Category: "weapons"},
	} {
		_, err := svc.Create(ctx, seller.UserID, in)
		require.ErrorIs(t, err, ErrInvalidInput, "%+v", in)
	}

	it, err := svc.Create(ctx, seller.UserID, CreateInput{Title: " Lamp ", Price: 12.5})
	require.NoError(t, err)
	require.Equal(t, "Lamp", it.Title)
	require.Equal(t, models.ItemDraft, it.Status)
	require.Equal(t, models.CategoryOther, it.Category)
	require.NotNil(t, it.Images)
}

func TestVisibilityAndPublish(t *testing.T) {
	svc, _, ev := newService()
	ctx := context.Background()

	it, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "Bike", Price: 100, Category: models.CategorySports})
	require.NoError(t, err)

	_, err = svc.Get(ctx, it.ID, buyer)
	require.ErrorIs(t, err, ErrNotFound, "drafts are private")
	_, err = svc.Get(ctx, it.ID, admin)
	require.NoError(t, err)

	_, err = svc.Publish(ctx, it.ID, buyer)
	require.ErrorIs(t, err, ErrNotFound)

	pub, err := svc.Publish(ctx, it.ID, seller)
	require.NoError(t, err)
	require.Equal(t, models.ItemActive, pub.Status)

	again, err := svc.Publish(ctx, it.ID, seller)
	require.NoError(t, err)
	require.Equal(t, models.ItemActive, again.Status)

	got, err := svc.Get(ctx, it.ID, buyer)
	require.NoError(t, err)
	require.Equal(t, "Bike", got.Title)

	require.Equal(t, []string{"item.created", "item.published"}, ev.types)
}

func TestUpdateRules(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "Desk", Price: 50, Publish: true})
	require.NoError(t, err)

	price := 45.0
	_, err = svc.Update(ctx, it.ID, buyer, UpdateInput{Price: &price})
	require.ErrorIs(t, err, ErrForbidden)

	neg := -1.0
	_, err = svc.Update(ctx, it.ID, seller, UpdateInput{Price: &neg})
	require.ErrorIs(t, err, ErrInvalidInput)

	loc := "Berlin"
	up, err := svc.Update(ctx, it.ID, seller, UpdateInput{Price: &price, Location: &loc})
	require.NoError(t, err)
	require.Equal(t, 45.0, up.Price)
	require.Equal(t, "Berlin", *up.Location)

	require.NoError(t, svc.MarkSold(ctx, it.ID))
	_, err = svc.Update(ctx, it.ID, seller, UpdateInput{Price: &price})
	require.ErrorIs(t, err, ErrImmutable)

	require.NoError(t, svc.Relist(ctx, it.ID))
	require.Error(t, svc.Relist(ctx, it.ID))
}

func TestRemove(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	a, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "A", Price: 1, Publish: true})
	require.NoError(t, err)
	b, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "B", Price: 1, Publish: true})
	require.NoError(t, err)

	require.ErrorIs(t, svc.Remove(ctx, a.ID, buyer), ErrForbidden)
	require.NoError(t, svc.Remove(ctx, a.ID, seller))
	require.NoError(t, svc.Remove(ctx, b.ID, admin))

	_, err = svc.Get(ctx, a.ID, buyer)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, svc.Remove(ctx, a.ID, seller), ErrImmutable)
}

func TestList(t *testing.T) {
	svc, _, _ := newService()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	orig := models.Now
	defer func() { models.Now = orig }()

	mk := func(i int, title string, price float64, cat models.ItemCategory, publish bool) {
		models.Now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := svc.Create(ctx, seller.UserID, CreateInput{Title: title, Price: price, Category: cat, Publish: publish})
		require.NoError(t, err)
	}
	mk(1, "Red Phone", 200, models.CategoryElectronics, true)
	mk(2, "Blue Shirt", 15, models.CategoryClothing, true)
	mk(3, "Old Phone (broken)", 5, models.CategoryElectronics, true)
	mk(4, "Hidden Draft", 1, models.CategoryOther, false)

	all, err := svc.List(ctx, ListQuery{}, buyer)
	require.NoError(t, err)
	require.Equal(t, int64(3), all.Total)
	require.Equal(t, "Old Phone (broken)", all.Items[0].Title)

	phones, err := svc.List(ctx, ListQuery{Category: models.CategoryElectronics}, buyer)
	require.NoError(t, err)
	require.Equal(t, int64(2), phones.Total)

	lo := 10.0
	cheap, err := svc.List(ctx, ListQuery{MinPrice: &lo, Search: "PHONE"}, buyer)
	require.NoError(t, err)
	require.Equal(t, int64(1), cheap.Total)
	require.Equal(t, "Red Phone", cheap.Items[0].Title)

	literal, err := svc.List(ctx, ListQuery{Search: "(broken)"}, buyer)
	require.NoError(t, err)
	require.Equal(t, int64(1), literal.Total)

	paged, err := svc.List(ctx, ListQuery{Page: 2, Limit: 2}, buyer)
	require.NoError(t, err)
	require.Len(t, paged.Items, 1)

	drafts, err := svc.List(ctx, ListQuery{Status: models.ItemDraft}, buyer)
	require.NoError(t, err)
	require.Zero(t, drafts.Total, "other people's drafts stay hidden")
	own, err := svc.List(ctx, ListQuery{Status: models.ItemDraft}, seller)
	require.NoError(t, err)
	require.Equal(t, int64(1), own.Total)

	hi := 1.0
	_, err = svc.List(ctx, ListQuery{MinPrice: &lo, MaxPrice: &hi}, buyer)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.List(ctx, ListQuery{Status: "lost"}, buyer)
	require.ErrorIs(t, err, ErrInvalidInput)
	_, err = svc.List(ctx, ListQuery{Limit: 500}, buyer)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestImages(t *testing.T) {
	svc, st, _ := newService()
	ctx := context.Background()
	it, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "Camera", Price: 80, Publish: true})
	require.NoError(t, err)

	_, err = svc.AddImage(ctx, it.ID, seller, "notes.txt", "text/plain", 4, strings.NewReader("text"))
	require.ErrorIs(t, err, ErrInvalidImage)
	_, err = svc.AddImage(ctx, it.ID, buyer, "a.png", "image/png", 3, strings.NewReader("png"))
	require.ErrorIs(t, err, ErrForbidden)

	up, err := svc.AddImage(ctx, it.ID, seller, "Front.PNG", "image/png", 3, strings.NewReader("png"))
	require.NoError(t, err)
	require.Len(t, up.Images, 1)
	key := up.Images[0]
	require.True(t, strings.HasPrefix(key, "items/"+it.ID+"/"))
	require.True(t, strings.HasSuffix(key, ".png"))
	require.Equal(t, "image/png", st.ContentType(key))

	u, err := svc.ImageURL(ctx, it.ID, 0, buyer)
	require.NoError(t, err)
	require.Contains(t, u, key)

	_, err = svc.ImageURL(ctx, it.ID, 1, buyer)
	require.ErrorIs(t, err, ErrNotFound)

	noStore := NewService(NewMemoryRepository(), nil, nil)
	_, err = noStore.AddImage(ctx, it.ID, seller, "a.png", "image/png", 3, strings.NewReader("png"))
	require.ErrorIs(t, err, ErrStorageUnavailable)
}

// staleRepo runs hook between the service's read and its write.
type staleRepo struct {
	*MemoryRepository
	hook func()
}

func (r *staleRepo) Update(ctx context.Context, it *models.Item) error {
	if r.hook != nil {
		r.hook()
	}
	return r.MemoryRepository.Update(ctx, it)
}

func TestUpdateDoesNotResurrectSoldItem(t *testing.T) {
	repo := &staleRepo{MemoryRepository: NewMemoryRepository()}
	svc := NewService(repo, storage.NewMemoryStore("http://minio.local/marketplace"), events.NopPublisher{})
	ctx := context.Background()

	it, err := svc.Create(ctx, seller.UserID, CreateInput{Title: "Lamp", Price: 10, Publish: true})
	require.NoError(t, err)

	repo.hook = func() { require.NoError(t, svc.MarkSold(ctx, it.ID)) }
	price := 12.0
	_, err = svc.Update(ctx, it.ID, seller, UpdateInput{Price: &price})
	require.ErrorIs(t, err, ErrImmutable)

	got, err := svc.Lookup(ctx, it.ID)
	require.NoError(t, err)
	require.Equal(t, models.ItemSold, got.Status)
	require.Equal(t, 10.0, got.Price)
}

func TestRepositoryUpdateKeepsStatus(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	it := &models.Item{ID: "i1", SellerID: "s", Title: "Lamp", Price: 1, Status: models.ItemActive}
	require.NoError(t, repo.Create(ctx, it))

	stale := *it
	stale.Status = models.ItemDraft
	stale.Title = "Lamp v2"
	require.NoError(t, repo.Update(ctx, &stale))
	got, _ := repo.Get(ctx, "i1")
	require.Equal(t, models.ItemActive, got.Status)
	require.Equal(t, "Lamp v2", got.Title)

	require.ErrorIs(t, repo.Update(ctx, &models.Item{ID: "missing"}), ErrNotFound)
}
