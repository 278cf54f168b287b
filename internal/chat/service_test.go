package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
	to     [][]string
}

func (r *recordingNotifier) Notify(ctx context.Context, ids []string, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.to = append(r.to, ids)
}

type fixture struct {
	svc      *Service
	users    *users.Service
	friends  *friends.Service
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	us := users.NewService(users.NewMemoryUserRepository())
	fs := friends.NewService(friends.NewMemoryRepository(), us)
	n := &recordingNotifier{}
	return &fixture{svc: NewService(NewMemoryRepository(), us, fs, n), users: us, friends: fs, notifier: n}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u, err := f.users.Register(context.Background(), name, name+"@example.com", "pw")
	require.NoError(t, err)
	return u
}

func TestSendAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b, c := f.user(t, "ann"), f.user(t, "ben"), f.user(t, "cid")

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	orig := models.Now
	defer func() { models.Now = orig }()

	send := func(from, to *models.User, body string, at time.Duration) {
		models.Now = func() time.Time { return base.Add(at) }
		_, err := f.svc.Send(ctx, from.ID, SendInput{ReceiverID: to.ID, MessageSenderEncrypted: body + "/s", MessageReceiverEncrypted: body + "/r"})
		require.NoError(t, err)
	}
	send(b, a, "second", 2*time.Second)
	send(a, b, "first", time.Second)
	send(a, c, "other", 3*time.Second)

	hist, err := f.svc.History(ctx, a.ID, b.ID, 0)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	require.Equal(t, "first/s", hist[0].MessageSenderEncrypted)
	require.Equal(t, "second/r", hist[1].MessageReceiverEncrypted)
	require.Equal(t, models.MessageTypeText, hist[0].MessageType)

	last, err := f.svc.History(ctx, b.ID, a.ID, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	require.Equal(t, "second/s", last[0].MessageSenderEncrypted)

	require.Len(t, f.notifier.events, 3)
	require.Equal(t, EventMessage, f.notifier.events[0].Type)
	require.Equal(t, []string{a.ID, b.ID}, f.notifier.to[0])
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "ann")

	_, err := f.svc.Send(ctx, a.ID, SendInput{ReceiverID: a.ID, MessageSenderEncrypted: "x", MessageReceiverEncrypted: "y"})
	require.ErrorIs(t, err, ErrSelfMessage)
	_, err = f.svc.Send(ctx, a.ID, SendInput{ReceiverID: "ghost", MessageSenderEncrypted: "x", MessageReceiverEncrypted: "y"})
	require.ErrorIs(t, err, ErrReceiverNotFound)
	_, err = f.svc.Send(ctx, a.ID, SendInput{ReceiverID: "ghost", MessageSenderEncrypted: " ", MessageReceiverEncrypted: "y"})
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestContacts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "ann"), f.user(t, "ben")
	f.user(t, "cid")
	_, err := f.friends.AddFriend(ctx, a.ID, b.ID)
	require.NoError(t, err)

	list, err := f.svc.Contacts(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, b.ID, list[0].ID)
}

func TestKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := f.user(t, "ann"), f.user(t, "ben")

	_, err := f.svc.GetKeys(ctx, a.ID, b.ID)
	require.ErrorIs(t, err, ErrKeysNotFound)

	_, err = f.svc.PutKeys(ctx, a.ID, b.ID, []byte("for-ann"), []byte("for-ben"))
	require.NoError(t, err)

	ka, err := f.svc.GetKeys(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("for-ann"), ka.Mine)
	require.Equal(t, []byte("for-ben"), ka.Peer)

	kb, err := f.svc.GetKeys(ctx, b.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("for-ben"), kb.Mine)
	require.Equal(t, a.ID, kb.PeerID)

	// rotation from the other side replaces the pair
	_, err = f.svc.PutKeys(ctx, b.ID, a.ID, []byte("ben-2"), []byte("ann-2"))
	require.NoError(t, err)
	ka, err = f.svc.GetKeys(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("ann-2"), ka.Mine)

	// one user keeps separate keys with each peer
	c := f.user(t, "cat")
	_, err = f.svc.PutKeys(ctx, a.ID, c.ID, []byte("ann-cat"), []byte("cat-ann"))
	require.NoError(t, err)
	kc, err := f.svc.GetKeys(ctx, c.ID, a.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("cat-ann"), kc.Mine)
	ka, err = f.svc.GetKeys(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Equal(t, []byte("ann-2"), ka.Mine)

	_, err = f.svc.PutKeys(ctx, a.ID, a.ID, []byte("x"), []byte("y"))
	require.ErrorIs(t, err, ErrSelfMessage)
	_, err = f.svc.PutKeys(ctx, a.ID, b.ID, nil, []byte("y"))
	require.ErrorIs(t, err, ErrEmptyMessage)
}

type downUsers struct{ UserLookup }

func (downUsers) GetByID(ctx context.Context, id string) (*models.User, error) {
	return nil, errors.New("server selection timeout")
}

func TestSendSurfacesLookupFailure(t *testing.T) {
	f := newFixture(t)
	svc := NewService(NewMemoryRepository(), downUsers{f.users}, f.friends, f.notifier)
	in := SendInput{ReceiverID: "peer", MessageSenderEncrypted: "a", MessageReceiverEncrypted: "b"}
	_, err := svc.Send(context.Background(), "me", in)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrReceiverNotFound)

	_, err = f.svc.Send(context.Background(), "me", in)
	require.ErrorIs(t, err, ErrReceiverNotFound)

	_, err = svc.PutKeys(context.Background(), "me", "peer", []byte("x"), []byte("y"))
	require.NotErrorIs(t, err, ErrReceiverNotFound)
}
