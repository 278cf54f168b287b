package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/phishers-marketplace/marketplace-api/internal/chat"
	"github.com/phishers-marketplace/marketplace-api/internal/config"
	"github.com/phishers-marketplace/marketplace-api/internal/events"
	"github.com/phishers-marketplace/marketplace-api/internal/friends"
	"github.com/phishers-marketplace/marketplace-api/internal/groups"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/items"
	"github.com/phishers-marketplace/marketplace-api/internal/marketplace/transactions"
	"github.com/phishers-marketplace/marketplace-api/internal/models"
	"github.com/phishers-marketplace/marketplace-api/internal/sessions"
	"github.com/phishers-marketplace/marketplace-api/internal/storage"
	"github.com/phishers-marketplace/marketplace-api/internal/tokens"
	"github.com/phishers-marketplace/marketplace-api/internal/users"
	"github.com/stretchr/testify/require"
)

const testSecret = "handlers-test-secret-0123456789abcdef"

type testAPI struct {
	t        *testing.T
	r        *gin.Engine
	cfg      *config.Config
	users    *users.Service
	sessions *sessions.Service
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Security: config.SecurityConfig{
		JWTSecret:       testSecret,
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	}}
	us := users.NewService(users.NewMemoryUserRepository())
	fs := friends.NewService(friends.NewMemoryRepository(), us)
	ss := sessions.NewService(sessions.NewMemoryRepository())
	is := items.NewService(items.NewMemoryRepository(), storage.NewMemoryStore("http://files.test"), events.NopPublisher{})

	r := gin.New()
	Mount(r, Services{
		Config:       cfg,
		Verifier:     tokens.NewVerifier(testSecret),
		Users:        us,
		Sessions:     ss,
		Friends:      fs,
		Chat:         chat.NewService(chat.NewMemoryRepository(), us, fs, chat.NopNotifier{}),
		Groups:       groups.NewService(groups.NewMemoryRepository(), us, chat.NopNotifier{}),
		Items:        is,
		Transactions: transactions.NewService(transactions.NewMemoryRepository(), is, events.NopPublisher{}),
	})
	return &testAPI{t: t, r: r, cfg: cfg, users: us, sessions: ss}
}

// signup creates an account directly and returns it with an access token.
func (a *testAPI) signup(name, email string) (*models.User, string) {
	a.t.Helper()
	u, err := a.users.Register(context.Background(), name, email, "secret")
	require.NoError(a.t, err)
	tok, err := tokens.GenerateAccessToken(a.cfg, u, time.Hour)
	require.NoError(a.t, err)
	return u, tok
}

func (a *testAPI) admin(name, email string) (*models.User, string) {
	a.t.Helper()
	u, _, err := a.users.EnsureAdmin(context.Background(), email, "secret", name)
	require.NoError(a.t, err)
	tok, err := tokens.GenerateAccessToken(a.cfg, u, time.Hour)
	require.NoError(a.t, err)
	return u, tok
}

func (a *testAPI) send(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rw := httptest.NewRecorder()
	a.r.ServeHTTP(rw, req)
	return rw
}

func (a *testAPI) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(a.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, token)
}

func decode(t *testing.T, rw *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &out), rw.Body.String())
	return out
}

func TestRegisterLoginAndMe(t *testing.T) {
	api := newTestAPI(t)

	rw := api.do(http.MethodPost, "/user/register", "", gin.H{"name": "Alice", "email": "Alice@Example.com", "password": "pw"})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	body := decode(t, rw)
	require.Equal(t, "alice@example.com", body["email"])
	require.NotContains(t, body, "password_hash")

	rw = api.do(http.MethodPost, "/user/register", "", gin.H{"name": "Alice", "email": "alice@example.com", "password": "pw"})
	require.Equal(t, http.StatusBadRequest, rw.Code)
	require.Equal(t, "User with this email already exists", decode(t, rw)["error"])

	login := func(pw string) *httptest.ResponseRecorder {
		form := url.Values{"username": {"alice@example.com"}, "password": {pw}}
		req := httptest.NewRequest(http.MethodPost, "/user/token", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return api.send(req, "")
	}

	rw = login("wrong")
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Equal(t, "Bearer", rw.Header().Get("WWW-Authenticate"))
	require.Equal(t, "Incorrect email or password", decode(t, rw)["error"])

	rw = login("pw")
	require.Equal(t, http.StatusOK, rw.Code)
	tok := decode(t, rw)
	require.Equal(t, "bearer", tok["token_type"])
	require.NotEmpty(t, tok["refresh_token"])

	rw = api.do(http.MethodGet, "/user/me", tok["access_token"].(string), nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "Alice", decode(t, rw)["name"])

	rw = api.do(http.MethodGet, "/user/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rw.Code)
	require.Equal(t, "Could not validate credentials", decode(t, rw)["error"])
}

func TestRefreshAndLogout(t *testing.T) {
	api := newTestAPI(t)
	_, err := api.users.Register(context.Background(), "Bob", "bob@example.com", "pw")
	require.NoError(t, err)

	form := url.Values{"username": {"bob@example.com"}, "password": {"pw"}}
	req := httptest.NewRequest(http.MethodPost, "/user/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	tok := decode(t, api.send(req, ""))
	access, refresh := tok["access_token"].(string), tok["refresh_token"].(string)

	rw := api.do(http.MethodPost, "/user/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rw.Code)
	require.NotEmpty(t, decode(t, rw)["access_token"])

	rw = api.do(http.MethodPost, "/user/logout", access, gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, rw.Code)

	rw = api.do(http.MethodPost, "/user/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, rw.Code)
}

func TestAdminRoutes(t *testing.T) {
	api := newTestAPI(t)
	user, userTok := api.signup("Mallory", "mallory@example.com")
	_, adminTok := api.admin("Root", "root@example.com")

	rw := api.do(http.MethodGet, "/admin/users", userTok, nil)
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, "Not enough permissions. Admin access required.", decode(t, rw)["error"])

	rw = api.do(http.MethodGet, "/admin/users?limit=1", adminTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	page := decode(t, rw)
	require.EqualValues(t, 2, page["total"])
	require.Len(t, page["users"], 1)

	rw = api.do(http.MethodGet, "/admin/users?limit=101", adminTok, nil)
	require.Equal(t, http.StatusBadRequest, rw.Code)

	rw = api.do(http.MethodPost, "/admin/users/"+user.ID+"/suspend", adminTok, gin.H{})
	require.Equal(t, http.StatusBadRequest, rw.Code)

	refresh, err := api.sessions.CreateSession(context.Background(), user.ID, time.Hour)
	require.NoError(t, err)

	rw = api.do(http.MethodPost, "/admin/users/"+user.ID+"/suspend", adminTok, gin.H{"suspension_reason": "spam"})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, true, decode(t, rw)["is_suspended"])

	sess, err := api.sessions.ValidateRefresh(context.Background(), refresh)
	require.NoError(t, err)
	require.Nil(t, sess)

	rw = api.do(http.MethodGet, "/user/me", userTok, nil)
	require.Equal(t, http.StatusForbidden, rw.Code)
	require.Equal(t, "Account suspended. Reason: spam", decode(t, rw)["error"])

	rw = api.do(http.MethodPost, "/admin/users/"+user.ID+"/unsuspend", adminTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/user/me", userTok, nil).Code)

	rw = api.do(http.MethodPatch, "/admin/users/"+user.ID, adminTok, gin.H{"name": "Mal"})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "Mal", decode(t, rw)["name"])

	// suspending through a patch ends sessions too
	refresh, err = api.sessions.CreateSession(context.Background(), user.ID, time.Hour)
	require.NoError(t, err)
	rw = api.do(http.MethodPatch, "/admin/users/"+user.ID, adminTok, gin.H{"is_suspended": true, "suspension_reason": "fraud"})
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, true, decode(t, rw)["is_suspended"])
	rw = api.do(http.MethodPost, "/admin/users/"+user.ID+"/unsuspend", adminTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	rw = api.do(http.MethodPost, "/user/refresh", "", gin.H{"refresh_token": refresh})
	require.Equal(t, http.StatusUnauthorized, rw.Code)

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/admin/users/missing", adminTok, nil).Code)
}

func TestFriendsAndChat(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceTok := api.signup("Alice", "alice@example.com")
	bob, bobTok := api.signup("Bob", "bob@example.com")

	rw := api.do(http.MethodPost, "/friends/add_friend/"+bob.ID, aliceTok, nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	f := decode(t, rw)
	require.Equal(t, "accepted", f["status"])
	require.Equal(t, alice.ID, f["requester_id"])

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/friends/add_friend/"+alice.ID, bobTok, nil).Code)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/friends/add_friend/"+alice.ID, aliceTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/friends/add_friend/nobody", aliceTok, nil).Code)

	rw = api.do(http.MethodGet, "/friends/add_friend/users?search=BOB", aliceTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.EqualValues(t, 1, decode(t, rw)["total"])

	rw = api.do(http.MethodGet, "/chat", bobTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	contacts := decode(t, rw)["contacts"].([]interface{})
	require.Len(t, contacts, 1)
	require.Equal(t, alice.ID, contacts[0].(map[string]interface{})["id"])

	msg := gin.H{"receiver_id": bob.ID, "message_sender_encrypted": "c1", "message_receiver_encrypted": "c2"}
	rw = api.do(http.MethodPost, "/chat/send", aliceTok, msg)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())
	require.Equal(t, "text", decode(t, rw)["message_type"])

	msg["receiver_id"] = "ghost"
	require.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/chat/send", aliceTok, msg).Code)

	rw = api.do(http.MethodGet, "/chat/"+alice.ID, bobTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Len(t, decode(t, rw)["messages"], 1)

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/chat/keys/"+bob.ID, aliceTok, nil).Code)
	rw = api.do(http.MethodPut, "/chat/keys/"+bob.ID, aliceTok, gin.H{"encrypted_key": []byte("for-alice"), "peer_encrypted_key": []byte("for-bob")})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	var kp chat.KeyPair
	rw = api.do(http.MethodGet, "/chat/keys/"+alice.ID, bobTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.NoError(t, json.Unmarshal(rw.Body.Bytes(), &kp))
	require.Equal(t, []byte("for-bob"), kp.Mine)
	require.Equal(t, []byte("for-alice"), kp.Peer)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/friends/"+bob.ID, aliceTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/friends/"+bob.ID, aliceTok, nil).Code)
}

func TestGroupRoutes(t *testing.T) {
	api := newTestAPI(t)
	_, ownerTok := api.signup("Owner", "owner@example.com")
	member, memberTok := api.signup("Member", "member@example.com")
	_, outsiderTok := api.signup("Outsider", "out@example.com")

	rw := api.do(http.MethodPost, "/groups/", ownerTok, gin.H{"name": "Traders"})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	gid := decode(t, rw)["id"].(string)

	rw = api.do(http.MethodPost, "/groups/"+gid+"/members", ownerTok, gin.H{"user_id": member.ID})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	require.Equal(t, "member", decode(t, rw)["role"])

	rw = api.do(http.MethodGet, "/groups/", memberTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Len(t, decode(t, rw)["groups_list"], 1)

	rw = api.do(http.MethodGet, "/groups/", outsiderTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Len(t, decode(t, rw)["groups_list"], 0)

	require.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/groups/"+gid, outsiderTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/groups/nope", ownerTok, nil).Code)

	rw = api.do(http.MethodPost, "/groups/"+gid+"/messages", memberTok, gin.H{"message_sender_encrypted": "hi"})
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	rw = api.do(http.MethodGet, "/groups/"+gid+"/messages", ownerTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Len(t, decode(t, rw)["messages"], 1)

	rw = api.do(http.MethodGet, "/groups/"+gid+"/members", memberTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Len(t, decode(t, rw)["members"], 2)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/groups/"+gid+"/members/"+member.ID, memberTok, nil).Code)
	require.Equal(t, http.StatusForbidden, api.do(http.MethodGet, "/groups/"+gid+"/messages", memberTok, nil).Code)
}

func TestMarketplaceFlow(t *testing.T) {
	api := newTestAPI(t)
	_, sellerTok := api.signup("Seller", "seller@example.com")
	_, buyerTok := api.signup("Buyer", "buyer@example.com")
	_, otherTok := api.signup("Other", "other@example.com")

	rw := api.do(http.MethodPost, "/marketplace/items", sellerTok, gin.H{"title": "Lamp", "price": 25.5, "category": "home"})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	item := decode(t, rw)
	id := item["id"].(string)
	require.Equal(t, "draft", item["status"])

	// drafts are private and cannot be bought
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/marketplace/items/"+id, buyerTok, nil).Code)
	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/marketplace/items/"+id+"/purchase", buyerTok, nil).Code)

	require.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/marketplace/items/"+id+"/publish", buyerTok, nil).Code)
	rw = api.do(http.MethodPost, "/marketplace/items/"+id+"/publish", sellerTok, nil)
	require.Equal(t, http.StatusOK, rw.Code, rw.Body.String())

	rw = api.do(http.MethodGet, "/marketplace/items?category=home&max_price=30", buyerTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.EqualValues(t, 1, decode(t, rw)["total"])

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/marketplace/items/"+id+"/purchase", sellerTok, nil).Code)

	rw = api.do(http.MethodPost, "/marketplace/items/"+id+"/purchase", buyerTok, gin.H{"payment_method": "paypal"})
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	tx := decode(t, rw)
	txID := tx["id"].(string)
	require.Equal(t, "pending", tx["status"])
	require.EqualValues(t, 25.5, tx["price"])

	require.Equal(t, http.StatusConflict, api.do(http.MethodPost, "/marketplace/items/"+id+"/purchase", otherTok, nil).Code)

	status := func(tok, st string) *httptest.ResponseRecorder {
		return api.do(http.MethodPost, "/marketplace/transactions/"+txID+"/status", tok, gin.H{"status": st})
	}
	require.Equal(t, http.StatusForbidden, status(sellerTok, "paid").Code)
	require.Equal(t, http.StatusBadRequest, status(buyerTok, "completed").Code)
	require.Equal(t, http.StatusOK, status(buyerTok, "paid").Code)

	rw = api.do(http.MethodGet, "/marketplace/items/"+id, buyerTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.Equal(t, "sold", decode(t, rw)["status"])
	require.Equal(t, http.StatusConflict, api.do(http.MethodPatch, "/marketplace/items/"+id, sellerTok, gin.H{"price": 10}).Code)

	require.Equal(t, http.StatusOK, status(sellerTok, "shipped").Code)
	require.Equal(t, http.StatusOK, status(buyerTok, "delivered").Code)
	rw = status(buyerTok, "completed")
	require.Equal(t, http.StatusOK, rw.Code)
	require.NotNil(t, decode(t, rw)["completed_at"])

	rw = api.do(http.MethodGet, "/marketplace/transactions?role=seller", sellerTok, nil)
	require.Equal(t, http.StatusOK, rw.Code)
	require.EqualValues(t, 1, decode(t, rw)["total"])

	rw = api.do(http.MethodGet, "/marketplace/transactions?role=seller", buyerTok, nil)
	require.EqualValues(t, 0, decode(t, rw)["total"])

	require.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/marketplace/transactions?role=broker", buyerTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/marketplace/transactions/"+txID, otherTok, nil).Code)
}

func uploadImage(t *testing.T, api *testAPI, path, token, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.PNG"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return api.send(req, token)
}

func TestItemImages(t *testing.T) {
	api := newTestAPI(t)
	_, sellerTok := api.signup("Seller", "seller@example.com")
	_, buyerTok := api.signup("Buyer", "buyer@example.com")

	rw := api.do(http.MethodPost, "/marketplace/items", sellerTok, gin.H{"title": "Bike", "price": 100, "publish": true})
	require.Equal(t, http.StatusCreated, rw.Code)
	id := decode(t, rw)["id"].(string)

	rw = uploadImage(t, api, "/marketplace/items/"+id+"/images", sellerTok, "text/plain", []byte("nope"))
	require.Equal(t, http.StatusBadRequest, rw.Code)

	rw = uploadImage(t, api, "/marketplace/items/"+id+"/images", buyerTok, "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusForbidden, rw.Code)

	rw = uploadImage(t, api, "/marketplace/items/"+id+"/images", sellerTok, "image/png", []byte("png-bytes"))
	require.Equal(t, http.StatusCreated, rw.Code, rw.Body.String())
	imgs := decode(t, rw)["images"].([]interface{})
	require.Len(t, imgs, 1)
	require.True(t, strings.HasPrefix(imgs[0].(string), "items/"+id+"/"))
	require.True(t, strings.HasSuffix(imgs[0].(string), ".png"))

	rw = api.do(http.MethodGet, "/marketplace/items/"+id+"/images/0", buyerTok, nil)
	require.Equal(t, http.StatusTemporaryRedirect, rw.Code)
	require.True(t, strings.HasPrefix(rw.Header().Get("Location"), "http://files.test/items/"+id+"/"))

	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/marketplace/items/"+id+"/images/3", buyerTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/marketplace/items/"+id+"/images/x", buyerTok, nil).Code)

	require.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/marketplace/items/"+id, sellerTok, nil).Code)
	require.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/marketplace/items/"+id, buyerTok, nil).Code)
}
