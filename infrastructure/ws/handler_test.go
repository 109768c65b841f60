package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wallet-chat/auth"
	"wallet-chat/domain"
	"wallet-chat/domain/event"
	"wallet-chat/repositories"
	"wallet-chat/runtime"
	"wallet-chat/services"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	server      *httptest.Server
	store       *repositories.Store
	tokens      *auth.TokenManager
	memberships *services.MembershipService
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)

	store := repositories.NewStore(db, log)
	tokens := auth.NewTokenManager("a-secret-long-enough-for-hs256", time.Hour)
	memberships := services.NewMembershipService(store, nil, log)
	chat := services.NewChatService(store, repositories.NewMessageIndex(writer, log), 2000, 50, log)
	presence := runtime.NewPresence(log, runtime.NewRegistry(), tokens, memberships, chat, time.Second)

	server := httptest.NewServer(NewHandler(log, presence, 16, nil))
	t.Cleanup(func() {
		server.Close()
		_ = writer.Close()
		_ = db.Close()
	})
	return &wsFixture{server: server, store: store, tokens: tokens, memberships: memberships}
}

func (f *wsFixture) token(t *testing.T, wallet string) (string, domain.User) {
	t.Helper()
	var user domain.User
	err := f.store.Update(context.Background(), func(tx *repositories.Tx) error {
		var err error
		user, _, err = tx.EnsureUser(wallet, time.Now())
		return err
	})
	require.NoError(t, err)
	token, err := f.tokens.GenerateToken(user)
	require.NoError(t, err)
	return token, user
}

func (f *wsFixture) url(token string) string {
	return "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?token=" + token
}

func readEnvelope(t *testing.T, conn *websocket.Conn) event.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var envelope event.Envelope
	require.NoError(t, conn.ReadJSON(&envelope))
	return envelope
}

func TestHandler_Refuses_Unauthenticated_Upgrade(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)

	// When dialing with a forged token
	_, resp, err := websocket.DefaultDialer.Dial(f.url("forged"), nil)

	// Then the handshake fails before any upgrade
	req.Error(err)
	req.NotNil(resp)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Snapshot_Then_Commands(t *testing.T) {
	req := require.New(t)
	f := newWSFixture(t)
	token, user := f.token(t, "0x00000000000000000000000000000000000000aa")
	room, err := f.memberships.CreateRoom(context.Background(), user.ID, "lobby", domain.RoomPublic)
	req.NoError(err)

	// When the owner connects
	conn, _, err := websocket.DefaultDialer.Dial(f.url(token), nil)
	req.NoError(err)
	defer conn.Close()

	// Then the first frame lists the room
	snapshot := readEnvelope(t, conn)
	req.Equal(event.RoomsSnapshotType, snapshot.Type)
	req.JSONEq(`{"room_ids":["`+room.ID.String()+`"]}`, string(snapshot.Payload))

	// When a message is sent
	payload, err := json.Marshal(event.SendMessage{RoomID: room.ID, Content: "gm"})
	req.NoError(err)
	req.NoError(conn.WriteJSON(event.Envelope{Type: event.SendMessageType, Ref: "1", Payload: payload}))

	// Then it comes back as a new message
	posted := readEnvelope(t, conn)
	req.Equal(event.NewMessageType, posted.Type)
	var message event.MessagePosted
	req.NoError(json.Unmarshal(posted.Payload, &message))
	req.Equal("gm", message.Content)

	// When an unknown command is sent
	req.NoError(conn.WriteJSON(event.Envelope{Type: "dance", Ref: "2"}))

	// Then an error frame answers it with its reference
	failed := readEnvelope(t, conn)
	req.Equal(event.ErrorType, failed.Type)
	var notice event.ErrorNotice
	req.NoError(json.Unmarshal(failed.Payload, &notice))
	req.Equal("invalid", notice.Code)
	req.Equal("2", notice.Ref)
}
