package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/BaSui01/sunyadvisor/types"
	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&ConversationRecord{}, &ChatSummary{}))
	return db
}

// toolTurn is a knowledge exchange with one tool call, all stamped with the
// same instant to exercise the id tie-break.
func toolTurn(session string, chat int64) []types.Message {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	call := types.ToolCall{ID: "call_1", Name: "rag_search", Arguments: json.RawMessage(`{"query":"uniform"}`)}
	msgs := []types.Message{
		types.NewUserMessage(`{"phase":"explore","recipient":"suny","message":"uniform cost?"}`).Between(types.PartyCounselor, types.PartySuny),
		types.NewAssistantMessage("").WithToolCalls([]types.ToolCall{call}).Between(types.PartySuny, types.PartySuny),
		types.NewToolMessage("call_1", "rag_search", "URL: https://x\nUniform cost is $250.").Between(types.PartySuny, types.PartySuny),
		types.NewAssistantMessage("It costs $250.").Between(types.PartySuny, types.PartyCounselor),
	}
	for i := range msgs {
		msgs[i] = msgs[i].WithAgent("knowledge").InChat(session, chat)
		msgs[i].Timestamp = at
	}
	return msgs
}

func testMessageStore(t *testing.T, s MessageStore) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Append(ctx, toolTurn("s1", 1)...))
	require.NoError(t, s.Append(ctx, toolTurn("s1", 2)[:1]...))
	require.NoError(t, s.Append(ctx, toolTurn("s2", 1)[:2]...))

	got, err := s.History(ctx, "s1", 1)
	require.NoError(t, err)
	want := toolTurn("s1", 1)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Role, got[i].Role, "message %d", i)
		assert.Equal(t, want[i].Content, got[i].Content, "message %d", i)
		assert.Equal(t, want[i].Sender, got[i].Sender)
		assert.Equal(t, want[i].Recipient, got[i].Recipient)
		assert.Equal(t, "knowledge", got[i].AgentName)
	}
	require.Len(t, got[1].ToolCalls, 1)
	assert.Equal(t, "call_1", got[1].ToolCalls[0].ID)
	assert.JSONEq(t, `{"query":"uniform"}`, string(got[1].ToolCalls[0].Arguments))
	assert.Equal(t, "call_1", got[2].ToolCallID)
	assert.Equal(t, "rag_search", got[2].Name)

	chats, err := s.Chats(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, chats)

	empty, err := s.History(ctx, "s1", 9)
	require.NoError(t, err)
	assert.Empty(t, empty)

	assert.ErrorIs(t, s.Append(ctx, types.NewUserMessage("no session")), ErrInvalidInput)

	_, err = s.Summary(ctx, "s1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, s.SaveSummary(ctx, "s1", 1, "first"))
	require.NoError(t, s.SaveSummary(ctx, "s1", 1, "second"))
	sum, err := s.Summary(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Equal(t, "second", sum)
}

func TestGormMessageStore(t *testing.T) {
	testMessageStore(t, NewGormMessageStore(setupTestDB(t)))
}

func TestMemoryMessageStore(t *testing.T) {
	s := NewMemoryMessageStore()
	testMessageStore(t, s)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), ErrStoreClosed)
}

func TestGormMessageStore_OrdersByTimestamp(t *testing.T) {
	ctx := context.Background()
	s := NewGormMessageStore(setupTestDB(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	late := types.NewAssistantMessage("second").InChat("s", 1)
	late.Timestamp = base.Add(time.Second)
	early := types.NewUserMessage("first").InChat("s", 1)
	early.Timestamp = base
	require.NoError(t, s.Append(ctx, late, early))

	got, err := s.History(ctx, "s", 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "second", got[1].Content)
}

func testSessionStore(t *testing.T, s SessionStore) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.NextChat(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	st, err := s.Ensure(ctx, "sess", "user-1")
	require.NoError(t, err)
	assert.Equal(t, FirstChatID, st.ChatID)
	assert.Equal(t, "user-1", st.UserID)

	for i := int64(1); i <= 3; i++ {
		n, err := s.IncrUserMessages(ctx, "sess")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}

	id, err := s.NextChat(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)

	st, err = s.Ensure(ctx, "sess", "other-user")
	require.NoError(t, err)
	assert.Equal(t, int64(2), st.ChatID, "Ensure does not reset an existing session")
	assert.Equal(t, "user-1", st.UserID)
	assert.Zero(t, st.UserMessages)

	_, err = s.Ensure(ctx, "", "u")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemorySessionStore(t *testing.T) {
	testSessionStore(t, NewMemorySessionStore())
}

func TestRedisSessionStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := StoreConfig{
		Type:       StoreTypeRedis,
		Redis:      RedisStoreConfig{Addr: mr.Addr()},
		SessionTTL: time.Hour,
	}

	store, err := NewSessionStore(cfg)
	require.NoError(t, err)
	defer store.Close()
	testSessionStore(t, store)

	assert.True(t, mr.Exists("sunyadvisor:session:sess"))
	assert.Equal(t, "2", mr.HGet("sunyadvisor:session:sess", "chat_id"))
	assert.Equal(t, time.Hour, mr.TTL("sunyadvisor:session:sess"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(context.Background(), "sess")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewSessionStore_Unknown(t *testing.T) {
	_, err := NewSessionStore(StoreConfig{Type: "etcd"})
	assert.Error(t, err)
	assert.IsType(t, &MemoryMessageStore{}, NewMessageStore(nil))
}
