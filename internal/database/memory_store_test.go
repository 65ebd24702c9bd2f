package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMemoryStoreLogin(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(bcrypt.MinCost)

	tests := []struct {
		name     string
		connID   int
		user     string
		password string
		want     LoginStatus
	}{
		{"first login registers", 1, "alice", "secret", AddedNewUser},
		{"same connection again", 1, "bob", "pw", ClientAlreadyConnected},
		{"user busy elsewhere", 2, "alice", "secret", AlreadyLoggedIn},
		{"second user", 2, "bob", "pw", AddedNewUser},
	}
	for _, tt := range tests {
		status, err := store.Login(ctx, tt.connID, tt.user, tt.password)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, status, tt.name)
	}

	require.NoError(t, store.Logout(ctx, 1))
	require.NoError(t, store.Logout(ctx, 1), "logging out twice is a no-op")

	status, err := store.Login(ctx, 3, "alice", "wrong")
	require.NoError(t, err)
	assert.Equal(t, WrongPassword, status)

	status, err = store.Login(ctx, 3, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, LoggedIn, status)
	assert.True(t, status.Succeeded())
}

func TestMemoryStoreEmptyUsername(t *testing.T) {
	_, err := NewMemoryStore(bcrypt.MinCost).Login(context.Background(), 1, "", "x")
	assert.ErrorIs(t, err, ErrEmptyUsername)
}

func TestMemoryStoreReport(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(bcrypt.MinCost)

	_, err := store.Login(ctx, 1, "zoe", "pw")
	require.NoError(t, err)
	_, err = store.Login(ctx, 2, "adam", "pw")
	require.NoError(t, err)
	require.NoError(t, store.TrackFileUpload(ctx, "zoe", "events.json", "/topic/germany_spain"))
	require.NoError(t, store.Logout(ctx, 1))
	assert.Error(t, store.TrackFileUpload(ctx, "ghost", "x.json", "/a"))

	report, err := store.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report.Users, 2)
	assert.Equal(t, "adam", report.Users[0].Username)
	assert.Equal(t, "zoe", report.Users[1].Username)

	zoe := report.Users[1]
	require.Len(t, zoe.Logins, 1)
	assert.NotNil(t, zoe.Logins[0].LogoutTime)
	require.Len(t, zoe.Uploads, 1)
	assert.Equal(t, "events.json", zoe.Uploads[0].Filename)
	assert.Nil(t, report.Users[0].Logins[0].LogoutTime)

	text := report.String()
	assert.Contains(t, text, "Registered users: 2")
	assert.Contains(t, text, "events.json")
	assert.Contains(t, text, "logout active")
}

func TestReportCallback(t *testing.T) {
	store := NewMemoryStore(bcrypt.MinCost)
	_, err := store.Login(context.Background(), 1, "alice", "pw")
	require.NoError(t, err)

	var printed string
	cb := NewReportCallback(store, func(s string) { printed = s })
	require.NoError(t, cb.Invoke(context.Background()))
	assert.Contains(t, printed, "User: alice")
}

func TestLoginStatusString(t *testing.T) {
	assert.Equal(t, "wrong password", WrongPassword.String())
	assert.Equal(t, "LoginStatus(42)", LoginStatus(42).String())
	assert.False(t, AlreadyLoggedIn.Succeeded())
}
