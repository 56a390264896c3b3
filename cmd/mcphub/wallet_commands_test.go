package main

import (
	"context"
	"testing"

	"github.com/brojonat/mcphub/service/wallet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAdmin = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"

func TestLoadWalletState(t *testing.T) {
	ctx := context.Background()

	t.Run("missing record is disconnected", func(t *testing.T) {
		state, err := loadWalletState(ctx, wallet.NewMemoryStorage())
		require.NoError(t, err)
		assert.Equal(t, wallet.Disconnected, state)
	})

	t.Run("saved record", func(t *testing.T) {
		storage := wallet.NewFileStorage(t.TempDir())
		require.NoError(t, storage.Save(ctx, wallet.StorageKey, []byte(`{"account":"`+testAdmin+`","balance":"12.5"}`)))

		state, err := loadWalletState(ctx, storage)
		require.NoError(t, err)
		assert.Equal(t, testAdmin, state.Account)
		assert.Equal(t, "12.5", state.Balance)
	})

	t.Run("corrupt record", func(t *testing.T) {
		storage := wallet.NewMemoryStorage()
		require.NoError(t, storage.Save(ctx, wallet.StorageKey, []byte(`{not json`)))

		_, err := loadWalletState(ctx, storage)
		assert.Error(t, err)
	})
}

func TestStatusView(t *testing.T) {
	connected := wallet.State{Account: testAdmin, Balance: "1"}

	view := statusView(connected, "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	assert.True(t, view.Connected)
	assert.True(t, view.Admin)

	view = statusView(connected, "")
	assert.False(t, view.Admin)

	view = statusView(wallet.Disconnected, testAdmin)
	assert.False(t, view.Connected)
	assert.False(t, view.Admin)
	assert.Equal(t, "0", view.Balance)
}

func TestStateDir(t *testing.T) {
	dir, err := stateDir("/tmp/custom")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom", dir)
}
