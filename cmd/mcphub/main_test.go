package main

import (
	"encoding/hex"
	"flag"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func adminKeyContext(key string) *cli.Context {
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	set.String("admin-key", key, "")
	set.String("server-url", "http://localhost:8080", "")
	set.String("wallet-address", "", "")
	set.Duration("http-timeout", time.Second, "")
	set.Bool("verbose", false, "")
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestNewAdminClient(t *testing.T) {
	_, err := newAdminClient(adminKeyContext(""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "admin-key is required")

	_, err = newAdminClient(adminKeyContext("not-a-key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid admin key")

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	for _, raw := range []string{hex.EncodeToString(crypto.FromECDSA(key)), "0x" + hex.EncodeToString(crypto.FromECDSA(key))} {
		api, err := newAdminClient(adminKeyContext(raw))
		require.NoError(t, err)
		assert.NotNil(t, api)
	}
}
