package touchsvc

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("04f3:3148:1")
	require.NoError(t, err)
	assert.Equal(t, Identity{VendorID: 0x04f3, ProductID: 0x3148, Interface: 1}, id)
	assert.Equal(t, "04f3:3148:1", id.String())

	for _, input := range []string{"", "04f3", "04f3:3148", "xyz:3148:1"} {
		_, err := ParseIdentity(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestParseAddress(t *testing.T) {
	addr, err := ParseAddress("linux/04f3:3148:1")
	require.NoError(t, err)
	assert.Equal(t, Address{Backend: "linux", ID: "04f3:3148:1"}, addr)
	assert.Equal(t, "linux/04f3:3148:1", addr.String())

	ident, err := addr.Identity()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x04f3), ident.VendorID)

	// Dots stand in for colons so addresses paste into shells.
	addr, err = ParseAddress("linux/04f3.3148.1")
	require.NoError(t, err)
	assert.Equal(t, "04f3:3148:1", addr.ID)

	for _, input := range []string{"", "linux", "linux/", "/04f3:3148:1", "linux/nope"} {
		_, err := ParseAddress(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestAddressJSON(t *testing.T) {
	addr := Address{Backend: "linux", ID: "04f3:3148:1"}
	data, err := json.Marshal(addr)
	require.NoError(t, err)
	assert.JSONEq(t, `"linux/04f3:3148:1"`, string(data))

	var parsed Address
	require.NoError(t, json.Unmarshal(data, &parsed))
	assert.Equal(t, addr, parsed)

	assert.Error(t, json.Unmarshal([]byte(`"nonsense"`), &parsed))
}
