package pathmon

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameState_IdentityAndAddresses(t *testing.T) {
	a := &Snapshot{Name: "en0", IPv4: "10.0.0.2", IPv6: "fe80::1"}
	b := &Snapshot{Name: "en0", IPv4: "10.0.0.2", IPv6: "fe80::1"}

	assert.True(t, SameState(a, b))

	b = &Snapshot{Name: "en0", IPv4: "10.0.0.5", IPv6: "fe80::1"}
	assert.False(t, SameState(a, b))

	b = &Snapshot{Name: "en1", IPv4: "10.0.0.2", IPv6: "fe80::1"}
	assert.False(t, SameState(a, b))
}

func TestSameState_MetadataIgnored(t *testing.T) {
	a := &Snapshot{Name: "en0", IPv4: "10.0.0.2", Kind: KindWifi, GatewayV4: "10.0.0.1", CapturedAt: 100}
	b := &Snapshot{Name: "en0", IPv4: "10.0.0.2", Kind: KindWiredEthernet, GatewayV4: "192.168.1.1", CapturedAt: 999}

	// Kind, gateway and capture time never make two snapshots differ.
	assert.True(t, SameState(a, b))
}

func TestSameState_Nil(t *testing.T) {
	a := &Snapshot{Name: "en0"}

	assert.True(t, SameState(nil, nil))
	assert.False(t, SameState(a, nil))
	assert.False(t, SameState(nil, a))
}

func TestFingerprint(t *testing.T) {
	a := &Snapshot{Name: "en0", IPv4: "10.0.0.2"}
	b := &Snapshot{Name: "en0", IPv4: "10.0.0.2", Kind: KindWifi, CapturedAt: 42}
	c := &Snapshot{Name: "en0", IPv4: "10.0.0.5"}

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)

	var nilSnap *Snapshot
	assert.Equal(t, "", nilSnap.Fingerprint())
}

func TestString_NilSnapshot(t *testing.T) {
	var s *Snapshot
	assert.Equal(t, "<no path>", s.String())
}
