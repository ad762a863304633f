package modules

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func ipv4Packet(t *testing.T, src, dst uint32, extra int) []byte {
	t.Helper()
	pkt := make([]byte, 20+extra)
	pkt[0] = 0x45
	pkt[9] = 17 // UDP, irrelevant for bigflow
	pkt[12] = byte(src >> 24)
	pkt[13] = byte(src >> 16)
	pkt[14] = byte(src >> 8)
	pkt[15] = byte(src)
	pkt[16] = byte(dst >> 24)
	pkt[17] = byte(dst >> 16)
	pkt[18] = byte(dst >> 8)
	pkt[19] = byte(dst)
	return pkt
}

func newConfiguredBigFlow(t *testing.T, n int) *bigFlow {
	t.Helper()
	m := newBigFlow()
	require.NoError(t, m.Configure("nrecent", strconv.Itoa(n)))
	require.NoError(t, m.PostConf())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestBigFlow_PostConfFailsWithoutNrecent(t *testing.T) {
	m := newBigFlow()
	require.Error(t, m.PostConf())
}

func TestBigFlow_WhaleFlowScoresBelowSmallFlow(t *testing.T) {
	// N=2 flow slots; flow A gets 10 packets of 1000 bytes, flow B gets
	// one 1000-byte packet. B's weight exceeds A's.
	m := newConfiguredBigFlow(t, 2)

	a := ipv4Packet(t, 1, 2, 1000-20)
	b := ipv4Packet(t, 3, 4, 1000-20)

	var wa float64
	for i := 0; i < 10; i++ {
		wa = m.Weight(a, 0)
	}
	wb := m.Weight(b, 0)

	require.Greater(t, wb, wa)
}

func TestBigFlow_InvariantTotalEqualsSumOfSlots(t *testing.T) {
	m := newConfiguredBigFlow(t, 3)

	pkts := [][]byte{
		ipv4Packet(t, 1, 1, 80),
		ipv4Packet(t, 2, 2, 80),
		ipv4Packet(t, 3, 3, 80),
		ipv4Packet(t, 4, 4, 80), // evicts flow (1,1)
		ipv4Packet(t, 1, 1, 80), // re-enters, separate slot now
	}

	for _, p := range pkts {
		m.Weight(p, 0)

		var sum uint64
		for _, f := range m.flows {
			sum += f.octets
		}
		require.Equal(t, m.total, sum)
	}
}

func TestBigFlow_UnparsableReturnsEpsilon(t *testing.T) {
	m := newConfiguredBigFlow(t, 1)
	w := m.Weight([]byte{1, 2, 3}, 0) // too short to be a valid IPv4 header
	require.Equal(t, Epsilon, w)
}
