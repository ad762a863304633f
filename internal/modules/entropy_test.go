package modules

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func tcpPacket(t *testing.T, src, dst uint32, sport, dport uint16, payload []byte) []byte {
	t.Helper()
	pkt := make([]byte, 20+20+len(payload))
	pkt[0] = 0x45
	pkt[9] = 6 // TCP
	pkt[12], pkt[13], pkt[14], pkt[15] = byte(src>>24), byte(src>>16), byte(src>>8), byte(src)
	pkt[16], pkt[17], pkt[18], pkt[19] = byte(dst>>24), byte(dst>>16), byte(dst>>8), byte(dst)
	pkt[20], pkt[21] = byte(sport>>8), byte(sport)
	pkt[22], pkt[23] = byte(dport>>8), byte(dport)
	copy(pkt[40:], payload)
	return pkt
}

func newConfiguredEntropy(t *testing.T, n int) *entropyMod {
	t.Helper()
	m := newEntropy()
	require.NoError(t, m.Configure("nrecent", strconv.Itoa(n)))
	require.NoError(t, m.PostConf())
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestEntropy_PostConfFailsWithoutNrecent(t *testing.T) {
	m := newEntropy()
	require.Error(t, m.PostConf())
}

func TestEntropy_UniformPayloadHasHighEntropy(t *testing.T) {
	m := newConfiguredEntropy(t, 4)

	uniform := make([]byte, 256)
	for i := range uniform {
		uniform[i] = byte(i)
	}
	w := m.Weight(tcpPacket(t, 1, 2, 111, 222, uniform), 0)
	require.InDelta(t, 8.0, w, 0.2) // log2(256) == 8 bits
}

func TestEntropy_ConstantPayloadHasLowEntropy(t *testing.T) {
	m := newConfiguredEntropy(t, 4)

	constant := make([]byte, 128)
	for i := range constant {
		constant[i] = 'A'
	}
	w := m.Weight(tcpPacket(t, 1, 2, 111, 222, constant), 0)
	require.Less(t, w, 0.01)
}

func TestEntropy_HistogramSumsToStreamLen(t *testing.T) {
	m := newConfiguredEntropy(t, 2)

	m.Weight(tcpPacket(t, 1, 2, 1, 2, []byte("hello")), 0)
	m.Weight(tcpPacket(t, 1, 2, 1, 2, []byte("world!")), 0)

	f := &m.flows[0]
	var sum uint32
	for _, c := range f.histogram {
		sum += c
	}
	require.Equal(t, f.streamLen, sum)
	require.EqualValues(t, len("hello")+len("world!"), f.streamLen)
}

func TestEntropy_DistinctFlowsDistinctSlots(t *testing.T) {
	m := newConfiguredEntropy(t, 2)

	m.Weight(tcpPacket(t, 1, 2, 10, 20, []byte("aaaa")), 0)
	m.Weight(tcpPacket(t, 3, 4, 30, 40, []byte("bbbb")), 0)

	require.EqualValues(t, 4, m.flows[0].streamLen)
	require.EqualValues(t, 4, m.flows[1].streamLen)
}
