package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, 10000, cfg.NFQLen)
	require.Equal(t, 365, cfg.KeepStat)
	require.False(t, cfg.Stat)
	require.False(t, cfg.WChart)
}

func TestParse_RecognisedDirectives(t *testing.T) {
	src := `
# comment line
queue 3
limit 8000k
packets 4096
nfqlen 20000
stat yes
statdir /var/lib/damper
keepstat 30
wchart yes
`
	cfg, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.Queue)
	require.Equal(t, uint64(1_000_000), cfg.Limit) // 8000k bits/sec / 8
	require.Equal(t, 4096, cfg.Packets)
	require.Equal(t, 20000, cfg.NFQLen)
	require.True(t, cfg.Stat)
	require.Equal(t, "/var/lib/damper", cfg.StatDir)
	require.Equal(t, 30, cfg.KeepStat)
	require.True(t, cfg.WChart)
}

func TestParse_LimitNoIsUnlimitedSentinel(t *testing.T) {
	cfg, err := Parse(strings.NewReader("limit no"))
	require.NoError(t, err)
	require.Equal(t, LimitUnlimited, cfg.Limit)
}

func TestParse_LimitZeroMeansBlockAll(t *testing.T) {
	cfg, err := Parse(strings.NewReader("limit 0"))
	require.NoError(t, err)
	require.Equal(t, uint64(0), cfg.Limit)
}

func TestParse_LimitSuffixes(t *testing.T) {
	cases := map[string]uint64{
		"800":  100,
		"800k": 100_000,
		"8m":   1_000_000,
		"8g":   1_000_000_000,
	}
	for arg, want := range cases {
		cfg, err := Parse(strings.NewReader("limit " + arg))
		require.NoError(t, err)
		require.Equal(t, want, cfg.Limit, "arg=%s", arg)
	}
}

func TestParse_InlineCommentsStripped(t *testing.T) {
	cfg, err := Parse(strings.NewReader("queue 5 # the queue id\n"))
	require.NoError(t, err)
	require.Equal(t, 5, cfg.Queue)
}

func TestParse_UnknownDirectiveForwardedAsModule(t *testing.T) {
	cfg, err := Parse(strings.NewReader("bymark 80 10.0\nentropy nrecent 8\n"))
	require.NoError(t, err)
	require.Equal(t, []ModuleDirective{
		{Module: "bymark", Arg1: "80", Arg2: "10.0"},
		{Module: "entropy", Arg1: "nrecent", Arg2: "8"},
	}, cfg.Modules)
}

func TestParse_CoefficientDirectiveForwarded(t *testing.T) {
	cfg, err := Parse(strings.NewReader("entropy k 2.0\n"))
	require.NoError(t, err)
	require.Equal(t, []ModuleDirective{{Module: "entropy", Arg1: "k", Arg2: "2.0"}}, cfg.Modules)
}

func TestParse_MissingArgumentErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("queue"))
	require.Error(t, err)
}

func TestParse_BadIntegerErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("packets abc"))
	require.Error(t, err)
}

func TestParse_BadBooleanErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("stat maybe"))
	require.Error(t, err)
}

func TestParse_BadLimitErrors(t *testing.T) {
	_, err := Parse(strings.NewReader("limit notanumber"))
	require.Error(t, err)
}
