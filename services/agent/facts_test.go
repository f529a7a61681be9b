package agent

import (
	"net"
	"testing"
)

func TestGatherFactsBaseKeys(t *testing.T) {
	facts := gatherFacts()
	for _, key := range []string{"os", "arch", "num_cpu", "agent_ts"} {
		if _, ok := facts[key]; !ok {
			t.Fatalf("facts missing %q: %+v", key, facts)
		}
	}
}

func TestPickMAC(t *testing.T) {
	hw := net.HardwareAddr{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	tests := []struct {
		name   string
		ifaces []net.Interface
		want   string
		ok     bool
	}{
		{
			name: "skips loopback and down interfaces",
			ifaces: []net.Interface{
				{Name: "lo", Flags: net.FlagUp | net.FlagLoopback, HardwareAddr: hw},
				{Name: "eth0", Flags: 0, HardwareAddr: hw},
				{Name: "eth1", Flags: net.FlagUp, HardwareAddr: hw},
			},
			want: "de:ad:be:ef:00:01",
			ok:   true,
		},
		{
			name: "skips interfaces without an address",
			ifaces: []net.Interface{
				{Name: "tun0", Flags: net.FlagUp},
			},
		},
		{name: "no interfaces"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := pickMAC(tc.ifaces)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("pickMAC = %q %v, want %q %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestParseMemTotalKB(t *testing.T) {
	tests := []struct {
		name string
		data string
		want uint64
		ok   bool
	}{
		{
			name: "typical meminfo",
			data: "MemTotal:       16301980 kB\nMemFree:         1083044 kB\n",
			want: 16301980,
			ok:   true,
		},
		{name: "missing MemTotal", data: "MemFree: 123 kB\n"},
		{name: "garbage value", data: "MemTotal: lots kB\n"},
		{name: "empty"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := parseMemTotalKB([]byte(tc.data))
			if got != tc.want || ok != tc.ok {
				t.Fatalf("parseMemTotalKB = %d %v, want %d %v", got, ok, tc.want, tc.ok)
			}
		})
	}
}
