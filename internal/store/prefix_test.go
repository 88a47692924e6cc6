package store

import (
	"net/netip"
	"testing"
)

func TestEncodePrefixLowNeverExceedsHigh(t *testing.T) {
	cases := []string{"10.0.0.0/8", "1.1.1.1/32", "::/0", "2001:db8::/32", "0.0.0.0/0"}
	for _, c := range cases {
		p := netip.MustParsePrefix(c)
		key, err := EncodePrefix(p)
		if err != nil {
			t.Fatalf("%s: %v", c, err)
		}
		if cmp16(key.Low, key.High) > 0 {
			t.Errorf("%s: low > high", c)
		}
	}
}

func TestEncodePrefixIPv4AndIPv6DisjointRanges(t *testing.T) {
	v4, err := EncodePrefix(netip.MustParsePrefix("0.0.0.0/0"))
	if err != nil {
		t.Fatal(err)
	}
	v6, err := EncodePrefix(netip.MustParsePrefix("::/0"))
	if err != nil {
		t.Fatal(err)
	}
	if v4.Covers(v6) || v6.Covers(v4) {
		t.Errorf("expected disjoint v4/v6 ranges, got v4=%+v v6=%+v", v4, v6)
	}
}

func TestKeyCoversSupernet(t *testing.T) {
	supernet, _ := EncodePrefix(netip.MustParsePrefix("10.0.0.0/8"))
	subnet, _ := EncodePrefix(netip.MustParsePrefix("10.1.0.0/16"))

	if !supernet.Covers(subnet) {
		t.Error("want supernet to cover subnet")
	}
	if subnet.Covers(supernet) {
		t.Error("want subnet to not cover supernet")
	}
	if !supernet.Covers(supernet) {
		t.Error("want a prefix to cover itself")
	}
}

func TestEncodePrefixRoundTripsExactString(t *testing.T) {
	p := netip.MustParsePrefix("192.0.2.128/25")
	key, err := EncodePrefix(p)
	if err != nil {
		t.Fatal(err)
	}
	if key.Str != p.String() {
		t.Errorf("want %s, got %s", p.String(), key.Str)
	}
	if key.Length != p.Bits() {
		t.Errorf("want length %d, got %d", p.Bits(), key.Length)
	}
}
