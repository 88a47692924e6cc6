package mrtpipe

import (
	"net/netip"
	"testing"
	"time"
)

func TestFilterOriginASN(t *testing.T) {
	cf, err := compileFilter(Filter{OriginASN: []uint32{13335}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	match := BGPElement{OriginASN: 13335, Prefix: netip.MustParsePrefix("1.1.1.0/24")}
	if !cf.Match(match) {
		t.Error("want match on origin 13335")
	}

	noMatch := BGPElement{OriginASN: 64500, Prefix: netip.MustParsePrefix("1.1.1.0/24")}
	if cf.Match(noMatch) {
		t.Error("want no match on origin 64500")
	}
}

func TestFilterPrefixExactDoesNotMatchSuperOrSub(t *testing.T) {
	cf, err := compileFilter(Filter{Prefix: netip.MustParsePrefix("1.1.1.0/24"), HasPrefix: true})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	exact := BGPElement{Prefix: netip.MustParsePrefix("1.1.1.0/24")}
	if !cf.Match(exact) {
		t.Error("want exact prefix to match")
	}

	sub := BGPElement{Prefix: netip.MustParsePrefix("1.1.1.0/25")}
	if cf.Match(sub) {
		t.Error("want sub-prefix to not match without IncludeSub")
	}

	super := BGPElement{Prefix: netip.MustParsePrefix("1.1.0.0/16")}
	if cf.Match(super) {
		t.Error("want super-prefix to not match without IncludeSuper")
	}
}

func TestFilterPrefixIncludeSubAndSuper(t *testing.T) {
	cf, err := compileFilter(Filter{
		Prefix:       netip.MustParsePrefix("1.1.1.0/24"),
		HasPrefix:    true,
		IncludeSub:   true,
		IncludeSuper: true,
	})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	sub := BGPElement{Prefix: netip.MustParsePrefix("1.1.1.0/25")}
	if !cf.Match(sub) {
		t.Error("want sub-prefix to match with IncludeSub")
	}

	super := BGPElement{Prefix: netip.MustParsePrefix("1.1.0.0/16")}
	if !cf.Match(super) {
		t.Error("want super-prefix to match with IncludeSuper")
	}

	unrelated := BGPElement{Prefix: netip.MustParsePrefix("203.0.113.0/24")}
	if cf.Match(unrelated) {
		t.Error("want unrelated prefix to not match")
	}
}

func TestFilterASPathRegex(t *testing.T) {
	cf, err := compileFilter(Filter{ASPathRegex: `(^| )6447( |$)`})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	match := BGPElement{ASPath: []uint32{174, 6447, 13335}}
	if !cf.Match(match) {
		t.Error("want AS_PATH containing 6447 to match")
	}

	noMatch := BGPElement{ASPath: []uint32{174, 3356, 13335}}
	if cf.Match(noMatch) {
		t.Error("want AS_PATH without 6447 to not match")
	}
}

func TestFilterTimeWindow(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cf, err := compileFilter(Filter{Since: since, Until: until})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	inside := BGPElement{Timestamp: since.Add(time.Hour)}
	if !cf.Match(inside) {
		t.Error("want timestamp inside window to match")
	}

	before := BGPElement{Timestamp: since.Add(-time.Hour)}
	if cf.Match(before) {
		t.Error("want timestamp before window to not match")
	}

	after := BGPElement{Timestamp: until.Add(time.Hour)}
	if cf.Match(after) {
		t.Error("want timestamp after window to not match")
	}
}

func TestFilterElementType(t *testing.T) {
	cf, err := compileFilter(Filter{Types: []ElementType{ElementWithdraw}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	if cf.Match(BGPElement{Type: ElementAnnounce}) {
		t.Error("want announce to not match withdraw-only filter")
	}
	if !cf.Match(BGPElement{Type: ElementWithdraw}) {
		t.Error("want withdraw to match withdraw-only filter")
	}
}
