package mrtpipe

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/bgpkit/monocle/internal/store"
)

// compiledFilter is a Filter with its derived state (containment keys,
// compiled regex) precomputed once per run instead of per element,
// generalizing stages/grep.go's "parse flags once in Attach, check
// cheaply per message" split.
type compiledFilter struct {
	f         Filter
	prefixKey store.Key
	hasPrefix bool
	asPath    *regexp.Regexp
}

func compileFilter(f Filter) (*compiledFilter, error) {
	cf := &compiledFilter{f: f}

	if f.HasPrefix {
		key, err := store.EncodePrefix(f.Prefix)
		if err != nil {
			return nil, err
		}
		cf.prefixKey = key
		cf.hasPrefix = true
	}

	if f.ASPathRegex != "" {
		re, err := regexp.Compile(f.ASPathRegex)
		if err != nil {
			return nil, err
		}
		cf.asPath = re
	}

	return cf, nil
}

// Match reports whether el passes every configured dimension of the
// filter (spec.md §4.5 stage 3). An unset dimension never excludes.
func (cf *compiledFilter) Match(el BGPElement) bool {
	f := &cf.f

	if len(f.Types) > 0 && !slices.Contains(f.Types, el.Type) {
		return false
	}

	if len(f.OriginASN) > 0 && !slices.Contains(f.OriginASN, el.OriginASN) {
		return false
	}

	if len(f.PeerASN) > 0 && !slices.Contains(f.PeerASN, el.PeerASN) {
		return false
	}

	if len(f.PeerIP) > 0 {
		matched := false
		for _, ip := range f.PeerIP {
			if ip == el.PeerIP {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if cf.hasPrefix {
		elKey, err := store.EncodePrefix(el.Prefix)
		if err != nil {
			return false
		}
		matched := elKey == cf.prefixKey ||
			(f.IncludeSub && cf.prefixKey.Covers(elKey)) ||
			(f.IncludeSuper && elKey.Covers(cf.prefixKey))
		if !matched {
			return false
		}
	}

	if cf.asPath != nil {
		if !cf.asPath.MatchString(formatASPath(el.ASPath)) {
			return false
		}
	}

	if !f.Since.IsZero() && el.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && el.Timestamp.After(f.Until) {
		return false
	}

	return true
}

func formatASPath(path []uint32) string {
	parts := make([]string, len(path))
	for i, asn := range path {
		parts[i] = strconv.FormatUint(uint64(asn), 10)
	}
	return strings.Join(parts, " ")
}
