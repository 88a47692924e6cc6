package lens

import (
	"context"
	"encoding/json"
	"net/netip"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/bgpkit/monocle/internal/refresh"
	"github.com/bgpkit/monocle/internal/repo"
)

// QueryType is the classification spec.md §4.4's inspect lens assigns
// a free-form query string.
type QueryType string

const (
	QueryASN    QueryType = "asn"
	QueryPrefix QueryType = "prefix"
	QueryName   QueryType = "name"
)

// Section names a selectable slice of an inspect report.
type Section string

const (
	SectionBasic        Section = "basic"
	SectionPeeringDB    Section = "peeringdb"
	SectionHegemony     Section = "hegemony"
	SectionPopulation   Section = "population"
	SectionPrefixes     Section = "prefixes"
	SectionConnectivity Section = "connectivity"
	SectionROAs         Section = "roas"
	SectionASPA         Section = "aspa"
)

var asPattern = regexp.MustCompile(`(?i)^as(\d+)$`)

// Classify implements spec.md §4.4's pattern table, in order.
func Classify(query string) (QueryType, string) {
	q := strings.TrimSpace(query)

	if m := asPattern.FindStringSubmatch(q); m != nil {
		return QueryASN, m[1]
	}
	if _, err := strconv.ParseUint(q, 10, 32); err == nil {
		return QueryASN, q
	}
	if strings.Contains(q, "/") {
		return QueryPrefix, q
	}
	if addr, err := netip.ParseAddr(q); err == nil {
		if addr.Is4() {
			return QueryPrefix, q + "/32"
		}
		return QueryPrefix, q + "/128"
	}
	return QueryName, q
}

// defaultSections returns the section set a query type pulls in when
// the caller doesn't request specific sections (spec.md §4.4).
func defaultSections(t QueryType) []Section {
	switch t {
	case QueryASN:
		return []Section{SectionBasic, SectionPeeringDB, SectionHegemony, SectionPopulation, SectionConnectivity, SectionROAs, SectionASPA}
	case QueryPrefix:
		return []Section{SectionBasic, SectionROAs}
	default:
		return []Section{SectionBasic}
	}
}

// InspectReport is the assembled result of an inspect.query call.
// Fields are omitted (left nil) when their section has no data or
// wasn't requested, per spec.md §4.4 "sections with no data are
// omitted rather than reported as errors".
type InspectReport struct {
	Query     string    `json:"query"`
	Type      QueryType `json:"type"`
	Truncated bool      `json:"truncated"`

	Basic        *repo.AsinfoCore          `json:"basic,omitempty"`
	PeeringDB    json.RawMessage           `json:"peeringdb,omitempty"`
	Hegemony     *float64                  `json:"hegemony,omitempty"`
	Population   *int64                    `json:"population,omitempty"`
	Prefixes     []repo.Pfx2asEntry        `json:"prefixes,omitempty"`
	Connectivity *repo.ConnectivitySummary `json:"connectivity,omitempty"`
	ROAs         []repo.ROA                `json:"roas,omitempty"`
	ASPA         *repo.ASPA                `json:"aspa,omitempty"`
	NameMatches  []repo.AsinfoCore         `json:"name_matches,omitempty"`
}

// InspectOptions carries the caller-selected sections and result limits.
type InspectOptions struct {
	Sections     []Section // nil means "use the type's defaults"
	MaxROAs      int       // 0 means unbounded
	MaxPrefixes  int
	MaxNeighbors int
}

// InspectLens implements spec.md §4.4's unified inspect lens.
type InspectLens struct {
	zerolog.Logger

	asinfo *repo.AsinfoRepo
	as2rel *repo.AS2RelRepo
	pfx2as *repo.Pfx2asRepo
	rpki   *RPKILens
	coord  *refresh.Coordinator
}

func NewInspectLens(logger zerolog.Logger, asinfo *repo.AsinfoRepo, as2rel *repo.AS2RelRepo, pfx2as *repo.Pfx2asRepo, rpki *RPKILens, coord *refresh.Coordinator) *InspectLens {
	return &InspectLens{
		Logger: logger.With().Str("component", "lens.inspect").Logger(),
		asinfo: asinfo,
		as2rel: as2rel,
		pfx2as: pfx2as,
		rpki:   rpki,
		coord:  coord,
	}
}

// Query classifies the free-form string and assembles the requested
// (or default) sections into an InspectReport.
func (l *InspectLens) Query(ctx context.Context, query string, opts InspectOptions) (*InspectReport, error) {
	qtype, normalized := Classify(query)

	sections := opts.Sections
	if sections == nil {
		sections = defaultSections(qtype)
	}
	want := make(map[Section]bool, len(sections))
	for _, s := range sections {
		want[s] = true
	}

	report := &InspectReport{Query: query, Type: qtype}

	switch qtype {
	case QueryASN:
		asn, err := strconv.ParseUint(normalized, 10, 32)
		if err != nil {
			return nil, err
		}
		if err := l.fillASNSections(ctx, uint32(asn), want, opts, report); err != nil {
			return nil, err
		}
	case QueryPrefix:
		p, err := netip.ParsePrefix(normalized)
		if err != nil {
			return nil, err
		}
		if err := l.fillPrefixSections(ctx, p, want, report); err != nil {
			return nil, err
		}
	default:
		matches, err := l.asinfo.SearchText(ctx, normalized)
		if err != nil {
			return nil, err
		}
		report.NameMatches = matches
	}

	return report, nil
}

func (l *InspectLens) fillASNSections(ctx context.Context, asn uint32, want map[Section]bool, opts InspectOptions, report *InspectReport) error {
	if l.coord != nil {
		if err := l.coord.EnsureAvailable(ctx, "asinfo", "as2rel"); err != nil {
			l.Warn().Err(err).Msg("inspect: bootstrap refresh failed, serving what's cached")
		}
	}

	full, err := l.asinfo.GetFull(ctx, asn)
	if err != nil {
		return err
	}
	if full != nil {
		if want[SectionBasic] {
			report.Basic = &full.AsinfoCore
		}
		if want[SectionPeeringDB] && len(full.PeeringDB) > 0 {
			report.PeeringDB = full.PeeringDB
		}
		if want[SectionHegemony] && full.Hegemony != nil {
			report.Hegemony = full.Hegemony
		}
		if want[SectionPopulation] && full.Population != nil {
			report.Population = full.Population
		}
	}

	if want[SectionPrefixes] {
		prefixes, err := l.pfx2as.ByOrigin(ctx, asn)
		if err != nil {
			return err
		}
		report.Prefixes, report.Truncated = clipPfx2as(prefixes, opts.MaxPrefixes, report.Truncated)
	}

	if want[SectionConnectivity] {
		topN := opts.MaxNeighbors
		summary, err := l.as2rel.ConnectivitySummary(ctx, asn, topN)
		if err != nil {
			return err
		}
		report.Connectivity = &summary
	}

	if want[SectionROAs] && l.rpki != nil {
		roas, err := l.rpki.Roas(ctx, asn)
		if err != nil && err != ErrNotInitialized {
			return err
		}
		if len(roas) > 0 {
			report.ROAs, report.Truncated = clipROAs(roas, opts.MaxROAs, report.Truncated)
		}
	}

	if want[SectionASPA] && l.rpki != nil {
		aspa, err := l.rpki.Aspas(ctx, asn)
		if err != nil && err != ErrNotInitialized {
			return err
		}
		report.ASPA = aspa
	}

	return nil
}

func (l *InspectLens) fillPrefixSections(ctx context.Context, p netip.Prefix, want map[Section]bool, report *InspectReport) error {
	if want[SectionBasic] {
		entries, err := l.pfx2as.Longest(ctx, p)
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if full, err := l.asinfo.GetFull(ctx, entries[0].OriginASN); err == nil && full != nil {
				report.Basic = &full.AsinfoCore
			}
		}
	}

	if want[SectionROAs] && l.rpki != nil {
		result, err := l.rpki.Validate(ctx, p, originOrZero(report.Basic))
		if err != nil && err != ErrNotInitialized {
			return err
		}
		report.ROAs = result.CoveringROAs
	}

	return nil
}

func originOrZero(c *repo.AsinfoCore) uint32 {
	if c == nil {
		return 0
	}
	return c.ASN
}

func clipROAs(roas []repo.ROA, max int, truncated bool) ([]repo.ROA, bool) {
	if max <= 0 || len(roas) <= max {
		return roas, truncated
	}
	return roas[:max], true
}

func clipPfx2as(entries []repo.Pfx2asEntry, max int, truncated bool) ([]repo.Pfx2asEntry, bool) {
	if max <= 0 || len(entries) <= max {
		return entries, truncated
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Prefix < entries[j].Prefix })
	return entries[:max], true
}
