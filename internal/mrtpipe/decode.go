package mrtpipe

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/bgpfix/bgpfix/dir"
	"github.com/bgpfix/bgpfix/mrt"
	"github.com/bgpfix/bgpfix/msg"
	"github.com/bgpfix/bgpfix/pipe"
	"github.com/rs/zerolog"
)

// decodeFile decodes one local MRT file into BGPElements, in the
// order the file contained them, tagging every element with collector.
//
// Grounded on stages/mrt.go's Reader usage (mrt.NewReader(ctx), Attach
// to a pipe, ReadFromPath) and stages/grep.go/limit.go's message field
// access (m.Update, u.AsPath().Segments, m.Update.GetReach/GetUnreach).
func decodeFile(ctx context.Context, path string, collector string, logger zerolog.Logger) ([]BGPElement, error) {
	p := pipe.NewPipe(ctx)
	p.Options.Logger = &logger

	var elements []BGPElement
	p.OnMsg(func(m *msg.Msg) bool {
		if m.Type != msg.UPDATE {
			return true
		}
		elements = append(elements, updateToElements(m, collector)...)
		return true
	}, dir.DIR_R, msg.UPDATE)

	mr := mrt.NewReader(ctx)
	mr.Options.Logger = &logger
	if err := mr.Attach(p, dir.DIR_R); err != nil {
		return nil, fmt.Errorf("mrtpipe: attach reader for %s: %w", path, err)
	}

	if _, err := mr.ReadFromPath(path); err != nil {
		return nil, fmt.Errorf("mrtpipe: decode %s: %w", path, err)
	}

	return elements, nil
}

// updateToElements flattens one UPDATE message's announcements and
// withdrawals into BGPElements. Peer IP/ASN are read from context tags
// if the reader set them (mirroring stages/websocket.go's UseTags
// pattern, which is the only tag-writer this corpus demonstrates);
// absent tags simply leave those fields zero.
func updateToElements(m *msg.Msg, collector string) []BGPElement {
	u := &m.Update

	var origin uint32
	var asPath []uint32
	if ap := u.AsPath(); ap != nil {
		origin = ap.Origin()
		for _, seg := range ap.Segments {
			asPath = append(asPath, seg.List...)
		}
	}

	peerIP, peerASN := peerFromTags(m)

	var nhAddr netip.Addr
	if nh := u.NextHop(); nh.IsValid() {
		nhAddr = nh
	}

	var out []BGPElement
	for _, p := range u.GetReach(nil) {
		out = append(out, BGPElement{
			Collector: collector,
			Timestamp: m.Time,
			Type:      ElementAnnounce,
			Prefix:    netip.PrefixFrom(p.Addr(), p.Bits()),
			OriginASN: origin,
			ASPath:    asPath,
			PeerIP:    peerIP,
			PeerASN:   peerASN,
			NextHop:   nhAddr,
		})
	}
	for _, p := range u.GetUnreach(nil) {
		out = append(out, BGPElement{
			Collector: collector,
			Timestamp: m.Time,
			Type:      ElementWithdraw,
			Prefix:    netip.PrefixFrom(p.Addr(), p.Bits()),
			PeerIP:    peerIP,
			PeerASN:   peerASN,
		})
	}
	return out
}

func peerFromTags(m *msg.Msg) (netip.Addr, uint32) {
	tags := pipe.UseContext(m).UseTags()
	var ip netip.Addr
	var asn uint32
	if s, ok := tags["mrt/peer_ip"]; ok {
		if a, err := netip.ParseAddr(s); err == nil {
			ip = a
		}
	}
	if s, ok := tags["mrt/peer_asn"]; ok {
		var v uint32
		if _, err := fmt.Sscanf(s, "%d", &v); err == nil {
			asn = v
		}
	}
	return ip, asn
}
