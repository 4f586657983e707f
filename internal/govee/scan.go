package govee

import (
	"context"
	"encoding/json"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/ipv4"

	"github.com/dokzlo13/cutelights/internal/light"
)

// Multicast scan endpoint
var (
	multicastGroup = net.IPv4(239, 255, 255, 250)
	scanAddr       = &net.UDPAddr{IP: multicastGroup, Port: 4001}
)

const (
	multicastTTL  = 2
	scanQueueSize = 32
	scanBufSize   = 10240
)

// listener forwards datagrams from the shared socket while a scan runs
type listener struct {
	sock   *Socket
	out    chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
	joined bool
}

func startListener(sock *Socket) *listener {
	l := &listener{
		sock: sock,
		out:  make(chan []byte, scanQueueSize),
		done: make(chan struct{}),
	}

	group := &net.UDPAddr{IP: multicastGroup}
	if err := sock.pc.JoinGroup(nil, group); err != nil {
		log.Warn().Err(err).Str("adapter", light.FamilyGovee).Msg("Failed to join multicast group")
	} else {
		l.joined = true
	}

	l.wg.Add(1)
	go l.run()
	return l
}

func (l *listener) run() {
	defer l.wg.Done()
	defer close(l.out)

	buf := make([]byte, scanBufSize)
	for {
		n, _, err := l.sock.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-l.done:
				return
			default:
			}
			log.Debug().Err(err).Str("adapter", light.FamilyGovee).Msg("Scan listener stopped")
			return
		}

		payload := append([]byte(nil), buf[:n]...)
		select {
		case l.out <- payload:
		case <-l.done:
			return
		}
	}
}

// stop ends the read loop and leaves the group; the socket stays open
func (l *listener) stop() {
	close(l.done)
	_ = l.sock.conn.SetReadDeadline(time.Now())
	l.wg.Wait()
	_ = l.sock.conn.SetReadDeadline(time.Time{})

	if l.joined {
		if err := l.sock.pc.LeaveGroup(nil, &net.UDPAddr{IP: multicastGroup}); err != nil {
			log.Debug().Err(err).Str("adapter", light.FamilyGovee).Msg("Failed to leave multicast group")
		}
	}
}

// announce sends one scan request from an ephemeral socket
func announce(target *net.UDPAddr) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero})
	if err != nil {
		log.Error().Err(err).Str("adapter", light.FamilyGovee).Msg("Failed to open announce socket")
		return
	}
	defer conn.Close()

	if err := ipv4.NewPacketConn(conn).SetMulticastTTL(multicastTTL); err != nil {
		log.Warn().Err(err).Str("adapter", light.FamilyGovee).Msg("Failed to set multicast TTL")
	}
	if _, err := conn.WriteToUDP(scanMessage, target); err != nil {
		log.Error().Err(err).Str("adapter", light.FamilyGovee).Stringer("target", target).Msg("Failed to send scan request")
		return
	}
	log.Debug().Str("adapter", light.FamilyGovee).Stringer("target", target).Msg("Scan request sent")
}

// scan collects scan replies from the configured ips until all were seen or ctx ends.
// The end of ctx is not an error: whatever was collected is returned.
func scan(ctx context.Context, sock *Socket, target *net.UDPAddr, ips []string) []scanResponse {
	wanted := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		wanted[ip] = struct{}{}
	}
	if len(wanted) == 0 {
		return nil
	}

	l := startListener(sock)
	defer l.stop()
	go announce(target)

	var found []scanResponse
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("adapter", light.FamilyGovee).Int("found", len(found)).Int("wanted", len(wanted)).Msg("Scan window elapsed")
			return found
		case payload, ok := <-l.out:
			if !ok {
				return found
			}
			dev, ok := parseScan(payload)
			if !ok {
				continue
			}
			if _, want := wanted[dev.IP]; !want {
				continue
			}
			if slices.ContainsFunc(found, func(d scanResponse) bool { return d.IP == dev.IP }) {
				continue
			}
			found = append(found, dev)
			log.Debug().
				Str("adapter", light.FamilyGovee).
				Str("ip", dev.IP).
				Str("device", dev.Device).
				Str("sku", dev.SKU).
				Msg("Scan reply")
			if len(found) == len(wanted) {
				return found
			}
		}
	}
}

func parseScan(payload []byte) (scanResponse, bool) {
	var dev scanResponse
	cmd, data, err := decodeResponse(payload)
	if err != nil {
		log.Debug().Err(err).Str("adapter", light.FamilyGovee).Msg("Ignoring undecodable datagram")
		return dev, false
	}
	if cmd != cmdScan {
		return dev, false
	}
	if err := json.Unmarshal(data, &dev); err != nil || dev.Device == "" {
		log.Debug().Err(err).Str("adapter", light.FamilyGovee).Msg("Ignoring malformed scan reply")
		return dev, false
	}
	return dev, true
}
