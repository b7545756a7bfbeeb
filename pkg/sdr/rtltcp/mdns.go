package rtltcp

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/norasector/turbine-input/pkg/sdr"
)

const serviceType = "_rtl_tcp._tcp"

// Host is an rtl_tcp server found on the local network.
type Host struct {
	Instance string
	Hostname string
	Address  net.IP
	Port     int
}

func (h Host) Addr() string {
	host := h.Hostname
	if h.Address != nil {
		host = h.Address.String()
	}
	return net.JoinHostPort(host, strconv.Itoa(h.Port))
}

func (h Host) Kwargs() sdr.Kwargs {
	return sdr.KwargsFromMap(map[string]string{
		"driver": DriverName,
		"rtltcp": h.Addr(),
		"label":  h.Instance,
	})
}

// Discover browses for rtl_tcp servers for the given duration.
func Discover(timeout time.Duration) ([]Host, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("resolver error: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	results := make(map[string]Host)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case e, ok := <-entries:
				if !ok {
					return
				}
				if e == nil {
					continue
				}
				h := Host{
					Instance: strings.ReplaceAll(e.Instance, `\ `, " "),
					Hostname: e.HostName,
					Port:     e.Port,
				}
				if len(e.AddrIPv4) > 0 {
					h.Address = e.AddrIPv4[0]
				} else if len(e.AddrIPv6) > 0 {
					h.Address = e.AddrIPv6[0]
				}
				results[h.Addr()] = h
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, serviceType, "local.", entries); err != nil {
		return nil, fmt.Errorf("browse error: %w", err)
	}
	<-done

	ret := make([]Host, 0, len(results))
	for _, h := range results {
		ret = append(ret, h)
	}
	return ret, nil
}
