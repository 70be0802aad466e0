// Package resolver looks up CNAME records and folds every "no answer"
// variant into a small set of outcomes the takeover pipeline can branch on.
package resolver

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/axeq/takeoverme/internal/debug"
	"github.com/miekg/dns"
)

// DefaultResolvConf is read when no nameservers are configured
const DefaultResolvConf = "/etc/resolv.conf"

// fallbackServer is used when resolv.conf is missing or empty
const fallbackServer = "8.8.8.8:53"

// Kind classifies the outcome of a CNAME lookup
type Kind int

const (
	Resolved Kind = iota
	NoRecord
	DomainNotFound
	ResolutionError
)

func (k Kind) String() string {
	switch k {
	case Resolved:
		return "resolved"
	case NoRecord:
		return "no CNAME record found"
	case DomainNotFound:
		return "domain does not exist"
	case ResolutionError:
		return "resolution error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Outcome is the result of one CNAME lookup. Target is the first CNAME target
// without its trailing dot; Targets holds every target when the resolver was
// built with AllCNAMEs, otherwise just Target.
type Outcome struct {
	Kind    Kind
	Target  string
	Targets []string
	Message string
}

func (o Outcome) String() string {
	switch o.Kind {
	case Resolved:
		return o.Target
	case ResolutionError:
		return "error: " + o.Message
	}
	return o.Kind.String()
}

// Options configures a Resolver
type Options struct {
	// Servers are nameserver addresses (host or host:port). Empty means the
	// system configuration from DefaultResolvConf.
	Servers []string
	// Timeout bounds a single query
	Timeout time.Duration
	// AllCNAMEs keeps every CNAME in the answer instead of only the first
	AllCNAMEs bool
}

type exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, time.Duration, error)
}

// Resolver issues CNAME queries against a rotating list of nameservers.
// It is safe for concurrent use.
type Resolver struct {
	udp       exchanger
	tcp       exchanger
	servers   []string
	allCNAMEs bool
	next      uint32
}

// New creates a Resolver from options
func New(opts Options) (*Resolver, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	servers := opts.Servers
	if len(servers) == 0 {
		servers = SystemServers(DefaultResolvConf)
	}
	normalized := make([]string, 0, len(servers))
	for _, s := range servers {
		addr, err := normalizeServer(s)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, addr)
	}

	return &Resolver{
		udp:       &dns.Client{Net: "udp", Timeout: timeout},
		tcp:       &dns.Client{Net: "tcp", Timeout: timeout},
		servers:   normalized,
		allCNAMEs: opts.AllCNAMEs,
	}, nil
}

// SystemServers returns the nameservers listed in a resolv.conf style file,
// or a public fallback when it cannot be read.
func SystemServers(path string) []string {
	conf, err := dns.ClientConfigFromFile(path)
	if err != nil || len(conf.Servers) == 0 {
		return []string{fallbackServer}
	}
	servers := make([]string, 0, len(conf.Servers))
	for _, s := range conf.Servers {
		servers = append(servers, net.JoinHostPort(s, conf.Port))
	}
	return servers
}

func normalizeServer(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("empty nameserver address")
	}
	if _, _, err := net.SplitHostPort(s); err == nil {
		return s, nil
	}
	if net.ParseIP(s) == nil && strings.Contains(s, ":") {
		return "", fmt.Errorf("invalid nameserver address %q", s)
	}
	return net.JoinHostPort(s, "53"), nil
}

// Servers returns the nameservers in rotation order
func (r *Resolver) Servers() []string {
	return append([]string(nil), r.servers...)
}

// ResolveCNAME issues a single CNAME query for host. It never returns an
// error: failures are reported as ResolutionError with a readable message.
func (r *Resolver) ResolveCNAME(ctx context.Context, host string) Outcome {
	host = strings.TrimSpace(host)
	if host == "" {
		return Outcome{Kind: ResolutionError, Message: "empty hostname"}
	}

	server := r.servers[int(atomic.AddUint32(&r.next, 1)-1)%len(r.servers)]
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeCNAME)
	m.RecursionDesired = true

	start := time.Now()
	resp, _, err := r.udp.ExchangeContext(ctx, m, server)
	if err == nil && resp != nil && resp.Truncated {
		// Same query over TCP to get the full answer
		resp, _, err = r.tcp.ExchangeContext(ctx, m, server)
	}
	debug.Record("dns", time.Since(start), err)

	outcome := r.classify(resp, err)
	debug.Logf("dns", "%s @%s -> %s", host, server, outcome)
	return outcome
}

func (r *Resolver) classify(resp *dns.Msg, err error) Outcome {
	if err != nil {
		return Outcome{Kind: ResolutionError, Message: err.Error()}
	}
	if resp == nil {
		return Outcome{Kind: ResolutionError, Message: "empty response"}
	}

	switch resp.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return Outcome{Kind: DomainNotFound}
	default:
		return Outcome{Kind: ResolutionError, Message: fmt.Sprintf("server returned %s", dns.RcodeToString[resp.Rcode])}
	}

	var targets []string
	for _, rr := range resp.Answer {
		cname, ok := rr.(*dns.CNAME)
		if !ok {
			continue
		}
		targets = append(targets, strings.TrimSuffix(cname.Target, "."))
		if !r.allCNAMEs {
			break
		}
	}
	if len(targets) == 0 {
		return Outcome{Kind: NoRecord}
	}
	return Outcome{Kind: Resolved, Target: targets[0], Targets: targets}
}
