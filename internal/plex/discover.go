package plex

import (
	"context"
	"errors"
	"floatfetch/internal/utils"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultConcurrency   = 4
	DefaultServerTimeout = 15 * time.Second

	// SectionTypeShow is the only library section type the bootstrap offers.
	SectionTypeShow = "show"
)

// ErrNoServersReachable is returned when every server of an account failed.
var ErrNoServersReachable = errors.New("no plex servers reachable")

// Account lists the resources registered to one media-server login.
type Account interface {
	Resources(ctx context.Context) ([]Resource, error)
}

// Resource is a device registered to an account.
type Resource interface {
	Name() string
	Capabilities() CapabilitySet
	Connect(ctx context.Context) (ConnectedServer, error)
}

// ConnectedServer is a resource that accepted a connection.
type ConnectedServer interface {
	Library(ctx context.Context) (Library, error)
}

// Library exposes a server's library sections.
type Library interface {
	Sections(ctx context.Context) ([]Section, error)
}

// Section is a library section as listed by a server.
type Section struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// DiscoveredSection is a show section tagged with the server it lives on.
type DiscoveredSection struct {
	Server  string
	Section Section
}

// ID is the identifier persisted in settings: "<server>:<section title>".
func (d DiscoveredSection) ID() string {
	return d.Server + ":" + d.Section.Title
}

// Label is the operator-facing name of the section.
func (d DiscoveredSection) Label() string {
	return fmt.Sprintf("%s (%s)", d.Section.Title, d.Server)
}

// ServerFailure records a server that could not be listed.
type ServerFailure struct {
	Server string
	Err    error
}

// Discovery is the flattened result of DiscoverShowSections. Failures lists
// servers that were skipped; a non-empty Failures is not an error.
type Discovery struct {
	Sections []DiscoveredSection
	Failures []ServerFailure
}

// IDs returns the identifiers of every discovered section.
func (d Discovery) IDs() []string {
	ids := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		ids = append(ids, s.ID())
	}
	return ids
}

// DiscoverOptions bounds the fan-out.
type DiscoverOptions struct {
	Concurrency   int
	ServerTimeout time.Duration
}

func (o DiscoverOptions) withDefaults() DiscoverOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.ServerTimeout <= 0 {
		o.ServerTimeout = DefaultServerTimeout
	}
	return o
}

type serverResult struct {
	sections []DiscoveredSection
	err      error
}

// DiscoverShowSections lists every show section on every server reachable
// through account. Servers are queried concurrently; a failing server is
// recorded in Failures and does not affect the others. The result keeps
// server order, then each server's section order.
func DiscoverShowSections(ctx context.Context, account Account, opts DiscoverOptions) (Discovery, error) {
	opts = opts.withDefaults()

	resources, err := account.Resources(ctx)
	if err != nil {
		return Discovery{}, fmt.Errorf("list resources: %w", err)
	}

	var servers []Resource
	for _, r := range resources {
		if r.Capabilities().Has(CapabilityServer) {
			servers = append(servers, r)
		} else {
			utils.Debug("Plex resource %q skipped, provides=%s", r.Name(), r.Capabilities())
		}
	}
	if len(servers) == 0 {
		return Discovery{}, nil
	}

	results := make([]serverResult, len(servers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, server := range servers {
		i, server := i, server
		g.Go(func() error {
			sections, err := listServerShows(gctx, server, opts.ServerTimeout)
			results[i] = serverResult{sections: sections, err: err}
			// Failures are data, never group errors, so siblings keep running.
			return nil
		})
	}
	_ = g.Wait()

	var discovery Discovery
	for i, res := range results {
		if res.err != nil {
			utils.Debug("Plex server %q failed: %v", servers[i].Name(), res.err)
			discovery.Failures = append(discovery.Failures, ServerFailure{Server: servers[i].Name(), Err: res.err})
			continue
		}
		discovery.Sections = append(discovery.Sections, res.sections...)
	}

	if len(discovery.Failures) == len(servers) {
		errs := make([]error, 0, len(discovery.Failures))
		for _, f := range discovery.Failures {
			errs = append(errs, fmt.Errorf("%s: %w", f.Server, f.Err))
		}
		return discovery, fmt.Errorf("%w: %w", ErrNoServersReachable, errors.Join(errs...))
	}
	return discovery, nil
}

func listServerShows(ctx context.Context, server Resource, timeout time.Duration) ([]DiscoveredSection, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := server.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	library, err := conn.Library(ctx)
	if err != nil {
		return nil, fmt.Errorf("library: %w", err)
	}
	sections, err := library.Sections(ctx)
	if err != nil {
		return nil, fmt.Errorf("sections: %w", err)
	}

	var shows []DiscoveredSection
	for _, s := range sections {
		if s.Type == SectionTypeShow {
			shows = append(shows, DiscoveredSection{Server: server.Name(), Section: s})
		}
	}
	return shows, nil
}
