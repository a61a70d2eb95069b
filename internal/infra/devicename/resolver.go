package devicename

import (
	"bufio"
	"context"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"skyhero/internal/domain"
)

// DefaultLeasesPath is where dnsmasq records dynamic DHCP assignments.
const DefaultLeasesPath = "/var/lib/misc/dnsmasq.leases"

var defaultNvramPaths = []string{"/bin/nvram", "/usr/sbin/nvram"}

// CommandRunner executes a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Resolver looks device names up in the router's nvram client lists and the
// dnsmasq lease file. Every step fails open to the next one.
type Resolver struct {
	Run        CommandRunner
	NvramPath  string
	LeasesPath string
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// NewResolver builds a Resolver for the local router.
func NewResolver(timeout time.Duration, logger zerolog.Logger) *Resolver {
	nvram := defaultNvramPaths[len(defaultNvramPaths)-1]
	for _, p := range defaultNvramPaths {
		if _, err := os.Stat(p); err == nil {
			nvram = p
			break
		}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Resolver{
		Run:        execRunner,
		NvramPath:  nvram,
		LeasesPath: DefaultLeasesPath,
		Timeout:    timeout,
		Logger:     logger,
	}
}

// ResolveName returns the best known label for mac, or a Device-XXXX
// placeholder derived from its last two octets.
func (r *Resolver) ResolveName(ctx context.Context, mac string) string {
	search := strings.ToUpper(mac)

	if out, ok := r.nvram(ctx, "custom_clientlist"); ok {
		// <name>mac>ip>host>>>> entries
		for _, entry := range strings.Split(out, "<") {
			parts := strings.Split(entry, ">")
			if len(parts) >= 4 && strings.ToUpper(parts[1]) == search && usable(parts[0]) {
				return parts[0]
			}
		}
	}

	if out, ok := r.nvram(ctx, "dhcp_staticlist"); ok {
		// <mac>ip>host>lease entries
		for _, entry := range strings.Split(out, "<") {
			parts := strings.Split(entry, ">")
			if len(parts) >= 3 && strings.ToUpper(parts[0]) == search && usable(parts[2]) {
				return parts[2]
			}
		}
	}

	if name, ok := r.lease(search); ok {
		return name
	}

	return Placeholder(mac)
}

// Placeholder is the deterministic fallback name for mac.
func Placeholder(mac string) string {
	suffix := mac
	if len(suffix) > 5 {
		suffix = suffix[len(suffix)-5:]
	}
	return "Device-" + strings.ReplaceAll(suffix, ":", "")
}

func (r *Resolver) nvram(ctx context.Context, key string) (string, bool) {
	if r.Run == nil || r.NvramPath == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	out, err := r.Run(ctx, r.NvramPath, "get", key)
	if err != nil {
		r.Logger.Debug().Err(err).Str("key", key).Msg("devicename: nvram lookup failed")
		return "", false
	}
	s := strings.TrimSpace(string(out))
	return s, s != ""
}

func (r *Resolver) lease(search string) (string, bool) {
	if r.LeasesPath == "" {
		return "", false
	}
	f, err := os.Open(r.LeasesPath)
	if err != nil {
		return "", false
	}
	defer f.Close()

	// expiry mac ip host clientid
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 4 && strings.ToUpper(fields[1]) == search && usable(fields[3]) {
			return fields[3], true
		}
	}
	return "", false
}

func usable(name string) bool {
	return name != "" && name != "*"
}

// Cached memoizes resolved names for ttl. Placeholder answers are never
// kept, so a lookup that failed once is retried on the next call.
type Cached struct {
	next domain.NameResolver
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	names map[string]cachedName
}

type cachedName struct {
	name    string
	expires time.Time
}

func NewCached(next domain.NameResolver, ttl time.Duration) *Cached {
	return &Cached{next: next, ttl: ttl, now: time.Now, names: make(map[string]cachedName)}
}

func (c *Cached) ResolveName(ctx context.Context, mac string) string {
	now := c.now()
	c.mu.Lock()
	hit, ok := c.names[mac]
	if ok && !now.Before(hit.expires) {
		delete(c.names, mac)
		ok = false
	}
	c.mu.Unlock()
	if ok {
		return hit.name
	}

	name := c.next.ResolveName(ctx, mac)
	if c.ttl <= 0 || name == Placeholder(mac) {
		return name
	}
	c.mu.Lock()
	c.names[mac] = cachedName{name: name, expires: now.Add(c.ttl)}
	c.mu.Unlock()
	return name
}

var (
	_ domain.NameResolver = (*Resolver)(nil)
	_ domain.NameResolver = (*Cached)(nil)
)
