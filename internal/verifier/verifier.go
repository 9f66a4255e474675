// Package verifier implements the per-address verification function used by bulk jobs
// and the single-address endpoint.
package verifier

import (
	"context"
	"errors"
	"net"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Harsh-BH/bulkcheck/internal/domain"
)

// Verdict reasons.
const (
	ReasonInvalidSyntax = "invalid_syntax"
	ReasonNoMX          = "no_mail_server"
	ReasonNullMX        = "null_mx"
	ReasonDNSTimeout    = "dns_timeout"
	ReasonDNSError      = "dns_error"
	ReasonDisposable    = "disposable_domain"
	ReasonRole          = "role_account"
	ReasonAccepted      = "accepted"
)

const maxAddressLength = 254

// Resolver is the subset of *net.Resolver the verifier needs.
type Resolver interface {
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Config tunes the verifier.
type Config struct {
	// Timeout bounds the DNS work for a single address.
	Timeout time.Duration
	// DNSRate caps lookups per second across all goroutines. Zero disables pacing.
	DNSRate float64
}

// Verifier checks addresses. It is safe for concurrent use.
type Verifier struct {
	resolver Resolver
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// New creates a Verifier. A nil resolver uses net.DefaultResolver.
func New(resolver Resolver, cfg Config, logger *zap.Logger) *Verifier {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.DNSRate > 0 {
		burst := int(cfg.DNSRate)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.DNSRate), burst)
	}
	return &Verifier{
		resolver: resolver,
		limiter:  limiter,
		timeout:  cfg.Timeout,
		logger:   logger,
		now:      time.Now,
	}
}

// Verify classifies one address. Failures are encoded in the verdict; it never returns an error.
func (v *Verifier) Verify(ctx context.Context, address string, opts domain.VerifyOptions) (verdict domain.Verdict) {
	start := v.now()
	address = strings.TrimSpace(address)

	verdict.Email = address
	defer func() {
		verdict.VerifiedAt = v.now().UTC()
		verdict.DurationMs = v.now().Sub(start).Milliseconds()
	}()

	local, host, ok := splitAddress(address)
	if !ok {
		verdict.State = domain.StateUndeliverable
		verdict.Reason = ReasonInvalidSyntax
		return verdict
	}
	verdict.SyntaxValid = true
	verdict.Domain = host

	score := 100

	if !opts.SkipTypo {
		if suggestion := suggestDomain(host); suggestion != "" {
			verdict.DidYouMean = local + "@" + suggestion
			score -= 25
		}
	}
	if !opts.SkipDisposable {
		_, verdict.Disposable = disposableDomains[host]
	}
	if !opts.SkipRole {
		_, verdict.RoleBased = roleLocalParts[local]
	}
	_, verdict.FreeProvider = freeProviders[host]

	mx, reason := v.lookup(ctx, host)
	switch reason {
	case "":
		verdict.DNSValid = true
		verdict.MXRecords = mx
	case ReasonDNSTimeout, ReasonDNSError:
		verdict.State = domain.StateUnknown
		verdict.Reason = reason
		verdict.Score = clampScore(score / 2)
		return verdict
	default:
		verdict.State = domain.StateUndeliverable
		verdict.Reason = reason
		return verdict
	}

	if verdict.Disposable {
		score -= 50
	}
	if verdict.RoleBased {
		score -= 20
	}
	if verdict.FreeProvider {
		score -= 5
	}
	verdict.Score = clampScore(score)

	switch {
	case verdict.Disposable:
		verdict.State = domain.StateRisky
		verdict.Reason = ReasonDisposable
	case verdict.RoleBased:
		verdict.State = domain.StateRisky
		verdict.Reason = ReasonRole
	default:
		verdict.State = domain.StateDeliverable
		verdict.Reason = ReasonAccepted
	}
	return verdict
}

// lookup resolves the mail hosts of domainName. A non-empty reason means no usable host.
func (v *Verifier) lookup(ctx context.Context, domainName string) ([]string, string) {
	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	if err := v.limiter.Wait(ctx); err != nil {
		return nil, ReasonDNSTimeout
	}

	records, err := v.resolver.LookupMX(ctx, domainName)
	if err == nil && len(records) > 0 {
		if len(records) == 1 && (records[0].Host == "." || records[0].Host == "") {
			return nil, ReasonNullMX
		}
		hosts := make([]string, 0, len(records))
		for _, r := range records {
			hosts = append(hosts, strings.TrimSuffix(r.Host, "."))
		}
		return hosts, ""
	}
	if err != nil && !isNotFound(err) {
		v.logger.Debug("MX lookup failed", zap.String("domain", domainName), zap.Error(err))
		return nil, classifyDNSError(ctx, err)
	}

	// No MX: an A/AAAA record is an implicit mail host.
	addrs, err := v.resolver.LookupHost(ctx, domainName)
	if err != nil {
		if isNotFound(err) {
			return nil, ReasonNoMX
		}
		v.logger.Debug("host lookup failed", zap.String("domain", domainName), zap.Error(err))
		return nil, classifyDNSError(ctx, err)
	}
	if len(addrs) == 0 {
		return nil, ReasonNoMX
	}
	return []string{domainName}, ""
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

func classifyDNSError(ctx context.Context, err error) string {
	var dnsErr *net.DNSError
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &dnsErr) && dnsErr.IsTimeout) {
		return ReasonDNSTimeout
	}
	return ReasonDNSError
}

// splitAddress validates a bare address and returns its lowercased local part and domain.
func splitAddress(address string) (string, string, bool) {
	if address == "" || len(address) > maxAddressLength {
		return "", "", false
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Name != "" || parsed.Address != address {
		return "", "", false
	}
	at := strings.LastIndexByte(address, '@')
	local := strings.ToLower(address[:at])
	host := strings.ToLower(address[at+1:])
	if local == "" || len(local) > 64 {
		return "", "", false
	}
	if !strings.Contains(host, ".") || strings.HasPrefix(host, ".") || strings.HasSuffix(host, ".") {
		return "", "", false
	}
	return local, host, true
}

// suggestDomain returns a popular domain within edit distance 2 of host, or "".
func suggestDomain(host string) string {
	best, bestDist := "", 3
	for _, candidate := range popularDomains {
		if candidate == host {
			return ""
		}
		if d := levenshtein(host, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best
}

func levenshtein(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func clampScore(s int) int {
	return max(0, min(100, s))
}
