// Package identity maps a social identity to the set of blockchain
// addresses it is allowed to have paid from. The set is rebuilt on every
// call from the external identity directory; it is never cached, because
// a player can link or unlink wallets at any time.
package identity

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Directory is the external identity service the resolver reads from.
type Directory interface {
	// CustodyAddress returns the platform-managed wallet for an identity.
	CustodyAddress(ctx context.Context, identityID string) (string, error)

	// VerifiedAddresses returns externally linked wallets the identity
	// has proven ownership of.
	VerifiedAddresses(ctx context.Context, identityID string) ([]string, error)
}

// AllowedPayerSet is the deduplicated, lower-cased address set an identity
// may pay from. An empty set means "no allowed payer": callers fail closed.
type AllowedPayerSet struct {
	IdentityID string
	addresses  map[string]struct{}
}

// Contains reports whether the address belongs to the set. Comparison is
// case-insensitive.
func (s *AllowedPayerSet) Contains(address string) bool {
	if s == nil || len(s.addresses) == 0 {
		return false
	}
	_, ok := s.addresses[strings.ToLower(address)]
	return ok
}

// Addresses returns the set as a slice in no particular order.
func (s *AllowedPayerSet) Addresses() []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(s.addresses))
	for addr := range s.addresses {
		out = append(out, addr)
	}
	return out
}

// Len returns the number of distinct addresses.
func (s *AllowedPayerSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.addresses)
}

// NewAllowedPayerSet builds a set directly from known addresses. Intended
// for callers that already hold a resolved set, and for tests.
func NewAllowedPayerSet(identityID string, addresses ...string) *AllowedPayerSet {
	set := &AllowedPayerSet{
		IdentityID: identityID,
		addresses:  make(map[string]struct{}, len(addresses)),
	}
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		set.addresses[strings.ToLower(addr)] = struct{}{}
	}
	return set
}

// Resolver builds AllowedPayerSets from a Directory.
type Resolver struct {
	directory Directory
	log       *zap.Logger
}

// NewResolver creates a Resolver.
func NewResolver(directory Directory, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{
		directory: directory,
		log:       log,
	}
}

// Resolve returns the allowed payer set for an identity. It never fails:
// directory errors are logged and produce an empty set, which downstream
// verification treats as "payer not allowed".
func (r *Resolver) Resolve(ctx context.Context, identityID string) *AllowedPayerSet {
	set := &AllowedPayerSet{
		IdentityID: identityID,
		addresses:  make(map[string]struct{}),
	}

	custody, err := r.directory.CustodyAddress(ctx, identityID)
	if err != nil {
		r.log.Warn("custody address lookup failed",
			zap.String("identityId", identityID),
			zap.Error(err))
	} else if custody != "" {
		set.addresses[strings.ToLower(custody)] = struct{}{}
	}

	verified, err := r.directory.VerifiedAddresses(ctx, identityID)
	if err != nil {
		r.log.Warn("verified address lookup failed",
			zap.String("identityId", identityID),
			zap.Error(err))
	}
	for _, addr := range verified {
		if addr == "" {
			continue
		}
		set.addresses[strings.ToLower(addr)] = struct{}{}
	}

	return set
}
