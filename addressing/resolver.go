package addressing

import (
	"slices"

	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/email"
	"github.com/roadrunner-plugins/inbound/recipient"
)

// Resolver recovers verified record ids from a message's recipients.
type Resolver struct {
	signer *Signer
	log    *zap.Logger
}

// NewResolver returns a resolver verifying with signer. A nil logger discards
// output.
func NewResolver(signer *Signer, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{signer: signer, log: log}
}

// Signer returns the signer used for verification.
func (r *Resolver) Signer() *Signer {
	return r.signer
}

// Resolve returns the distinct ids, ascending, referenced by recipients of msg
// addressed to base under namespace. Unsigned or forged recipients are skipped.
func (r *Resolver) Resolve(msg *email.Message, namespace string, base email.Address) []int64 {
	return r.ResolveMatches(namespace, recipient.MatchAll(msg, base))
}

// ResolveMatches is Resolve over matches computed by the caller.
func (r *Resolver) ResolveMatches(namespace string, matches []recipient.Match) []int64 {
	seen := make(map[int64]struct{}, len(matches))
	ids := make([]int64, 0, len(matches))

	for _, m := range matches {
		if !m.HasExtension {
			r.log.Debug("recipient cannot be matched to a record",
				zap.String("recipient", m.Recipient.Spec()),
			)
			continue
		}

		id, err := r.signer.Decode(namespace, m.Extension)
		if err != nil {
			r.log.Debug("recipient failed validation",
				zap.String("recipient", m.Recipient.Spec()),
				zap.String("namespace", namespace),
			)
			continue
		}

		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	slices.Sort(ids)
	return ids
}
