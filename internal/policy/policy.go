// Package policy implements the UsagePolicy tables of §4.7: which
// pseudonym types a RID's declared usage may be redeemed for, the minimum
// recipient tier each pseudonym type requires, and the tier rank ordering
// that compares them.
package policy

// Tier is one of the three usage tiers, ordered irp < rp < bsn.
type Tier string

const (
	Irp Tier = "irp"
	Rp  Tier = "rp"
	Bsn Tier = "bsn"
)

// rank assigns the ordinal used to compare tiers, per §3's UsageTier.
var rank = map[Tier]int{
	Irp: 1,
	Rp:  2,
	Bsn: 3,
}

// Rank returns t's ordinal, or 0 if t is not a recognised tier.
func Rank(t Tier) int {
	return rank[t]
}

// Valid reports whether t is one of the three recognised tiers.
func Valid(t Tier) bool {
	_, ok := rank[t]
	return ok
}

// allowedByRidUsage is ALLOWED_BY_RID_USAGE from §4.7: the set of
// pseudonym types a RID declared with a given usage may be redeemed for.
var allowedByRidUsage = map[Tier]map[Tier]bool{
	Bsn: {Bsn: true, Rp: true, Irp: true},
	Rp:  {Rp: true, Irp: true},
	Irp: {Irp: true},
}

// AllowedByRidUsage reports whether requested may be redeemed from a RID
// declared with ridUsage.
func AllowedByRidUsage(ridUsage, requested Tier) bool {
	allowed, ok := allowedByRidUsage[ridUsage]
	if !ok {
		return false
	}
	return allowed[requested]
}

// minTierForPseudonym is MIN_TIER_FOR_PSEUDONYM from §4.7: the minimum
// recipient max_rid_usage tier required to ever obtain a pseudonym of the
// given type.
var minTierForPseudonym = map[Tier]Tier{
	Bsn: Bsn,
	Rp:  Rp,
	Irp: Irp,
}

// MinTierForPseudonym returns the minimum tier required to redeem
// pseudonymType.
func MinTierForPseudonym(pseudonymType Tier) Tier {
	return minTierForPseudonym[pseudonymType]
}

// RedemptionAllowed reports whether a RID declared with ridUsage, redeemed
// by a recipient whose ceiling is recipientMaxUsage, may be exchanged for
// requestedType. Both checks in §4.7 must pass.
func RedemptionAllowed(ridUsage, recipientMaxUsage, requestedType Tier) bool {
	if !AllowedByRidUsage(ridUsage, requestedType) {
		return false
	}
	return Rank(recipientMaxUsage) >= Rank(MinTierForPseudonym(requestedType))
}
