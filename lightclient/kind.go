package lightclient

import (
	"fmt"

	"github.com/0xPolygonHermez/zkevm-xcall/host"
	"github.com/0xPolygonHermez/zkevm-xcall/merkle"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ClientKind selects the verification algorithm of a client
type ClientKind uint8

const (
	// KindIcon verifies headers signed by a secp256k1 validator set with a
	// keccak message tree
	KindIcon ClientKind = 1
)

type algorithm struct {
	name             string
	verifyHeader     func(api host.API, cs *ClientState, sh *host.SignedHeader) error
	verifyMembership func(cons *ConsensusState, proof []merkle.Node, value []byte) error
}

var algorithms = map[ClientKind]algorithm{
	KindIcon: {
		name:             "icon-light-client",
		verifyHeader:     verifyIconHeader,
		verifyMembership: verifyIconMembership,
	},
}

func algorithmOf(kind ClientKind) (algorithm, error) {
	a, ok := algorithms[kind]
	if !ok {
		return algorithm{}, fmt.Errorf("%w: %d", ErrUnknownClientKind, kind)
	}
	return a, nil
}

// String returns the client type reported in events
func (k ClientKind) String() string {
	if a, ok := algorithms[k]; ok {
		return a.name
	}
	return fmt.Sprintf("unknown-%d", k)
}

func verifyIconHeader(api host.API, cs *ClientState, sh *host.SignedHeader) error {
	if host.ValidatorsHash(sh.Validators) != cs.NextValidatorsHash {
		return ErrInvalidValidatorSet
	}
	seen := make(map[common.Address]struct{}, len(sh.Validators))
	for _, v := range sh.Validators {
		if _, ok := seen[v.Address]; ok {
			return fmt.Errorf("%w: duplicate validator %s", ErrInvalidValidatorSet, v.Address.Hex())
		}
		seen[v.Address] = struct{}{}
	}
	signed, total := SignedPower(api, sh)
	return VerifyQuorum(signed, total, cs.TrustNumerator, cs.TrustDenominator)
}

// SignedPower sums the power of the validators whose signature recovers to
// their own address. Signatures[i] is checked against Validators[i] only.
func SignedPower(api host.API, sh *host.SignedHeader) (signed, total *uint256.Int) {
	digest := sh.Header.Digest()
	signed, total = new(uint256.Int), new(uint256.Int)
	for i, v := range sh.Validators {
		power := uint256.NewInt(v.Power)
		total.Add(total, power)
		if i >= len(sh.Signatures) {
			continue
		}
		addr, ok := host.RecoverAddress(api, digest[:], sh.Signatures[i])
		if ok && addr == v.Address {
			signed.Add(signed, power)
		}
	}
	return signed, total
}

// VerifyQuorum checks signed/total >= num/den without division
func VerifyQuorum(signed, total *uint256.Int, num, den uint64) error {
	if signed.IsZero() || den == 0 {
		return fmt.Errorf("%w: signed power is 0", ErrInsufficientQuorum)
	}
	lhs := new(uint256.Int).Mul(signed, uint256.NewInt(den))
	rhs := new(uint256.Int).Mul(total, uint256.NewInt(num))
	if lhs.Lt(rhs) {
		return fmt.Errorf("%w: signed power %s / total power %s < %d / %d", ErrInsufficientQuorum, signed.ToBig(), total.ToBig(), num, den)
	}
	return nil
}

func verifyIconMembership(cons *ConsensusState, proof []merkle.Node, value []byte) error {
	if !merkle.Verify(cons.MessageRoot, value, proof) {
		return ErrInvalidMerkleProof
	}
	return nil
}
