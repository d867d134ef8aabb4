package config

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
	"net"

	"github.com/apparentlymart/go-cidr/cidr"
)

// ErrAddressSpace is returned when the declared tiers do not fit into the
// network block.
var ErrAddressSpace = errors.New("insufficient address space")

// Subnet is the block allocated to one (tier, AZ) pair.
type Subnet struct {
	Tier     string
	Type     SubnetType
	AZ       string
	AZIndex  int
	CIDR     string
	Reserved bool
}

// AllocateSubnets carves base into one block per (tier, AZ). Allocation is
// sequential and aligned: tier by tier in declaration order, AZ by AZ within
// a tier. Reserved tiers consume space like any other tier.
//
// Note: Only IPv4 addresses are supported.
func AllocateSubnets(base string, tiers []TierConfig, azs []string) ([]Subnet, error) {
	_, network, err := net.ParseCIDR(base)
	if err != nil {
		return nil, fmt.Errorf("invalid CIDR prefix: %w", err)
	}
	if network.IP.To4() == nil {
		return nil, fmt.Errorf("only IPv4 addresses are supported, got IPv6: %s", base)
	}
	if len(azs) == 0 {
		return nil, fmt.Errorf("at least one availability zone is required")
	}

	masks, err := tierMasks(network, tiers, len(azs))
	if err != nil {
		return nil, err
	}

	// Alignment can waste space ahead of an equally shared tier, so shrink
	// the shared blocks until the plan fits.
	for {
		subnets, err := allocate(network, tiers, masks, azs)
		if err == nil || !errors.Is(err, ErrAddressSpace) || !shrinkAutoMasks(tiers, masks) {
			return subnets, err
		}
	}
}

func allocate(network *net.IPNet, tiers []TierConfig, masks []int, azs []string) ([]Subnet, error) {
	subnets := make([]Subnet, 0, len(tiers)*len(azs))
	blocks := make([]*net.IPNet, 0, len(tiers)*len(azs))
	cursor := network.IP.To4()

	for i, tier := range tiers {
		for azIndex, az := range azs {
			block, next, err := alignedBlock(network, cursor, masks[i])
			if err != nil {
				return nil, fmt.Errorf("tier %q in %s: %w", tier.Name, az, err)
			}
			cursor = next
			blocks = append(blocks, block)
			subnets = append(subnets, Subnet{
				Tier:     tier.Name,
				Type:     tier.Type,
				AZ:       az,
				AZIndex:  azIndex,
				CIDR:     block.String(),
				Reserved: tier.Reserved,
			})
		}
	}

	if err := cidr.VerifyNoOverlap(blocks, network); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAddressSpace, err)
	}

	return subnets, nil
}

// shrinkAutoMasks halves the blocks of tiers without an explicit mask.
// It reports false when there is nothing left to shrink.
func shrinkAutoMasks(tiers []TierConfig, masks []int) bool {
	shrunk := false
	for i, tier := range tiers {
		if tier.CIDRMask == 0 && masks[i] < MaxSubnetMask {
			masks[i]++
			shrunk = true
		}
	}
	return shrunk
}

// alignedBlock returns the first block of size mask at or after cursor, and
// the address immediately after it.
func alignedBlock(network *net.IPNet, cursor net.IP, mask int) (*net.IPNet, net.IP, error) {
	block := &net.IPNet{
		IP:   cursor.Mask(net.CIDRMask(mask, 32)),
		Mask: net.CIDRMask(mask, 32),
	}
	if ipToUint(block.IP) < ipToUint(cursor) {
		next, rollover := cidr.NextSubnet(block, mask)
		if rollover {
			return nil, nil, ErrAddressSpace
		}
		block = next
	}

	first, last := cidr.AddressRange(block)
	if !network.Contains(first) || !network.Contains(last) {
		return nil, nil, fmt.Errorf("%w: /%d does not fit after %s", ErrAddressSpace, mask, cursor)
	}

	return block, cidr.Inc(last).To4(), nil
}

// tierMasks resolves the prefix length of every tier. Tiers without an
// explicit mask share what the explicit tiers leave, using the largest
// block size that fits.
func tierMasks(network *net.IPNet, tiers []TierConfig, azCount int) ([]int, error) {
	baseMask, _ := network.Mask.Size()
	total := uint64(1) << (32 - baseMask)

	masks := make([]int, len(tiers))
	var used uint64
	auto := 0
	for i, tier := range tiers {
		if tier.CIDRMask == 0 {
			auto++
			continue
		}
		if tier.CIDRMask < baseMask || tier.CIDRMask > 32 {
			return nil, fmt.Errorf("%w: tier %q mask /%d cannot be carved from /%d", ErrAddressSpace, tier.Name, tier.CIDRMask, baseMask)
		}
		masks[i] = tier.CIDRMask
		used += (uint64(1) << (32 - tier.CIDRMask)) * uint64(azCount)
	}
	if used > total {
		return nil, fmt.Errorf("%w: tiers need %d addresses, %s has %d", ErrAddressSpace, used, network, total)
	}
	if auto == 0 {
		return masks, nil
	}

	share := (total - used) / uint64(auto*azCount)
	if share == 0 {
		return nil, fmt.Errorf("%w: no space left for tiers without a mask", ErrAddressSpace)
	}
	autoMask := 32 - (bits.Len64(share) - 1)
	if autoMask > MaxSubnetMask {
		return nil, fmt.Errorf("%w: remaining space yields /%d subnets, smaller than /%d", ErrAddressSpace, autoMask, MaxSubnetMask)
	}
	for i, tier := range tiers {
		if tier.CIDRMask == 0 {
			masks[i] = autoMask
		}
	}
	return masks, nil
}

// ipToUint converts an IPv4 address to its integer form.
func ipToUint(ip net.IP) uint64 {
	if ip4 := ip.To4(); ip4 != nil {
		return uint64(binary.BigEndian.Uint32(ip4))
	}
	return 0
}
