package config

import "fmt"

// NetworkLayout is the resolved address plan of a stack: the AZs in use and
// every (tier, AZ) block.
type NetworkLayout struct {
	CIDR    string
	AZs     []string
	NATs    int
	Subnets []Subnet
}

// AvailabilityZones returns the AZs the network spans: the explicit list when
// given, otherwise region plus a letter suffix.
func (c *Config) AvailabilityZones() []string {
	n := c.Network.MaxAZs
	if n <= 0 {
		n = DefaultMaxAZs
	}
	if len(c.Network.AvailabilityZones) > 0 {
		if len(c.Network.AvailabilityZones) < n {
			n = len(c.Network.AvailabilityZones)
		}
		return append([]string(nil), c.Network.AvailabilityZones[:n]...)
	}
	azs := make([]string, 0, n)
	for i := 0; i < n && i < 26; i++ {
		azs = append(azs, fmt.Sprintf("%s%c", c.Region, 'a'+i))
	}
	return azs
}

// Layout allocates the network block across tiers and AZs.
func (c *Config) Layout() (*NetworkLayout, error) {
	azs := c.AvailabilityZones()
	subnets, err := AllocateSubnets(c.Network.CIDR, c.Network.Tiers, azs)
	if err != nil {
		return nil, err
	}
	return &NetworkLayout{
		CIDR:    c.Network.CIDR,
		AZs:     azs,
		NATs:    c.Network.NATGatewayCount(len(azs)),
		Subnets: subnets,
	}, nil
}

// SubnetsByType returns the non-reserved subnets of one visibility class in
// tier then AZ order.
func (l *NetworkLayout) SubnetsByType(t SubnetType) []Subnet {
	var out []Subnet
	for _, s := range l.Subnets {
		if s.Type == t && !s.Reserved {
			out = append(out, s)
		}
	}
	return out
}

// SubnetsByTier returns the subnets of one tier in AZ order. Reserved tiers
// yield nothing.
func (l *NetworkLayout) SubnetsByTier(name string) []Subnet {
	var out []Subnet
	for _, s := range l.Subnets {
		if s.Tier == name && !s.Reserved {
			out = append(out, s)
		}
	}
	return out
}

// NATIndex returns the NAT gateway serving an AZ. AZ groups wrap around when
// there are fewer gateways than AZs.
func (l *NetworkLayout) NATIndex(azIndex int) int {
	if l.NATs <= 0 {
		return -1
	}
	return azIndex % l.NATs
}
