package provisioning

// State holds the shared results of provisioning phases.
// It is progressively populated as each phase completes and is passed
// to subsequent phases that need earlier results. Every value is a logical
// ID in the topology builder.
type State struct {
	// Infrastructure results (populated by infrastructure provisioner)
	VPC                       string
	InternetGateway           string
	GatewayAttachment         string
	Subnets                   map[string][]string // tier -> subnet IDs in AZ order
	RouteTables               map[string][]string // tier -> route table IDs in AZ order
	DefaultRoutes             map[string][]string // tier -> default route IDs in AZ order
	PrivateRouteTables        []string
	NATGateways               []string
	Endpoints                 []string
	EndpointSecurityGroup     string
	LoadBalancer              string
	LoadBalancerSecurityGroup string
	TargetGroup               string
	Listener                  string

	// Compute results (populated by compute provisioner)
	InstanceRole          string
	InstanceProfile       string
	InstanceSecurityGroup string
	LaunchTemplate        string
	AutoScalingGroup      string

	// Delivery results (populated by delivery provisioner)
	ServiceRole      string
	Application      string
	DeploymentConfig string
	DeploymentGroup  string

	// Identity results (populated by identity provisioner)
	OIDCProvider string
	DeployRole   string

	// Storage results (populated by storage provisioner)
	Bucket       string
	BucketPolicy string
	BucketKey    string
}

// NewState creates an empty provisioning state.
func NewState() *State {
	return &State{
		Subnets:       make(map[string][]string),
		RouteTables:   make(map[string][]string),
		DefaultRoutes: make(map[string][]string),
	}
}
