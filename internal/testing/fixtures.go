package testing

// Shared fixture values.
const (
	Thumbprint     = "6938fd4d98bab03faadb97b34396831e3780aea1"
	SubjectPattern = "repo:acme/web:ref:refs/heads/main"
	Account        = "123456789012"
	Region         = "eu-west-1"
	UserData       = "#!/bin/bash\nyum install -y ruby\n"
)
