package machinist

// Definition is the pre-parsed declarative record for one machine. It is
// produced by the config package (or any other definition source) and
// copied into the machine's persisted record by SetCommonState.
type Definition struct {
	// TargetHost is the SSH destination, e.g. "root@203.0.113.10" or an
	// IPv6 literal. Bracketing for scp is handled by the session layer.
	TargetHost string `yaml:"targetHost" json:"targetHost"`

	SSHPort            int  `yaml:"sshPort" json:"sshPort"`
	StoreKeysOnMachine bool `yaml:"storeKeysOnMachine" json:"storeKeysOnMachine"`
	AlwaysActivate     bool `yaml:"alwaysActivate" json:"alwaysActivate"`
	HasFastConnection  bool `yaml:"hasFastConnection" json:"hasFastConnection"`

	Owners []string `yaml:"owners,omitempty" json:"owners,omitempty"`

	// Keys maps a secret name to its spec. Secrets are independent of
	// each other; provisioning order is unspecified.
	Keys map[string]KeySpec `yaml:"keys,omitempty" json:"keys,omitempty"`
}

// KeySpec declares one piece of key material: where its content comes
// from and where (and with what ownership) it lands on the machine.
// Exactly one of Text, KeyCommand or KeyFile must be set.
type KeySpec struct {
	Text       string `yaml:"text,omitempty" json:"text,omitempty"`
	KeyCommand string `yaml:"keyCmd,omitempty" json:"keyCmd,omitempty"`
	KeyFile    string `yaml:"keyFile,omitempty" json:"keyFile,omitempty"`

	// DestDir is required; the secret becomes visible at DestDir/<name>
	// only via an atomic rename from DestDir/.<name>.tmp.
	DestDir string `yaml:"destDir" json:"destDir"`

	// User and Group are applied only when both resolve on the target
	// machine; otherwise ownership is left as the uploading identity.
	User        string `yaml:"user,omitempty" json:"user,omitempty"`
	Group       string `yaml:"group,omitempty" json:"group,omitempty"`
	Permissions string `yaml:"permissions,omitempty" json:"permissions,omitempty"`
}
