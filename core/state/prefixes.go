package state

var (
	deploymentListKey = []byte("core/deployments")
	genesisMarkerKey  = []byte("core/genesis/applied")
)

// DeploymentListKey indexes every deployed ledger address.
func DeploymentListKey() []byte { return deploymentListKey }

// DeploymentKey stores the deployment record for a ledger address.
func DeploymentKey(addr [20]byte) []byte {
	return append([]byte("core/deployment/"), addr[:]...)
}

// DeploymentNameKey maps a ledger name to its address.
func DeploymentNameKey(name string) []byte {
	return append([]byte("core/deployment-name/"), name...)
}

// GenesisMarkerKey is set once the genesis document has been applied.
func GenesisMarkerKey() []byte { return genesisMarkerKey }
