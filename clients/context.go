package clients

// Context is the capability bag handed to every task: one handle per remote
// collaborator. The handles are internally thread safe and no field is
// mutated after construction, so a single Context is shared by all
// goroutines.
type Context struct {
	beacon    BeaconClient
	execution ExecutionClient
	blobscan  BlobscanClient
}

// NewContext bundles the three client handles.
func NewContext(beacon BeaconClient, execution ExecutionClient, blobscan BlobscanClient) *Context {
	return &Context{beacon: beacon, execution: execution, blobscan: blobscan}
}

// BeaconClient returns the beacon node handle.
func (c *Context) BeaconClient() BeaconClient {
	return c.beacon
}

// ExecutionClient returns the execution node handle.
func (c *Context) ExecutionClient() ExecutionClient {
	return c.execution
}

// BlobscanClient returns the blobscan handle.
func (c *Context) BlobscanClient() BlobscanClient {
	return c.blobscan
}
