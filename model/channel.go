package model

// Channel records the genesis artifact and which nodes joined with it.
type Channel struct {
	Name           string   `json:"name"`
	GenesisPath    string   `json:"genesisPath"`
	JoinedOrderers []string `json:"joinedOrderers"`
	JoinedPeers    []string `json:"joinedPeers"`
	// Quorum is the lifecycle endorsement expression of the channel.
	Quorum string `json:"quorum"`
}
