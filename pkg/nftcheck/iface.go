package nftcheck

import "context"

// AssetSource lists the assets owned by a wallet.
// Implemented by Client (Helius DAS getAssetsByOwner).
type AssetSource interface {
	AssetsByOwner(ctx context.Context, owner string) QueryResult
}
