package nftcheck

// Ownership is the three-valued answer to "does this wallet hold the collection".
type Ownership int

const (
	DoesNotOwn Ownership = iota
	Owns
	QueryFailed
)

func (o Ownership) String() string {
	switch o {
	case Owns:
		return "owns"
	case QueryFailed:
		return "query-failed"
	default:
		return "does-not-own"
	}
}

// CollectionGroupKey is the grouping kind that names an asset's collection.
const CollectionGroupKey = "collection"

// HasCollection reports whether any asset carries a collection grouping whose
// value equals collectionID exactly. Assets are scanned in order and the scan
// stops at the first match.
func HasCollection(assets []Asset, collectionID string) bool {
	for _, asset := range assets {
		for _, g := range asset.Grouping {
			if g.GroupKey == CollectionGroupKey && g.GroupValue == collectionID {
				return true
			}
		}
	}
	return false
}

// Decide turns a query result into an Ownership. A degraded query is
// QueryFailed regardless of the (empty) asset list it carries.
func Decide(result QueryResult, collectionID string) Ownership {
	if result.Err != nil {
		return QueryFailed
	}
	if HasCollection(result.Assets, collectionID) {
		return Owns
	}
	return DoesNotOwn
}
