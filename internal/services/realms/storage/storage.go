// Package storage defines persistence contracts for the realm tree, the
// content it hosts and the search reindex queue.
package storage

import (
	"context"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = domain.ErrNotFound

// Realm is a read snapshot of one node of the tree. FullPath is derived from
// the ancestor chain; no write contract in this package accepts it.
type Realm struct {
	ID            id.Key
	ParentID      *id.Key
	PathSegment   string
	Name          *string
	NameFromBlock *id.Key
	// ResolvedName is Name, or the title shown by the NameFromBlock block.
	// Empty when the realm is unnamed.
	ResolvedName string
	Index        int
	ChildOrder   domain.ChildOrder
	FullPath     string
}

// IsRoot reports whether the realm is the tree root.
func (r Realm) IsRoot() bool {
	return r.ID == id.RootKey
}

// NewRealm describes a realm to create under ParentID.
type NewRealm struct {
	ParentID    id.Key
	PathSegment string
	Name        *string
	// Index defaults to domain.DefaultChildIndex when nil.
	Index      *int
	ChildOrder domain.ChildOrder
}

// RealmName selects where a realm's display name comes from. At most one
// field may be set; both nil clears the name.
type RealmName struct {
	Name      *string
	FromBlock *id.Key
}

// RealmStore mutates and reads the realm tree. Every mutation runs the path
// propagation engine and the reindex triggers inside one transaction.
type RealmStore interface {
	CreateRealm(ctx context.Context, in NewRealm) (Realm, error)
	MoveRealm(ctx context.Context, realmID id.Key, newParentID id.Key) (Realm, error)
	RenameRealm(ctx context.Context, realmID id.Key, segment string) (Realm, error)
	SetRealmName(ctx context.Context, realmID id.Key, name RealmName) (Realm, error)
	SetChildOrder(ctx context.Context, parentID id.Key, order domain.ChildOrder, childIDs []id.Key) error
	// DeleteRealm removes the realm and its subtree and returns how many
	// realms were removed.
	DeleteRealm(ctx context.Context, realmID id.Key) (int, error)

	Root(ctx context.Context) (Realm, error)
	GetRealm(ctx context.Context, realmID id.Key) (Realm, error)
	GetRealmByPath(ctx context.Context, fullPath string) (Realm, error)
	// Children lists direct children in the parent's child order.
	Children(ctx context.Context, parentID id.Key) ([]Realm, error)
	// Subtree lists the realm and all descendants ordered by full path.
	Subtree(ctx context.Context, realmID id.Key) ([]Realm, error)
	// Ancestors lists the realm's ancestors, root first.
	Ancestors(ctx context.Context, realmID id.Key) ([]Realm, error)
}

// BlockType identifies the kind of content a block shows.
type BlockType string

const (
	BlockTypeTitle  BlockType = "title"
	BlockTypeText   BlockType = "text"
	BlockTypeVideo  BlockType = "video"
	BlockTypeSeries BlockType = "series"
)

// Series groups events.
type Series struct {
	ID    id.Key
	Title string
}

// Event is one indexable media item.
type Event struct {
	ID       id.Key
	SeriesID *id.Key
	Title    string
}

// Block is one content element placed in a realm.
type Block struct {
	ID       id.Key
	RealmID  id.Key
	Index    int
	Type     BlockType
	Text     string
	VideoID  *id.Key
	SeriesID *id.Key
}

// NewBlock describes a block appended to a realm.
type NewBlock struct {
	RealmID  id.Key
	Type     BlockType
	Text     string
	VideoID  *id.Key
	SeriesID *id.Key
}

// BlockRef replaces the entity a video or series block points at.
type BlockRef struct {
	VideoID  *id.Key
	SeriesID *id.Key
}

// ContentStore mutates and reads the entities realms host.
type ContentStore interface {
	CreateSeries(ctx context.Context, title string) (Series, error)
	SetSeriesTitle(ctx context.Context, seriesID id.Key, title string) (Series, error)
	DeleteSeries(ctx context.Context, seriesID id.Key) error
	GetSeries(ctx context.Context, seriesID id.Key) (Series, error)

	CreateEvent(ctx context.Context, seriesID *id.Key, title string) (Event, error)
	SetEventTitle(ctx context.Context, eventID id.Key, title string) (Event, error)
	DeleteEvent(ctx context.Context, eventID id.Key) error
	GetEvent(ctx context.Context, eventID id.Key) (Event, error)

	AddBlock(ctx context.Context, in NewBlock) (Block, error)
	SetBlockRef(ctx context.Context, blockID id.Key, ref BlockRef) (Block, error)
	RemoveBlock(ctx context.Context, blockID id.Key) error
	Blocks(ctx context.Context, realmID id.Key) ([]Block, error)
}

// QueueItem is one pending reindex request. ID is the queue position.
type QueueItem struct {
	ID     int64
	ItemID id.Key
	Kind   domain.ItemKind
}

// Batch is the resolved state of a set of queue items. Items whose entity no
// longer exists are reported as tombstones.
type Batch struct {
	Realms        []Realm
	Events        []Event
	DeletedRealms []id.Key
	DeletedEvents []id.Key
	// QueueIDs lists the queue positions covered by this batch.
	QueueIDs []int64
}

// QueueStats summarizes the pending queue.
type QueueStats struct {
	Realms int
	Events int
	// OldestID is the smallest pending queue position, 0 when empty.
	OldestID int64
}

// IndexQueue exposes the search reindex queue to the indexer.
type IndexQueue interface {
	PendingItems(ctx context.Context, limit int) ([]QueueItem, error)
	ResolveBatch(ctx context.Context, items []QueueItem) (Batch, error)
	// AckItems removes processed items; unknown ids are ignored.
	AckItems(ctx context.Context, queueIDs []int64) (int, error)
	QueueStats(ctx context.Context) (QueueStats, error)
	// RebuildQueue enqueues every realm and event.
	RebuildQueue(ctx context.Context) (int, error)
}

// Observer receives counts from committed transactions.
type Observer interface {
	ObservePropagation(nodes int)
	ObserveEnqueued(kind domain.ItemKind, count int)
}

// Store is the full persistence surface of the realms service.
type Store interface {
	RealmStore
	ContentStore
	IndexQueue
	Close() error
}
