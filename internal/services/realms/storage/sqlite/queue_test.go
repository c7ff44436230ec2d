package sqlite

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
)

func itemLabel(kind domain.ItemKind, key id.Key) string {
	return string(kind) + ":" + key.String()
}

// pendingSet returns the pending queue as "kind:key" labels.
func pendingSet(t *testing.T, store *Store) map[string]bool {
	t.Helper()

	items, err := store.PendingItems(context.Background(), 1000)
	if err != nil {
		t.Fatalf("pending items: %v", err)
	}
	out := make(map[string]bool, len(items))
	for _, item := range items {
		label := itemLabel(item.Kind, item.ItemID)
		if out[label] {
			t.Fatalf("duplicate pending item %s", label)
		}
		out[label] = true
	}
	return out
}

func ackAll(t *testing.T, store *Store) {
	t.Helper()

	items, err := store.PendingItems(context.Background(), 1000)
	if err != nil {
		t.Fatalf("pending items: %v", err)
	}
	queueIDs := make([]int64, len(items))
	for i, item := range items {
		queueIDs[i] = item.ID
	}
	if _, err := store.AckItems(context.Background(), queueIDs); err != nil {
		t.Fatalf("ack items: %v", err)
	}
}

func assertPending(t *testing.T, store *Store, want ...string) {
	t.Helper()

	got := pendingSet(t, store)
	labels := make([]string, 0, len(got))
	for label := range got {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	sort.Strings(want)
	if strings.Join(labels, ",") != strings.Join(want, ",") {
		t.Fatalf("pending = %v, want %v", labels, want)
	}
}

func TestCreateEnqueuesRealmOnce(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	if _, err := store.RenameRealm(ctx, a.ID, "bb"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if _, err := store.RenameRealm(ctx, a.ID, "cc"); err != nil {
		t.Fatalf("rename again: %v", err)
	}
	assertPending(t, store, itemLabel(domain.ItemKindRealm, a.ID))
}

func TestMoveEnqueuesWholeSubtree(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	b := mustCreate(t, store, a.ID, "bb")
	c := mustCreate(t, store, b.ID, "cc")
	target := mustCreate(t, store, id.RootKey, "target")
	ackAll(t, store)

	if _, err := store.MoveRealm(ctx, b.ID, target.ID); err != nil {
		t.Fatalf("move: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, b.ID),
		itemLabel(domain.ItemKindRealm, c.ID),
	)
}

func TestNameChangeEnqueuesDescendants(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	b := mustCreate(t, store, a.ID, "bb")
	c := mustCreate(t, store, b.ID, "cc")
	mustCreate(t, store, id.RootKey, "aa-other")
	ackAll(t, store)

	name := "Alpha"
	if _, err := store.SetRealmName(ctx, a.ID, storage.RealmName{Name: &name}); err != nil {
		t.Fatalf("set name: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, a.ID),
		itemLabel(domain.ItemKindRealm, b.ID),
		itemLabel(domain.ItemKindRealm, c.ID),
	)

	ackAll(t, store)
	if _, err := store.SetRealmName(ctx, a.ID, storage.RealmName{Name: &name}); err != nil {
		t.Fatalf("set same name: %v", err)
	}
	assertPending(t, store)
}

func TestNameFromBlock(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	b := mustCreate(t, store, id.RootKey, "bb")
	event, err := store.CreateEvent(ctx, nil, "Opening Lecture")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	block, err := store.AddBlock(ctx, storage.NewBlock{RealmID: a.ID, Type: storage.BlockTypeVideo, VideoID: &event.ID})
	if err != nil {
		t.Fatalf("add block: %v", err)
	}

	named, err := store.SetRealmName(ctx, a.ID, storage.RealmName{FromBlock: &block.ID})
	if err != nil {
		t.Fatalf("name from block: %v", err)
	}
	if named.ResolvedName != "Opening Lecture" || named.Name != nil {
		t.Fatalf("named = %+v", named)
	}
	if _, err := store.SetRealmName(ctx, b.ID, storage.RealmName{FromBlock: &block.ID}); !errors.Is(err, domain.ErrNameBlockOutsideRealm) {
		t.Fatalf("foreign block = %v", err)
	}
	explicit := "x"
	if _, err := store.SetRealmName(ctx, a.ID, storage.RealmName{Name: &explicit, FromBlock: &block.ID}); !errors.Is(err, domain.ErrNameSourceConflict) {
		t.Fatalf("both sources = %v", err)
	}
	for _, blockType := range []storage.BlockType{storage.BlockTypeText, storage.BlockTypeTitle} {
		untitled, err := store.AddBlock(ctx, storage.NewBlock{RealmID: a.ID, Type: blockType, Text: "Intro"})
		if err != nil {
			t.Fatalf("add %s block: %v", blockType, err)
		}
		if _, err := store.SetRealmName(ctx, a.ID, storage.RealmName{FromBlock: &untitled.ID}); !errors.Is(err, domain.ErrNameBlockUntitled) {
			t.Fatalf("%s block as name = %v, want untitled block error", blockType, err)
		}
	}
	if got := mustGet(t, store, a.ID); got.NameFromBlock == nil || *got.NameFromBlock != block.ID || got.ResolvedName != "Opening Lecture" {
		t.Fatalf("name after rejected block = %+v", got)
	}

	ackAll(t, store)
	if _, err := store.SetEventTitle(ctx, event.ID, "Welcome"); err != nil {
		t.Fatalf("retitle: %v", err)
	}
	if got := mustGet(t, store, a.ID).ResolvedName; got != "Welcome" {
		t.Fatalf("resolved name = %q", got)
	}

	ackAll(t, store)
	if err := store.RemoveBlock(ctx, block.ID); err != nil {
		t.Fatalf("remove block: %v", err)
	}
	got := mustGet(t, store, a.ID)
	if got.NameFromBlock != nil || got.ResolvedName != "" {
		t.Fatalf("after block removal = %+v", got)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, a.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)
}

func TestTitleChangeEnqueuesHostingRealms(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	host := mustCreate(t, store, id.RootKey, "host")
	seriesHost := mustCreate(t, store, id.RootKey, "series-host")
	mustCreate(t, store, id.RootKey, "bystander")
	series, err := store.CreateSeries(ctx, "Algorithms")
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	event, err := store.CreateEvent(ctx, &series.ID, "Sorting")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: host.ID, Type: storage.BlockTypeVideo, VideoID: &event.ID}); err != nil {
		t.Fatalf("add video block: %v", err)
	}
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: seriesHost.ID, Type: storage.BlockTypeSeries, SeriesID: &series.ID}); err != nil {
		t.Fatalf("add series block: %v", err)
	}
	ackAll(t, store)

	if _, err := store.SetEventTitle(ctx, event.ID, "Sorting, revised"); err != nil {
		t.Fatalf("set event title: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, host.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)

	ackAll(t, store)
	if _, err := store.SetSeriesTitle(ctx, series.ID, "Algorithms II"); err != nil {
		t.Fatalf("set series title: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, seriesHost.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)

	ackAll(t, store)
	if _, err := store.SetSeriesTitle(ctx, series.ID, "Algorithms II"); err != nil {
		t.Fatalf("set same title: %v", err)
	}
	assertPending(t, store)
}

func TestTitleChangeMatchesBothReferenceColumns(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	videoHost := mustCreate(t, store, id.RootKey, "video-host")
	seriesHost := mustCreate(t, store, id.RootKey, "series-host")
	event, err := store.CreateEvent(ctx, nil, "Keynote")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	// A series sharing the event's key, as keys of different kinds may.
	if _, err := store.DB().ExecContext(ctx, `INSERT INTO series (id, title) VALUES (?, 'Shared Key')`, int64(event.ID)); err != nil {
		t.Fatalf("insert series: %v", err)
	}
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: videoHost.ID, Type: storage.BlockTypeVideo, VideoID: &event.ID}); err != nil {
		t.Fatalf("add video block: %v", err)
	}
	sharedKey := event.ID
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: seriesHost.ID, Type: storage.BlockTypeSeries, SeriesID: &sharedKey}); err != nil {
		t.Fatalf("add series block: %v", err)
	}
	ackAll(t, store)

	if _, err := store.SetEventTitle(ctx, event.ID, "Keynote, revised"); err != nil {
		t.Fatalf("set event title: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, videoHost.ID),
		itemLabel(domain.ItemKindRealm, seriesHost.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)

	ackAll(t, store)
	if _, err := store.SetSeriesTitle(ctx, sharedKey, "Shared Key II"); err != nil {
		t.Fatalf("set series title: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, videoHost.ID),
		itemLabel(domain.ItemKindRealm, seriesHost.ID),
	)
}

func TestBlockTriggersUseAffectedRefs(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	realm := mustCreate(t, store, id.RootKey, "realm")
	series, err := store.CreateSeries(ctx, "Series")
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	first, err := store.CreateEvent(ctx, &series.ID, "First")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := store.CreateEvent(ctx, &series.ID, "Second")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	loose, err := store.CreateEvent(ctx, nil, "Loose")
	if err != nil {
		t.Fatalf("create loose: %v", err)
	}
	ackAll(t, store)

	block, err := store.AddBlock(ctx, storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeSeries, SeriesID: &series.ID})
	if err != nil {
		t.Fatalf("add block: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindEvent, first.ID),
		itemLabel(domain.ItemKindEvent, second.ID),
	)

	ackAll(t, store)
	video, err := store.AddBlock(ctx, storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeVideo, VideoID: &first.ID})
	if err != nil {
		t.Fatalf("add video block: %v", err)
	}
	if video.Index != block.Index+1 {
		t.Fatalf("video index = %d, want %d", video.Index, block.Index+1)
	}
	ackAll(t, store)
	if _, err := store.SetBlockRef(ctx, video.ID, storage.BlockRef{VideoID: &loose.ID}); err != nil {
		t.Fatalf("set block ref: %v", err)
	}
	assertPending(t, store, itemLabel(domain.ItemKindEvent, loose.ID))

	ackAll(t, store)
	if err := store.RemoveBlock(ctx, block.ID); err != nil {
		t.Fatalf("remove block: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindEvent, first.ID),
		itemLabel(domain.ItemKindEvent, second.ID),
	)
}

func TestBlockReferenceValidation(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	realm := mustCreate(t, store, id.RootKey, "realm")
	event, err := store.CreateEvent(ctx, nil, "Event")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	missing := id.Key(4242)

	tests := []struct {
		name string
		in   storage.NewBlock
	}{
		{name: "video without ref", in: storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeVideo}},
		{name: "video with missing event", in: storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeVideo, VideoID: &missing}},
		{name: "series pointing at event", in: storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeSeries, VideoID: &event.ID}},
		{name: "text with ref", in: storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeText, VideoID: &event.ID}},
		{name: "unknown type", in: storage.NewBlock{RealmID: realm.ID, Type: "carousel"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.AddBlock(ctx, tc.in); !errors.Is(err, domain.ErrInvalidContentRef) {
				t.Fatalf("AddBlock = %v, want invalid reference", err)
			}
		})
	}
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: 999, Type: storage.BlockTypeText, Text: "hi"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing realm = %v", err)
	}
	if _, err := store.CreateEvent(ctx, &missing, "Orphan"); !errors.Is(err, domain.ErrInvalidContentRef) {
		t.Fatalf("event in missing series = %v", err)
	}
	if _, err := store.CreateSeries(ctx, " "); !errors.Is(err, domain.ErrTitleEmpty) {
		t.Fatalf("blank series title = %v", err)
	}
}

func TestDeleteRealmEnqueuesTombstones(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	b := mustCreate(t, store, a.ID, "bb")
	event, err := store.CreateEvent(ctx, nil, "Hosted")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if _, err := store.AddBlock(ctx, storage.NewBlock{RealmID: b.ID, Type: storage.BlockTypeVideo, VideoID: &event.ID}); err != nil {
		t.Fatalf("add block: %v", err)
	}
	ackAll(t, store)

	if _, err := store.DeleteRealm(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, a.ID),
		itemLabel(domain.ItemKindRealm, b.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)

	items, err := store.PendingItems(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	batch, err := store.ResolveBatch(ctx, items)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batch.Realms) != 0 || len(batch.DeletedRealms) != 2 {
		t.Fatalf("realms = %d deleted = %d", len(batch.Realms), len(batch.DeletedRealms))
	}
	if len(batch.Events) != 1 || batch.Events[0].ID != event.ID {
		t.Fatalf("events = %+v", batch.Events)
	}
	if len(batch.QueueIDs) != 3 {
		t.Fatalf("queue ids = %v", batch.QueueIDs)
	}
}

func TestDeleteEventAndSeries(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	realm := mustCreate(t, store, id.RootKey, "realm")
	series, err := store.CreateSeries(ctx, "Series")
	if err != nil {
		t.Fatalf("create series: %v", err)
	}
	event, err := store.CreateEvent(ctx, &series.ID, "Event")
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	video, err := store.AddBlock(ctx, storage.NewBlock{RealmID: realm.ID, Type: storage.BlockTypeVideo, VideoID: &event.ID})
	if err != nil {
		t.Fatalf("add block: %v", err)
	}
	ackAll(t, store)

	if err := store.DeleteSeries(ctx, series.ID); err != nil {
		t.Fatalf("delete series: %v", err)
	}
	got, err := store.GetEvent(ctx, event.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if got.SeriesID != nil {
		t.Fatalf("event series = %v, want nil", got.SeriesID)
	}
	assertPending(t, store, itemLabel(domain.ItemKindEvent, event.ID))

	ackAll(t, store)
	if err := store.DeleteEvent(ctx, event.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}
	assertPending(t, store,
		itemLabel(domain.ItemKindRealm, realm.ID),
		itemLabel(domain.ItemKindEvent, event.ID),
	)
	blocks, err := store.Blocks(ctx, realm.ID)
	if err != nil {
		t.Fatalf("blocks: %v", err)
	}
	if len(blocks) != 1 || blocks[0].ID != video.ID || blocks[0].VideoID != nil {
		t.Fatalf("blocks after delete = %+v", blocks)
	}
	if err := store.DeleteEvent(ctx, event.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second delete = %v", err)
	}
}

func TestQueuePositionsAreMonotonic(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	first, err := store.PendingItems(ctx, 10)
	if err != nil || len(first) != 1 {
		t.Fatalf("pending = %v, %v", first, err)
	}
	ackAll(t, store)

	if _, err := store.RenameRealm(ctx, a.ID, "bb"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	second, err := store.PendingItems(ctx, 10)
	if err != nil || len(second) != 1 {
		t.Fatalf("pending = %v, %v", second, err)
	}
	if second[0].ID <= first[0].ID {
		t.Fatalf("queue id %d not after %d", second[0].ID, first[0].ID)
	}
}

func TestAckLeavesReenqueuedItems(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	items, err := store.PendingItems(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, err := store.AckItems(ctx, []int64{items[0].ID}); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if _, err := store.RenameRealm(ctx, a.ID, "bb"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	// stale positions from an earlier batch must not remove the fresh item
	removed, err := store.AckItems(ctx, []int64{items[0].ID, 999999})
	if err != nil {
		t.Fatalf("ack stale: %v", err)
	}
	if removed != 0 {
		t.Fatalf("removed = %d, want 0", removed)
	}
	assertPending(t, store, itemLabel(domain.ItemKindRealm, a.ID))
}

func TestAckDropsItemRetriggeredWhilePending(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	items, err := store.PendingItems(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if _, err := store.RenameRealm(ctx, a.ID, "bb"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	after, err := store.PendingItems(ctx, 10)
	if err != nil {
		t.Fatalf("pending after rename: %v", err)
	}
	if len(after) != 1 || after[0].ID != items[0].ID {
		t.Fatalf("pending after rename = %+v, want the original position %d", after, items[0].ID)
	}
	removed, err := store.AckItems(ctx, []int64{items[0].ID})
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	assertPending(t, store)
}

func TestBatchesLargerThanOneStatement(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	pending, err := store.PendingItems(ctx, 3*maxBatchItems)
	if err != nil {
		t.Fatalf("pending with large limit: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %+v, want one item", pending)
	}

	items := append([]storage.QueueItem{}, pending...)
	for i := 1; i <= 2*maxBatchItems+1; i++ {
		kind := domain.ItemKindRealm
		if i%2 == 0 {
			kind = domain.ItemKindEvent
		}
		items = append(items, storage.QueueItem{ID: int64(1_000_000 + i), ItemID: id.Key(1_000_000 + i), Kind: kind})
	}
	batch, err := store.ResolveBatch(ctx, items)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(batch.Realms) != 1 || batch.Realms[0].ID != a.ID {
		t.Fatalf("realms = %+v, want aa", batch.Realms)
	}
	if got := len(batch.DeletedRealms) + len(batch.DeletedEvents); got != 2*maxBatchItems+1 {
		t.Fatalf("tombstones = %d, want %d", got, 2*maxBatchItems+1)
	}
	if len(batch.QueueIDs) != len(items) {
		t.Fatalf("queue ids = %d, want %d", len(batch.QueueIDs), len(items))
	}

	removed, err := store.AckItems(ctx, batch.QueueIDs)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	assertPending(t, store)
}

func TestPendingItemsOrderAndLimit(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	a := mustCreate(t, store, id.RootKey, "aa")
	b := mustCreate(t, store, id.RootKey, "bb")
	mustCreate(t, store, id.RootKey, "cc")

	items, err := store.PendingItems(ctx, 2)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(items) != 2 || items[0].ItemID != a.ID || items[1].ItemID != b.ID {
		t.Fatalf("items = %+v", items)
	}
	if items[0].ID >= items[1].ID {
		t.Fatalf("queue order = %d, %d", items[0].ID, items[1].ID)
	}
	if _, err := store.PendingItems(ctx, 0); !errors.Is(err, domain.ErrInvalidQueueReadLimit) {
		t.Fatalf("zero limit = %v", err)
	}
}

func TestQueueStatsAndRebuild(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	mustCreate(t, store, id.RootKey, "aa")
	if _, err := store.CreateEvent(ctx, nil, "Event"); err != nil {
		t.Fatalf("create event: %v", err)
	}
	stats, err := store.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Realms != 1 || stats.Events != 1 || stats.OldestID == 0 {
		t.Fatalf("stats = %+v", stats)
	}

	ackAll(t, store)
	empty, err := store.QueueStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if empty != (storage.QueueStats{}) {
		t.Fatalf("empty stats = %+v", empty)
	}

	added, err := store.RebuildQueue(ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	// root, aa and the event
	if added != 3 {
		t.Fatalf("rebuild added = %d, want 3", added)
	}
	again, err := store.RebuildQueue(ctx)
	if err != nil {
		t.Fatalf("rebuild again: %v", err)
	}
	if again != 0 {
		t.Fatalf("second rebuild added = %d, want 0", again)
	}
}
