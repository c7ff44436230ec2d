package realms

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/louisbranch/realmtree/internal/platform/id"
	"github.com/louisbranch/realmtree/internal/services/realms/domain"
	"github.com/louisbranch/realmtree/internal/services/realms/storage"
)

// command is one sub-command. maxArgs of -1 means unbounded.
type command struct {
	usage   string
	minArgs int
	maxArgs int
	// offline commands never open the database.
	offline bool
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = map[string]command{
	"check":         {usage: "<segment>", minArgs: 1, maxArgs: 1, offline: true, run: runCheck},
	"create":        {usage: "<parent-path> <segment> [name]", minArgs: 2, maxArgs: 3, run: runCreate},
	"move":          {usage: "<path> <new-parent-path>", minArgs: 2, maxArgs: 2, run: runMove},
	"rename":        {usage: "<path> <segment>", minArgs: 2, maxArgs: 2, run: runRename},
	"name":          {usage: "<path> [name]", minArgs: 1, maxArgs: 2, run: runName},
	"name-block":    {usage: "<path> <block-id>", minArgs: 2, maxArgs: 2, run: runNameBlock},
	"order":         {usage: "<parent-path> <order> [child-segment...]", minArgs: 2, maxArgs: -1, run: runOrder},
	"delete":        {usage: "<path>", minArgs: 1, maxArgs: 1, run: runDelete},
	"show":          {usage: "<path>", minArgs: 1, maxArgs: 1, run: runShow},
	"tree":          {usage: "[path]", minArgs: 0, maxArgs: 1, run: runTree},
	"series-create": {usage: "<title>", minArgs: 1, maxArgs: 1, run: runSeriesCreate},
	"series-title":  {usage: "<series-id> <title>", minArgs: 2, maxArgs: 2, run: runSeriesTitle},
	"series-delete": {usage: "<series-id>", minArgs: 1, maxArgs: 1, run: runSeriesDelete},
	"event-create":  {usage: "<title> [series-id]", minArgs: 1, maxArgs: 2, run: runEventCreate},
	"event-title":   {usage: "<event-id> <title>", minArgs: 2, maxArgs: 2, run: runEventTitle},
	"event-delete":  {usage: "<event-id>", minArgs: 1, maxArgs: 1, run: runEventDelete},
	"block-add":     {usage: "<path> <title|text|video|series> [text-or-id]", minArgs: 2, maxArgs: 3, run: runBlockAdd},
	"block-ref":     {usage: "<block-id> <event-or-series-id>", minArgs: 2, maxArgs: 2, run: runBlockRef},
	"block-remove":  {usage: "<block-id>", minArgs: 1, maxArgs: 1, run: runBlockRemove},
	"queue":         {usage: "[limit]", minArgs: 0, maxArgs: 1, run: runQueue},
	"queue-ack":     {usage: "<queue-id>...", minArgs: 1, maxArgs: -1, run: runQueueAck},
	"queue-stats":   {usage: "", minArgs: 0, maxArgs: 0, run: runQueueStats},
	"queue-rebuild": {usage: "", minArgs: 0, maxArgs: 0, run: runQueueRebuild},
	"queue-resolve": {usage: "[limit]", minArgs: 0, maxArgs: 1, run: runQueueResolve},
}

const defaultQueueLimit = 100

type realmView struct {
	ID         string `json:"id"`
	ParentID   string `json:"parent_id,omitempty"`
	Segment    string `json:"segment"`
	Path       string `json:"path"`
	Name       string `json:"name,omitempty"`
	NameBlock  string `json:"name_block,omitempty"`
	Index      int    `json:"index"`
	ChildOrder string `json:"child_order"`
}

func newRealmView(r storage.Realm) realmView {
	view := realmView{
		ID:         r.ID.String(),
		Segment:    r.PathSegment,
		Path:       displayPath(r.FullPath),
		Name:       r.ResolvedName,
		Index:      r.Index,
		ChildOrder: string(r.ChildOrder),
	}
	if r.ParentID != nil {
		view.ParentID = r.ParentID.String()
	}
	if r.NameFromBlock != nil {
		view.NameBlock = r.NameFromBlock.String()
	}
	return view
}

type blockView struct {
	ID       string `json:"id"`
	Index    int    `json:"index"`
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	VideoID  string `json:"video_id,omitempty"`
	SeriesID string `json:"series_id,omitempty"`
}

func newBlockView(b storage.Block) blockView {
	return blockView{
		ID:       b.ID.String(),
		Index:    b.Index,
		Type:     string(b.Type),
		Text:     b.Text,
		VideoID:  keyString(b.VideoID),
		SeriesID: keyString(b.SeriesID),
	}
}

type contentView struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	SeriesID string `json:"series_id,omitempty"`
}

type queueItemView struct {
	QueueID int64  `json:"queue_id"`
	ItemID  string `json:"item_id"`
	Kind    string `json:"kind"`
}

func keyString(key *id.Key) string {
	if key == nil {
		return ""
	}
	return key.String()
}

func displayPath(fullPath string) string {
	if fullPath == "" {
		return "/"
	}
	return fullPath
}

// emit writes v as JSON in JSON mode, or calls text otherwise.
func (c *cli) emit(v any, text func(w io.Writer)) error {
	if c.json {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode output: %w", err)
		}
		return nil
	}
	text(c.out)
	return nil
}

func (c *cli) emitRealm(r storage.Realm) error {
	return c.emit(newRealmView(r), func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.ID, displayPath(r.FullPath), r.ResolvedName)
	})
}

func (c *cli) realm(ctx context.Context, path string) (storage.Realm, error) {
	return c.svc.GetRealmByPath(ctx, path)
}

func parseKey(label string, value string) (id.Key, error) {
	key, err := id.ParseKey(value)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s %q", ErrUsage, label, value)
	}
	return key, nil
}

func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return defaultQueueLimit, nil
	}
	limit, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: invalid limit %q", ErrUsage, args[0])
	}
	return limit, nil
}

func runCheck(_ context.Context, c *cli, args []string) error {
	validity := domain.ValidateSegment(args[0])
	message := domain.SegmentMessage(c.locale, validity)
	return c.emit(map[string]string{"segment": args[0], "validity": validity.String(), "message": message}, func(w io.Writer) {
		if validity == domain.SegmentValid {
			fmt.Fprintln(w, validity)
			return
		}
		fmt.Fprintf(w, "%s: %s\n", validity, message)
	})
}

func runCreate(ctx context.Context, c *cli, args []string) error {
	parent, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	in := storage.NewRealm{ParentID: parent.ID, PathSegment: args[1]}
	if len(args) == 3 {
		in.Name = &args[2]
	}
	realm, err := c.svc.CreateRealm(ctx, in)
	if err != nil {
		return err
	}
	return c.emitRealm(realm)
}

func runMove(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	parent, err := c.realm(ctx, args[1])
	if err != nil {
		return err
	}
	moved, err := c.svc.MoveRealm(ctx, realm.ID, parent.ID)
	if err != nil {
		return err
	}
	return c.emitRealm(moved)
}

func runRename(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	renamed, err := c.svc.RenameRealm(ctx, realm.ID, args[1])
	if err != nil {
		return err
	}
	return c.emitRealm(renamed)
}

func runName(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	var name storage.RealmName
	if len(args) == 2 {
		name.Name = &args[1]
	}
	named, err := c.svc.SetRealmName(ctx, realm.ID, name)
	if err != nil {
		return err
	}
	return c.emitRealm(named)
}

func runNameBlock(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	blockID, err := parseKey("block id", args[1])
	if err != nil {
		return err
	}
	named, err := c.svc.SetRealmName(ctx, realm.ID, storage.RealmName{FromBlock: &blockID})
	if err != nil {
		return err
	}
	return c.emitRealm(named)
}

func runOrder(ctx context.Context, c *cli, args []string) error {
	parent, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	order, err := domain.ParseChildOrder(args[1])
	if err != nil {
		return err
	}
	var childIDs []id.Key
	if segments := args[2:]; len(segments) > 0 {
		children, err := c.svc.Children(ctx, parent.ID)
		if err != nil {
			return err
		}
		bySegment := make(map[string]id.Key, len(children))
		for _, child := range children {
			bySegment[child.PathSegment] = child.ID
		}
		childIDs = make([]id.Key, 0, len(segments))
		for _, segment := range segments {
			childID, ok := bySegment[segment]
			if !ok {
				return domain.NotFoundPath(domain.JoinPath(parent.FullPath, segment))
			}
			childIDs = append(childIDs, childID)
		}
	}
	if err := c.svc.SetChildOrder(ctx, parent.ID, order, childIDs); err != nil {
		return err
	}
	return c.printChildren(ctx, parent)
}

func (c *cli) printChildren(ctx context.Context, parent storage.Realm) error {
	children, err := c.svc.Children(ctx, parent.ID)
	if err != nil {
		return err
	}
	views := make([]realmView, 0, len(children))
	for _, child := range children {
		views = append(views, newRealmView(child))
	}
	return c.emit(views, func(w io.Writer) {
		for _, child := range children {
			fmt.Fprintf(w, "%s\t%s\t%s\n", child.ID, displayPath(child.FullPath), child.ResolvedName)
		}
	})
}

func runDelete(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	removed, err := c.svc.DeleteRealm(ctx, realm.ID)
	if err != nil {
		return err
	}
	return c.emit(map[string]int{"removed": removed}, func(w io.Writer) {
		fmt.Fprintf(w, "removed %d realms\n", removed)
	})
}

func runShow(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	ancestors, err := c.svc.Ancestors(ctx, realm.ID)
	if err != nil {
		return err
	}
	blocks, err := c.svc.Blocks(ctx, realm.ID)
	if err != nil {
		return err
	}
	children, err := c.svc.Children(ctx, realm.ID)
	if err != nil {
		return err
	}

	view := struct {
		Realm     realmView   `json:"realm"`
		Ancestors []realmView `json:"ancestors"`
		Children  []realmView `json:"children"`
		Blocks    []blockView `json:"blocks"`
	}{Realm: newRealmView(realm)}
	for _, ancestor := range ancestors {
		view.Ancestors = append(view.Ancestors, newRealmView(ancestor))
	}
	for _, child := range children {
		view.Children = append(view.Children, newRealmView(child))
	}
	for _, block := range blocks {
		view.Blocks = append(view.Blocks, newBlockView(block))
	}

	return c.emit(view, func(w io.Writer) {
		fmt.Fprintf(w, "id:          %s\n", realm.ID)
		fmt.Fprintf(w, "path:        %s\n", displayPath(realm.FullPath))
		fmt.Fprintf(w, "name:        %s\n", realm.ResolvedName)
		fmt.Fprintf(w, "child order: %s\n", realm.ChildOrder)
		crumbs := make([]string, 0, len(ancestors))
		for _, ancestor := range ancestors {
			crumbs = append(crumbs, displayPath(ancestor.FullPath))
		}
		fmt.Fprintf(w, "ancestors:   %s\n", strings.Join(crumbs, " > "))
		for _, child := range children {
			fmt.Fprintf(w, "child:       %s\n", child.PathSegment)
		}
		for _, block := range blocks {
			fmt.Fprintf(w, "block %d:     %s %s", block.Index, block.ID, block.Type)
			switch {
			case block.VideoID != nil:
				fmt.Fprintf(w, " %s", block.VideoID)
			case block.SeriesID != nil:
				fmt.Fprintf(w, " %s", block.SeriesID)
			case block.Text != "":
				fmt.Fprintf(w, " %q", block.Text)
			}
			fmt.Fprintln(w)
		}
	})
}

func runTree(ctx context.Context, c *cli, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	top, err := c.realm(ctx, path)
	if err != nil {
		return err
	}
	realms, err := c.svc.Subtree(ctx, top.ID)
	if err != nil {
		return err
	}
	views := make([]realmView, 0, len(realms))
	for _, realm := range realms {
		views = append(views, newRealmView(realm))
	}
	baseDepth := strings.Count(top.FullPath, "/")
	return c.emit(views, func(w io.Writer) {
		for _, realm := range realms {
			if realm.ID == top.ID {
				fmt.Fprintln(w, displayPath(realm.FullPath))
				continue
			}
			depth := strings.Count(realm.FullPath, "/") - baseDepth
			fmt.Fprintf(w, "%s%s", strings.Repeat("  ", depth), realm.PathSegment)
			if realm.ResolvedName != "" {
				fmt.Fprintf(w, " (%s)", realm.ResolvedName)
			}
			fmt.Fprintln(w)
		}
	})
}

func runSeriesCreate(ctx context.Context, c *cli, args []string) error {
	series, err := c.svc.CreateSeries(ctx, args[0])
	if err != nil {
		return err
	}
	return c.emitSeries(series)
}

func runSeriesTitle(ctx context.Context, c *cli, args []string) error {
	seriesID, err := parseKey("series id", args[0])
	if err != nil {
		return err
	}
	series, err := c.svc.SetSeriesTitle(ctx, seriesID, args[1])
	if err != nil {
		return err
	}
	return c.emitSeries(series)
}

func runSeriesDelete(ctx context.Context, c *cli, args []string) error {
	seriesID, err := parseKey("series id", args[0])
	if err != nil {
		return err
	}
	if err := c.svc.DeleteSeries(ctx, seriesID); err != nil {
		return err
	}
	return c.emit(map[string]string{"deleted": seriesID.String()}, func(w io.Writer) {
		fmt.Fprintf(w, "deleted series %s\n", seriesID)
	})
}

func (c *cli) emitSeries(series storage.Series) error {
	return c.emit(contentView{ID: series.ID.String(), Title: series.Title}, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\n", series.ID, series.Title)
	})
}

func runEventCreate(ctx context.Context, c *cli, args []string) error {
	var seriesID *id.Key
	if len(args) == 2 {
		key, err := parseKey("series id", args[1])
		if err != nil {
			return err
		}
		seriesID = &key
	}
	event, err := c.svc.CreateEvent(ctx, seriesID, args[0])
	if err != nil {
		return err
	}
	return c.emitEvent(event)
}

func runEventTitle(ctx context.Context, c *cli, args []string) error {
	eventID, err := parseKey("event id", args[0])
	if err != nil {
		return err
	}
	event, err := c.svc.SetEventTitle(ctx, eventID, args[1])
	if err != nil {
		return err
	}
	return c.emitEvent(event)
}

func runEventDelete(ctx context.Context, c *cli, args []string) error {
	eventID, err := parseKey("event id", args[0])
	if err != nil {
		return err
	}
	if err := c.svc.DeleteEvent(ctx, eventID); err != nil {
		return err
	}
	return c.emit(map[string]string{"deleted": eventID.String()}, func(w io.Writer) {
		fmt.Fprintf(w, "deleted event %s\n", eventID)
	})
}

func (c *cli) emitEvent(event storage.Event) error {
	view := contentView{ID: event.ID.String(), Title: event.Title, SeriesID: keyString(event.SeriesID)}
	return c.emit(view, func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%s\n", event.ID, event.Title)
	})
}

func runBlockAdd(ctx context.Context, c *cli, args []string) error {
	realm, err := c.realm(ctx, args[0])
	if err != nil {
		return err
	}
	in := storage.NewBlock{RealmID: realm.ID, Type: storage.BlockType(args[1])}
	var value string
	if len(args) == 3 {
		value = args[2]
	}
	switch in.Type {
	case storage.BlockTypeTitle, storage.BlockTypeText:
		in.Text = value
	case storage.BlockTypeVideo, storage.BlockTypeSeries:
		key, err := parseKey(string(in.Type)+" id", value)
		if err != nil {
			return err
		}
		if in.Type == storage.BlockTypeVideo {
			in.VideoID = &key
		} else {
			in.SeriesID = &key
		}
	default:
		return fmt.Errorf("%w: unknown block type %q", ErrUsage, args[1])
	}
	block, err := c.svc.AddBlock(ctx, in)
	if err != nil {
		return err
	}
	return c.emitBlock(block)
}

func runBlockRef(ctx context.Context, c *cli, args []string) error {
	blockID, err := parseKey("block id", args[0])
	if err != nil {
		return err
	}
	refID, err := parseKey("reference id", args[1])
	if err != nil {
		return err
	}
	// The store rejects a ref that does not fit the block type, so try the
	// event slot only when the id names an event.
	ref := storage.BlockRef{SeriesID: &refID}
	if _, err := c.svc.GetEvent(ctx, refID); err == nil {
		ref = storage.BlockRef{VideoID: &refID}
	}
	block, err := c.svc.SetBlockRef(ctx, blockID, ref)
	if err != nil {
		return err
	}
	return c.emitBlock(block)
}

func runBlockRemove(ctx context.Context, c *cli, args []string) error {
	blockID, err := parseKey("block id", args[0])
	if err != nil {
		return err
	}
	if err := c.svc.RemoveBlock(ctx, blockID); err != nil {
		return err
	}
	return c.emit(map[string]string{"deleted": blockID.String()}, func(w io.Writer) {
		fmt.Fprintf(w, "removed block %s\n", blockID)
	})
}

func (c *cli) emitBlock(block storage.Block) error {
	return c.emit(newBlockView(block), func(w io.Writer) {
		fmt.Fprintf(w, "%s\t%d\t%s\n", block.ID, block.Index, block.Type)
	})
}

func runQueue(ctx context.Context, c *cli, args []string) error {
	limit, err := parseLimit(args)
	if err != nil {
		return err
	}
	items, err := c.svc.PendingItems(ctx, limit)
	if err != nil {
		return err
	}
	views := make([]queueItemView, 0, len(items))
	for _, item := range items {
		views = append(views, queueItemView{QueueID: item.ID, ItemID: item.ItemID.String(), Kind: string(item.Kind)})
	}
	return c.emit(views, func(w io.Writer) {
		for _, item := range items {
			fmt.Fprintf(w, "%d\t%s\t%s\n", item.ID, item.Kind, item.ItemID)
		}
	})
}

func runQueueAck(ctx context.Context, c *cli, args []string) error {
	queueIDs := make([]int64, 0, len(args))
	for _, arg := range args {
		queueID, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: invalid queue id %q", ErrUsage, arg)
		}
		queueIDs = append(queueIDs, queueID)
	}
	acked, err := c.svc.AckItems(ctx, queueIDs)
	if err != nil {
		return err
	}
	return c.emit(map[string]int{"acked": acked}, func(w io.Writer) {
		fmt.Fprintf(w, "acked %d items\n", acked)
	})
}

func runQueueStats(ctx context.Context, c *cli, _ []string) error {
	stats, err := c.svc.QueueStats(ctx)
	if err != nil {
		return err
	}
	view := map[string]int64{"realms": int64(stats.Realms), "events": int64(stats.Events), "oldest_id": stats.OldestID}
	return c.emit(view, func(w io.Writer) {
		fmt.Fprintf(w, "realms=%d events=%d oldest=%d\n", stats.Realms, stats.Events, stats.OldestID)
	})
}

func runQueueRebuild(ctx context.Context, c *cli, _ []string) error {
	added, err := c.svc.RebuildQueue(ctx)
	if err != nil {
		return err
	}
	return c.emit(map[string]int{"added": added}, func(w io.Writer) {
		fmt.Fprintf(w, "queued %d items\n", added)
	})
}

// runQueueResolve prints the current state behind the oldest pending items
// without consuming them.
func runQueueResolve(ctx context.Context, c *cli, args []string) error {
	limit, err := parseLimit(args)
	if err != nil {
		return err
	}
	batch, err := c.svc.ReadBatch(ctx, limit)
	if err != nil {
		return err
	}
	view := struct {
		QueueIDs      []int64       `json:"queue_ids"`
		Realms        []realmView   `json:"realms"`
		Events        []contentView `json:"events"`
		DeletedRealms []string      `json:"deleted_realms"`
		DeletedEvents []string      `json:"deleted_events"`
	}{QueueIDs: batch.QueueIDs}
	for _, realm := range batch.Realms {
		view.Realms = append(view.Realms, newRealmView(realm))
	}
	for _, event := range batch.Events {
		view.Events = append(view.Events, contentView{ID: event.ID.String(), Title: event.Title, SeriesID: keyString(event.SeriesID)})
	}
	for _, key := range batch.DeletedRealms {
		view.DeletedRealms = append(view.DeletedRealms, key.String())
	}
	for _, key := range batch.DeletedEvents {
		view.DeletedEvents = append(view.DeletedEvents, key.String())
	}
	return c.emit(view, func(w io.Writer) {
		for _, realm := range batch.Realms {
			fmt.Fprintf(w, "realm\t%s\t%s\n", realm.ID, displayPath(realm.FullPath))
		}
		for _, event := range batch.Events {
			fmt.Fprintf(w, "event\t%s\t%s\n", event.ID, event.Title)
		}
		for _, key := range batch.DeletedRealms {
			fmt.Fprintf(w, "realm\t%s\tdeleted\n", key)
		}
		for _, key := range batch.DeletedEvents {
			fmt.Fprintf(w, "event\t%s\tdeleted\n", key)
		}
	})
}
